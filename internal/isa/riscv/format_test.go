package riscv

import (
	"testing"

	"github.com/lookbusy1344/riscv-sim/internal/memval"
	"github.com/stretchr/testify/require"
)

// add x1, x2, x3 -> opcode 0x33, funct3 0, funct7 0, rd=1, rs1=2, rs2=3
func TestAssembleRKnownEncoding(t *testing.T) {
	v := AssembleR(0x33, 0x0, 0x00, 1, 2, 3)
	require.EqualValues(t, 0x003100B3, mustUint(v))
}

// addi x1, x2, -1 -> opcode 0x13, funct3 0, rd=1, rs1=2, imm=0xFFF
func TestAssembleIKnownEncoding(t *testing.T) {
	v := AssembleI(0x13, 0x0, 1, 2, 0xFFF)
	require.EqualValues(t, 0xFFF10093, mustUint(v))
}

func TestAssembleSRoundTripsImmediate(t *testing.T) {
	v := AssembleS(0x23, 0x2, 2, 1, 0x7FF)
	bits := mustUint(v)
	hi := (bits >> 25) & 0x7F
	lo := (bits >> 7) & 0x1F
	require.EqualValues(t, 0x3F, hi)
	require.EqualValues(t, 0x1F, lo)
}

func TestAssembleSBZeroesLowBit(t *testing.T) {
	v := AssembleSB(0x63, 0x0, 1, 2, 0x1FFE)
	bits := mustUint(v)
	require.EqualValues(t, 0x63, bits&0x7F)
	require.Equal(t, bits, mustUint(AssembleSB(0x63, 0x0, 1, 2, 0x1FFF)))
}

func TestAssembleUPacksUpperBits(t *testing.T) {
	v := AssembleU(0x37, 1, 0x12345000)
	bits := mustUint(v)
	require.EqualValues(t, 0x12345, bits>>12)
}

func TestAssembleUJPacksSignBit(t *testing.T) {
	v := AssembleUJ(0x6F, 1, 0x100000)
	bits := mustUint(v)
	require.EqualValues(t, 1, bits>>31)
}

func mustUint(v memval.Value) uint64 {
	u, err := memval.ToUint(v, 8, memval.LittleEndian)
	if err != nil {
		panic(err)
	}
	return u
}
