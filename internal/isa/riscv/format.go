// Package riscv implements the RISC-V instruction node factories: the
// bit-exact per-format assembly functions and the AST nodes the final
// representation is built from (spec §4.8 "Instruction catalogue"),
// grounded on the base-ISA bit layouts in the original interpreter's
// arch/riscv/format.cpp.
package riscv

import "github.com/lookbusy1344/riscv-sim/internal/memval"

func mask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// appendBits shifts acc left by width bits and ORs in the low width bits of
// value, mirroring the original Utility::appendBits<N> accumulator idiom.
func appendBits(acc uint64, width uint, value uint64) uint64 {
	return (acc << width) | (value & mask(width))
}

// bitSlice extracts bits [hi:lo] (inclusive, lo <= hi) of value, right
// aligned, mirroring Utility::appendBitSlice<lo,hi>.
func bitSlice(value uint64, hi, lo uint) uint64 {
	return (value >> lo) & mask(hi-lo+1)
}

func toMemoryValue(bits uint64) memval.Value {
	return memval.FromUint(bits, 32, 8, memval.LittleEndian)
}

// AssembleR encodes an R-format instruction: funct7|rs2|rs1|funct3|rd|opcode.
func AssembleR(opcode, funct3, funct7, rd, rs1, rs2 uint64) memval.Value {
	bits := uint64(0)
	bits = appendBits(bits, 7, funct7)
	bits = appendBits(bits, 5, rs2)
	bits = appendBits(bits, 5, rs1)
	bits = appendBits(bits, 3, funct3)
	bits = appendBits(bits, 5, rd)
	bits = appendBits(bits, 7, opcode)
	return toMemoryValue(bits)
}

// AssembleI encodes an I-format instruction: imm[11:0]|rs1|funct3|rd|opcode.
func AssembleI(opcode, funct3, rd, rs1, imm12 uint64) memval.Value {
	bits := uint64(0)
	bits = appendBits(bits, 12, imm12)
	bits = appendBits(bits, 5, rs1)
	bits = appendBits(bits, 3, funct3)
	bits = appendBits(bits, 5, rd)
	bits = appendBits(bits, 7, opcode)
	return toMemoryValue(bits)
}

// AssembleS encodes an S-format instruction:
// imm[11:5]|rs2|rs1|funct3|imm[4:0]|opcode.
func AssembleS(opcode, funct3, rs1, rs2, imm12 uint64) memval.Value {
	bits := uint64(0)
	bits = appendBits(bits, 7, bitSlice(imm12, 11, 5))
	bits = appendBits(bits, 5, rs2)
	bits = appendBits(bits, 5, rs1)
	bits = appendBits(bits, 3, funct3)
	bits = appendBits(bits, 5, bitSlice(imm12, 4, 0))
	bits = appendBits(bits, 7, opcode)
	return toMemoryValue(bits)
}

// AssembleSB encodes an SB-format (branch) instruction:
// imm[12]|imm[10:5]|rs2|rs1|funct3|imm[4:1]|imm[11]|opcode. imm13 is the
// byte offset; its low bit is always zero and is not stored.
func AssembleSB(opcode, funct3, rs1, rs2, imm13 uint64) memval.Value {
	bits := uint64(0)
	bits = appendBits(bits, 1, bitSlice(imm13, 12, 12))
	bits = appendBits(bits, 6, bitSlice(imm13, 10, 5))
	bits = appendBits(bits, 5, rs2)
	bits = appendBits(bits, 5, rs1)
	bits = appendBits(bits, 3, funct3)
	bits = appendBits(bits, 4, bitSlice(imm13, 4, 1))
	bits = appendBits(bits, 1, bitSlice(imm13, 11, 11))
	bits = appendBits(bits, 7, opcode)
	return toMemoryValue(bits)
}

// AssembleU encodes a U-format instruction: imm[31:12]|rd|opcode. imm20 is
// the already-shifted upper immediate (its low 12 bits are ignored).
func AssembleU(opcode, rd, imm20 uint64) memval.Value {
	bits := uint64(0)
	bits = appendBits(bits, 20, bitSlice(imm20, 31, 12))
	bits = appendBits(bits, 5, rd)
	bits = appendBits(bits, 7, opcode)
	return toMemoryValue(bits)
}

// AssembleUJ encodes a UJ-format (jal) instruction:
// imm[20]|imm[10:1]|imm[11]|imm[19:12]|rd|opcode. imm21 is the byte offset;
// its low bit is always zero and is not stored.
func AssembleUJ(opcode, rd, imm21 uint64) memval.Value {
	bits := uint64(0)
	bits = appendBits(bits, 1, bitSlice(imm21, 20, 20))
	bits = appendBits(bits, 10, bitSlice(imm21, 10, 1))
	bits = appendBits(bits, 1, bitSlice(imm21, 11, 11))
	bits = appendBits(bits, 8, bitSlice(imm21, 19, 12))
	bits = appendBits(bits, 5, rd)
	bits = appendBits(bits, 7, opcode)
	return toMemoryValue(bits)
}
