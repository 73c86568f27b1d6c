package arch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBrewRV32IM(t *testing.T) {
	a, err := Brew(Formula{Family: "riscv", Modules: []string{"rv32i", "rv32m"}})
	require.NoError(t, err)
	require.Equal(t, 32, a.WordSize)
	require.Equal(t, 8, a.ByteSize)

	_, ok := a.Instructions["add"]
	require.True(t, ok)
	_, ok = a.Instructions["mul"]
	require.True(t, ok, "expected rv32m mnemonic to be present after union")

	for mnemonic, info := range a.Instructions {
		_, hasOpcode := info.Key["opcode"]
		require.True(t, hasOpcode, "instruction %q missing opcode key", mnemonic)
	}
}

func TestBrewUnknownModule(t *testing.T) {
	_, err := Brew(Formula{Family: "riscv", Modules: []string{"rv99i"}})
	require.Error(t, err)
}

func TestBrewContradictingWordSize(t *testing.T) {
	_, err := Brew(Formula{Family: "riscv", Modules: []string{"rv32i", "rv64i"}})
	require.Error(t, err)
	_, ok := err.(*ErrContradictingModule)
	require.True(t, ok)
}

func TestBuildRegisterSet(t *testing.T) {
	a, err := Brew(Formula{Family: "riscv", Modules: []string{"rv32i"}})
	require.NoError(t, err)

	set, err := a.BuildRegisterSet()
	require.NoError(t, err)

	_, err = set.Get("x0")
	require.NoError(t, err)
	_, err = set.Get("pc")
	require.NoError(t, err)
	_, err = set.Get("ra")
	require.NoError(t, err)
}
