package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/riscv-sim/internal/arch"
	"github.com/lookbusy1344/riscv-sim/internal/expr"
	"github.com/lookbusy1344/riscv-sim/internal/memval"
)

func mustProgram(t *testing.T, src string) *expr.Program {
	t.Helper()
	prog, err := expr.Compile(src)
	require.NoError(t, err)
	return prog
}

// TestAssembleResolvesLabelsAndConstants builds a small program by hand
// (as a parser would after lexing and macro expansion) and drives it
// through the full three-phase Assemble pipeline: a forward-referencing
// branch to a label defined later, a .equ constant, and a .word
// initializer referencing that constant.
func TestAssembleResolvesLabelsAndConstants(t *testing.T) {
	a, err := arch.Brew(arch.Formula{Family: "riscv", Modules: []string{"rv32i", "rv32m"}})
	require.NoError(t, err)

	ctx := &Context{
		Arch:    a,
		Symbols: NewSymbolTable(),
		Alloc:   NewMemoryAllocator(0, 0x1000, 0x2000, 4),
		XLen:    32,
	}

	ops := []Operation{
		&ConstantOp{Name: "STRIDE", Value: mustProgram(t, "4")},
		&InstructionOp{ // addr 0
			Mnemonic: "addi", Rd: "x5", Rs1: "x0",
			Imm: mustProgram(t, "0"),
		},
		&InstructionOp{ // addr 4: beq x5, x0, done (forward reference)
			Mnemonic: "beq", Rs1: "x5", Rs2: "x0",
			Imm: mustProgram(t, "done"), PCRelative: true,
		},
		&InstructionOp{Label: "mid", Mnemonic: "addi", Rd: "x5", Rs1: "x5", Imm: mustProgram(t, "1")}, // addr 8
		&InstructionOp{Label: "done", Mnemonic: "addi", Rd: "x6", Rs1: "x0", Imm: mustProgram(t, "0")}, // addr 12
		&MemoryDefOp{Section: SectionData, Label: "stride_word", CellBits: 32, Values: []*expr.Program{mustProgram(t, "STRIDE")}},
	}

	fr, err := Assemble(ops, ctx)
	require.NoError(t, err)
	require.Empty(t, fr.Errors)
	require.Len(t, fr.Commands, 5)

	require.EqualValues(t, 0, fr.Commands[0].Address)
	require.EqualValues(t, 4, fr.Commands[1].Address)
	require.EqualValues(t, 8, fr.Commands[2].Address)
	require.EqualValues(t, 12, fr.Commands[3].Address)
	require.EqualValues(t, 0x1000, fr.Commands[4].Address)

	done, ok := ctx.Symbols.Get("done")
	require.True(t, ok)
	require.EqualValues(t, 12, done)

	stride, ok := ctx.Symbols.Get("STRIDE")
	require.True(t, ok)
	require.EqualValues(t, 4, stride)

	word, err := fr.Commands[4].Root.GetValue(nil)
	require.NoError(t, err)
	got, err := memval.ToUint(word, 8, memval.LittleEndian)
	require.NoError(t, err)
	require.EqualValues(t, 4, got)
}

func TestAssembleReportsUnknownMnemonicAsError(t *testing.T) {
	a, err := arch.Brew(arch.Formula{Family: "riscv", Modules: []string{"rv32i"}})
	require.NoError(t, err)

	ctx := &Context{
		Arch:    a,
		Symbols: NewSymbolTable(),
		Alloc:   NewMemoryAllocator(0, 0x1000, 0x2000, 4),
		XLen:    32,
	}

	ops := []Operation{
		&InstructionOp{Mnemonic: "frobnicate", Rd: "x1", Rs1: "x0", Imm: mustProgram(t, "0")},
	}

	fr, err := Assemble(ops, ctx)
	require.NoError(t, err)
	require.Len(t, fr.Errors, 1)
	require.Empty(t, fr.Commands)
}

func TestAssembleReportsUnresolvedSymbolAsError(t *testing.T) {
	a, err := arch.Brew(arch.Formula{Family: "riscv", Modules: []string{"rv32i"}})
	require.NoError(t, err)

	ctx := &Context{
		Arch:    a,
		Symbols: NewSymbolTable(),
		Alloc:   NewMemoryAllocator(0, 0x1000, 0x2000, 4),
		XLen:    32,
	}

	ops := []Operation{
		&InstructionOp{Mnemonic: "beq", Rs1: "x0", Rs2: "x0", Imm: mustProgram(t, "nowhere"), PCRelative: true},
	}

	fr, err := Assemble(ops, ctx)
	require.NoError(t, err)
	require.Len(t, fr.Errors, 1)
	require.Empty(t, fr.Commands)
}
