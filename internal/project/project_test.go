package project

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/riscv-sim/internal/arch"
	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/memval"
)

func testFormula() arch.Formula {
	return arch.Formula{Family: "riscv", Modules: []string{"rv32i", "rv32m"}}
}

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	f, err := NewFacade(testFormula(), 1<<16, 32)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestParseBuildsFinalRepresentation(t *testing.T) {
	f := newTestFacade(t)

	var fr *ast.FinalRepresentation
	f.SetFinalRepresentationCallback(func(got *ast.FinalRepresentation) { fr = got })

	require.NoError(t, f.Parse("addi x5, x0, 7\nadd x6, x5, x5\n"))
	require.NotNil(t, fr)
	require.Len(t, fr.Commands, 2)
	require.Empty(t, fr.Errors)
}

func TestExecuteNextLineAdvancesAndNotifiesCurrentLine(t *testing.T) {
	f := newTestFacade(t)

	var lines []int
	f.SetCurrentLineCallback(func(line int) { lines = append(lines, line) })
	require.NoError(t, f.Parse("addi x5, x0, 7\naddi x6, x0, 9\n"))

	advanced, err := f.ExecuteNextLine()
	require.NoError(t, err)
	require.True(t, advanced)
	require.Equal(t, []int{1}, lines)

	v, err := f.GetRegisterValue("x5")
	require.NoError(t, err)
	require.Equal(t, "7", v.SignedDecimal())
}

func TestExecuteRunsProgramToCompletion(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.Parse("addi x5, x0, 1\naddi x6, x0, 2\nadd x7, x5, x6\n"))

	require.NoError(t, f.Execute())

	v, err := f.GetRegisterValue("x7")
	require.NoError(t, err)
	require.Equal(t, "3", v.SignedDecimal())
}

func TestSetBreakpointRejectsNonInstructionLine(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.Parse("addi x5, x0, 1\n"))

	require.True(t, f.SetBreakpoint(1))
	require.False(t, f.SetBreakpoint(99))
}

func TestExecuteToBreakpointStopsAtMarkedLine(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.Parse("addi x5, x0, 1\naddi x6, x0, 2\naddi x7, x0, 3\n"))

	require.True(t, f.SetBreakpoint(2))
	require.NoError(t, f.ExecuteToBreakpoint())

	v5, _ := f.GetRegisterValue("x5")
	v6, _ := f.GetRegisterValue("x6")
	v7, _ := f.GetRegisterValue("x7")
	require.Equal(t, "1", v5.SignedDecimal())
	require.Equal(t, "2", v6.SignedDecimal())
	require.Equal(t, "0", v7.SignedDecimal()) // line 3 never ran
}

func TestSetExecutionPointMovesProgramCounter(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.Parse("addi x5, x0, 1\naddi x6, x0, 2\n"))

	require.NoError(t, f.SetExecutionPoint(2))
	advanced, err := f.ExecuteNextLine()
	require.NoError(t, err)
	require.True(t, advanced)

	v5, _ := f.GetRegisterValue("x5")
	v6, _ := f.GetRegisterValue("x6")
	require.Equal(t, "0", v5.SignedDecimal()) // skipped
	require.Equal(t, "2", v6.SignedDecimal())
}

func TestDataDirectiveIsMaterializedIntoMemory(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.Parse(".data\nbuf:\n.word 0x2a\n"))

	v, err := f.GetMemoryValueAt(0x1000, 4)
	require.NoError(t, err)
	require.EqualValues(t, 0x2a, mustToUint(t, v))
}

func mustToUint(t *testing.T, v memval.Value) uint64 {
	t.Helper()
	u, err := memval.ToUint(v, 8, memval.LittleEndian)
	require.NoError(t, err)
	return u
}

func TestStopConditionInterruptsExecute(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.Parse("j 0\n"))

	done := make(chan error, 1)
	go func() { done <- f.Execute() }()

	time.Sleep(10 * time.Millisecond)
	f.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Execute did not return after Stop")
	}
}

func TestSnapshotRoundTripsMemoryAndRejectsFormulaMismatch(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.Parse(".data\n.word 0x55\n"))

	snap, err := f.SnapshotJSON(",", 16)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(snap, &doc))
	require.Contains(t, doc, "memory")
	require.Contains(t, doc, "registers")
	require.Contains(t, doc, "architecture")

	other, err := NewFacade(arch.Formula{Family: "riscv", Modules: []string{"rv32i"}}, 1<<16, 32)
	require.NoError(t, err)
	t.Cleanup(other.Close)

	err = other.LoadSnapshotJSON(snap)
	require.Error(t, err)
	var mismatch *ErrSnapshotFormulaMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestSnapshotRoundTripsRegisters(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.Parse("addi x5, x0, 7\naddi x6, x0, -3\n"))
	require.NoError(t, f.Execute())

	snap, err := f.SnapshotJSON(",", 16)
	require.NoError(t, err)

	other, err := NewFacade(testFormula(), 1<<16, 32)
	require.NoError(t, err)
	t.Cleanup(other.Close)

	require.NoError(t, other.LoadSnapshotJSON(snap))

	v, err := other.GetRegisterValue("x5")
	require.NoError(t, err)
	require.Equal(t, "7", v.SignedDecimal())

	v, err = other.GetRegisterValue("x6")
	require.NoError(t, err)
	require.Equal(t, "-3", v.SignedDecimal())
}

func TestArchitectureSurfaceReflectsBrewedModules(t *testing.T) {
	f := newTestFacade(t)
	a := f.GetArchitecture()
	require.Equal(t, a.ByteSize, f.GetByteSize())
	require.NotEmpty(t, f.GetRegisterUnits())
	require.Contains(t, f.GetInstructionSet(), "add")
}

func TestConversionHelpersRoundTripDecimal(t *testing.T) {
	f := newTestFacade(t)
	v, err := f.SignedDecimalToValue("-5", 32)
	require.NoError(t, err)
	require.Equal(t, "-5", f.ValueToSignedDecimal(v))

	u, err := f.UnsignedDecimalToValue("42", 32)
	require.NoError(t, err)
	require.Equal(t, "42", f.ValueToUnsignedDecimal(u))
}
