package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/riscv-sim/internal/active"
	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/memval"
)

// fakeMem is a minimal ast.MemoryAccess over an in-memory register map,
// enough to drive the engine without pulling in the full project servant.
type fakeMem struct {
	regs map[string]memval.Value
}

func newFakeMem(pc uint64) *fakeMem {
	return &fakeMem{regs: map[string]memval.Value{
		"pc": memval.FromUint(pc, 64, 8, memval.LittleEndian),
	}}
}

func (m *fakeMem) GetRegister(name string) (memval.Value, error) { return m.regs[name], nil }
func (m *fakeMem) PutRegister(name string, v memval.Value) error { m.regs[name] = v; return nil }
func (m *fakeMem) GetMemory(address, amount int) (memval.Value, error) {
	return memval.New(amount * 8), nil
}
func (m *fakeMem) PutMemory(address int, v memval.Value) error { return nil }
func (m *fakeMem) MemoryByteCount() int                        { return 1 << 16 }
func (m *fakeMem) Sleep(ms int64, cancel <-chan struct{}) error { return nil }

// advanceNode is a trivial ast.Node whose GetValue just advances pc by 4,
// standing in for isa/riscv.Instruction's self-contained PC writeback.
type advanceNode struct {
	ast.Base
	fail bool
}

func (n *advanceNode) Validate() ast.ValidationResult { return ast.Ok }
func (n *advanceNode) ValidateRuntime(mem ast.MemoryAccess) ast.ValidationResult {
	if n.fail {
		return ast.Fail("engine_test: forced validation failure")
	}
	return ast.Ok
}
func (n *advanceNode) GetValue(mem ast.MemoryAccess) (memval.Value, error) {
	pcVal, _ := mem.GetRegister("pc")
	pc, _ := memval.ToUint(pcVal, 8, memval.LittleEndian)
	next := memval.FromUint(pc+4, 64, 8, memval.LittleEndian)
	_ = mem.PutRegister("pc", next)
	return next, nil
}
func (n *advanceNode) Assemble() memval.Value { return memval.Value{} }

func command(addr uint64, line int, fail bool) ast.FinalCommand {
	return ast.FinalCommand{
		Root:    &advanceNode{Base: ast.NewBase(ast.KindInstruction, "n"), fail: fail},
		Address: addr,
		Lines:   ast.LineInterval{First: line, Last: line},
	}
}

func TestExecuteNextAdvancesPCAndNotifiesLine(t *testing.T) {
	mem := newFakeMem(0)
	e := New([]ast.FinalCommand{command(0, 1, false), command(4, 2, false)}, mem)

	var seenLines []int
	e.OnLineChange = func(line int) { seenLines = append(seenLines, line) }

	advanced, err := e.ExecuteNext()
	require.NoError(t, err)
	require.True(t, advanced)
	require.Equal(t, []int{1}, seenLines)

	pc, err := mem.GetRegister("pc")
	require.NoError(t, err)
	v, err := memval.ToUint(pc, 8, memval.LittleEndian)
	require.NoError(t, err)
	require.EqualValues(t, 4, v)
}

func TestExecuteNextReportsUnknownAddress(t *testing.T) {
	mem := newFakeMem(100)
	e := New([]ast.FinalCommand{command(0, 1, false)}, mem)

	advanced, err := e.ExecuteNext()
	require.False(t, advanced)
	require.Error(t, err)
	var target *ErrUnknownExecutionAddress
	require.ErrorAs(t, err, &target)
}

func TestExecuteNextStopsOnValidationFailure(t *testing.T) {
	mem := newFakeMem(0)
	e := New([]ast.FinalCommand{command(0, 1, true)}, mem)

	advanced, err := e.ExecuteNext()
	require.False(t, advanced)
	require.Error(t, err)
}

func TestExecuteRunsToProgramEnd(t *testing.T) {
	mem := newFakeMem(0)
	e := New([]ast.FinalCommand{command(0, 1, false), command(4, 2, false)}, mem)

	err := e.Execute(nil)
	require.NoError(t, err)

	pc, _ := mem.GetRegister("pc")
	v, _ := memval.ToUint(pc, 8, memval.LittleEndian)
	require.EqualValues(t, 8, v) // ran off the end after the second command
}

func TestExecuteStopsWhenStopConditionRaised(t *testing.T) {
	mem := newFakeMem(0)
	e := New([]ast.FinalCommand{command(0, 1, false), command(4, 2, false), command(8, 3, false)}, mem)

	stop := active.NewStopCondition()
	steps := 0
	e.OnLineChange = func(line int) {
		steps++
		if steps == 1 {
			stop.Raise()
		}
	}

	err := e.Execute(stop)
	require.NoError(t, err)
	require.Equal(t, 1, steps)
}

func TestExecuteToBreakpointStopsAtMarkedLine(t *testing.T) {
	mem := newFakeMem(0)
	e := New([]ast.FinalCommand{command(0, 1, false), command(4, 2, false), command(8, 3, false)}, mem)

	err := e.ExecuteToBreakpoint(map[int]bool{2: true}, nil)
	require.NoError(t, err)

	pc, _ := mem.GetRegister("pc")
	v, _ := memval.ToUint(pc, 8, memval.LittleEndian)
	require.EqualValues(t, 8, v) // stopped right after executing line 2, before line 3
}
