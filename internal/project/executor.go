package project

import (
	"fmt"
	"sort"

	"github.com/lookbusy1344/riscv-sim/internal/active"
	"github.com/lookbusy1344/riscv-sim/internal/arch"
	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/engine"
	"github.com/lookbusy1344/riscv-sim/internal/ir"
	"github.com/lookbusy1344/riscv-sim/internal/memval"
	"github.com/lookbusy1344/riscv-sim/internal/parser"
)

// Executor is the servant owning parser/execution state for one loaded
// program: the current FinalRepresentation, the assembled engine, the
// breakpoint set, and a handle into the project servant that owns the
// live memory/registers (spec §4.13 "Executor servant").
type Executor struct {
	active.Servant

	arch   *arch.Architecture
	handle *Handle
	stop   *active.StopCondition
	xlen   int

	fr          *ast.FinalRepresentation
	eng         *engine.Engine
	addrByLine  map[int]uint64
	breakpoints map[int]bool

	onFinalRepresentation func(*ast.FinalRepresentation)
	onError               func(ast.CompileError)
	onCurrentLine         func(int)
	onMacroList           func([]ast.MacroExpansion)
	onExecutionStopped    func()
}

// NewExecutor binds an executor to the project handle it will drive
// instructions against.
func NewExecutor(a *arch.Architecture, handle *Handle, xlen int) *Executor {
	return &Executor{
		arch:        a,
		handle:      handle,
		stop:        active.NewStopCondition(),
		xlen:        xlen,
		breakpoints: make(map[int]bool),
	}
}

// memAllocatorBases are the fixed section bases the spec's bump allocator
// assigns from (spec §3.1 "MemoryAllocator"); chosen to keep text, data and
// bss comfortably apart inside a default 64KB address space.
const (
	textBase = 0x0000
	dataBase = 0x1000
	bssBase  = 0x2000
)

// Parse runs the lexer/parser/IR/symbol-resolution pipeline over source,
// materializes any .word/.byte/.space payload into memory, rebuilds the
// execution engine over the freshly assembled commands, and notifies every
// parser observer with the result (spec §4.7, §6 "Parser observer
// surface").
func (e *Executor) Parse(source string) error {
	p := parser.New(e.arch, "<source>")
	ops, errs, expansions := p.Parse(source)

	ctx := &ir.Context{
		Arch:    e.arch,
		Symbols: ir.NewSymbolTable(),
		Alloc:   ir.NewMemoryAllocator(textBase, dataBase, bssBase, 4),
		XLen:    e.xlen,
	}

	fr, err := ir.Assemble(ops, ctx)
	if err != nil {
		return err
	}
	fr.Errors = append(errs, fr.Errors...)
	fr.MacroExpansions = expansions

	if err := e.materialize(fr); err != nil {
		return err
	}

	e.fr = fr
	e.reindex()
	e.eng = engine.New(fr.Commands, e.handle)
	e.eng.OnLineChange = func(line int) {
		if e.onCurrentLine != nil {
			e.onCurrentLine(line)
		}
	}

	if e.onFinalRepresentation != nil {
		e.onFinalRepresentation(fr)
	}
	for _, ce := range fr.Errors {
		if e.onError != nil {
			e.onError(ce)
		}
	}
	if e.onMacroList != nil {
		e.onMacroList(fr.MacroExpansions)
	}
	return nil
}

// materialize writes every non-instruction final command's payload into
// memory: DataNode.GetValue never writes anywhere on its own (it is a pure
// payload carrier for .word/.byte/.space), so the façade must push it into
// the project servant once, at load time.
func (e *Executor) materialize(fr *ast.FinalRepresentation) error {
	for _, cmd := range fr.Commands {
		if cmd.Root.Kind() != ast.KindData {
			continue
		}
		value, err := cmd.Root.GetValue(nil)
		if err != nil {
			return err
		}
		if value.Len() == 0 {
			continue
		}
		if err := e.handle.PutMemory(int(cmd.Address), value); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) reindex() {
	e.addrByLine = make(map[int]uint64, len(e.fr.Commands))
	for _, cmd := range e.fr.Commands {
		if cmd.Root.Kind() != ast.KindInstruction {
			continue
		}
		e.addrByLine[cmd.Lines.First] = cmd.Address
	}
}

func (e *Executor) notifyStopped() {
	if e.onExecutionStopped != nil {
		e.onExecutionStopped()
	}
}

// Execute runs the program to completion or until the stop condition is
// raised (spec §4.11 "execute()").
func (e *Executor) Execute() error {
	if e.eng == nil {
		return fmt.Errorf("project: no program parsed")
	}
	err := e.eng.Execute(e.stop)
	e.notifyStopped()
	return err
}

// ExecuteNextLine executes one instruction and reports whether the
// program advanced (spec §6 "execute_next_line()").
func (e *Executor) ExecuteNextLine() (bool, error) {
	if e.eng == nil {
		return false, fmt.Errorf("project: no program parsed")
	}
	advanced, err := e.eng.ExecuteNext()
	if !advanced {
		e.notifyStopped()
	}
	return advanced, err
}

// ExecuteToBreakpoint runs until a breakpointed line executes, the stop
// condition is raised, or the program ends (spec §4.11
// "execute_to_breakpoint()").
func (e *Executor) ExecuteToBreakpoint() error {
	if e.eng == nil {
		return fmt.Errorf("project: no program parsed")
	}
	err := e.eng.ExecuteToBreakpoint(e.breakpoints, e.stop)
	e.notifyStopped()
	return err
}

// Stop raises the shared stop condition, so a running Execute loop returns
// before its next instruction (spec §5 "Cancellation"). A simusleep already
// in progress is not cut short: it sleeps with no cancel channel and waits
// out its full delay.
func (e *Executor) Stop() {
	e.stop.Raise()
}

// Reset clears the stop condition so a subsequent Execute call can run
// again.
func (e *Executor) Reset() {
	e.stop.Reset()
}

const pcRegister = "pc"

// SetExecutionPoint moves the program counter to the address of the
// instruction at line, without otherwise disturbing memory or register
// state (spec §6 "set_execution_point(line)").
func (e *Executor) SetExecutionPoint(line int) error {
	addr, ok := e.addrByLine[line]
	if !ok {
		return fmt.Errorf("project: line %d has no instruction", line)
	}
	cur, err := e.handle.GetRegister(pcRegister)
	if err != nil {
		return err
	}
	return e.handle.PutRegister(pcRegister, memval.FromUint(addr, cur.Len(), 8, memval.LittleEndian))
}

// SetBreakpoint marks line as a breakpoint, if an instruction exists
// there, and reports whether it was accepted (spec §6
// "set_breakpoint(line)").
func (e *Executor) SetBreakpoint(line int) bool {
	if _, ok := e.addrByLine[line]; !ok {
		return false
	}
	e.breakpoints[line] = true
	return true
}

// DeleteBreakpoint removes a breakpoint at line, if any.
func (e *Executor) DeleteBreakpoint(line int) {
	delete(e.breakpoints, line)
}

// Breakpoints returns the currently armed breakpoint lines, sorted.
func (e *Executor) Breakpoints() []int {
	out := make([]int, 0, len(e.breakpoints))
	for line := range e.breakpoints {
		out = append(out, line)
	}
	sort.Ints(out)
	return out
}

func (e *Executor) setFinalRepresentationCallback(fn func(*ast.FinalRepresentation)) {
	e.onFinalRepresentation = fn
}
func (e *Executor) setErrorCallback(fn func(ast.CompileError))        { e.onError = fn }
func (e *Executor) setCurrentLineCallback(fn func(int))                { e.onCurrentLine = fn }
func (e *Executor) setMacroListCallback(fn func([]ast.MacroExpansion)) { e.onMacroList = fn }
func (e *Executor) setExecutionStoppedCallback(fn func())              { e.onExecutionStopped = fn }
