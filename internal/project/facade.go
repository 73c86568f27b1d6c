package project

import (
	"encoding/json"
	"fmt"

	"github.com/lookbusy1344/riscv-sim/internal/active"
	"github.com/lookbusy1344/riscv-sim/internal/arch"
	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/lexer"
	"github.com/lookbusy1344/riscv-sim/internal/memval"
)

// Facade is the one object a host (CLI, TUI, future GUI) holds: it binds
// the project servant (memory/registers) and the executor servant
// (parse/run state) behind the external interfaces of spec §6, so callers
// never touch either servant directly.
type Facade struct {
	formula arch.Formula

	projectScheduler *active.Scheduler
	execScheduler    *active.Scheduler

	project *Project
	handle  *Handle
	exec    *Executor
	execP   *active.Proxy[Executor]
}

// NewFacade brews the named architecture formula and wires a fresh project
// and executor servant pair behind it, each with its own scheduler (spec
// §5 "every servant binds to exactly one scheduler").
func NewFacade(formula arch.Formula, byteCount, queueDepth int) (*Facade, error) {
	a, err := arch.Brew(formula)
	if err != nil {
		return nil, err
	}
	proj, err := NewProject(a, byteCount)
	if err != nil {
		return nil, err
	}

	projSched := active.NewScheduler(queueDepth)
	handle := NewHandle(proj, projSched)

	execSched := active.NewScheduler(queueDepth)
	exec := NewExecutor(a, handle, a.WordSize)
	execP := active.NewProxy(exec, execSched)

	return &Facade{
		formula:          formula,
		projectScheduler: projSched,
		execScheduler:    execSched,
		project:          proj,
		handle:           handle,
		exec:             exec,
		execP:            execP,
	}, nil
}

// Close stops both schedulers. Tasks already queued finish first.
func (f *Facade) Close() {
	f.execScheduler.Close()
	f.projectScheduler.Close()
}

func postExec(f *Facade, fn func(*Executor) error) error {
	_, err := active.PostFuture(f.execP, func(e *Executor) (struct{}, error) { return struct{}{}, fn(e) })
	return err
}

// --- Command surface (spec §6 "Command surface") ---

func (f *Facade) Parse(source string) error {
	return postExec(f, func(e *Executor) error { return e.Parse(source) })
}

func (f *Facade) Execute() error {
	return postExec(f, func(e *Executor) error { return e.Execute() })
}

// ExecuteNextLine executes one instruction and reports whether the program
// advanced.
func (f *Facade) ExecuteNextLine() (bool, error) {
	return active.PostFuture(f.execP, func(e *Executor) (bool, error) { return e.ExecuteNextLine() })
}

func (f *Facade) ExecuteToBreakpoint() error {
	return postExec(f, func(e *Executor) error { return e.ExecuteToBreakpoint() })
}

func (f *Facade) SetExecutionPoint(line int) error {
	return postExec(f, func(e *Executor) error { return e.SetExecutionPoint(line) })
}

func (f *Facade) SetBreakpoint(line int) bool {
	ok, _ := active.PostFuture(f.execP, func(e *Executor) (bool, error) { return e.SetBreakpoint(line), nil })
	return ok
}

func (f *Facade) DeleteBreakpoint(line int) {
	_, _ = active.PostFuture(f.execP, func(e *Executor) (struct{}, error) { e.DeleteBreakpoint(line); return struct{}{}, nil })
}

func (f *Facade) Breakpoints() []int {
	out, _ := active.PostFuture(f.execP, func(e *Executor) ([]int, error) { return e.Breakpoints(), nil })
	return out
}

// Stop raises the executor's shared stop condition (spec §5
// "Cancellation"), interrupting a running Execute call from another
// goroutine. It raises the condition directly instead of posting to the
// executor's scheduler, which stays busy for as long as Execute runs; the
// condition guards itself with a mutex.
func (f *Facade) Stop() {
	f.exec.Stop()
}

func (f *Facade) ResetStopCondition() {
	f.execP.Post(func(e *Executor) { e.Reset() })
}

// --- Parser observer surface (spec §6) ---

func (f *Facade) SetFinalRepresentationCallback(fn func(*ast.FinalRepresentation)) {
	f.execP.Post(func(e *Executor) { e.setFinalRepresentationCallback(fn) })
}

func (f *Facade) SetErrorCallback(fn func(ast.CompileError)) {
	f.execP.Post(func(e *Executor) { e.setErrorCallback(fn) })
}

func (f *Facade) SetCurrentLineCallback(fn func(int)) {
	f.execP.Post(func(e *Executor) { e.setCurrentLineCallback(fn) })
}

func (f *Facade) SetMacroListCallback(fn func([]ast.MacroExpansion)) {
	f.execP.Post(func(e *Executor) { e.setMacroListCallback(fn) })
}

func (f *Facade) SetExecutionStoppedCallback(fn func()) {
	f.execP.Post(func(e *Executor) { e.setExecutionStoppedCallback(fn) })
}

// GetSyntaxRegex returns the highlighter-facing regular expression for one
// token kind; it is a pure function of the architecture-independent lexer
// grammar, so it needs no servant round-trip.
func (f *Facade) GetSyntaxRegex(kind lexer.TokenType) string {
	return lexer.GetSyntaxRegex(kind)
}

// --- Memory/register observer surface (spec §6) ---

func (f *Facade) GetMemoryValueAt(address, amount int) (memval.Value, error) {
	return f.handle.GetMemory(address, amount)
}

func (f *Facade) PutMemoryValueAt(address int, v memval.Value) error {
	return f.handle.PutMemory(address, v)
}

// SetMemoryValueAt writes v at address and returns the value that was
// there before the write.
func (f *Facade) SetMemoryValueAt(address, amount int, v memval.Value) (memval.Value, error) {
	return f.handle.SetMemoryValueAt(address, amount, v)
}

func (f *Facade) GetRegisterValue(name string) (memval.Value, error) {
	return f.handle.GetRegister(name)
}

func (f *Facade) PutRegisterValue(name string, v memval.Value) error {
	return f.handle.PutRegister(name, v)
}

// SetRegisterValue writes v to name and returns the value that was there
// before the write.
func (f *Facade) SetRegisterValue(name string, v memval.Value) (memval.Value, error) {
	return f.handle.SetRegisterValue(name, v)
}

func (f *Facade) OnMemoryChange(fn func(address, amount int)) { f.handle.OnMemoryChange(fn) }

func (f *Facade) OnRegisterChange(fn func(name string)) { f.handle.OnRegisterChange(fn) }

// --- Architecture surface (spec §6) ---

func (f *Facade) GetArchitecture() *arch.Architecture { return f.project.Arch }

func (f *Facade) GetRegisterUnits() []arch.Unit { return f.project.Arch.Units }

func (f *Facade) GetByteSize() int { return f.project.Arch.ByteSize }

func (f *Facade) GetInstructionSet() map[string]arch.InstructionInfo {
	return f.project.Arch.Instructions
}

// Conversion function handles (spec §6 "used by the editor for in-place
// value editing"): MemoryValue <-> signed/unsigned integer/float as
// decimal strings.

func (f *Facade) ValueToUnsignedDecimal(v memval.Value) string { return v.UnsignedDecimal() }

func (f *Facade) ValueToSignedDecimal(v memval.Value) string { return v.SignedDecimal() }

func (f *Facade) ValueToFloat32Decimal(v memval.Value) (string, error) {
	x, err := memval.ToFloat32(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%g", x), nil
}

func (f *Facade) ValueToFloat64Decimal(v memval.Value) (string, error) {
	x, err := memval.ToFloat64(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%g", x), nil
}

func (f *Facade) UnsignedDecimalToValue(s string, bits int) (memval.Value, error) {
	return memval.ParseUnsignedDecimal(s, bits)
}

func (f *Facade) SignedDecimalToValue(s string, bits int) (memval.Value, error) {
	return memval.ParseSignedDecimal(s, bits)
}

// --- Project snapshot (spec §6 "Project snapshot") ---

// snapshotDoc is the on-the-wire shape of a project snapshot: memory and
// register sparse maps plus the architecture formula that built this
// project, so a loader can detect a mismatched target architecture before
// ever touching Memory (Open Question (c), SPEC_FULL.md §6).
type snapshotDoc struct {
	Memory       map[string]string `json:"memory"`
	Registers    map[string]string `json:"registers"`
	Architecture formulaDoc        `json:"architecture"`
}

type formulaDoc struct {
	Family  string   `json:"family"`
	Modules []string `json:"modules"`
}

// SnapshotJSON renders the full project snapshot as described by spec §6.
func (f *Facade) SnapshotJSON(separator string, lineLength int) ([]byte, error) {
	doc := snapshotDoc{
		Memory:    f.handle.MemorySnapshotJSON(separator, lineLength),
		Registers: f.handle.RegisterSnapshotJSON(),
		Architecture: formulaDoc{
			Family:  f.formula.Family,
			Modules: append([]string(nil), f.formula.Modules...),
		},
	}
	return json.Marshal(doc)
}

// ErrSnapshotFormulaMismatch is returned by LoadSnapshotJSON when a
// snapshot names a different architecture formula than the one this
// facade was built with.
type ErrSnapshotFormulaMismatch struct {
	Expected, Have arch.Formula
}

func (e *ErrSnapshotFormulaMismatch) Error() string {
	return fmt.Sprintf("project: snapshot architecture %+v does not match live architecture %+v", e.Have, e.Expected)
}

// LoadSnapshotJSON restores memory from a previously-saved snapshot,
// rejecting one built for a different architecture formula.
func (f *Facade) LoadSnapshotJSON(data []byte) error {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Architecture.Family != f.formula.Family || !sameModules(doc.Architecture.Modules, f.formula.Modules) {
		return &ErrSnapshotFormulaMismatch{
			Expected: f.formula,
			Have:     arch.Formula{Family: doc.Architecture.Family, Modules: doc.Architecture.Modules},
		}
	}
	return f.handle.LoadSnapshotJSON(doc.Memory, doc.Registers)
}

func sameModules(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
