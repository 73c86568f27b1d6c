// Package engine implements the interpreter loop that drives assembled
// AST nodes against memory and registers (spec §4.11 "AST execution").
// Grounded on the teacher's vm.VM.Step/Run shape (fetch current PC, act
// on it, advance, track diagnostics) reworked around validate-then-
// getValue AST nodes instead of a decode switch over raw opcodes.
package engine

import (
	"fmt"

	"github.com/lookbusy1344/riscv-sim/internal/active"
	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/memval"
)

// ErrUnknownExecutionAddress is returned by ExecuteNext when the program
// counter names no final command — the program has run off the end of
// the assembled commands (spec §4.11 step 2).
type ErrUnknownExecutionAddress struct {
	Address uint64
}

func (e *ErrUnknownExecutionAddress) Error() string {
	return fmt.Sprintf("engine: unknown execution address 0x%x", e.Address)
}

// Engine drives one FinalRepresentation's commands against a memory
// access handle, one step at a time.
type Engine struct {
	Commands []ast.FinalCommand
	Mem      ast.MemoryAccess

	// byAddress indexes Commands for O(1) PC lookup; built by New and
	// rebuilt by SetCommands.
	byAddress map[uint64]int

	// OnLineChange is called with the source line of the command just
	// executed (spec §4.11 step 6 "notify the line-change observer").
	OnLineChange func(line int)
}

// New builds an engine over an assembled program.
func New(commands []ast.FinalCommand, mem ast.MemoryAccess) *Engine {
	e := &Engine{Commands: commands, Mem: mem}
	e.reindex()
	return e
}

// SetCommands replaces the assembled program (e.g. after a re-parse) and
// rebuilds the address index.
func (e *Engine) SetCommands(commands []ast.FinalCommand) {
	e.Commands = commands
	e.reindex()
}

func (e *Engine) reindex() {
	e.byAddress = make(map[uint64]int, len(e.Commands))
	for i, cmd := range e.Commands {
		e.byAddress[cmd.Address] = i
	}
}

const pcRegister = "pc"

// ExecuteNext implements the six steps of spec §4.11 exactly: read the
// program counter, locate the command at that address, validate it
// against the live memory/register state, execute it (which performs its
// own register/memory/PC writes), and notify the line-change observer. It
// reports whether a command advanced (true) or the program has reached an
// address with no command (false, with ErrUnknownExecutionAddress).
func (e *Engine) ExecuteNext() (bool, error) {
	pcVal, err := e.Mem.GetRegister(pcRegister)
	if err != nil {
		return false, err
	}
	pc, err := memval.ToUint(pcVal, 8, memval.LittleEndian)
	if err != nil {
		return false, err
	}

	i, ok := e.byAddress[pc]
	if !ok {
		return false, &ErrUnknownExecutionAddress{Address: pc}
	}
	cmd := e.Commands[i]

	if res := cmd.Root.ValidateRuntime(e.Mem); !res.Success() {
		return false, res.Error()
	}

	if _, err := cmd.Root.GetValue(e.Mem); err != nil {
		return false, err
	}

	if e.OnLineChange != nil {
		e.OnLineChange(cmd.Lines.First)
	}
	return true, nil
}

// isProgramEnd reports whether err signals ordinary completion (running
// off the end of the assembled commands) rather than a genuine runtime
// fault.
func isProgramEnd(err error) bool {
	_, ok := err.(*ErrUnknownExecutionAddress)
	return ok
}

// Execute runs ExecuteNext until stop is raised or the program ends.
// Reaching the end of the program is not reported as an error to the
// caller; any other ExecuteNext error is.
func (e *Engine) Execute(stop *active.StopCondition) error {
	for {
		if stop != nil && stop.Raised() {
			return nil
		}
		advanced, err := e.ExecuteNext()
		if err != nil {
			if isProgramEnd(err) {
				return nil
			}
			return err
		}
		if !advanced {
			return nil
		}
	}
}

// ExecuteToBreakpoint runs like Execute but additionally stops (without
// error) once the just-executed command's line is in breakpoints.
func (e *Engine) ExecuteToBreakpoint(breakpoints map[int]bool, stop *active.StopCondition) error {
	for {
		if stop != nil && stop.Raised() {
			return nil
		}

		pcVal, err := e.Mem.GetRegister(pcRegister)
		if err != nil {
			return err
		}
		pc, err := memval.ToUint(pcVal, 8, memval.LittleEndian)
		if err != nil {
			return err
		}
		i, ok := e.byAddress[pc]
		if !ok {
			return nil
		}
		line := e.Commands[i].Lines.First

		advanced, err := e.ExecuteNext()
		if err != nil {
			if isProgramEnd(err) {
				return nil
			}
			return err
		}
		if !advanced {
			return nil
		}
		if breakpoints[line] {
			return nil
		}
	}
}
