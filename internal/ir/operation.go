package ir

import (
	"fmt"

	"github.com/lookbusy1344/riscv-sim/internal/arch"
	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/expr"
	"github.com/lookbusy1344/riscv-sim/internal/isa/riscv"
	"github.com/lookbusy1344/riscv-sim/internal/memval"
)

// Context is threaded through every phase of IR processing: the target
// architecture, the symbol table under construction, and the section
// allocator.
type Context struct {
	Arch    *arch.Architecture
	Symbols *SymbolTable
	Alloc   *MemoryAllocator
	XLen    int
}

// Operation is one parsed line of assembly, carried through the three
// phases the spec's pipeline applies to every line in turn: memory
// allocation (assign addresses), symbol table enhancement (define
// labels/constants), and execution (build the final AST node).
type Operation interface {
	AllocateMemory(ctx *Context) error
	EnhanceSymbolTable(ctx *Context) error
	Execute(ctx *Context) (*ast.FinalCommand, error)
	Lines() ast.LineInterval
}

// Assemble drives every Operation through its three phases in the order
// the spec requires: all allocation first (so every label has an address
// before any symbol or instruction is resolved), then symbol table
// enhancement with bounded fixed-point resolution, then execution.
func Assemble(ops []Operation, ctx *Context) (*ast.FinalRepresentation, error) {
	fr := &ast.FinalRepresentation{}

	for _, op := range ops {
		if err := op.AllocateMemory(ctx); err != nil {
			return fr, err
		}
	}
	for _, op := range ops {
		if err := op.EnhanceSymbolTable(ctx); err != nil {
			return fr, err
		}
	}
	if err := ctx.Symbols.Resolve(); err != nil {
		return fr, err
	}
	for _, op := range ops {
		cmd, err := op.Execute(ctx)
		if err != nil {
			fr.Errors = append(fr.Errors, ast.CompileError{Severity: ast.SeverityError, Message: err.Error()})
			continue
		}
		if cmd != nil {
			fr.Commands = append(fr.Commands, *cmd)
		}
	}
	return fr, nil
}

func symbolResolver(ctx *Context) func(string) (int64, bool) {
	return ctx.Symbols.Get
}

// InstructionOp is one assembly-language instruction line, optionally
// preceded by a label definition.
type InstructionOp struct {
	Label      string
	Mnemonic   string
	Rd, Rs1, Rs2 string
	Imm        *expr.Program
	PCRelative bool
	LineRange  ast.LineInterval

	address int
}

func (op *InstructionOp) Lines() ast.LineInterval { return op.LineRange }

func (op *InstructionOp) AllocateMemory(ctx *Context) error {
	op.address = ctx.Alloc.Alloc(SectionText, 4)
	if op.Label != "" {
		if err := ctx.Symbols.Define(op.Label, int64(op.address)); err != nil {
			return err
		}
	}
	return nil
}

func (op *InstructionOp) EnhanceSymbolTable(ctx *Context) error { return nil }

func (op *InstructionOp) Execute(ctx *Context) (*ast.FinalCommand, error) {
	info, ok := ctx.Arch.Instructions[op.Mnemonic]
	if !ok {
		return nil, fmt.Errorf("ir: unknown instruction %q", op.Mnemonic)
	}

	immVal := memval.Value{}
	if op.Imm != nil {
		bits, shift := immShape(info.Format)
		resolved, err := expr.Eval(op.Imm, symbolResolver(ctx), 64, true)
		if err != nil {
			return nil, err
		}
		if op.PCRelative {
			// Label operand: resolved is already the absolute target
			// address, so the byte offset is just the difference.
			resolved -= int64(op.address)
		} else if info.Format == "SB" || info.Format == "UJ" {
			// Literal branch/jump operand: written as an instruction
			// count rather than a byte offset (spec §4.8 "PC + 2*offset"),
			// so scale it to bytes here, once, before it ever reaches the
			// AST node or the executor.
			resolved *= 2
		}
		if shift {
			resolved <<= 12
		}
		immVal = memval.FromInt(resolved, bits, 8, memval.LittleEndian, memval.TwosComplement)
	}

	node, err := riscv.NewInstruction(fmt.Sprintf("insn@%d", op.address), op.Mnemonic, info.Format, info.Key, ctx.XLen, uint64(op.address), op.Rd, op.Rs1, op.Rs2, immVal)
	if err != nil {
		return nil, err
	}
	if res := node.Validate(); !res.Success() {
		return nil, res.Error()
	}
	return &ast.FinalCommand{Root: node, Address: uint64(op.address), Lines: op.LineRange}, nil
}

// immShape returns the stored immediate's bit width and whether it must be
// left-shifted by 12 bits (U-format upper immediates) before assembly.
func immShape(format string) (bits int, shift bool) {
	switch format {
	case "I", "S":
		return 12, false
	case "SB":
		return 13, false
	case "U":
		return 32, true
	case "UJ":
		return 21, false
	default:
		return 32, false
	}
}

// ConstantOp implements a .equ-style directive: name is bound to an
// expression that may reference labels or other constants, resolved
// during the bounded fixed-point symbol pass.
type ConstantOp struct {
	Name      string
	Value     *expr.Program
	LineRange ast.LineInterval
}

func (op *ConstantOp) Lines() ast.LineInterval { return op.LineRange }

func (op *ConstantOp) AllocateMemory(ctx *Context) error { return nil }

func (op *ConstantOp) EnhanceSymbolTable(ctx *Context) error {
	prog := op.Value
	return ctx.Symbols.DefineExpr(op.Name, func(resolve func(string) (int64, bool)) (int64, error) {
		return evalWithResolver(prog, resolve)
	})
}

func (op *ConstantOp) Execute(ctx *Context) (*ast.FinalCommand, error) { return nil, nil }

func evalWithResolver(prog *expr.Program, resolve func(string) (int64, bool)) (int64, error) {
	return expr.Eval(prog, resolve, 64, true)
}

// SectionOp implements a .text/.data/.bss directive: it has no runtime
// effect of its own since every other op names its own target section
// explicitly, but it is retained so the parser can validate section
// transitions and report line coverage.
type SectionOp struct {
	Section   Section
	LineRange ast.LineInterval
}

func (op *SectionOp) Lines() ast.LineInterval                       { return op.LineRange }
func (op *SectionOp) AllocateMemory(ctx *Context) error              { return nil }
func (op *SectionOp) EnhanceSymbolTable(ctx *Context) error          { return nil }
func (op *SectionOp) Execute(ctx *Context) (*ast.FinalCommand, error) { return nil, nil }

// MemoryDefOp implements .word/.half/.byte with initializer values: it
// reserves space in the given section and places the encoded payload
// verbatim.
type MemoryDefOp struct {
	Section    Section
	Label      string
	CellBits   int
	Values     []*expr.Program
	LineRange  ast.LineInterval

	address int
}

func (op *MemoryDefOp) Lines() ast.LineInterval { return op.LineRange }

func (op *MemoryDefOp) AllocateMemory(ctx *Context) error {
	size := (len(op.Values) * op.CellBits) / 8
	op.address = ctx.Alloc.Alloc(op.Section, size)
	if op.Label != "" {
		return ctx.Symbols.Define(op.Label, int64(op.address))
	}
	return nil
}

func (op *MemoryDefOp) EnhanceSymbolTable(ctx *Context) error { return nil }

func (op *MemoryDefOp) Execute(ctx *Context) (*ast.FinalCommand, error) {
	payload := memval.New(len(op.Values) * op.CellBits)
	for i, prog := range op.Values {
		v, err := expr.Eval(prog, symbolResolver(ctx), op.CellBits, true)
		if err != nil {
			return nil, err
		}
		cell := memval.FromInt(v, op.CellBits, 8, memval.LittleEndian, memval.TwosComplement)
		if err := payload.Write(cell, i*op.CellBits); err != nil {
			return nil, err
		}
	}
	node := NewDataNode(fmt.Sprintf("data@%d", op.address), payload)
	return &ast.FinalCommand{Root: node, Address: uint64(op.address), Lines: op.LineRange}, nil
}

// MemoryReserveOp implements .space/.skip: zero-filled reserved storage
// with no payload to assemble.
type MemoryReserveOp struct {
	Section   Section
	Label     string
	Bytes     int
	LineRange ast.LineInterval

	address int
}

func (op *MemoryReserveOp) Lines() ast.LineInterval { return op.LineRange }

func (op *MemoryReserveOp) AllocateMemory(ctx *Context) error {
	op.address = ctx.Alloc.Alloc(op.Section, op.Bytes)
	if op.Label != "" {
		return ctx.Symbols.Define(op.Label, int64(op.address))
	}
	return nil
}

func (op *MemoryReserveOp) EnhanceSymbolTable(ctx *Context) error { return nil }

func (op *MemoryReserveOp) Execute(ctx *Context) (*ast.FinalCommand, error) {
	if op.Bytes <= 0 {
		return nil, nil
	}
	node := NewDataNode(fmt.Sprintf("bss@%d", op.address), memval.New(op.Bytes*8))
	return &ast.FinalCommand{Root: node, Address: uint64(op.address), Lines: op.LineRange}, nil
}

// MacroDefOp and MacroEndOp bracket a macro body in the operation stream
// purely for line-coverage bookkeeping: the body itself is never turned
// into operations directly, since MacroExpander substitutes it into its
// call sites before the parser builds IR operations.
type MacroDefOp struct {
	Name      string
	LineRange ast.LineInterval
}

func (op *MacroDefOp) Lines() ast.LineInterval                       { return op.LineRange }
func (op *MacroDefOp) AllocateMemory(ctx *Context) error              { return nil }
func (op *MacroDefOp) EnhanceSymbolTable(ctx *Context) error          { return nil }
func (op *MacroDefOp) Execute(ctx *Context) (*ast.FinalCommand, error) { return nil, nil }

type MacroEndOp struct {
	LineRange ast.LineInterval
}

func (op *MacroEndOp) Lines() ast.LineInterval                       { return op.LineRange }
func (op *MacroEndOp) AllocateMemory(ctx *Context) error              { return nil }
func (op *MacroEndOp) EnhanceSymbolTable(ctx *Context) error          { return nil }
func (op *MacroEndOp) Execute(ctx *Context) (*ast.FinalCommand, error) { return nil, nil }

// MacroInvocationOp records a macro call site in the operation stream for
// the debugger's macro-expansion list (spec §6 "set_macro_list_callback");
// the expanded operations themselves are spliced in alongside it by the
// parser.
type MacroInvocationOp struct {
	Name      string
	LineRange ast.LineInterval
}

func (op *MacroInvocationOp) Lines() ast.LineInterval { return op.LineRange }
func (op *MacroInvocationOp) AllocateMemory(ctx *Context) error     { return nil }
func (op *MacroInvocationOp) EnhanceSymbolTable(ctx *Context) error { return nil }
func (op *MacroInvocationOp) Execute(ctx *Context) (*ast.FinalCommand, error) {
	return nil, nil
}
