package riscv

import (
	"fmt"

	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/memval"
)

// RegisterOperand is a leaf node naming one register.
type RegisterOperand struct {
	ast.Base
	Name string
}

// NewRegisterOperand wraps a register name as an operand node.
func NewRegisterOperand(name string) *RegisterOperand {
	return &RegisterOperand{Base: ast.NewBase(ast.KindRegister, "register:"+name), Name: name}
}

func (r *RegisterOperand) Validate() ast.ValidationResult { return ast.Ok }

func (r *RegisterOperand) ValidateRuntime(ast.MemoryAccess) ast.ValidationResult { return ast.Ok }

func (r *RegisterOperand) GetValue(mem ast.MemoryAccess) (memval.Value, error) {
	return mem.GetRegister(r.Name)
}

func (r *RegisterOperand) Assemble() memval.Value {
	return memval.FromUint(0, 1, 8, memval.LittleEndian)
}

// ImmediateOperand is a leaf node holding a constant value resolved during
// the symbol-resolution phase (label offsets, literal constants).
type ImmediateOperand struct {
	ast.Base
	Value memval.Value
}

// NewImmediateOperand wraps a constant value as an operand node.
func NewImmediateOperand(v memval.Value) *ImmediateOperand {
	return &ImmediateOperand{Base: ast.NewBase(ast.KindImmediate, "immediate"), Value: v}
}

func (i *ImmediateOperand) Validate() ast.ValidationResult { return ast.Ok }

func (i *ImmediateOperand) ValidateRuntime(ast.MemoryAccess) ast.ValidationResult { return ast.Ok }

func (i *ImmediateOperand) GetValue(ast.MemoryAccess) (memval.Value, error) { return i.Value, nil }

func (i *ImmediateOperand) Assemble() memval.Value { return i.Value }

// execFunc implements one mnemonic's dynamic semantics. It receives the
// already-validated operands and must perform any register/memory writes
// itself (including PC update); its return value is the value written to
// rd, for trace/debugger display, or the zero Value if none.
type execFunc func(in *Instruction, mem ast.MemoryAccess) (memval.Value, error)

// Instruction is the AST node for one assembled RISC-V instruction: its
// operands, the architecture key that identifies its opcode bits, and the
// mnemonic-specific execution function (spec §4.8 "Instruction catalogue").
type Instruction struct {
	ast.Base
	Mnemonic string
	Format   string
	Key      map[string]uint64
	XLen     int
	Address  uint64
	Rd       string // register name, "" if unused
	Rs1      string
	Rs2      string
	Imm      memval.Value // resolved immediate/offset, if any

	exec execFunc
}

// NewInstruction builds an Instruction node. rd/rs1/rs2 are register names
// ("" when the format has no such field); imm is the resolved immediate or
// branch/jump offset (signed, already the correct bit width).
func NewInstruction(id string, mnemonic, format string, key map[string]uint64, xlen int, address uint64, rd, rs1, rs2 string, imm memval.Value, children ...ast.Node) (*Instruction, error) {
	fn, ok := execTable[mnemonic]
	if !ok {
		return nil, fmt.Errorf("riscv: unknown mnemonic %q", mnemonic)
	}
	return &Instruction{
		Base:     ast.NewBase(ast.KindInstruction, id, children...),
		Mnemonic: mnemonic,
		Format:   format,
		Key:      key,
		XLen:     xlen,
		Address:  address,
		Rd:       rd,
		Rs1:      rs1,
		Rs2:      rs2,
		Imm:      imm,
		exec:     fn,
	}, nil
}

func (in *Instruction) Validate() ast.ValidationResult {
	switch in.Format {
	case "R":
		if in.Rd == "" || in.Rs1 == "" || in.Rs2 == "" {
			return ast.Fail("riscv: %s requires rd, rs1 and rs2 operands", in.Mnemonic)
		}
	case "I":
		if in.Rd == "" || in.Rs1 == "" {
			return ast.Fail("riscv: %s requires rd and rs1 operands", in.Mnemonic)
		}
	case "S", "SB":
		if in.Rs1 == "" || in.Rs2 == "" {
			return ast.Fail("riscv: %s requires rs1 and rs2 operands", in.Mnemonic)
		}
	case "U", "UJ":
		if in.Rd == "" {
			return ast.Fail("riscv: %s requires an rd operand", in.Mnemonic)
		}
	}
	return ast.Ok
}

func (in *Instruction) ValidateRuntime(mem ast.MemoryAccess) ast.ValidationResult {
	if in.Mnemonic == "simucrash" {
		return ast.Fail("riscv: simucrash halted execution")
	}
	return ast.Ok
}

func (in *Instruction) GetValue(mem ast.MemoryAccess) (memval.Value, error) {
	return in.exec(in, mem)
}

// regNum extracts the integer register index from a canonical "xN" name;
// special aliases (ra, sp, ...) are resolved to their index by the caller's
// architecture before assembly, so Assemble only ever sees "xN" or "pc".
func regNum(name string) uint64 {
	if name == "" {
		return 0
	}
	var n int
	_, _ = fmt.Sscanf(name, "x%d", &n)
	return uint64(n)
}

func (in *Instruction) Assemble() memval.Value {
	opcode := in.Key["opcode"]
	funct3 := in.Key["funct3"]
	funct7 := in.Key["funct7"]
	rd, rs1, rs2 := regNum(in.Rd), regNum(in.Rs1), regNum(in.Rs2)
	immBits := uint64(0)
	if in.Imm.Len() > 0 {
		u, _ := memval.ToUint(in.Imm.Subset(0, min(in.Imm.Len(), 32)), 8, memval.LittleEndian)
		immBits = u
	}
	switch in.Format {
	case "R":
		return AssembleR(opcode, funct3, funct7, rd, rs1, rs2)
	case "I":
		return AssembleI(opcode, funct3, rd, rs1, immBits)
	case "S":
		return AssembleS(opcode, funct3, rs1, rs2, immBits)
	case "SB":
		return AssembleSB(opcode, funct3, rs1, rs2, immBits)
	case "U":
		return AssembleU(opcode, rd, immBits)
	case "UJ":
		return AssembleUJ(opcode, rd, immBits)
	case "SIM":
		return memval.FromUint(opcode, 32, 8, memval.LittleEndian)
	default:
		return memval.New(32)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
