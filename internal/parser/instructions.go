package parser

import (
	"regexp"
	"strings"

	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/expr"
	"github.com/lookbusy1344/riscv-sim/internal/ir"
	"github.com/lookbusy1344/riscv-sim/internal/lexer"
)

// registerAliases mirrors the ABI names arch/riscv.go binds onto the
// canonical x0-x31 register file; Assemble only ever sees the canonical
// spelling (see riscv.regNum), so the parser normalizes here, once, at the
// edge of the source text.
var registerAliases = map[string]string{
	"ra": "x1", "sp": "x2", "gp": "x3", "tp": "x4",
	"t0": "x5", "t1": "x6", "t2": "x7",
	"s0": "x8", "fp": "x8", "s1": "x9",
	"a0": "x10", "a1": "x11", "a2": "x12", "a3": "x13",
	"a4": "x14", "a5": "x15", "a6": "x16", "a7": "x17",
	"s2": "x18", "s3": "x19", "s4": "x20", "s5": "x21",
	"s6": "x22", "s7": "x23", "s8": "x24", "s9": "x25",
	"s10": "x26", "s11": "x27",
	"t3": "x28", "t4": "x29", "t5": "x30", "t6": "x31",
}

var xRegisterPattern = regexp.MustCompile(`^x(3[01]|[12][0-9]|[0-9])$`)

// canonicalRegister resolves an ABI alias or bare "xN"/"pc" spelling to the
// canonical name the instruction encoder understands.
func canonicalRegister(name string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "pc" {
		return "pc", true
	}
	if xRegisterPattern.MatchString(lower) {
		return lower, true
	}
	if canon, ok := registerAliases[lower]; ok {
		return canon, true
	}
	return "", false
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// isBareIdentifier reports whether s is a single symbol name rather than a
// literal or compound expression — the signal the parser uses to decide a
// branch/jump operand names a label (spec §4.8 "Branches and jumps").
func isBareIdentifier(s string) bool {
	return identifierPattern.MatchString(strings.TrimSpace(s))
}

// offsetBasePattern matches the RISC-V load/store "offset(base)" operand
// syntax, e.g. "0(x1)" or "-4(sp)".
var offsetBasePattern = regexp.MustCompile(`^(.*)\(([^()]+)\)$`)

// splitOffsetBase splits "offset(base)" into its two parts. A bare "(base)"
// with no offset text is treated as offset 0.
func splitOffsetBase(s string) (offset, base string, ok bool) {
	m := offsetBasePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", "", false
	}
	offset = strings.TrimSpace(m[1])
	if offset == "" {
		offset = "0"
	}
	return offset, strings.TrimSpace(m[2]), true
}

// pseudoRewrite expands a pseudo-instruction mnemonic into its canonical
// form and operand list (spec §4.8 "Pseudo-instructions"), grounded on the
// standard RISC-V pseudo-op table.
func pseudoRewrite(mnemonic string, operands []string) (canonical string, rewritten []string, ok bool) {
	switch mnemonic {
	case "nop":
		return "addi", []string{"x0", "x0", "0"}, true
	case "ret":
		return "jalr", []string{"x0", "x1", "0"}, true
	case "jr":
		if len(operands) != 1 {
			return "", nil, false
		}
		return "jalr", []string{"x0", operands[0], "0"}, true
	case "j":
		if len(operands) != 1 {
			return "", nil, false
		}
		return "jal", []string{"x0", operands[0]}, true
	case "call":
		if len(operands) != 1 {
			return "", nil, false
		}
		return "jal", []string{"x1", operands[0]}, true
	case "mv":
		if len(operands) != 2 {
			return "", nil, false
		}
		return "addi", []string{operands[0], operands[1], "0"}, true
	case "li":
		if len(operands) != 2 {
			return "", nil, false
		}
		return "addi", []string{operands[0], "x0", operands[1]}, true
	case "beqz":
		if len(operands) != 2 {
			return "", nil, false
		}
		return "beq", []string{operands[0], "x0", operands[1]}, true
	case "bnez":
		if len(operands) != 2 {
			return "", nil, false
		}
		return "bne", []string{operands[0], "x0", operands[1]}, true
	default:
		return mnemonic, operands, false
	}
}

var loadMnemonics = map[string]bool{"lb": true, "lh": true, "lw": true, "lbu": true, "lhu": true}

// parseInstructionLine handles one non-directive, non-label line: a macro
// invocation or a (possibly pseudo) instruction mnemonic with its operands.
func (p *Parser) parseInstructionLine(toks []lexer.Token, rawLine string, lineNo int) {
	literal := toks[0].Literal
	rest := operandText(rawLine, toks[0].Pos.Column-1+len(literal))
	operands := splitNonEmptyCommas(rest)

	if p.isMacro(literal) {
		p.expandMacroInvocation(literal, operands, lineNo)
		return
	}

	mnemonic := strings.ToLower(literal)
	canonical, rewrittenOperands, wasPseudo := pseudoRewrite(mnemonic, operands)
	if wasPseudo {
		mnemonic = canonical
		operands = rewrittenOperands
	} else if canonical == "" {
		p.addError(lineNo, "parser: %s has the wrong number of operands", literal)
		return
	}

	info, ok := p.arch.Instructions[mnemonic]
	if !ok {
		p.addError(lineNo, "parser: unknown mnemonic %q", literal)
		return
	}

	op := &ir.InstructionOp{
		Label:     p.takeLabel(),
		Mnemonic:  mnemonic,
		LineRange: ast.LineInterval{First: lineNo, Last: lineNo},
	}

	switch info.Format {
	case "R":
		if len(operands) != 3 {
			p.addError(lineNo, "parser: %s requires rd, rs1, rs2", mnemonic)
			return
		}
		var ok1, ok2, ok3 bool
		op.Rd, ok1 = canonicalRegister(operands[0])
		op.Rs1, ok2 = canonicalRegister(operands[1])
		op.Rs2, ok3 = canonicalRegister(operands[2])
		if !ok1 || !ok2 || !ok3 {
			p.addError(lineNo, "parser: %s has a bad register operand", mnemonic)
			return
		}

	case "I":
		if loadMnemonics[mnemonic] {
			if len(operands) != 2 {
				p.addError(lineNo, "parser: %s requires rd, offset(base)", mnemonic)
				return
			}
			rd, ok1 := canonicalRegister(operands[0])
			offset, base, ok2 := splitOffsetBase(operands[1])
			rs1, ok3 := canonicalRegister(base)
			if !ok1 || !ok2 || !ok3 {
				p.addError(lineNo, "parser: %s has a bad operand %q", mnemonic, operands[1])
				return
			}
			op.Rd, op.Rs1 = rd, rs1
			op.Imm = p.compileOperand(offset, lineNo)
		} else {
			if len(operands) != 3 {
				p.addError(lineNo, "parser: %s requires rd, rs1, imm", mnemonic)
				return
			}
			rd, ok1 := canonicalRegister(operands[0])
			rs1, ok2 := canonicalRegister(operands[1])
			if !ok1 || !ok2 {
				p.addError(lineNo, "parser: %s has a bad register operand", mnemonic)
				return
			}
			op.Rd, op.Rs1 = rd, rs1
			op.Imm = p.compileOperand(operands[2], lineNo)
		}

	case "S":
		if len(operands) != 2 {
			p.addError(lineNo, "parser: %s requires rs2, offset(base)", mnemonic)
			return
		}
		rs2, ok1 := canonicalRegister(operands[0])
		offset, base, ok2 := splitOffsetBase(operands[1])
		rs1, ok3 := canonicalRegister(base)
		if !ok1 || !ok2 || !ok3 {
			p.addError(lineNo, "parser: %s has a bad operand %q", mnemonic, operands[1])
			return
		}
		op.Rs1, op.Rs2 = rs1, rs2
		op.Imm = p.compileOperand(offset, lineNo)

	case "SB":
		if len(operands) != 3 {
			p.addError(lineNo, "parser: %s requires rs1, rs2, target", mnemonic)
			return
		}
		rs1, ok1 := canonicalRegister(operands[0])
		rs2, ok2 := canonicalRegister(operands[1])
		if !ok1 || !ok2 {
			p.addError(lineNo, "parser: %s has a bad register operand", mnemonic)
			return
		}
		op.Rs1, op.Rs2 = rs1, rs2
		op.PCRelative = isBareIdentifier(operands[2])
		op.Imm = p.compileOperand(operands[2], lineNo)

	case "U":
		if len(operands) != 2 {
			p.addError(lineNo, "parser: %s requires rd, imm", mnemonic)
			return
		}
		rd, ok1 := canonicalRegister(operands[0])
		if !ok1 {
			p.addError(lineNo, "parser: %s has a bad register operand", mnemonic)
			return
		}
		op.Rd = rd
		op.Imm = p.compileOperand(operands[1], lineNo)

	case "UJ":
		if len(operands) != 2 {
			p.addError(lineNo, "parser: %s requires rd, target", mnemonic)
			return
		}
		rd, ok1 := canonicalRegister(operands[0])
		if !ok1 {
			p.addError(lineNo, "parser: %s has a bad register operand", mnemonic)
			return
		}
		op.Rd = rd
		op.PCRelative = isBareIdentifier(operands[1])
		op.Imm = p.compileOperand(operands[1], lineNo)

	case "SIM":
		if mnemonic == "simusleep" {
			if len(operands) != 1 {
				p.addError(lineNo, "parser: simusleep requires one duration operand")
				return
			}
			op.Imm = p.compileOperand(operands[0], lineNo)
		}
		// simucrash takes a freeform message and carries no operands the
		// AST node needs; ValidateRuntime always fails it regardless.

	default:
		p.addError(lineNo, "parser: %s has an unsupported format %q", mnemonic, info.Format)
		return
	}

	p.ops = append(p.ops, op)
}

// compileOperand compiles operand text into an expression program, or
// records a parse error and returns nil.
func (p *Parser) compileOperand(text string, lineNo int) *expr.Program {
	prog, err := expr.Compile(text)
	if err != nil {
		p.addError(lineNo, "parser: bad operand %q: %v", text, err)
		return nil
	}
	return prog
}

// splitNonEmptyCommas is splitTopLevelCommas with blank fields dropped, for
// operand lists (as opposed to .word-style initializer lists, which keep
// blanks meaningful only for error reporting).
func splitNonEmptyCommas(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, f := range splitTopLevelCommas(s) {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
