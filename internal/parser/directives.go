package parser

import (
	"strconv"
	"strings"

	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/expr"
	"github.com/lookbusy1344/riscv-sim/internal/ir"
	"github.com/lookbusy1344/riscv-sim/internal/lexer"
)

// parseDirective dispatches a ".name ..." line by its directive name (spec
// §4.10 "directive dispatched by name").
func (p *Parser) parseDirective(toks []lexer.Token, rawLine string, lineNo int) {
	name := strings.ToLower(strings.TrimPrefix(toks[0].Literal, "."))
	rest := operandText(rawLine, toks[0].Pos.Column-1+len(toks[0].Literal))
	lines := ast.LineInterval{First: lineNo, Last: lineNo}

	switch name {
	case "text":
		p.section = ir.SectionText
		p.ops = append(p.ops, &ir.SectionOp{Section: ir.SectionText, LineRange: lines})
	case "data":
		p.section = ir.SectionData
		p.ops = append(p.ops, &ir.SectionOp{Section: ir.SectionData, LineRange: lines})
	case "bss":
		p.section = ir.SectionBSS
		p.ops = append(p.ops, &ir.SectionOp{Section: ir.SectionBSS, LineRange: lines})

	case "equ":
		p.parseEqu(rest, lineNo)

	case "word", "long":
		p.parseMemoryDef(rest, 32, lineNo)
	case "half", "short":
		p.parseMemoryDef(rest, 16, lineNo)
	case "byte":
		p.parseMemoryDef(rest, 8, lineNo)
	case "dword", "quad":
		p.parseMemoryDef(rest, 64, lineNo)

	case "space", "skip":
		p.parseMemoryReserve(rest, lineNo)

	case "macro":
		p.beginMacro(rest, lineNo)
	case "endmacro", "endm":
		p.addError(lineNo, "parser: %s with no matching .macro", toks[0].Literal)

	case "align":
		// No-op: the allocator's fixed alignment already covers instruction
		// and word placement; an explicit .align has nothing further to do.

	default:
		p.addError(lineNo, "parser: unknown directive %q", toks[0].Literal)
	}
}

// operandText returns the portion of rawLine after the directive/mnemonic
// name, trimmed, used as input to expr.Compile (which does its own
// tokenizing and so works directly from source text rather than our
// lexer's tokens).
func operandText(rawLine string, fromCol int) string {
	if fromCol < 0 || fromCol > len(rawLine) {
		return ""
	}
	return strings.TrimSpace(rawLine[fromCol:])
}

func (p *Parser) parseEqu(rest string, lineNo int) {
	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		p.addError(lineNo, "parser: .equ requires NAME, EXPR")
		return
	}
	name := strings.TrimSpace(parts[0])
	prog, err := expr.Compile(parts[1])
	if err != nil {
		p.addError(lineNo, "parser: .equ %s: %v", name, err)
		return
	}
	p.ops = append(p.ops, &ir.ConstantOp{Name: name, Value: prog, LineRange: ast.LineInterval{First: lineNo, Last: lineNo}})
}

func (p *Parser) parseMemoryDef(rest string, cellBits, lineNo int) {
	fields := splitTopLevelCommas(rest)
	var values []*expr.Program
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if strings.HasPrefix(f, `"`) && strings.HasSuffix(f, `"`) {
			for _, ch := range []byte(f[1 : len(f)-1]) {
				prog, _ := expr.Compile(strconv.Itoa(int(ch)))
				values = append(values, prog)
			}
			continue
		}
		prog, err := expr.Compile(f)
		if err != nil {
			p.addError(lineNo, "parser: bad initializer %q: %v", f, err)
			continue
		}
		values = append(values, prog)
	}
	p.ops = append(p.ops, &ir.MemoryDefOp{
		Section:   p.section,
		Label:     p.takeLabel(),
		CellBits:  cellBits,
		Values:    values,
		LineRange: ast.LineInterval{First: lineNo, Last: lineNo},
	})
}

func (p *Parser) parseMemoryReserve(rest string, lineNo int) {
	prog, err := expr.Compile(rest)
	if err != nil {
		p.addError(lineNo, "parser: bad reservation size %q: %v", rest, err)
		return
	}
	n, err := expr.Eval(prog, noSymbols, 64, true)
	if err != nil {
		p.addError(lineNo, "parser: .space/.skip size must be a compile-time constant: %v", err)
		return
	}
	p.ops = append(p.ops, &ir.MemoryReserveOp{
		Section:   p.section,
		Label:     p.takeLabel(),
		Bytes:     int(n),
		LineRange: ast.LineInterval{First: lineNo, Last: lineNo},
	})
}

func noSymbols(string) (int64, bool) { return 0, false }

// splitTopLevelCommas splits s on commas that are not nested inside
// parentheses, so load/store "offset(base)" operands survive intact.
func splitTopLevelCommas(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(s[start:]))
	return out
}
