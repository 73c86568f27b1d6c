// Package parser turns RISC-V assembly source text into an ordered
// []ir.Operation stream (spec §4.7 "Lexer and parser"): a single forward
// scan over source lines recognizing labels, directives and instructions,
// expanding macros ahead of IR construction, and deferring all addressing
// and symbol resolution to the ir package's own phases. Grounded on the
// teacher's parser/parser.go line-scan shape (label-then-colon lookahead,
// directive dispatch by name, pseudo-operand rewriting) adapted from ARM's
// token-stream parser to a simpler per-line tokenizer, since RISC-V's
// grammar has no multi-line operand syntax to track across newlines.
package parser

import (
	"fmt"
	"strings"

	"github.com/lookbusy1344/riscv-sim/internal/arch"
	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/ir"
	"github.com/lookbusy1344/riscv-sim/internal/lexer"
)

// Parser accumulates the operation stream, compile errors and macro
// expansion records for one source file.
type Parser struct {
	arch     *arch.Architecture
	filename string

	macros   *ir.MacroTable
	expander *ir.MacroExpander

	section      ir.Section
	pendingLabel string

	ops        []ir.Operation
	errs       []ast.CompileError
	expansions []ast.MacroExpansion

	inMacro    bool
	macroName  string
	macroStart int
	macroArgs  []string
	macroBody  []string
}

// New creates a parser targeting the given architecture (used to recognize
// instruction mnemonics and validate register names).
func New(a *arch.Architecture, filename string) *Parser {
	mt := ir.NewMacroTable()
	return &Parser{
		arch:     a,
		filename: filename,
		macros:   mt,
		expander: ir.NewMacroExpander(mt),
		section:  ir.SectionText,
	}
}

// Parse scans source and returns its operation stream plus any compile
// errors and macro-expansion records collected along the way. Parse errors
// never abort the scan — each bad line is recorded and skipped, so a
// caller sees as many problems as possible in one pass (spec §7
// "Propagation policy").
func (p *Parser) Parse(source string) ([]ir.Operation, []ast.CompileError, []ast.MacroExpansion) {
	lines := strings.Split(source, "\n")
	p.parseLines(lines, 1)
	if p.inMacro {
		p.addError(p.macroStart, "parser: .macro %q has no matching .endmacro", p.macroName)
	}
	if p.pendingLabel != "" {
		// A label with nothing after it still names an address: the end of
		// its section, bound through a zero-byte reservation.
		p.ops = append(p.ops, &ir.MemoryReserveOp{
			Section:   p.section,
			Label:     p.takeLabel(),
			LineRange: ast.LineInterval{First: len(lines), Last: len(lines)},
		})
	}
	return p.ops, p.errs, p.expansions
}

func (p *Parser) addError(line int, format string, args ...any) {
	p.errs = append(p.errs, ast.CompileError{
		Severity: ast.SeverityError,
		Message:  fmt.Sprintf(format, args...),
		Position: ast.Position{Filename: p.filename, Line: line},
	})
}

func (p *Parser) parseLines(lines []string, firstLineNo int) {
	for i, raw := range lines {
		lineNo := firstLineNo + i
		p.parseLine(raw, lineNo)
	}
}

// parseLine handles one physical line: strip comments, recognize a leading
// label, then dispatch to directive or instruction handling.
func (p *Parser) parseLine(raw string, lineNo int) {
	line := stripComment(raw)
	if strings.TrimSpace(line) == "" {
		return
	}

	if p.inMacro {
		p.collectMacroBodyLine(line, lineNo)
		return
	}

	toks := tokenizeLine(line, p.filename, lineNo)
	if len(toks) == 0 {
		return
	}

	i := 0
	for i+1 < len(toks) && toks[i].Type == lexer.TokenIdentifier && toks[i+1].Type == lexer.TokenColon {
		p.bindLabel(toks[i].Literal, lineNo)
		i += 2
	}
	toks = toks[i:]
	if len(toks) == 0 {
		return
	}

	switch toks[0].Type {
	case lexer.TokenDirective:
		p.parseDirective(toks, line, lineNo)
	case lexer.TokenIdentifier, lexer.TokenMnemonic, lexer.TokenRegister:
		p.parseInstructionLine(toks, line, lineNo)
	default:
		p.addError(lineNo, "parser: unexpected token %q", toks[0].Literal)
	}
}

func (p *Parser) bindLabel(name string, lineNo int) {
	if p.pendingLabel != "" {
		p.addError(lineNo, "parser: label %q follows undischarged label %q on the same target", name, p.pendingLabel)
	}
	p.pendingLabel = name
}

// takeLabel returns and clears the pending label, for attachment to the
// next addressed operation.
func (p *Parser) takeLabel() string {
	l := p.pendingLabel
	p.pendingLabel = ""
	return l
}

func stripComment(line string) string {
	for _, marker := range []string{"//", "#", ";"} {
		if idx := strings.Index(line, marker); idx >= 0 {
			line = line[:idx]
		}
	}
	return line
}

// tokenizeLine lexes a single physical line, dropping the trailing newline
// and EOF markers the shared lexer always appends.
func tokenizeLine(line, filename string, lineNo int) []lexer.Token {
	l := lexer.New(line, filename)
	var out []lexer.Token
	for {
		tok := l.NextToken()
		if tok.Type == lexer.TokenEOF || tok.Type == lexer.TokenNewline {
			break
		}
		tok.Pos.Line = lineNo
		out = append(out, tok)
	}
	return out
}
