package parser

import (
	"strings"

	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/ir"
)

// beginMacro starts capture of a macro body: ".macro name p1, p2, ..."
// (spec §4.10 "Macros").
func (p *Parser) beginMacro(rest string, lineNo int) {
	if p.inMacro {
		p.addError(lineNo, "parser: nested .macro is not supported")
		return
	}
	fields := strings.Fields(strings.ReplaceAll(rest, ",", " "))
	if len(fields) == 0 {
		p.addError(lineNo, "parser: .macro requires a name")
		return
	}
	p.inMacro = true
	p.macroName = fields[0]
	p.macroArgs = fields[1:]
	p.macroStart = lineNo
	p.macroBody = nil
}

// collectMacroBodyLine appends one raw body line, or closes the macro on a
// matching .endmacro/.endm.
func (p *Parser) collectMacroBodyLine(line string, lineNo int) {
	trimmed := strings.TrimSpace(line)
	lower := strings.ToLower(trimmed)
	if lower == ".endmacro" || lower == ".endm" {
		def := &ir.MacroDef{Name: p.macroName, Params: p.macroArgs, Body: p.macroBody}
		if err := p.macros.Define(def); err != nil {
			p.addError(p.macroStart, "%v", err)
		}
		p.ops = append(p.ops,
			&ir.MacroDefOp{Name: p.macroName, LineRange: ast.LineInterval{First: p.macroStart, Last: p.macroStart}},
			&ir.MacroEndOp{LineRange: ast.LineInterval{First: lineNo, Last: lineNo}},
		)
		p.inMacro = false
		p.macroName = ""
		p.macroArgs = nil
		p.macroBody = nil
		return
	}
	p.macroBody = append(p.macroBody, line)
}

// expandMacroInvocation substitutes name's body at the call site, records a
// MacroInvocationOp and MacroExpansion for the debugger's macro list (spec
// §6 "set_macro_list_callback"), and parses the expanded lines in place.
func (p *Parser) expandMacroInvocation(name string, args []string, lineNo int) {
	expanded, err := p.expander.Expand(name, args)
	if err != nil {
		p.addError(lineNo, "parser: %v", err)
		return
	}
	p.ops = append(p.ops, &ir.MacroInvocationOp{Name: name, LineRange: ast.LineInterval{First: lineNo, Last: lineNo}})
	p.expansions = append(p.expansions, ast.MacroExpansion{Name: name, Lines: ast.LineInterval{First: lineNo, Last: lineNo}})
	p.parseLines(expanded, lineNo)
}

// isMacro reports whether name names a registered macro.
func (p *Parser) isMacro(name string) bool {
	_, ok := p.macros.Lookup(name)
	return ok
}
