package ir

import (
	"fmt"
	"strings"
)

// MacroDef is one named macro: its formal parameters and its captured
// source lines, verbatim between .macro and .endmacro.
type MacroDef struct {
	Name   string
	Params []string
	Body   []string
}

// MacroTable stores macro definitions by name.
type MacroTable struct {
	macros map[string]*MacroDef
}

// NewMacroTable returns an empty table.
func NewMacroTable() *MacroTable {
	return &MacroTable{macros: make(map[string]*MacroDef)}
}

// Define registers a macro, rejecting redefinition.
func (t *MacroTable) Define(def *MacroDef) error {
	if _, exists := t.macros[def.Name]; exists {
		return fmt.Errorf("ir: macro %q already defined", def.Name)
	}
	t.macros[def.Name] = def
	return nil
}

// Lookup returns a macro definition by name.
func (t *MacroTable) Lookup(name string) (*MacroDef, bool) {
	def, ok := t.macros[name]
	return def, ok
}

// MacroExpander expands macro invocations into their body lines, with
// formal-parameter substitution (\name tokens) and cyclic-invocation
// detection.
type MacroExpander struct {
	table *MacroTable
	stack []string
}

// NewMacroExpander builds an expander over the given table.
func NewMacroExpander(table *MacroTable) *MacroExpander {
	return &MacroExpander{table: table}
}

// Expand recursively expands a single invocation of name with the given
// arguments, returning the fully substituted and macro-free lines.
func (e *MacroExpander) Expand(name string, args []string) ([]string, error) {
	def, ok := e.table.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("ir: undefined macro %q", name)
	}
	for _, active := range e.stack {
		if active == name {
			return nil, fmt.Errorf("Cyclic macro call: %s", strings.Join(append(e.stack, name), " -> "))
		}
	}
	if len(args) != len(def.Params) {
		return nil, fmt.Errorf("ir: macro %q expects %d arguments, got %d", name, len(def.Params), len(args))
	}

	bindings := make(map[string]string, len(def.Params))
	for i, param := range def.Params {
		bindings[param] = args[i]
	}

	e.stack = append(e.stack, name)
	defer func() { e.stack = e.stack[:len(e.stack)-1] }()

	var out []string
	for _, line := range def.Body {
		substituted := substituteParams(line, bindings)
		invoke, invokeArgs, isInvocation := parseInvocation(substituted, e.table)
		if !isInvocation {
			out = append(out, substituted)
			continue
		}
		expanded, err := e.Expand(invoke, invokeArgs)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// substituteParams replaces every \name occurrence in line with its bound
// argument text.
func substituteParams(line string, bindings map[string]string) string {
	var sb strings.Builder
	i := 0
	for i < len(line) {
		if line[i] == '\\' {
			j := i + 1
			for j < len(line) && isParamChar(line[j]) {
				j++
			}
			if j > i+1 {
				name := line[i+1 : j]
				if val, ok := bindings[name]; ok {
					sb.WriteString(val)
					i = j
					continue
				}
			}
		}
		sb.WriteByte(line[i])
		i++
	}
	return sb.String()
}

func isParamChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// parseInvocation recognizes a line of the form "mnemonic arg1, arg2" where
// mnemonic names a known macro, splitting it into name and arguments.
func parseInvocation(line string, table *MacroTable) (string, []string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", nil, false
	}
	fields := strings.SplitN(trimmed, " ", 2)
	name := fields[0]
	if _, ok := table.Lookup(name); !ok {
		return "", nil, false
	}
	var args []string
	if len(fields) == 2 {
		for _, a := range strings.Split(fields[1], ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}
	return name, args, true
}
