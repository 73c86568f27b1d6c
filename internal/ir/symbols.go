// Package ir implements the assembler's intermediate representation: the
// per-line Operation produced by the parser, the symbol table that
// resolves labels and constants across a bounded number of passes, the
// bump-allocator that assigns addresses to sections, and the macro
// expander that runs ahead of IR construction. Grounded on the teacher's
// parser/symbols.go symbol table, generalized from one-shot forward
// relocation to the spec's bounded fixed-point replacement model.
package ir

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/lookbusy1344/riscv-sim/internal/expr"
)

var symbolNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MaxReplaceCount bounds the number of substitution passes the symbol
// table will perform before concluding a cycle exists.
const MaxReplaceCount = 64

// Symbol is one named value in the table: a label address or a constant.
type Symbol struct {
	Name    string
	Value   int64
	Defined bool
}

// SymbolTable resolves names to values across the assembly's labels and
// .equ-style constants, including constants defined in terms of other
// constants.
type SymbolTable struct {
	symbols map[string]*Symbol
	// exprs holds constants whose value is itself an unresolved expression
	// referencing other symbols, pending a later resolution pass.
	exprs map[string]func(resolve func(string) (int64, bool)) (int64, error)
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		symbols: make(map[string]*Symbol),
		exprs:   make(map[string]func(func(string) (int64, bool)) (int64, error)),
	}
}

// ValidateName reports whether name is a legal symbol identifier.
func ValidateName(name string) error {
	if !symbolNamePattern.MatchString(name) {
		return fmt.Errorf("ir: invalid symbol name %q", name)
	}
	return nil
}

// Define binds name to a concrete value immediately (used for labels, whose
// address is always known once memory has been allocated).
func (t *SymbolTable) Define(name string, value int64) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if sym, exists := t.symbols[name]; exists && sym.Defined {
		return fmt.Errorf("ir: symbol %q already defined", name)
	}
	t.symbols[name] = &Symbol{Name: name, Value: value, Defined: true}
	return nil
}

// DefineExpr binds name to a value that depends on other (possibly not yet
// defined) symbols; it is resolved by Resolve.
func (t *SymbolTable) DefineExpr(name string, fn func(resolve func(string) (int64, bool)) (int64, error)) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, exists := t.symbols[name]; exists {
		return fmt.Errorf("ir: symbol %q already defined", name)
	}
	t.symbols[name] = &Symbol{Name: name, Defined: false}
	t.exprs[name] = fn
	return nil
}

// Get returns a symbol's resolved value.
func (t *SymbolTable) Get(name string) (int64, bool) {
	sym, ok := t.symbols[name]
	if !ok || !sym.Defined {
		return 0, false
	}
	return sym.Value, true
}

// Resolve runs bounded fixed-point substitution over every pending
// expression symbol until all resolve, a pass makes no progress, or
// MaxReplaceCount passes are exhausted; any names still pending are
// reported as cyclic or unresolved.
func (t *SymbolTable) Resolve() error {
	resolve := func(name string) (int64, bool) { return t.Get(name) }

	for pass := 0; pass < MaxReplaceCount && len(t.exprs) > 0; pass++ {
		progressed := false
		for name, fn := range t.exprs {
			v, err := fn(resolve)
			if err != nil {
				var unresolved *expr.ErrUnrecognizedConstant
				if errors.As(err, &unresolved) {
					continue // dependency not yet resolved; retry next pass
				}
				return fmt.Errorf("ir: symbol %q: %w", name, err)
			}
			t.symbols[name].Value = v
			t.symbols[name].Defined = true
			delete(t.exprs, name)
			progressed = true
		}
		if !progressed {
			break
		}
	}
	if len(t.exprs) > 0 {
		names := make([]string, 0, len(t.exprs))
		for name := range t.exprs {
			names = append(names, name)
		}
		return fmt.Errorf("ir: cyclic or unresolved symbol definitions: %v", names)
	}
	return nil
}
