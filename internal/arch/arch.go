// Package arch models the immutable description of an instruction set
// architecture: its units of registers, its instruction set, and the
// properties the rest of the engine needs (word size, endianness,
// alignment, sign representation). Architectures are assembled from
// composable "modules" via an architecture formula (spec §6).
package arch

import (
	"fmt"
	"reflect"

	"github.com/lookbusy1344/riscv-sim/internal/memval"
	"github.com/lookbusy1344/riscv-sim/internal/registers"
)

// Alignment selects how strictly memory accesses must be aligned.
type Alignment int

const (
	AlignStrict Alignment = iota
	AlignRelaxed
)

// InstructionInfo describes one opcode: its assembly format, bit length,
// and the fixed field values ("opcode", "funct3", "funct7", ...) that
// identify it. Exactly one key must be named "opcode".
type InstructionInfo struct {
	Mnemonic string
	Format   string
	Length   int
	Key      map[string]uint64
}

// Unit groups a set of registers that logically belong together (e.g. the
// RISC-V integer register file), plus the names of its special registers.
type Unit struct {
	Name   string
	ByName map[string]registers.Info
	ByID   map[int]registers.Info
	PC     string
	Link   string
}

// Architecture is the immutable aggregate description of an ISA.
type Architecture struct {
	WordSize     int
	ByteSize     int
	Endianness   memval.Endianness
	Alignment    Alignment
	Sign         memval.SignRepr
	Units        []Unit
	Instructions map[string]InstructionInfo
}

// Formula names an architecture family and the ordered list of modules to
// union together to build it (spec §6 "Architecture formula").
type Formula struct {
	Family  string
	Modules []string
}

// Module is one named, composable bundle of unit/register/instruction
// declarations (spec GLOSSARY "ISA module").
type Module struct {
	Name         string
	WordSize     int
	ByteSize     int
	Endianness   memval.Endianness
	Alignment    Alignment
	Sign         memval.SignRepr
	Units        []Unit
	Instructions map[string]InstructionInfo
}

// Family is a named collection of modules that can be brewed together.
type Family struct {
	Name    string
	Modules map[string]Module
}

var families = map[string]*Family{}

// RegisterFamily makes a family's modules available to Brew.
func RegisterFamily(f *Family) {
	families[f.Name] = f
}

// ErrContradictingModule is returned by Brew when a later module redefines
// an instruction or register already bound by an earlier module with a
// different value (Open Question (d), SPEC_FULL.md §6).
type ErrContradictingModule struct {
	Module, Name string
}

func (e *ErrContradictingModule) Error() string {
	return fmt.Sprintf("arch: module %q redefines %q with a contradicting value", e.Module, e.Name)
}

// Brew composes an Architecture from a Formula by unioning its modules in
// order. A later module may extend the architecture but may not
// contradict a key or register already bound by an earlier module.
func Brew(formula Formula) (*Architecture, error) {
	fam, ok := families[formula.Family]
	if !ok {
		return nil, fmt.Errorf("arch: unknown family %q", formula.Family)
	}
	if len(formula.Modules) == 0 {
		return nil, fmt.Errorf("arch: formula for family %q names no modules", formula.Family)
	}

	out := &Architecture{
		Instructions: make(map[string]InstructionInfo),
	}
	unitsByName := make(map[string]*Unit)

	for _, modName := range formula.Modules {
		mod, ok := fam.Modules[modName]
		if !ok {
			return nil, fmt.Errorf("arch: unknown module %q in family %q", modName, formula.Family)
		}
		if mod.WordSize != 0 {
			if out.WordSize != 0 && out.WordSize != mod.WordSize {
				return nil, &ErrContradictingModule{modName, "word size"}
			}
			out.WordSize = mod.WordSize
		}
		if mod.ByteSize != 0 {
			if out.ByteSize != 0 && out.ByteSize != mod.ByteSize {
				return nil, &ErrContradictingModule{modName, "byte size"}
			}
			out.ByteSize = mod.ByteSize
		}
		out.Endianness = mod.Endianness
		out.Alignment = mod.Alignment
		out.Sign = mod.Sign

		for _, u := range mod.Units {
			existing, ok := unitsByName[u.Name]
			if !ok {
				cp := u
				cp.ByName = cloneRegMap(u.ByName)
				cp.ByID = cloneRegIDMap(u.ByID)
				unitsByName[u.Name] = &cp
				out.Units = append(out.Units, cp)
				continue
			}
			for name, info := range u.ByName {
				if prior, exists := existing.ByName[name]; exists && !reflect.DeepEqual(prior, info) {
					return nil, &ErrContradictingModule{modName, name}
				}
				existing.ByName[name] = info
				existing.ByID[info.ID] = info
			}
		}

		for mnemonic, info := range mod.Instructions {
			if prior, exists := out.Instructions[mnemonic]; exists && !sameKey(prior, info) {
				return nil, &ErrContradictingModule{modName, mnemonic}
			}
			out.Instructions[mnemonic] = info
		}
	}

	// Rebuild out.Units from the (possibly mutated) unitsByName map to
	// reflect any cross-module extension.
	out.Units = out.Units[:0]
	for _, u := range unitsByName {
		out.Units = append(out.Units, *u)
	}

	for mnemonic, info := range out.Instructions {
		if _, ok := info.Key["opcode"]; !ok {
			return nil, fmt.Errorf("arch: instruction %q has no opcode key", mnemonic)
		}
	}

	return out, nil
}

func sameKey(a, b InstructionInfo) bool {
	if a.Format != b.Format || a.Length != b.Length || len(a.Key) != len(b.Key) {
		return false
	}
	for k, v := range a.Key {
		if b.Key[k] != v {
			return false
		}
	}
	return true
}

func cloneRegMap(m map[string]registers.Info) map[string]registers.Info {
	out := make(map[string]registers.Info, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneRegIDMap(m map[int]registers.Info) map[int]registers.Info {
	out := make(map[int]registers.Info, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// BuildRegisterSet instantiates a registers.Set populated with every
// register named by the architecture's units.
func (a *Architecture) BuildRegisterSet() (*registers.Set, error) {
	set := registers.NewSet()
	for _, u := range a.Units {
		for _, info := range u.ByName {
			if info.Enclosing != nil {
				continue // aliases are created in a second pass below
			}
			if err := set.Create(info); err != nil {
				return nil, err
			}
		}
	}
	for _, u := range a.Units {
		for _, info := range u.ByName {
			if info.Enclosing == nil {
				continue
			}
			parent := findByID(u, *info.Enclosing)
			if parent == nil {
				return nil, fmt.Errorf("arch: register %q has unknown enclosing id %d", info.Name, *info.Enclosing)
			}
			if err := set.Alias(info.Name, parent.Name, info.Offset, info.Offset+info.Size, false); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

func findByID(u Unit, id int) *registers.Info {
	if info, ok := u.ByID[id]; ok {
		return &info
	}
	return nil
}
