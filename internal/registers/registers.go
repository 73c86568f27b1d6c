// Package registers implements the named register store with aliasing and
// change-notification semantics described in spec §3.1/§4.3.
package registers

import (
	"fmt"
	"sort"

	"github.com/lookbusy1344/riscv-sim/internal/memval"
)

// Kind classifies a register's purpose.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
	KindVector
	KindFlag
	KindLink
	KindProgramCounter
)

// Constituent describes one part of a register's composition, used when
// building the Info forest (§3.1 "Register identity").
type Constituent struct {
	ID     int
	Offset int
}

// Info is the static identity of a register: name, numeric id, size,
// kind, constancy, and its place in the enclosing/constituent forest.
type Info struct {
	Name         string
	ID           int
	Size         int
	Kind         Kind
	Constant     bool
	Enclosing    *int
	Offset       int
	Constituents []Constituent
}

type topLevel struct {
	info  Info
	value memval.Value
	// notify holds the names to call back on any write to this root,
	// including itself unless created silent.
	notify []string
}

type alias struct {
	root       string
	begin, end int
	silent     bool
}

// Set is a collection of named registers, some top-level with owned
// storage, others aliases into a top-level register's storage.
type Set struct {
	tops     map[string]*topLevel
	aliases  map[string]alias
	order    []string // top-level creation order, for deterministic snapshots
	onChange func(name string)
}

// NewSet creates an empty register set.
func NewSet() *Set {
	return &Set{
		tops:    make(map[string]*topLevel),
		aliases: make(map[string]alias),
	}
}

// OnChange registers a callback invoked once per distinct register name
// affected by a write.
func (s *Set) OnChange(fn func(name string)) {
	s.onChange = fn
}

// Create declares a new top-level register of the given size in bits.
func (s *Set) Create(info Info) error {
	if _, exists := s.tops[info.Name]; exists {
		return fmt.Errorf("registers: %q already exists", info.Name)
	}
	if _, exists := s.aliases[info.Name]; exists {
		return fmt.Errorf("registers: %q already exists as an alias", info.Name)
	}
	s.tops[info.Name] = &topLevel{
		info:   info,
		value:  memval.New(info.Size),
		notify: []string{info.Name},
	}
	s.order = append(s.order, info.Name)
	return nil
}

// Alias creates a named window [begin,end) into a parent register's
// storage. The parent may itself be an alias; the resulting alias is
// stored denormalized against the root register. If silent is true, the
// alias is not added to the root's notification set.
func (s *Set) Alias(name, parent string, begin, end int, silent bool) error {
	if _, exists := s.tops[name]; exists {
		return fmt.Errorf("registers: %q already exists", name)
	}
	if _, exists := s.aliases[name]; exists {
		return fmt.Errorf("registers: %q already exists", name)
	}
	root, rBegin, _, err := s.resolve(parent)
	if err != nil {
		return err
	}
	top := s.tops[root]
	absBegin := rBegin + begin
	absEnd := rBegin + end
	if absEnd > top.info.Size || absBegin < 0 || absBegin > absEnd {
		return fmt.Errorf("registers: alias %q window [%d,%d) out of range for %q", name, begin, end, root)
	}
	s.aliases[name] = alias{root: root, begin: absBegin, end: absEnd, silent: silent}
	if !silent {
		top.notify = append(top.notify, name)
	}
	return nil
}

// resolve returns the root register name and the absolute bit window
// [begin,end) that name denotes, following alias indirection.
func (s *Set) resolve(name string) (root string, begin, end int, err error) {
	if top, ok := s.tops[name]; ok {
		return name, 0, top.info.Size, nil
	}
	if a, ok := s.aliases[name]; ok {
		return a.root, a.begin, a.end, nil
	}
	return "", 0, 0, fmt.Errorf("registers: unknown register %q", name)
}

// Get returns the current value of the named register or alias.
func (s *Set) Get(name string) (memval.Value, error) {
	root, begin, end, err := s.resolve(name)
	if err != nil {
		return memval.Value{}, err
	}
	top := s.tops[root]
	return top.value.Subset(begin, end), nil
}

// Put writes a value to the named register or alias. value's length must
// equal end-begin for that name. Writes to a register whose root is
// Constant are silently ignored. One change callback fires per distinct
// name in the root's notification set.
func (s *Set) Put(name string, value memval.Value) error {
	root, begin, end, err := s.resolve(name)
	if err != nil {
		return err
	}
	if value.Len() != end-begin {
		return fmt.Errorf("registers: write of %d bits to %q (%d bits) size mismatch", value.Len(), name, end-begin)
	}
	top := s.tops[root]
	if top.info.Constant {
		return nil
	}
	if err := top.value.Write(value, begin); err != nil {
		return err
	}
	if s.onChange != nil {
		for _, n := range top.notify {
			s.onChange(n)
		}
	}
	return nil
}

// Info returns the static identity of a top-level register.
func (s *Set) Info(name string) (Info, error) {
	top, ok := s.tops[name]
	if !ok {
		return Info{}, fmt.Errorf("registers: %q is not a top-level register", name)
	}
	return top.info, nil
}

// Names returns all top-level register names in creation order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Equal reports whether two sets have the same top-level register names
// and values.
func (s *Set) Equal(other *Set) bool {
	if len(s.tops) != len(other.tops) {
		return false
	}
	for name, top := range s.tops {
		otherTop, ok := other.tops[name]
		if !ok || !top.value.Equal(otherTop.value) {
			return false
		}
	}
	return true
}

// SnapshotJSON renders the set as a map from register name to hex string,
// per spec §3.1/§6 "Project snapshot".
func (s *Set) SnapshotJSON() map[string]string {
	out := make(map[string]string, len(s.tops))
	names := s.Names()
	sort.Strings(names)
	for _, name := range names {
		out["register_"+name] = s.tops[name].value.Hex()
	}
	return out
}

// LoadSnapshotJSON restores every top-level register from a "register_
// <name>" hex-string map produced by SnapshotJSON. Entries naming a
// register not present in this set, or a constant register, are skipped
// rather than treated as an error, since a snapshot taken against the same
// architecture formula names exactly this set's top-level registers.
func (s *Set) LoadSnapshotJSON(data map[string]string) error {
	for _, name := range s.Names() {
		hex, ok := data["register_"+name]
		if !ok {
			continue
		}
		top := s.tops[name]
		value, err := memval.ParseHex(hex, top.info.Size)
		if err != nil {
			return fmt.Errorf("registers: snapshot register %q: %w", name, err)
		}
		if err := s.Put(name, value); err != nil {
			return err
		}
	}
	return nil
}
