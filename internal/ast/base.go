package ast

// Base implements the bookkeeping shared by every concrete node: its kind,
// stable id and children. Concrete node types embed Base and implement only
// Validate/ValidateRuntime/GetValue/Assemble.
type Base struct {
	kind     Kind
	id       string
	children []Node
}

// NewBase constructs a Base with the given kind, id and children.
func NewBase(kind Kind, id string, children ...Node) Base {
	return Base{kind: kind, id: id, children: children}
}

func (b Base) Kind() Kind        { return b.kind }
func (b Base) ID() string        { return b.id }
func (b Base) Children() []Node  { return b.children }
