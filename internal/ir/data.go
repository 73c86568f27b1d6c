package ir

import (
	"github.com/lookbusy1344/riscv-sim/internal/ast"
	"github.com/lookbusy1344/riscv-sim/internal/memval"
)

// DataNode is the AST node produced by .word/.byte/.half/.space directives:
// a fixed memory-image payload with no registers involved.
type DataNode struct {
	ast.Base
	payload memval.Value
}

// NewDataNode wraps a pre-encoded payload as an AST node.
func NewDataNode(id string, payload memval.Value) *DataNode {
	return &DataNode{Base: ast.NewBase(ast.KindData, id), payload: payload}
}

func (d *DataNode) Validate() ast.ValidationResult { return ast.Ok }

func (d *DataNode) ValidateRuntime(ast.MemoryAccess) ast.ValidationResult { return ast.Ok }

func (d *DataNode) GetValue(ast.MemoryAccess) (memval.Value, error) { return d.payload, nil }

func (d *DataNode) Assemble() memval.Value { return d.payload }
