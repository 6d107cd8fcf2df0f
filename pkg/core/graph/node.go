// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator kinds of the classic control-flow primitives.
//
// A graph containing any of them is executed with the dynamic executor.
const (
	OpSwitch        = "Switch"
	OpMerge         = "Merge"
	OpEnter         = "Enter"
	OpExit          = "Exit"
	OpNextIteration = "NextIteration"
	OpLoopCond      = "LoopCond"
)

// IsControlFlowOp returns whether op is one of the control-flow primitives.
func IsControlFlowOp(op string) bool {
	switch op {
	case OpSwitch, OpMerge, OpEnter, OpExit, OpNextIteration, OpLoopCond:
		return true
	}
	return false
}

// NodeDef is the definition of a node, as handed to Builder.Add by a model loader.
type NodeDef struct {
	// Name of the node, unique in the graph. It can't contain ':' or '@'.
	Name string

	// Op is the operator kind, used to select the kernel that executes the node.
	Op string

	// Category is informational only, e.g.: "graph", "arithmetic", "control".
	Category string

	// Inputs are references to the producing nodes, in the form "name" or "name:slot".
	// A reference prefixed with '^' is a control dependency.
	Inputs []string

	// Params holds the static configuration of the operator.
	Params map[string]any
}

// Node of a dataflow graph. It is immutable once the graph is built.
type Node struct {
	name, op, category string
	index              int
	inputNames         []string
	inputs             []*Node
	children           []*Node
	params             map[string]any
}

// Name of the node, unique within its graph.
func (n *Node) Name() string { return n.name }

// Op returns the operator kind of the node.
func (n *Node) Op() string { return n.op }

// Category returns the informational category tag of the node.
func (n *Node) Category() string { return n.category }

// Index is the position of the node in the graph's definition order.
func (n *Node) Index() int { return n.index }

// InputNames returns the input references of the node, as given in its definition.
// The returned slice must not be changed.
func (n *Node) InputNames() []string { return n.inputNames }

// Inputs returns the resolved input nodes, positionally aligned with InputNames.
// An entry is nil if the reference doesn't name a node of the graph.
func (n *Node) Inputs() []*Node { return n.inputs }

// Children returns the nodes consuming any of this node's outputs, in definition order.
// A consumer referencing the node more than once is listed once.
func (n *Node) Children() []*Node { return n.children }

// NumInputs returns the number of input references.
func (n *Node) NumInputs() int { return len(n.inputNames) }

// Params returns the parameter map of the node. It must not be changed.
func (n *Node) Params() map[string]any { return n.params }

// Param returns the parameter value for key and whether it is set.
func (n *Node) Param(key string) (value any, found bool) {
	value, found = n.params[key]
	return
}

// IsControlFlow returns whether the node is one of the control-flow primitives.
func (n *Node) IsControlFlow() bool { return IsControlFlowOp(n.op) }

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	return fmt.Sprintf("Node(%q, %s)", n.name, n.op)
}

// ParseNodeName splits an input reference into the producing node name and the output slot.
//
//   - "a" -> ("a", 0)
//   - "a:1" -> ("a", 1)
//   - "^a" -> ("a", 0): control dependency.
//
// A suffix that is not a non-negative integer is kept as part of the name.
func ParseNodeName(ref string) (name string, slot int) {
	ref = strings.TrimPrefix(ref, "^")
	colon := strings.LastIndexByte(ref, ':')
	if colon < 0 {
		return ref, 0
	}
	index, err := strconv.Atoi(ref[colon+1:])
	if err != nil || index < 0 {
		return ref, 0
	}
	return ref[:colon], index
}

// IsControlInput returns whether the input reference is a control dependency ("^name"):
// it orders execution but carries no tensor.
func IsControlInput(ref string) bool {
	return strings.HasPrefix(ref, "^")
}
