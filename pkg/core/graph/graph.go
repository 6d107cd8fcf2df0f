// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph holds the data model of an immutable dataflow graph, and the state shared by
// the operators while the graph is executed.
//
// The main elements in the package are:
//
//   - Node: a named operator with ordered input references ("name" or "name:slot"), the resolved
//     input nodes, the consumers of its outputs (its children) and a static parameter map.
//   - Graph: the immutable collection of nodes, with its distinguished inputs and outputs. It is
//     created with a Builder, usually by a model loader.
//   - ExecutionContext: the loop frame stack (frame and iteration ids) of one execution.
//   - TensorMap: the values produced during one execution, keyed by node name qualified by the
//     loop frame in which they were produced.
//
// Graphs lowered with the classic control-flow primitives (Switch, Merge, Enter, Exit,
// NextIteration and LoopCond) are flagged with Graph.WithControlFlow, and need the dynamic
// executor of package executor.
//
// # Error Handling
//
// Building a graph returns errors. Only duplicate node names and unknown explicit outputs are
// detected: dangling input references are allowed, and nodes depending on them are simply
// never executed.
package graph

import (
	"fmt"
	"slices"
	"strings"
)

// Graph is an immutable dataflow graph, safe for concurrent use.
type Graph struct {
	nodes           []*Node
	nodesByName     map[string]*Node
	inputs, outputs []*Node
	outputNames     []string
	withControlFlow bool
}

// Node returns the node with the given name, or nil if there is none.
func (g *Graph) Node(name string) *Node {
	return g.nodesByName[name]
}

// Nodes returns all nodes in definition order. The returned slice must not be changed.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Inputs returns the root nodes, from which execution starts.
func (g *Graph) Inputs() []*Node { return g.inputs }

// Outputs returns the default outputs, extracted when Execute is called without explicit output names.
func (g *Graph) Outputs() []*Node { return g.outputs }

// OutputNames returns the references ("name" or "name:slot") of the default outputs.
func (g *Graph) OutputNames() []string {
	return slices.Clone(g.outputNames)
}

// WithControlFlow returns whether the graph uses control-flow primitives, and hence needs dynamic execution.
func (g *Graph) WithControlFlow() bool { return g.withControlFlow }

// String implements fmt.Stringer, with a short summary of the graph.
func (g *Graph) String() string {
	inputNames := make([]string, len(g.inputs))
	for ii, node := range g.inputs {
		inputNames[ii] = node.name
	}
	return fmt.Sprintf("Graph(#nodes=%d, inputs=[%s], outputs=[%s], controlFlow=%v)",
		len(g.nodes), strings.Join(inputNames, ", "), strings.Join(g.OutputNames(), ", "), g.withControlFlow)
}
