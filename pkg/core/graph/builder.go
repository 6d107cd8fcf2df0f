// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"maps"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/gomlx/graphexec/pkg/support/sets"
)

// Builder collects node definitions and builds an immutable Graph.
// A Builder can only be built once.
type Builder struct {
	nodes       []*Node
	nodesByName map[string]*Node
	inputNames  []string
	built       bool
}

// NewBuilder returns an empty graph Builder.
func NewBuilder() *Builder {
	return &Builder{nodesByName: make(map[string]*Node)}
}

// Add a node definition. Input references may name nodes not yet added (or never added).
//
// It returns an error for an empty, malformed or duplicate name.
func (b *Builder) Add(def NodeDef) error {
	if b.built {
		return errors.Errorf("graph.Builder: can't add node %q, graph already built", def.Name)
	}
	if def.Name == "" {
		return errors.Errorf("graph.Builder: node with op %q has an empty name", def.Op)
	}
	if strings.ContainsAny(def.Name, ":@^") {
		return errors.Errorf("graph.Builder: invalid node name %q, it can't contain ':', '@' or '^'", def.Name)
	}
	if _, found := b.nodesByName[def.Name]; found {
		return errors.Errorf("graph.Builder: duplicate node name %q", def.Name)
	}
	node := &Node{
		name:       def.Name,
		op:         def.Op,
		category:   def.Category,
		index:      len(b.nodes),
		inputNames: slices.Clone(def.Inputs),
		params:     maps.Clone(def.Params),
	}
	if node.params == nil {
		node.params = make(map[string]any)
	}
	b.nodes = append(b.nodes, node)
	b.nodesByName[node.name] = node
	return nil
}

// AddNodes adds each of the definitions, stopping at the first error.
func (b *Builder) AddNodes(defs ...NodeDef) error {
	for _, def := range defs {
		if err := b.Add(def); err != nil {
			return err
		}
	}
	return nil
}

// SetInputs overrides the graph inputs (the roots where execution starts).
// By default, they are the nodes without input references, in definition order.
func (b *Builder) SetInputs(names ...string) *Builder {
	b.inputNames = slices.Clone(names)
	return b
}

// Build the graph: resolves the input references, derives the children of each node,
// the inputs and the outputs.
//
// If outputNames is empty, the outputs are all nodes without children, in definition order.
func (b *Builder) Build(outputNames ...string) (*Graph, error) {
	if b.built {
		return nil, errors.New("graph.Builder: Build called more than once")
	}
	b.built = true
	g := &Graph{
		nodes:       b.nodes,
		nodesByName: b.nodesByName,
	}

	for _, node := range g.nodes {
		node.inputs = make([]*Node, len(node.inputNames))
		seenParents := sets.Make[*Node](len(node.inputNames))
		for ii, ref := range node.inputNames {
			name, _ := ParseNodeName(ref)
			parent := g.nodesByName[name]
			node.inputs[ii] = parent
			if parent != nil && seenParents.InsertNew(parent) {
				parent.children = append(parent.children, node)
			}
		}
		if node.IsControlFlow() {
			g.withControlFlow = true
		}
	}

	if len(b.inputNames) > 0 {
		for _, name := range b.inputNames {
			node := g.nodesByName[name]
			if node == nil {
				return nil, errors.Errorf("graph.Builder: unknown input node %q", name)
			}
			g.inputs = append(g.inputs, node)
		}
	} else {
		for _, node := range g.nodes {
			if len(node.inputNames) == 0 {
				g.inputs = append(g.inputs, node)
			}
		}
	}

	if len(outputNames) > 0 {
		for _, ref := range outputNames {
			name, _ := ParseNodeName(ref)
			node := g.nodesByName[name]
			if node == nil {
				return nil, errors.Errorf("graph.Builder: unknown output node %q", ref)
			}
			g.outputs = append(g.outputs, node)
			g.outputNames = append(g.outputNames, ref)
		}
	} else {
		for _, node := range g.nodes {
			if len(node.children) == 0 {
				g.outputs = append(g.outputs, node)
				g.outputNames = append(g.outputNames, node.name)
			}
		}
	}
	return g, nil
}

// Build is a shortcut to create a graph from the given definitions, with the default inputs and outputs.
func Build(defs ...NodeDef) (*Graph, error) {
	b := NewBuilder()
	if err := b.AddNodes(defs...); err != nil {
		return nil, err
	}
	return b.Build()
}
