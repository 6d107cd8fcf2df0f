// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package executor

import (
	"github.com/gomlx/graphexec/pkg/core/graph"
	"github.com/gomlx/graphexec/pkg/support/sets"
	"github.com/gomlx/graphexec/pkg/support/xslices"
)

// compile returns the static execution order of a graph without control flow.
//
// It's a topological order over the nodes reachable from the graph inputs, built with a LIFO stack
// seeded with the inputs: a child is scheduled once all its inputs were visited, and only if it
// wasn't scheduled before. Nodes depending on dangling references are never scheduled.
func compile(g *graph.Graph) []*graph.Node {
	order := make([]*graph.Node, 0, g.NumNodes())
	visited := sets.Make[*graph.Node](g.NumNodes())
	scheduled := sets.Make[*graph.Node](g.NumNodes())
	stack := make([]*graph.Node, 0, len(g.Inputs()))
	for _, node := range g.Inputs() {
		if scheduled.InsertNew(node) {
			stack = append(stack, node)
		}
	}
	for len(stack) > 0 {
		var node *graph.Node
		node, stack = xslices.Pop(stack)
		visited.Insert(node)
		order = append(order, node)
		for _, child := range node.Children() {
			if scheduled.Has(child) || !allInputsVisited(child, visited) {
				continue
			}
			scheduled.Insert(child)
			stack = append(stack, child)
		}
	}
	return order
}

func allInputsVisited(node *graph.Node, visited sets.Set[*graph.Node]) bool {
	for _, input := range node.Inputs() {
		if input == nil || !visited.Has(input) {
			return false
		}
	}
	return true
}

// executeStatic replays the compiled order, with the execution context at the top level.
func (r *run) executeStatic() error {
	for _, node := range r.e.order {
		if err := r.executeNode(node); err != nil {
			return err
		}
	}
	return nil
}
