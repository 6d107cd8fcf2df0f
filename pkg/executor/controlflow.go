// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package executor

import (
	"github.com/gomlx/graphexec/pkg/core/graph"
	"github.com/gomlx/graphexec/pkg/support/sets"
	"github.com/gomlx/graphexec/pkg/support/xslices"
)

// workItem is a node activation scheduled in the dynamic execution, with the loop scope
// (frames and iterations) it was scheduled in.
type workItem struct {
	node  *graph.Node
	scope graph.Scope
}

// frameState tracks one loop frame (one frame id) during a dynamic execution.
type frameState struct {
	// invariants are the constant Enter nodes into the frame already executed.
	invariants []*graph.Node

	// iterations holds the scope of each iteration started, indexed by iteration.
	iterations []graph.Scope
}

// dynamicScheduler holds the worklist of a dynamic execution.
type dynamicScheduler struct {
	r         *run
	stack     []workItem
	scheduled sets.Set[string]
	frames    map[int]*frameState
}

// executeDynamic executes a graph with control flow.
//
// It uses a LIFO worklist seeded with the graph inputs. After a node executes, each of its children
// is scheduled in the current context if it wasn't yet scheduled there, and its inputs are available:
// all of them by default, any of them for Merge nodes.
//
// Loop invariants (constant Enter nodes) are executed once per frame, but their consumers are
// re-examined at every iteration of the frame.
//
// Nodes whose inputs never become available (e.g. the branch not taken by a Switch) are not executed.
func (r *run) executeDynamic() error {
	inputs := r.e.g.Inputs()
	s := &dynamicScheduler{
		r:         r,
		stack:     make([]workItem, 0, len(inputs)),
		scheduled: sets.Make[string](r.e.g.NumNodes()),
		frames:    make(map[int]*frameState),
	}
	for _, node := range inputs {
		s.push(node, r.ectx.Scope())
	}
	for len(s.stack) > 0 {
		var item workItem
		item, s.stack = xslices.Pop(s.stack)
		r.ectx.SetScope(item.scope)
		if err := r.executeNode(item.node); err != nil {
			return err
		}
		s.nodeExecuted(item.node, r.ectx.Scope())
	}
	return nil
}

// push schedules node in scope, if it wasn't scheduled there yet.
func (s *dynamicScheduler) push(node *graph.Node, scope graph.Scope) {
	if s.scheduled.InsertNew(graph.ContextKey(node.Name(), scope.ContextID())) {
		s.stack = append(s.stack, workItem{node: node, scope: scope})
	}
}

// nodeExecuted schedules the children of node that became ready, given the scope after node executed.
func (s *dynamicScheduler) nodeExecuted(node *graph.Node, scope graph.Scope) {
	innermost, inFrame := scope.Innermost()
	if !inFrame {
		s.scheduleChildren(node, scope)
		return
	}
	fs := s.frames[innermost.ID]
	if fs == nil {
		fs = &frameState{}
		s.frames[innermost.ID] = fs
	}
	if innermost.Iteration >= len(fs.iterations) {
		// A new iteration started: values of the loop invariants are visible there too.
		fs.iterations = append(fs.iterations, scope)
		for _, invariant := range fs.invariants {
			s.scheduleChildren(invariant, scope)
		}
	}
	if s.r.e.constantEnter[node.Index()] {
		fs.invariants = append(fs.invariants, node)
		for _, iterationScope := range fs.iterations {
			s.scheduleChildren(node, iterationScope)
		}
		return
	}
	s.scheduleChildren(node, scope)
}

// scheduleChildren pushes the children of node that are ready in scope.
func (s *dynamicScheduler) scheduleChildren(node *graph.Node, scope graph.Scope) {
	ectx := s.r.ectx
	ectx.SetScope(scope)
	contextID := scope.ContextID()
	for _, child := range node.Children() {
		if s.scheduled.Has(graph.ContextKey(child.Name(), contextID)) || !s.r.isReady(child) {
			continue
		}
		s.push(child, scope)
	}
}

// isReady returns whether the inputs of node are available in the current context.
// Merge nodes only need one data input.
func (r *run) isReady(node *graph.Node) bool {
	if node.Op() == graph.OpMerge {
		for _, ref := range node.InputNames() {
			if !graph.IsControlInput(ref) && r.tensorMap.Has(ref, r.ectx) {
				return true
			}
		}
		return false
	}
	for _, ref := range node.InputNames() {
		if !r.tensorMap.Has(ref, r.ectx) {
			return false
		}
	}
	return true
}
