// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package executor runs dataflow graphs (see package graph), producing the requested output tensors.
//
// GraphExecutor owns a graph, the kernel resolved for each node, and the weights (the values of
// the Const nodes) handed over by a model loader. It executes the graph in one of two ways:
//
//   - Static replay: for graphs without control flow, a topological order is computed once, at
//     construction, and replayed by every call.
//   - Dynamic execution: for graphs with control-flow primitives (Switch, Merge, Enter, Exit,
//     NextIteration and LoopCond), a worklist schedules each node activation once all its inputs are
//     available (any input, for Merge), in the loop frame and iteration where it was produced.
//
// Example:
//
//	exec, err := executor.New(g)
//	if err != nil { ... }
//	exec.SetWeights(weights)
//	defer exec.Dispose()
//	outputs, err := exec.Execute(graph.TensorMap{"x": {tensors.FromValue([]float32{1, 2})}})
//
// Every tensor produced during a call, and not returned nor aliasing a weight or an input, is
// finalized before Execute returns.
//
// A GraphExecutor is safe for concurrent use: each call owns its tensor map and execution context.
package executor

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/graphexec/pkg/core/graph"
	"github.com/gomlx/graphexec/pkg/core/tensors"
	"github.com/gomlx/graphexec/pkg/ops"
	"github.com/gomlx/graphexec/pkg/support/sets"
	"github.com/gomlx/graphexec/pkg/support/xslices"
)

// ErrUnresolvedOutput is returned by Execute when a requested output was not produced.
var ErrUnresolvedOutput = errors.New("unresolved output")

// GraphExecutor executes a graph. Create it with New.
type GraphExecutor struct {
	name    string
	g       *graph.Graph
	metrics *Metrics

	// kernels are indexed by node.Index().
	kernels []ops.Kernel

	// constantEnter is indexed by node.Index(): whether the node is an Enter of a loop invariant.
	constantEnter []bool

	// order of execution for graphs without control flow. Nil otherwise.
	order []*graph.Node

	// mu protects weights: Execute holds it for reading.
	mu       sync.RWMutex
	weights  graph.TensorMap
	disposed bool
}

// New creates a GraphExecutor for g.
//
// Kernels are resolved once per node from the registry: nodes whose op has no kernel only fail
// (with ops.ErrUnsupportedOp) if they are executed.
func New(g *graph.Graph, opts ...Option) (*GraphExecutor, error) {
	if g == nil {
		return nil, errors.New("executor.New: nil graph")
	}
	o := collectOptions(opts...)
	e := &GraphExecutor{
		name:          o.name,
		g:             g,
		metrics:       o.metrics,
		kernels:       make([]ops.Kernel, g.NumNodes()),
		constantEnter: make([]bool, g.NumNodes()),
		weights:       make(graph.TensorMap),
	}
	if e.name == "" {
		e.name = "graph"
	}
	unsupported := sets.Make[string]()
	for _, node := range g.Nodes() {
		kernel, found := o.registry.Lookup(node.Op())
		if !found {
			unsupported.Insert(node.Op())
			kernel = o.registry.Resolve(node.Op())
		}
		e.kernels[node.Index()] = kernel
		if node.Op() == graph.OpEnter {
			isConstant, err := graph.ParamBoolOr(node, "isConstant", false)
			if err != nil {
				return nil, errors.WithMessagef(err, "executor.New(%q)", e.name)
			}
			e.constantEnter[node.Index()] = isConstant
		}
	}
	if len(unsupported) > 0 {
		klog.Warningf("executor %q: no kernel registered for ops %v", e.name, xslices.SortedKeys(unsupported))
	}
	if !g.WithControlFlow() {
		e.order = compile(g)
	}
	klog.V(1).Infof("executor %q created: %s, %d nodes in static order", e.name, g, len(e.order))
	return e, nil
}

// Name of the executor, as given by WithName. Defaults to "graph".
func (e *GraphExecutor) Name() string { return e.name }

// Graph executed.
func (e *GraphExecutor) Graph() *graph.Graph { return e.g }

// CompiledOrder returns a copy of the static execution order, or nil if the graph has control flow.
func (e *GraphExecutor) CompiledOrder() []*graph.Node {
	if e.order == nil {
		return nil
	}
	return append([]*graph.Node(nil), e.order...)
}

// SetWeights hands over the weights (values of the Const nodes, keyed by node name) to the executor.
// The executor takes ownership: they are finalized by Dispose.
// Previously set weights are replaced, not finalized.
//
// It waits for executions in progress.
func (e *GraphExecutor) SetWeights(weights graph.TensorMap) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if weights == nil {
		weights = make(graph.TensorMap)
	}
	e.weights = weights
	e.disposed = false
	if klog.V(1).Enabled() {
		var memory uintptr
		weights.AllTensors(func(t *tensors.Tensor) {
			if t.Ok() {
				memory += t.Memory()
			}
		})
		klog.Infof("executor %q: %d weights set, %s", e.name, len(weights), humanize.Bytes(uint64(memory)))
	}
}

// Weights returns the weights owned by the executor. They must not be changed.
func (e *GraphExecutor) Weights() graph.TensorMap {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weights
}

// Dispose finalizes the weights. It is idempotent, and it waits for executions in progress.
func (e *GraphExecutor) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	var memory uintptr
	finalized := sets.Make[*tensors.Tensor]()
	e.weights.AllTensors(func(t *tensors.Tensor) {
		if !finalized.InsertNew(t) {
			return
		}
		if t.IsFinalized() {
			klog.Warningf("executor %q: Dispose found weight already finalized", e.name)
			return
		}
		memory += t.Memory()
		t.FinalizeAll()
	})
	klog.V(1).Infof("executor %q disposed: %d weight tensors, %s freed", e.name, len(finalized),
		humanize.Bytes(uint64(memory)))
	e.weights = make(graph.TensorMap)
	e.disposed = true
}

// Execute the graph with the given inputs (keyed by the node names they feed), and returns the requested
// outputs. Each output is given as "name" or "name:slot", and the returned map is keyed by them.
// If no outputs are given, the graph's default outputs are returned.
//
// Inputs take precedence over weights with the same name. Inputs and weights are never finalized;
// any other tensor produced during the execution and not returned is.
//
// It returns an error wrapping ErrUnresolvedOutput if any of the requested outputs was not produced,
// or the error of the first node that failed.
func (e *GraphExecutor) Execute(inputs graph.TensorMap, outputs ...string) (map[string]*tensors.Tensor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.disposed {
		return nil, errors.Errorf("executor %q: Execute called after Dispose", e.name)
	}
	if len(outputs) == 0 {
		outputs = e.g.OutputNames()
	}
	for name, values := range inputs {
		for ii, t := range values {
			if t != nil && t.IsFinalized() {
				return nil, errors.Errorf("executor %q: input %q #%d was already finalized", e.name, name, ii)
			}
		}
	}

	r := newRun(e, inputs)
	path := PathStatic
	if e.g.WithControlFlow() {
		path = PathDynamic
	}
	klog.V(2).Infof("executor %q run %s: executing %s path, outputs %q", e.name, r.id, path, outputs)
	start := time.Now()
	var err error
	if path == PathStatic {
		err = r.executeStatic()
	} else {
		err = r.executeDynamic()
	}
	elapsed := time.Since(start)
	e.metrics.executionDone(path, elapsed)
	if err != nil {
		r.release(nil)
		return nil, errors.WithMessagef(err, "executor %q", e.name)
	}

	results := make(map[string]*tensors.Tensor, len(outputs))
	var missing []string
	for _, ref := range outputs {
		t := r.tensorMap.Tensor(ref, nil)
		if t == nil {
			missing = append(missing, ref)
			continue
		}
		results[ref] = t
	}
	if len(missing) > 0 {
		e.metrics.outputsUnresolved(len(missing))
		r.release(nil)
		return nil, errors.Wrapf(ErrUnresolvedOutput, "executor %q: outputs %q not produced from inputs %q",
			e.name, missing, xslices.SortedKeys(inputs))
	}
	numReleased := r.release(results)
	klog.V(1).Infof("executor %q run %s: %s path, %d nodes executed in %s, %d intermediate tensors released",
		e.name, r.id, path, r.numExecuted, elapsed, numReleased)
	return results, nil
}

// Call is like Execute, but panics on errors.
func (e *GraphExecutor) Call(inputs graph.TensorMap, outputs ...string) map[string]*tensors.Tensor {
	return must.M1(e.Execute(inputs, outputs...))
}

// String implements fmt.Stringer.
func (e *GraphExecutor) String() string {
	return fmt.Sprintf("GraphExecutor(%q, %s)", e.name, e.g)
}

// run holds the state of one Execute call.
type run struct {
	e         *GraphExecutor
	id        string
	inputs    graph.TensorMap
	tensorMap graph.TensorMap
	ectx      *graph.ExecutionContext

	// produced lists every tensor returned by a kernel, possibly repeated.
	produced    []*tensors.Tensor
	numExecuted int
}

func newRun(e *GraphExecutor, inputs graph.TensorMap) *run {
	tensorMap := e.weights.Clone()
	for name, values := range inputs {
		tensorMap[name] = values
	}
	return &run{
		e:         e,
		id:        uuid.NewString(),
		inputs:    inputs,
		tensorMap: tensorMap,
		ectx:      graph.NewExecutionContext(),
	}
}

// executeNode runs the kernel of node and stores its outputs in the tensor map, in the
// context after the kernel ran: this way Exit stores values in the enclosing frame, and
// NextIteration in the next iteration.
// Enter nodes of loop invariants store in the context before entering the frame, so they are
// visible in every iteration.
func (r *run) executeNode(node *graph.Node) error {
	e := r.e
	scopeBefore := r.ectx.Scope()
	outputs, err := ops.Run(e.kernels[node.Index()], node, r.tensorMap, r.ectx)
	if err != nil {
		e.metrics.operatorFailed(node.Op())
		return errors.WithMessagef(err, "executing node %q (%s)", node.Name(), node.Op())
	}
	for _, t := range outputs {
		if t != nil {
			r.produced = append(r.produced, t)
		}
	}
	if e.constantEnter[node.Index()] {
		scopeAfter := r.ectx.Scope()
		r.ectx.SetScope(scopeBefore)
		r.tensorMap.Store(node.Name(), r.ectx, outputs)
		r.ectx.SetScope(scopeAfter)
	} else {
		r.tensorMap.Store(node.Name(), r.ectx, outputs)
	}
	r.numExecuted++
	e.metrics.nodeExecuted(node.Op())
	if klog.V(2).Enabled() {
		klog.Infof("run %s: executed %s, frame=%d iteration=%d, %d outputs",
			r.id, node, r.ectx.FrameID(), r.ectx.IterationID(), len(outputs))
	}
	return nil
}

// release finalizes the tensors produced during the run, except those that are also
// returned in results, weights or caller inputs. It returns the number of tensors finalized.
func (r *run) release(results map[string]*tensors.Tensor) int {
	keep := sets.Make[*tensors.Tensor]()
	for _, t := range results {
		keep.Insert(t)
	}
	r.e.weights.AllTensors(func(t *tensors.Tensor) { keep.Insert(t) })
	r.inputs.AllTensors(func(t *tensors.Tensor) { keep.Insert(t) })
	count := 0
	for _, t := range r.produced {
		if keep.InsertNew(t) {
			t.FinalizeAll()
			count++
		}
	}
	r.produced = nil
	return count
}
