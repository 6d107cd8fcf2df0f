// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ops defines the contract between the graph executors and the operator implementations
// (Kernel), a Registry mapping operator kinds to kernels, and a reference set of kernels.
//
// The reference kernels cover graph plumbing (Placeholder, Const, Identity), a few element-wise
// arithmetic, comparison and logical operations, and all the classic control-flow primitives
// (Switch, Merge, Enter, Exit, NextIteration and LoopCond). They are registered during
// initialization (`init` functions) and are available through DefaultRegistry.
//
// Kernels read their inputs with graph.TensorMap.Tensor, using the node's input references and the
// execution context, so values produced inside loop frames are resolved in the right iteration.
// Control-flow kernels forward (alias) their input tensors, they never copy them.
package ops

import (
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/graphexec/pkg/core/graph"
	"github.com/gomlx/graphexec/pkg/core/tensors"
	"github.com/gomlx/graphexec/pkg/support/xslices"
)

// Kernel executes one node: it reads its inputs from tensorMap (using ectx to resolve the loop frame)
// and returns the tensors produced, one per output slot. A slot may be nil if it was not produced.
//
// Loop-control kernels (Enter, Exit and NextIteration) are the only ones that change ectx.
//
// A Kernel may block (e.g. waiting on a device): the execution waits for it.
type Kernel func(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error)

// ErrUnsupportedOp is returned when executing a node whose operator kind has no registered kernel.
var ErrUnsupportedOp = errors.New("unsupported op")

// Registry maps operator kinds to kernels. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	kernels map[string]Kernel
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{kernels: make(map[string]Kernel)}
}

// defaultRegistry is populated during initialization with the reference kernels.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns a new Registry with the reference kernels.
// The returned Registry can be extended without affecting other users.
func DefaultRegistry() *Registry {
	return defaultRegistry.Clone()
}

// Register the kernel for the operator kind op, replacing any previous one.
// It returns the Registry itself, so calls can be chained.
func (r *Registry) Register(op string, kernel Kernel) *Registry {
	if kernel == nil {
		exceptions.Panicf("ops.Registry.Register(%q): nil kernel", op)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.kernels[op]; found {
		klog.V(1).Infof("ops.Registry: replacing kernel for op %q", op)
	}
	r.kernels[op] = kernel
	return r
}

// Lookup returns the kernel registered for op and whether it was found.
func (r *Registry) Lookup(op string) (kernel Kernel, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kernel, found = r.kernels[op]
	return
}

// Resolve returns the kernel registered for op, or a kernel that fails with ErrUnsupportedOp when invoked.
func (r *Registry) Resolve(op string) Kernel {
	if kernel, found := r.Lookup(op); found {
		return kernel
	}
	return func(node *graph.Node, _ graph.TensorMap, _ *graph.ExecutionContext) ([]*tensors.Tensor, error) {
		return nil, errors.Wrapf(ErrUnsupportedOp, "no kernel registered for op %q (node %q)", node.Op(), node.Name())
	}
}

// Clone returns a copy of the Registry. Changes to the copy don't affect the original.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewRegistry()
	for op, kernel := range r.kernels {
		clone.kernels[op] = kernel
	}
	return clone
}

// Ops returns the sorted operator kinds registered.
func (r *Registry) Ops() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return xslices.SortedKeys(r.kernels)
}

// Has returns whether all the given operator kinds are registered.
func (r *Registry) Has(ops ...string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !slices.ContainsFunc(ops, func(op string) bool {
		_, found := r.kernels[op]
		return !found
	})
}

// Run executes kernel on node, converting a panic carrying an error into a returned error.
// Panics with other values are propagated.
func Run(kernel Kernel, node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) (outputs []*tensors.Tensor, err error) {
	var kernelErr error
	err = exceptions.TryCatch[error](func() {
		outputs, kernelErr = kernel(node, tensorMap, ectx)
	})
	if err != nil {
		return nil, err
	}
	return outputs, kernelErr
}

// Input returns the tensor of the node's input at position idx, or an error if it's not available.
func Input(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext, idx int) (*tensors.Tensor, error) {
	if idx >= node.NumInputs() {
		return nil, errors.Errorf("node %q (%s) requires input #%d, but only %d inputs are defined",
			node.Name(), node.Op(), idx, node.NumInputs())
	}
	ref := node.InputNames()[idx]
	t := tensorMap.Tensor(ref, ectx)
	if t == nil {
		return nil, errors.Errorf("node %q (%s): input #%d %q is not available", node.Name(), node.Op(), idx, ref)
	}
	return t, nil
}

// Inputs returns the tensors of the first n inputs of the node, or an error if any is not available.
func Inputs(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext, n int) ([]*tensors.Tensor, error) {
	inputs := make([]*tensors.Tensor, n)
	for ii := range n {
		var err error
		inputs[ii], err = Input(node, tensorMap, ectx, ii)
		if err != nil {
			return nil, err
		}
	}
	return inputs, nil
}

// registerKernel is used by the `init` functions to populate the default registry.
func registerKernel(kernel Kernel, ops ...string) {
	for _, op := range ops {
		defaultRegistry.Register(op, kernel)
	}
}
