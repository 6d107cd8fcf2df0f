// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/gomlx/graphexec/pkg/core/graph"
	"github.com/gomlx/graphexec/pkg/core/tensors"
)

func init() {
	registerKernel(execPlaceholder, "Placeholder", "placeholder")
	registerKernel(execConst, "Const", "const")
	registerKernel(execIdentity, "Identity", "StopGradient", "Snapshot")
	registerKernel(execNoOp, "NoOp")
}

// execPlaceholder returns the value fed for the node (by the caller inputs), or
// its "default" parameter.
func execPlaceholder(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
	if fed := tensorMap.Tensor(node.Name(), ectx); fed != nil {
		return []*tensors.Tensor{fed}, nil
	}
	t, err := paramTensor(node, "default")
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.Errorf("placeholder %q was not fed and has no default value", node.Name())
	}
	return []*tensors.Tensor{t}, nil
}

// execConst returns the weight stored for the node, or its "value" parameter.
func execConst(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
	if weight := tensorMap.Tensor(node.Name(), ectx); weight != nil {
		return []*tensors.Tensor{weight}, nil
	}
	t, err := paramTensor(node, "value")
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.Errorf("const %q has no weight loaded and no value parameter", node.Name())
	}
	return []*tensors.Tensor{t}, nil
}

// paramTensor converts the parameter key to a new tensor. The parameter can be a *tensors.Tensor
// (which is cloned) or any value accepted by tensors.FromAnyValue.
// It returns nil if the parameter is not set.
func paramTensor(node *graph.Node, key string) (t *tensors.Tensor, err error) {
	value, found := node.Param(key)
	if !found || value == nil {
		return nil, nil
	}
	if paramT, ok := value.(*tensors.Tensor); ok {
		if !paramT.Ok() {
			return nil, errors.Errorf("node %q (%s): parameter %q holds a finalized tensor", node.Name(), node.Op(), key)
		}
		return paramT.Clone(), nil
	}
	err = exceptions.TryCatch[error](func() { t = tensors.FromAnyValue(value) })
	if err != nil {
		return nil, errors.WithMessagef(err, "node %q (%s): parameter %q", node.Name(), node.Op(), key)
	}
	return t, nil
}

// execIdentity forwards its first input.
func execIdentity(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
	input, err := Input(node, tensorMap, ectx, 0)
	if err != nil {
		return nil, err
	}
	return []*tensors.Tensor{input}, nil
}

// execNoOp produces no outputs: it's only used for control dependencies.
func execNoOp(*graph.Node, graph.TensorMap, *graph.ExecutionContext) ([]*tensors.Tensor, error) {
	return []*tensors.Tensor{}, nil
}
