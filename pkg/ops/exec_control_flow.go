// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/pkg/errors"

	"github.com/gomlx/graphexec/pkg/core/graph"
	"github.com/gomlx/graphexec/pkg/core/tensors"
)

// Control-flow primitives, as lowered by TensorFlow v1 `tf.cond` and `tf.while_loop`.
// All of them forward their input tensors: they never allocate.

func init() {
	registerKernel(execSwitch, graph.OpSwitch)
	registerKernel(execMerge, graph.OpMerge)
	registerKernel(execEnter, graph.OpEnter)
	registerKernel(execExit, graph.OpExit)
	registerKernel(execNextIteration, graph.OpNextIteration)
	registerKernel(execLoopCond, graph.OpLoopCond)
}

// execSwitch routes its data input (input #0) to output slot 1 if the predicate (input #1) is true,
// or to slot 0 otherwise. The other slot is left empty.
func execSwitch(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
	inputs, err := Inputs(node, tensorMap, ectx, 2)
	if err != nil {
		return nil, err
	}
	pred, err := scalarBool(node, inputs[1])
	if err != nil {
		return nil, err
	}
	if pred {
		return []*tensors.Tensor{nil, inputs[0]}, nil
	}
	return []*tensors.Tensor{inputs[0], nil}, nil
}

// execMerge forwards the first of its inputs available, and the index of that input
// as an Int32 scalar in output slot 1.
func execMerge(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
	for ii, ref := range node.InputNames() {
		if graph.IsControlInput(ref) {
			continue
		}
		if t := tensorMap.Tensor(ref, ectx); t != nil {
			return []*tensors.Tensor{t, tensors.FromScalar(int32(ii))}, nil
		}
	}
	return nil, errors.Errorf("merge %q: none of its inputs %q is available", node.Name(), node.InputNames())
}

// execEnter forwards its input into the loop frame given by the "frameName" parameter.
func execEnter(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
	input, err := Input(node, tensorMap, ectx, 0)
	if err != nil {
		return nil, err
	}
	frameName, err := graph.ParamStringOr(node, "frameName", "")
	if err != nil {
		return nil, err
	}
	if frameName == "" {
		return nil, errors.Errorf("enter %q: missing frameName parameter", node.Name())
	}
	ectx.EnterFrame(frameName)
	return []*tensors.Tensor{input}, nil
}

// execExit forwards its input out of the current loop frame.
func execExit(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
	input, err := Input(node, tensorMap, ectx, 0)
	if err != nil {
		return nil, err
	}
	if err = ectx.ExitFrame(); err != nil {
		return nil, errors.WithMessagef(err, "exit %q", node.Name())
	}
	return []*tensors.Tensor{input}, nil
}

// execNextIteration forwards its input to the next iteration of the current loop frame.
func execNextIteration(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
	input, err := Input(node, tensorMap, ectx, 0)
	if err != nil {
		return nil, err
	}
	if err = ectx.NextIteration(); err != nil {
		return nil, errors.WithMessagef(err, "next iteration %q", node.Name())
	}
	return []*tensors.Tensor{input}, nil
}

// execLoopCond forwards the loop predicate.
func execLoopCond(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
	pred, err := Input(node, tensorMap, ectx, 0)
	if err != nil {
		return nil, err
	}
	return []*tensors.Tensor{pred}, nil
}
