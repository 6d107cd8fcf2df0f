// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/graphexec/pkg/core/graph"
	"github.com/gomlx/graphexec/pkg/core/tensors"
)

func init() {
	registerKernel(execLogicalNot, "LogicalNot", "logicalNot")
	registerKernel(newLogicalKernel(func(a, b bool) bool { return a && b }), "LogicalAnd", "logicalAnd")
	registerKernel(newLogicalKernel(func(a, b bool) bool { return a || b }), "LogicalOr", "logicalOr")
}

func execLogicalNot(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
	input, err := Input(node, tensorMap, ectx, 0)
	if err != nil {
		return nil, err
	}
	if input.DType() != dtypes.Bool {
		return nil, errors.Errorf("node %q (%s): operand must be Bool, got %s", node.Name(), node.Op(), input.DType())
	}
	flat := tensors.CopyFlatData[bool](input)
	for ii, v := range flat {
		flat[ii] = !v
	}
	return []*tensors.Tensor{tensors.FromFlatDataAndDimensions(flat, input.Shape().Dimensions...)}, nil
}

func newLogicalKernel(fn func(a, b bool) bool) Kernel {
	return func(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
		lhs, rhs, outputDims, err := binaryOperands(node, tensorMap, ectx)
		if err != nil {
			return nil, err
		}
		if lhs.DType() != dtypes.Bool {
			return nil, errors.Errorf("node %q (%s): operands must be Bool, got %s", node.Name(), node.Op(), lhs.DType())
		}
		return []*tensors.Tensor{execBinaryGeneric(lhs, rhs, outputDims, fn)}, nil
	}
}

// scalarBool returns the value of a boolean scalar, used as predicate by control-flow nodes.
func scalarBool(node *graph.Node, t *tensors.Tensor) (bool, error) {
	if t.DType() != dtypes.Bool || t.Size() != 1 {
		return false, errors.Errorf("node %q (%s): predicate must be a Bool scalar, got %s", node.Name(), node.Op(), t.Shape())
	}
	return tensors.CopyFlatData[bool](t)[0], nil
}
