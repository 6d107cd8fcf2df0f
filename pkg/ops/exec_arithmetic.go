// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"

	"github.com/gomlx/graphexec/pkg/core/graph"
	"github.com/gomlx/graphexec/pkg/core/shapes"
	"github.com/gomlx/graphexec/pkg/core/tensors"
)

// This file implements the element-wise binary operations.
// Operands must have the same dtype, and either the same shape or one of them must be a scalar.

type arithmeticOp int

const (
	opAdd arithmeticOp = iota
	opSub
	opMul
)

type compareOp int

const (
	opLess compareOp = iota
	opLessEqual
	opGreater
	opGreaterEqual
	opEqual
	opNotEqual
)

func init() {
	registerKernel(newArithmeticKernel(opAdd), "Add", "AddV2", "add")
	registerKernel(newArithmeticKernel(opSub), "Sub", "sub")
	registerKernel(newArithmeticKernel(opMul), "Mul", "mul")
	registerKernel(newCompareKernel(opLess), "Less", "less")
	registerKernel(newCompareKernel(opLessEqual), "LessEqual")
	registerKernel(newCompareKernel(opGreater), "Greater", "greater")
	registerKernel(newCompareKernel(opGreaterEqual), "GreaterEqual")
	registerKernel(newCompareKernel(opEqual), "Equal", "equal")
	registerKernel(newCompareKernel(opNotEqual), "NotEqual")
}

func arithmeticFn[T constraints.Integer | constraints.Float](op arithmeticOp) func(a, b T) T {
	switch op {
	case opAdd:
		return func(a, b T) T { return a + b }
	case opSub:
		return func(a, b T) T { return a - b }
	default:
		return func(a, b T) T { return a * b }
	}
}

func compareFn[T constraints.Ordered](op compareOp) func(a, b T) bool {
	switch op {
	case opLess:
		return func(a, b T) bool { return a < b }
	case opLessEqual:
		return func(a, b T) bool { return a <= b }
	case opGreater:
		return func(a, b T) bool { return a > b }
	case opGreaterEqual:
		return func(a, b T) bool { return a >= b }
	case opEqual:
		return func(a, b T) bool { return a == b }
	default:
		return func(a, b T) bool { return a != b }
	}
}

// float16Fn adapts a float32 binary function to float16 operands.
func float16Fn[O any](fn func(a, b float32) O) func(a, b float16.Float16) O {
	return func(a, b float16.Float16) O { return fn(a.Float32(), b.Float32()) }
}

func newArithmeticKernel(op arithmeticOp) Kernel {
	return func(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
		lhs, rhs, outputDims, err := binaryOperands(node, tensorMap, ectx)
		if err != nil {
			return nil, err
		}
		var output *tensors.Tensor
		switch lhs.DType() {
		case dtypes.Int32:
			output = execBinaryGeneric(lhs, rhs, outputDims, arithmeticFn[int32](op))
		case dtypes.Int64:
			output = execBinaryGeneric(lhs, rhs, outputDims, arithmeticFn[int64](op))
		case dtypes.Float32:
			output = execBinaryGeneric(lhs, rhs, outputDims, arithmeticFn[float32](op))
		case dtypes.Float64:
			output = execBinaryGeneric(lhs, rhs, outputDims, arithmeticFn[float64](op))
		case dtypes.Float16:
			fn32 := arithmeticFn[float32](op)
			output = execBinaryGeneric(lhs, rhs, outputDims, float16Fn(func(a, b float32) float16.Float16 {
				return float16.Fromfloat32(fn32(a, b))
			}))
		default:
			return nil, errors.Errorf("node %q (%s): dtype %s not supported", node.Name(), node.Op(), lhs.DType())
		}
		return []*tensors.Tensor{output}, nil
	}
}

func newCompareKernel(op compareOp) Kernel {
	return func(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) ([]*tensors.Tensor, error) {
		lhs, rhs, outputDims, err := binaryOperands(node, tensorMap, ectx)
		if err != nil {
			return nil, err
		}
		var output *tensors.Tensor
		switch lhs.DType() {
		case dtypes.Int32:
			output = execBinaryGeneric(lhs, rhs, outputDims, compareFn[int32](op))
		case dtypes.Int64:
			output = execBinaryGeneric(lhs, rhs, outputDims, compareFn[int64](op))
		case dtypes.Float32:
			output = execBinaryGeneric(lhs, rhs, outputDims, compareFn[float32](op))
		case dtypes.Float64:
			output = execBinaryGeneric(lhs, rhs, outputDims, compareFn[float64](op))
		case dtypes.Float16:
			output = execBinaryGeneric(lhs, rhs, outputDims, float16Fn(compareFn[float32](op)))
		case dtypes.Bool:
			if op != opEqual && op != opNotEqual {
				return nil, errors.Errorf("node %q (%s): ordered comparison of booleans not supported", node.Name(), node.Op())
			}
			notEqual := op == opNotEqual
			output = execBinaryGeneric(lhs, rhs, outputDims, func(a, b bool) bool { return (a == b) != notEqual })
		default:
			return nil, errors.Errorf("node %q (%s): dtype %s not supported", node.Name(), node.Op(), lhs.DType())
		}
		return []*tensors.Tensor{output}, nil
	}
}

// binaryOperands returns the two operands of an element-wise binary node and the dimensions of the output.
func binaryOperands(node *graph.Node, tensorMap graph.TensorMap, ectx *graph.ExecutionContext) (
	lhs, rhs *tensors.Tensor, outputDims []int, err error) {
	var inputs []*tensors.Tensor
	inputs, err = Inputs(node, tensorMap, ectx, 2)
	if err != nil {
		return
	}
	lhs, rhs = inputs[0], inputs[1]
	lhsShape, rhsShape := lhs.Shape(), rhs.Shape()
	if lhsShape.DType != rhsShape.DType {
		err = errors.Errorf("node %q (%s): operands have different dtypes, %s and %s",
			node.Name(), node.Op(), lhsShape.DType, rhsShape.DType)
		return
	}
	outputDims, err = broadcastDimensions(lhsShape, rhsShape)
	if err != nil {
		err = errors.WithMessagef(err, "node %q (%s)", node.Name(), node.Op())
	}
	return
}

// broadcastDimensions returns the output dimensions of an element-wise operation: operands must have
// the same dimensions, or one of them must be a scalar.
func broadcastDimensions(lhsShape, rhsShape shapes.Shape) ([]int, error) {
	switch {
	case lhsShape.EqualDimensions(rhsShape):
		return lhsShape.Dimensions, nil
	case lhsShape.IsScalar():
		return rhsShape.Dimensions, nil
	case rhsShape.IsScalar():
		return lhsShape.Dimensions, nil
	}
	return nil, errors.Errorf("incompatible shapes %s and %s: only equal shapes or scalar broadcasting is supported",
		lhsShape, rhsShape)
}

// execBinaryGeneric applies opFn element-wise. The operands are copied before the operation,
// so no two tensors are ever locked at the same time.
func execBinaryGeneric[T, O dtypes.Supported](lhs, rhs *tensors.Tensor, outputDims []int, opFn func(a, b T) O) *tensors.Tensor {
	lhsFlat := tensors.CopyFlatData[T](lhs)
	rhsFlat := lhsFlat
	if rhs != lhs {
		rhsFlat = tensors.CopyFlatData[T](rhs)
	}
	output := make([]O, max(len(lhsFlat), len(rhsFlat)))
	switch {
	case len(lhsFlat) == len(rhsFlat):
		for ii := range output {
			output[ii] = opFn(lhsFlat[ii], rhsFlat[ii])
		}
	case len(rhsFlat) == 1:
		c := rhsFlat[0]
		for ii, a := range lhsFlat {
			output[ii] = opFn(a, c)
		}
	default:
		// lhs is the scalar: operands are kept in order for the non-commutative operations.
		c := lhsFlat[0]
		for ii, b := range rhsFlat {
			output[ii] = opFn(c, b)
		}
	}
	return tensors.FromFlatDataAndDimensions(output, outputDims...)
}
