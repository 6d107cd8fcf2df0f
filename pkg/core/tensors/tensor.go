// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a `Tensor`, a host (CPU) multi-dimensional array used as the values
// flowing between the nodes of a dataflow graph.
//
// A Tensor is defined by its shape (a data type and its axes dimensions) and its content, stored
// as a flat Go slice of the corresponding dtype. Even scalars have a flat representation of one element.
//
// There are various ways to construct a Tensor:
//
//   - FromShape(shape shapes.Shape): zero-initialized tensor of the given shape.
//   - FromScalar[T dtypes.Supported](value T): scalar tensor.
//   - FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int): filled with value.
//   - FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int): data is copied.
//   - FromValue[S MultiDimensionSlice](value S) and FromAnyValue(value any): from a scalar
//     or a regular multi-dimensional slice.
//
// Tensors are treated as immutable values once they are handed to a graph execution: operators
// produce new tensors, or forward (alias) the tensors they received. Memory is released with
// Tensor.FinalizeAll, after which the tensor is invalid.
package tensors

import (
	"sync"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/graphexec/pkg/core/shapes"
)

// Tensor is a multi-dimensional array stored on the host, with a shape and a flat slice of values.
//
// It is safe to read a Tensor concurrently. FinalizeAll must not be called while the tensor is in use.
type Tensor struct {
	// shape of the tensor: it becomes invalid when the tensor is finalized.
	shape shapes.Shape

	// mu protects flat.
	mu sync.Mutex

	// flat holds a []T, where T is the Go type of shape.DType. It is nil once finalized.
	flat any
}

// newTensor returns a Tensor initialized with the shape, but without storage.
func newTensor(shape shapes.Shape) *Tensor {
	return &Tensor{shape: shape}
}

// Shape of the tensor, including its DType.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType returns the DType of the tensor's shape.
// It is a shortcut to `Tensor.Shape().DType`.
func (t *Tensor) DType() dtypes.DType {
	return t.shape.DType
}

// Rank returns the rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// IsScalar returns whether the tensor represents a scalar value.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Size returns the number of elements in the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used to store the tensor. An alias to Tensor.Shape().Memory().
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// Ok returns whether the Tensor is in a valid state: it is not nil, and it hasn't been finalized.
func (t *Tensor) Ok() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shape.Ok() && t.flat != nil
}

// IsFinalized returns true if the tensor has already been finalized and its data freed.
func (t *Tensor) IsFinalized() bool {
	return !t.Ok()
}

// AssertValid panics if the tensor is nil, has an invalid shape or has been finalized.
func (t *Tensor) AssertValid() {
	if t == nil {
		panic(errors.New("Tensor is nil"))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lockedAssertValid()
}

func (t *Tensor) lockedAssertValid() {
	if !t.shape.Ok() {
		panic(errors.New("Tensor shape is invalid, likely it has been finalized"))
	}
	if t.flat == nil {
		panic(errors.Errorf("Tensor %s has no data, likely it has been finalized", t.shape))
	}
}

// FinalizeAll immediately frees the data associated with the tensor and leaves it in an invalid state.
// The shape is cleared also.
//
// It is a no-op for nil or already finalized tensors.
//
// It's the caller responsibility to ensure the tensor is not being used elsewhere (like in the middle of an execution).
func (t *Tensor) FinalizeAll() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flat = nil
	t.shape = shapes.Invalid()
}
