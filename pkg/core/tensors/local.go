// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"fmt"
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/graphexec/pkg/core/shapes"
)

// MultiDimensionSlice lists the Go types a Tensor can be converted from with FromValue.
// Generics' constraints can't be recursive, so it enumerates up to 3 levels of slices:
// FromAnyValue works with any number of levels.
type MultiDimensionSlice interface {
	bool | float32 | float64 | int | int32 | int64 | uint8 | uint32 | uint64 |
		[]bool | []float32 | []float64 | []int | []int32 | []int64 | []uint8 | []uint32 | []uint64 |
		[][]bool | [][]float32 | [][]float64 | [][]int | [][]int32 | [][]int64 | [][]uint8 | [][]uint32 | [][]uint64 |
		[][][]bool | [][][]float32 | [][][]float64 | [][][]int | [][][]int32 | [][][]int64 | [][][]uint8 | [][][]uint32 | [][][]uint64
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
func FromShape(shape shapes.Shape) (t *Tensor) {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(%s): invalid shape", shape)
	}
	t = newTensor(shape.Clone())
	t.flat = reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), shape.Size(), shape.Size()).Interface()
	return
}

// FromScalar creates a scalar tensor. The DType is inferred from the value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromScalarAndDimensions(value)
}

// FromScalarAndDimensions creates a tensor with the given dimensions, filled with the
// given scalar value replicated everywhere.
func FromScalarAndDimensions[T dtypes.Supported](value T, dimensions ...int) *Tensor {
	t := FromShape(shapes.Make(dtypes.FromGenericsType[T](), dimensions...))
	data := make([]T, t.Size())
	for ii := range data {
		data[ii] = value
	}
	t.assignFlat(data)
	return t
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with a copy of the
// flattened values given in `data`. The DType is inferred from the type of `data`.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d",
			shape, len(data), shape.Size())
	}
	t := FromShape(shape)
	t.assignFlat(data)
	return t
}

// assignFlat copies data into the tensor storage. Go `int` values are converted to the
// platform's sized integer storage.
func (t *Tensor) assignFlat(data any) {
	if reflect.TypeOf(data) == reflect.TypeOf(t.flat) {
		reflect.Copy(reflect.ValueOf(t.flat), reflect.ValueOf(data))
		return
	}
	flatV := reflect.ValueOf(t.flat)
	dataV := reflect.ValueOf(data)
	elemType := flatV.Type().Elem()
	for ii := range dataV.Len() {
		flatV.Index(ii).Set(dataV.Index(ii).Convert(elemType))
	}
}

// FromValue returns a tensor constructed from the given multi-dimension slice (or scalar).
// If the rank of `value` is larger than 1, all sub-slices must have the same shape.
//
// It panics if the shape is not regular.
func FromValue[S MultiDimensionSlice](value S) *Tensor {
	return FromAnyValue(value)
}

// FromAnyValue is the non-generic version of FromValue.
// If value is already a *Tensor, it is returned as is.
//
// Go `int` values are stored as dtypes.Int64.
//
// It panics with an error if the type of `value` is unsupported or the shape is not regular.
func FromAnyValue(value any) *Tensor {
	if valueT, ok := value.(*Tensor); ok {
		return valueT
	}
	shape, err := shapeForValue(reflect.ValueOf(value))
	if err != nil {
		panic(errors.WithMessagef(err, "cannot create tensor from %T", value))
	}
	t := FromShape(shape)
	flatV := reflect.ValueOf(t.flat)
	elemType := flatV.Type().Elem()
	pos := 0
	var fill func(v reflect.Value)
	fill = func(v reflect.Value) {
		if v.Kind() == reflect.Slice {
			for ii := range v.Len() {
				fill(v.Index(ii))
			}
			return
		}
		flatV.Index(pos).Set(v.Convert(elemType))
		pos++
	}
	fill(reflect.ValueOf(value))
	return t
}

// shapeForValue returns the shape of a scalar or regular multi-dimensional slice.
func shapeForValue(v reflect.Value) (shape shapes.Shape, err error) {
	if !v.IsValid() {
		return shapes.Invalid(), errors.New("nil value")
	}
	if v.Kind() != reflect.Slice {
		goType := v.Type()
		if goType.Kind() == reflect.Int {
			goType = reflect.TypeOf(int64(0))
		}
		shape.DType = dtypes.FromGoType(goType)
		if shape.DType == dtypes.InvalidDType {
			return shapes.Invalid(), errors.Errorf("type %s not supported for tensors", v.Type())
		}
		return shape, nil
	}
	if v.Len() == 0 {
		return shapes.Invalid(), errors.Errorf("empty slice %s can't be converted to a tensor: use FromShape instead", v.Type())
	}
	sub, err := shapeForValue(v.Index(0))
	if err != nil {
		return sub, err
	}
	for ii := 1; ii < v.Len(); ii++ {
		other, err := shapeForValue(v.Index(ii))
		if err != nil {
			return other, err
		}
		if !other.Equal(sub) {
			return shapes.Invalid(), errors.Errorf("sub-slices have irregular shapes, found shapes %s and %s", sub, other)
		}
	}
	shape.DType = sub.DType
	shape.Dimensions = append([]int{v.Len()}, sub.Dimensions...)
	return shape, nil
}

// ConstFlatData calls accessFn with the flattened data as a slice of the Go type corresponding to the DType.
// It locks the Tensor until accessFn returns, and accessFn must not change the data.
//
// It panics if the tensor is in an invalid state (if it was finalized).
func (t *Tensor) ConstFlatData(accessFn func(flat any)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lockedAssertValid()
	accessFn(t.flat)
}

// ConstFlatData is the generics version of Tensor.ConstFlatData.
//
// It panics if T doesn't match the tensor's DType or if the tensor is invalid.
// Tensors created from Go `int` values must be accessed with their sized type (int64 on 64-bit platforms).
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	if t.DType() != dtypes.FromGenericsType[T]() {
		var v T
		exceptions.Panicf("ConstFlatData[%T] is incompatible with Tensor's dtype %s -- expected dtype %s",
			v, t.DType(), dtypes.FromGenericsType[T]())
	}
	t.ConstFlatData(func(flat any) {
		typed, ok := flat.([]T)
		if !ok {
			exceptions.Panicf("ConstFlatData[%T]: tensor storage is %T", typed, flat)
		}
		accessFn(typed)
	})
}

// CopyFlatData returns a copy of the flat data of the Tensor.
//
// It panics if T doesn't match the tensor's DType.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	var flatCopy []T
	ConstFlatData(t, func(flat []T) {
		flatCopy = make([]T, len(flat))
		copy(flatCopy, flat)
	})
	return flatCopy
}

// ToScalar returns the scalar value of the Tensor.
//
// It panics if T doesn't match the DType of the tensor, or if the tensor is not a scalar.
func ToScalar[T dtypes.Supported](t *Tensor) T {
	var value T
	if !t.IsScalar() {
		exceptions.Panicf("ToScalar[%T] requires scalar Tensor, got shape %s instead", value, t.Shape())
	}
	ConstFlatData(t, func(flat []T) {
		value = flat[0]
	})
	return value
}

// Value returns a multi-dimensional slice (or a scalar) with a copy of the values stored in the tensor.
// This is expensive, and usually only used for small tensors in tests and to print results.
func (t *Tensor) Value() any {
	var result any
	t.ConstFlatData(func(flat any) {
		flatV := reflect.ValueOf(flat)
		if t.shape.IsScalar() {
			result = flatV.Index(0).Interface()
			return
		}
		var build func(offset int, dims []int) reflect.Value
		build = func(offset int, dims []int) reflect.Value {
			if len(dims) == 1 {
				leaf := reflect.MakeSlice(flatV.Type(), dims[0], dims[0])
				reflect.Copy(leaf, flatV.Slice(offset, offset+dims[0]))
				return leaf
			}
			stride := 1
			for _, dim := range dims[1:] {
				stride *= dim
			}
			sliceType := flatV.Type()
			for range dims[1:] {
				sliceType = reflect.SliceOf(sliceType)
			}
			slice := reflect.MakeSlice(sliceType, dims[0], dims[0])
			for ii := range dims[0] {
				slice.Index(ii).Set(build(offset+ii*stride, dims[1:]))
			}
			return slice
		}
		result = build(0, t.shape.Dimensions).Interface()
	})
	return result
}

// Clone returns a new tensor with a copy of the data.
func (t *Tensor) Clone() *Tensor {
	var clone *Tensor
	t.ConstFlatData(func(flat any) {
		clone = FromShape(t.shape)
		reflect.Copy(reflect.ValueOf(clone.flat), reflect.ValueOf(flat))
	})
	return clone
}

// Equal checks whether t and otherTensor have the same shape and values.
// The same pointer is always equal to itself.
//
// It panics if either tensor is invalid.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	t.AssertValid()
	otherTensor.AssertValid()
	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	equal := true
	t.ConstFlatData(func(flat0 any) {
		otherTensor.ConstFlatData(func(flat1 any) {
			equal = reflect.DeepEqual(flat0, flat1)
		})
	})
	return equal
}

// String implements fmt.Stringer. Finalized tensors are reported as such.
func (t *Tensor) String() string {
	if !t.Ok() {
		return "Tensor(finalized)"
	}
	return fmt.Sprintf("%s: %v", t.shape, t.Value())
}
