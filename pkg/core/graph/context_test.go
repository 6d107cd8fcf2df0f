// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/graphexec/pkg/core/tensors"
)

func TestExecutionContext(t *testing.T) {
	ectx := NewExecutionContext()
	assert.Equal(t, 0, ectx.FrameID())
	assert.Equal(t, 0, ectx.IterationID())
	assert.Equal(t, "", ectx.ContextID())
	assert.Equal(t, []string{""}, ectx.ContextIDs())
	require.Error(t, ectx.NextIteration())
	require.Error(t, ectx.ExitFrame())

	ectx.EnterFrame("outer")
	assert.Equal(t, 1, ectx.FrameID())
	assert.Equal(t, "outer", ectx.FrameName())
	require.NoError(t, ectx.NextIteration())
	assert.Equal(t, 1, ectx.IterationID())
	snapshot := ectx.Scope()

	ectx.EnterFrame("inner")
	assert.Equal(t, 2, ectx.Depth())
	assert.Equal(t, 2, ectx.FrameID())
	assert.Equal(t, 0, ectx.IterationID())
	require.NoError(t, ectx.NextIteration())
	require.NoError(t, ectx.NextIteration())
	assert.Equal(t, "1:1/2:2", ectx.ContextID())
	assert.Equal(t, []string{"1:1/2:2", "1:1", ""}, ectx.ContextIDs())

	// Restoring a snapshot is not affected by later changes.
	ectx.SetScope(snapshot)
	assert.Equal(t, "1:1", ectx.ContextID())

	// Re-entering the same frame from the same enclosing iteration reuses the id.
	ectx.EnterFrame("inner")
	assert.Equal(t, 2, ectx.FrameID())
	require.NoError(t, ectx.ExitFrame())

	// A new enclosing iteration gets a new frame id.
	require.NoError(t, ectx.NextIteration())
	ectx.EnterFrame("inner")
	assert.Equal(t, 3, ectx.FrameID())
	require.NoError(t, ectx.ExitFrame())
	require.NoError(t, ectx.ExitFrame())
	assert.Equal(t, 0, ectx.Depth())
	assert.Equal(t, 0, ectx.FrameID())

	ectx.SetScope(snapshot)
	assert.Equal(t, "outer", ectx.FrameName())
	assert.Equal(t, 1, ectx.IterationID())
}

func TestTensorMap(t *testing.T) {
	topValue := tensors.FromScalar(int32(1))
	loopValue := tensors.FromScalar(int32(2))
	m := TensorMap{"x": {topValue}}

	ectx := NewExecutionContext()
	assert.Same(t, topValue, m.Tensor("x", ectx))
	assert.Same(t, topValue, m.Tensor("x:0", nil))
	assert.Nil(t, m.Tensor("x:1", ectx), "slot out of range")
	assert.Nil(t, m.Tensor("y", ectx))

	ectx.EnterFrame("loop")
	assert.Same(t, topValue, m.Tensor("x", ectx), "enclosing values are visible inside frames")
	m.Store("x", ectx, []*tensors.Tensor{loopValue})
	assert.Contains(t, m, "x@1:0")
	assert.Same(t, loopValue, m.Tensor("x", ectx))
	require.NoError(t, ectx.NextIteration())
	assert.Same(t, topValue, m.Tensor("x", ectx), "values of previous iterations are not visible")
	require.NoError(t, ectx.ExitFrame())
	assert.Same(t, topValue, m.Tensor("x", ectx))

	m.Store("switch", ectx, []*tensors.Tensor{nil, loopValue})
	assert.False(t, m.Has("switch:0", ectx))
	assert.True(t, m.Has("switch:1", ectx))
	m.Store("noop", ectx, nil)
	assert.True(t, m.Has("^noop", ectx))
	assert.False(t, m.Has("noop", ectx))
	assert.False(t, m.Has("^missing", ectx))

	clone := m.Clone()
	delete(clone, "x")
	assert.Contains(t, m, "x")
	assert.NotNil(t, TensorMap(nil).Clone())

	count := 0
	m.AllTensors(func(*tensors.Tensor) { count++ })
	assert.Equal(t, 3, count)
}
