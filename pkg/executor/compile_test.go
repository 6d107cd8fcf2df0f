// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package executor

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/graphexec/pkg/core/graph"
	"github.com/gomlx/graphexec/pkg/core/tensors"
	"github.com/gomlx/graphexec/pkg/support/xslices"
)

func TestCompile(t *testing.T) {
	// Diamond: x -> (left, right) -> join, plus a node that depends on a missing node.
	g := must.M1(graph.Build(
		nodeDef("x", "Placeholder"),
		nodeDef("left", "Identity", "x"),
		nodeDef("right", "Add", "x", "x"),
		nodeDef("join", "Mul", "left", "right"),
		nodeDef("dangling", "Add", "join", "missing"),
	))
	order := compile(g)
	names := xslices.Map(order, func(node *graph.Node) string { return node.Name() })
	require.Len(t, names, 4)
	assert.Equal(t, "x", names[0])
	assert.Equal(t, "join", names[3])
	assert.ElementsMatch(t, []string{"x", "left", "right", "join"}, names)
	assert.NotContains(t, names, "dangling")

	exec := must.M1(New(g))
	assert.Equal(t, order, exec.CompiledOrder())
	outputs := exec.Call(graph.TensorMap{"x": {tensors.FromScalar(int64(3))}}, "join")
	assert.Equal(t, int64(18), tensors.ToScalar[int64](outputs["join"]))
	_, err := exec.Execute(graph.TensorMap{"x": {tensors.FromScalar(int64(3))}}, "dangling")
	require.ErrorIs(t, err, ErrUnresolvedOutput)
}
