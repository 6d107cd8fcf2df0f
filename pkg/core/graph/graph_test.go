// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeNames(nodes []*Node) []string {
	names := make([]string, len(nodes))
	for ii, node := range nodes {
		names[ii] = node.Name()
	}
	return names
}

func TestParseNodeName(t *testing.T) {
	for _, tc := range []struct {
		ref  string
		name string
		slot int
	}{
		{"a", "a", 0},
		{"a:1", "a", 1},
		{"while/Switch:1", "while/Switch", 1},
		{"a:b", "a:b", 0},
		{"a:-1", "a:-1", 0},
		{"^ctrl", "ctrl", 0},
		{"a:1:2", "a:1", 2},
	} {
		name, slot := ParseNodeName(tc.ref)
		assert.Equal(t, tc.name, name, "ref=%q", tc.ref)
		assert.Equal(t, tc.slot, slot, "ref=%q", tc.ref)
	}
	assert.True(t, IsControlInput("^a"))
	assert.False(t, IsControlInput("a"))
}

func TestBuilder(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddNodes(
		NodeDef{Name: "input", Op: "Placeholder", Category: "graph"},
		NodeDef{Name: "const", Op: "Const", Category: "graph"},
		NodeDef{Name: "add", Op: "Add", Inputs: []string{"input", "const", "input"}},
		NodeDef{Name: "output", Op: "Identity", Inputs: []string{"add:0"}},
		NodeDef{Name: "dangling", Op: "Identity", Inputs: []string{"missing"}},
	))
	require.Error(t, b.Add(NodeDef{Name: "add", Op: "Sub"}), "duplicate names must be rejected")
	require.Error(t, b.Add(NodeDef{Name: "a:0", Op: "Sub"}))
	require.Error(t, b.Add(NodeDef{Op: "Sub"}))

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 5, g.NumNodes())
	assert.Equal(t, []string{"input", "const", "add", "output", "dangling"}, nodeNames(g.Nodes()))
	assert.Equal(t, []string{"input", "const"}, nodeNames(g.Inputs()))
	assert.Equal(t, []string{"output", "dangling"}, g.OutputNames())
	assert.False(t, g.WithControlFlow())

	add := g.Node("add")
	require.NotNil(t, add)
	assert.Equal(t, "Add", add.Op())
	assert.Equal(t, []string{"input", "const", "input"}, add.InputNames())
	assert.Equal(t, []string{"input", "const", "input"}, nodeNames(add.Inputs()))
	assert.Equal(t, []string{"add"}, nodeNames(g.Node("input").Children()), "children are deduplicated")
	assert.Equal(t, []string{"output"}, nodeNames(add.Children()))
	assert.Nil(t, g.Node("dangling").Inputs()[0])
	assert.Nil(t, g.Node("missing"))

	_, err = b.Build()
	require.Error(t, err, "a Builder is single-use")
	require.Error(t, b.Add(NodeDef{Name: "late"}))
}

func TestBuilderInputsAndOutputs(t *testing.T) {
	newBuilder := func() *Builder {
		b := NewBuilder()
		must.M(b.AddNodes(
			NodeDef{Name: "x", Op: "Placeholder"},
			NodeDef{Name: "pred", Op: "Placeholder"},
			NodeDef{Name: "switch", Op: OpSwitch, Inputs: []string{"x", "pred"}},
			NodeDef{Name: "neg", Op: "Identity", Inputs: []string{"switch:0"}},
			NodeDef{Name: "pos", Op: "Identity", Inputs: []string{"switch:1"}},
			NodeDef{Name: "merge", Op: OpMerge, Inputs: []string{"neg", "pos"}},
		))
		return b
	}

	g := must.M1(newBuilder().SetInputs("pred", "x").Build("merge:0", "switch:1"))
	assert.True(t, g.WithControlFlow())
	assert.Equal(t, []string{"pred", "x"}, nodeNames(g.Inputs()))
	assert.Equal(t, []string{"merge:0", "switch:1"}, g.OutputNames())
	assert.Equal(t, []string{"merge", "switch"}, nodeNames(g.Outputs()))
	assert.Equal(t, []string{"neg", "pos"}, nodeNames(g.Node("switch").Children()))
	assert.Contains(t, g.String(), "controlFlow=true")

	_, err := newBuilder().Build("nope")
	require.Error(t, err)
	_, err = newBuilder().SetInputs("nope").Build()
	require.Error(t, err)
}

func TestParams(t *testing.T) {
	g := must.M1(Build(NodeDef{
		Name: "enter",
		Op:   OpEnter,
		Params: map[string]any{
			"frameName":  "while/while_context",
			"isConstant": true,
			"parallel":   float64(10),
			"flag":       int32(1),
			"bad":        1.5,
		},
	}))
	node := g.Node("enter")
	assert.True(t, node.IsControlFlow())

	frameName, err := ParamStringOr(node, "frameName", "")
	require.NoError(t, err)
	assert.Equal(t, "while/while_context", frameName)
	frameName, err = ParamStringOr(node, "missing", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", frameName)
	_, err = ParamStringOr(node, "isConstant", "")
	require.Error(t, err)

	assert.True(t, must.M1(ParamBoolOr(node, "isConstant", false)))
	assert.True(t, must.M1(ParamBoolOr(node, "flag", false)))
	assert.False(t, must.M1(ParamBoolOr(node, "missing", false)))
	assert.Equal(t, 10, must.M1(ParamIntOr(node, "parallel", 1)))
	assert.Equal(t, 1, MustParamIntOr(node, "missing", 1))
	_, err = ParamIntOr(node, "bad", 0)
	require.Error(t, err)
	assert.Panics(t, func() { _ = MustParamIntOr(node, "bad", 0) })
	assert.Panics(t, func() { _ = MustGetParamOr(node, "frameName", 0) })
	assert.Equal(t, true, MustGetParamOr(node, "isConstant", false))
}
