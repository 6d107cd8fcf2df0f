// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/gomlx/graphexec/pkg/core/graph"
	"github.com/gomlx/graphexec/pkg/core/tensors"
)

// execNode executes the kernel registered for op on a node with the given inputs, fed
// from values. Each input of the node is a placeholder named "x0", "x1", ...
func execNode(op string, params map[string]any, values ...any) ([]*tensors.Tensor, error) {
	b := graph.NewBuilder()
	tensorMap := make(graph.TensorMap)
	var inputNames []string
	for ii, value := range values {
		name := "x" + string(rune('0'+ii))
		must.M(b.Add(graph.NodeDef{Name: name, Op: "Placeholder"}))
		inputNames = append(inputNames, name)
		tensorMap[name] = []*tensors.Tensor{tensors.FromAnyValue(value)}
	}
	must.M(b.Add(graph.NodeDef{Name: "node", Op: op, Inputs: inputNames, Params: params}))
	g := must.M1(b.Build())
	return Run(DefaultRegistry().Resolve(op), g.Node("node"), tensorMap, graph.NewExecutionContext())
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.True(t, r.Has("Add", "AddV2", "add", "Switch", "Merge", "Enter", "Exit", "NextIteration", "LoopCond",
		"Placeholder", "placeholder", "Const", "const", "Less", "LogicalNot"))
	assert.Contains(t, r.Ops(), "Identity")

	called := false
	r.Register("Custom", func(*graph.Node, graph.TensorMap, *graph.ExecutionContext) ([]*tensors.Tensor, error) {
		called = true
		return nil, nil
	})
	kernel, found := r.Lookup("Custom")
	require.True(t, found)
	_, _ = kernel(nil, nil, nil)
	assert.True(t, called)
	_, found = DefaultRegistry().Lookup("Custom")
	assert.False(t, found, "DefaultRegistry must return independent copies")

	clone := r.Clone()
	clone.Register("Other", execNoOp)
	assert.False(t, r.Has("Other"))

	_, err := execNode("Unknown", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedOp))
}

func TestRunCatchesPanics(t *testing.T) {
	g := must.M1(graph.Build(graph.NodeDef{Name: "p", Op: "Panic"}))
	panicking := func(*graph.Node, graph.TensorMap, *graph.ExecutionContext) ([]*tensors.Tensor, error) {
		panic(errors.New("boom"))
	}
	_, err := Run(panicking, g.Node("p"), nil, graph.NewExecutionContext())
	require.ErrorContains(t, err, "boom")
}

func TestGraphKernels(t *testing.T) {
	x := tensors.FromValue([]float32{1, 2})
	g := must.M1(graph.Build(
		graph.NodeDef{Name: "fed", Op: "Placeholder"},
		graph.NodeDef{Name: "withDefault", Op: "Placeholder", Params: map[string]any{"default": int32(3)}},
		graph.NodeDef{Name: "unfed", Op: "Placeholder"},
		graph.NodeDef{Name: "weight", Op: "Const"},
		graph.NodeDef{Name: "valued", Op: "Const", Params: map[string]any{"value": x}},
	))
	tensorMap := graph.TensorMap{"fed": {x}, "weight": {x}}
	ectx := graph.NewExecutionContext()
	registry := DefaultRegistry()
	run := func(name string) ([]*tensors.Tensor, error) {
		node := g.Node(name)
		return Run(registry.Resolve(node.Op()), node, tensorMap, ectx)
	}

	outputs := must.M1(run("fed"))
	assert.Same(t, x, outputs[0])
	outputs = must.M1(run("withDefault"))
	assert.Equal(t, int32(3), tensors.ToScalar[int32](outputs[0]))
	_, err := run("unfed")
	require.Error(t, err)
	outputs = must.M1(run("weight"))
	assert.Same(t, x, outputs[0])
	outputs = must.M1(run("valued"))
	assert.NotSame(t, x, outputs[0], "parameter tensors are copied")
	assert.True(t, x.Equal(outputs[0]))

	outputs = must.M1(execNode("Identity", nil, int64(5)))
	assert.Equal(t, int64(5), outputs[0].Value())
	_, err = execNode("Identity", nil)
	require.Error(t, err)
	outputs = must.M1(execNode("NoOp", nil))
	assert.Empty(t, outputs)
}

func TestArithmeticKernels(t *testing.T) {
	outputs := must.M1(execNode("Add", nil, []int32{1, 2}, []int32{10, 20}))
	assert.Equal(t, []int32{11, 22}, outputs[0].Value())
	outputs = must.M1(execNode("AddV2", nil, int32(1), int32(2)))
	assert.Equal(t, int32(3), outputs[0].Value())
	outputs = must.M1(execNode("Sub", nil, float32(10), []float32{1, 2}))
	assert.Equal(t, []float32{9, 8}, outputs[0].Value())
	outputs = must.M1(execNode("Sub", nil, [][]float64{{1, 2}}, 1.0))
	assert.Equal(t, [][]float64{{0, 1}}, outputs[0].Value())
	outputs = must.M1(execNode("Mul", nil, []int64{2, 3}, int64(-1)))
	assert.Equal(t, []int64{-2, -3}, outputs[0].Value())

	half := tensors.FromScalar(float16.Fromfloat32(1.5))
	outputs = must.M1(execNode("Mul", nil, half, half))
	assert.Equal(t, float16.Fromfloat32(2.25), outputs[0].Value())

	_, err := execNode("Add", nil, int32(1), int64(2))
	require.ErrorContains(t, err, "different dtypes")
	_, err = execNode("Add", nil, []int32{1, 2}, []int32{1, 2, 3})
	require.ErrorContains(t, err, "incompatible shapes")
	_, err = execNode("Add", nil, int32(1))
	require.Error(t, err)
	_, err = execNode("Add", nil, true, false)
	require.Error(t, err)
}

func TestCompareAndLogicalKernels(t *testing.T) {
	outputs := must.M1(execNode("Less", nil, []int32{1, 5}, int32(3)))
	assert.Equal(t, []bool{true, false}, outputs[0].Value())
	outputs = must.M1(execNode("Greater", nil, 2.0, 1.0))
	assert.Equal(t, true, outputs[0].Value())
	outputs = must.M1(execNode("Equal", nil, []bool{true, false}, true))
	assert.Equal(t, []bool{true, false}, outputs[0].Value())
	outputs = must.M1(execNode("NotEqual", nil, []float32{1, 2}, []float32{1, 3}))
	assert.Equal(t, []bool{false, true}, outputs[0].Value())
	assert.Equal(t, dtypes.Bool, outputs[0].DType())
	_, err := execNode("Less", nil, true, false)
	require.Error(t, err)

	outputs = must.M1(execNode("LogicalNot", nil, []bool{true, false}))
	assert.Equal(t, []bool{false, true}, outputs[0].Value())
	outputs = must.M1(execNode("LogicalAnd", nil, []bool{true, true}, []bool{true, false}))
	assert.Equal(t, []bool{true, false}, outputs[0].Value())
	outputs = must.M1(execNode("LogicalOr", nil, false, []bool{true, false}))
	assert.Equal(t, []bool{true, false}, outputs[0].Value())
	_, err = execNode("LogicalNot", nil, int32(1))
	require.Error(t, err)
}

func TestControlFlowKernels(t *testing.T) {
	data := tensors.FromValue([]int32{1, 2})

	outputs := must.M1(execNode(graph.OpSwitch, nil, data, false))
	require.Len(t, outputs, 2)
	assert.Same(t, data, outputs[0])
	assert.Nil(t, outputs[1])
	outputs = must.M1(execNode(graph.OpSwitch, nil, data, true))
	assert.Nil(t, outputs[0])
	assert.Same(t, data, outputs[1])
	_, err := execNode(graph.OpSwitch, nil, data, int32(1))
	require.ErrorContains(t, err, "predicate")

	outputs = must.M1(execNode(graph.OpLoopCond, nil, true))
	assert.Equal(t, true, outputs[0].Value())

	// Merge takes the first input available.
	g := must.M1(graph.Build(
		graph.NodeDef{Name: "a", Op: "Placeholder"},
		graph.NodeDef{Name: "b", Op: "Placeholder"},
		graph.NodeDef{Name: "merge", Op: graph.OpMerge, Inputs: []string{"a", "b"}},
	))
	ectx := graph.NewExecutionContext()
	merge := DefaultRegistry().Resolve(graph.OpMerge)
	outputs = must.M1(Run(merge, g.Node("merge"), graph.TensorMap{"b": {data}}, ectx))
	assert.Same(t, data, outputs[0])
	assert.Equal(t, int32(1), tensors.ToScalar[int32](outputs[1]))
	_, err = Run(merge, g.Node("merge"), graph.TensorMap{}, ectx)
	require.Error(t, err)
}

func TestLoopKernels(t *testing.T) {
	data := tensors.FromScalar(int32(7))
	g := must.M1(graph.Build(
		graph.NodeDef{Name: "x", Op: "Placeholder"},
		graph.NodeDef{Name: "enter", Op: graph.OpEnter, Inputs: []string{"x"},
			Params: map[string]any{"frameName": "loop"}},
		graph.NodeDef{Name: "badEnter", Op: graph.OpEnter, Inputs: []string{"x"}},
		graph.NodeDef{Name: "next", Op: graph.OpNextIteration, Inputs: []string{"x"}},
		graph.NodeDef{Name: "exit", Op: graph.OpExit, Inputs: []string{"x"}},
	))
	registry := DefaultRegistry()
	tensorMap := graph.TensorMap{"x": {data}}
	ectx := graph.NewExecutionContext()
	run := func(name string) ([]*tensors.Tensor, error) {
		node := g.Node(name)
		return Run(registry.Resolve(node.Op()), node, tensorMap, ectx)
	}

	_, err := run("next")
	require.Error(t, err, "NextIteration at top level")
	_, err = run("exit")
	require.Error(t, err, "Exit at top level")
	_, err = run("badEnter")
	require.ErrorContains(t, err, "frameName")

	outputs := must.M1(run("enter"))
	assert.Same(t, data, outputs[0])
	assert.Equal(t, 1, ectx.FrameID())
	assert.Equal(t, "loop", ectx.FrameName())

	outputs = must.M1(run("next"))
	assert.Same(t, data, outputs[0], "forwards the value visible from the enclosing frame")
	assert.Equal(t, 1, ectx.IterationID())

	outputs = must.M1(run("exit"))
	assert.Same(t, data, outputs[0])
	assert.Equal(t, 0, ectx.Depth())
}
