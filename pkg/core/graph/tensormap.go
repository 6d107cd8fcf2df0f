// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"maps"

	"github.com/gomlx/graphexec/pkg/core/tensors"
)

// TensorMap maps node names to the ordered tensors the node produced (one per output slot).
//
// Values produced inside a loop frame are keyed by the node name qualified with the
// context id of the frame path (see ContextKey), so the same node can produce a value per iteration.
// At the top level the key is the plain node name.
//
// An entry may hold nil tensors, for output slots not produced in an activation
// (e.g. the branch not taken by a Switch).
type TensorMap map[string][]*tensors.Tensor

// ContextKey returns the key in a TensorMap of the values of the node name produced
// in the context contextID.
func ContextKey(name, contextID string) string {
	if contextID == "" {
		return name
	}
	return name + "@" + contextID
}

// Lookup returns the tensors produced by the node name, visible from the execution context ectx:
// it searches the current frame path and then each enclosing one, up to the top level.
// If ectx is nil only the top level is searched.
//
// It returns nil if the node has no values visible.
func (m TensorMap) Lookup(name string, ectx *ExecutionContext) []*tensors.Tensor {
	values, _ := m.lookup(name, ectx)
	return values
}

func (m TensorMap) lookup(name string, ectx *ExecutionContext) ([]*tensors.Tensor, bool) {
	if ectx == nil || ectx.Depth() == 0 {
		values, found := m[name]
		return values, found
	}
	for _, contextID := range ectx.ContextIDs() {
		if values, found := m[ContextKey(name, contextID)]; found {
			return values, true
		}
	}
	return nil, false
}

// Tensor resolves the input reference ref ("name" or "name:slot") to a tensor.
// It returns nil if the node has no values visible from ectx, if slot is out of range or if the
// slot was not produced.
func (m TensorMap) Tensor(ref string, ectx *ExecutionContext) *tensors.Tensor {
	name, slot := ParseNodeName(ref)
	values := m.Lookup(name, ectx)
	if slot >= len(values) {
		return nil
	}
	return values[slot]
}

// Has returns whether the input reference ref is satisfied in ectx.
// Data references need the referenced slot present. Control dependencies ("^name") only need
// the node to have executed.
func (m TensorMap) Has(ref string, ectx *ExecutionContext) bool {
	if IsControlInput(ref) {
		name, _ := ParseNodeName(ref)
		_, found := m.lookup(name, ectx)
		return found
	}
	return m.Tensor(ref, ectx) != nil
}

// Store the values produced by node name in the current context of ectx.
// It replaces any previous values of the node in the same context.
func (m TensorMap) Store(name string, ectx *ExecutionContext, values []*tensors.Tensor) {
	contextID := ""
	if ectx != nil {
		contextID = ectx.ContextID()
	}
	if values == nil {
		values = []*tensors.Tensor{}
	}
	m[ContextKey(name, contextID)] = values
}

// Clone returns a shallow copy of the map: tensors are shared, not copied.
func (m TensorMap) Clone() TensorMap {
	if m == nil {
		return make(TensorMap)
	}
	return maps.Clone(m)
}

// AllTensors calls yield for each non-nil tensor in the map. The same tensor may be yielded more than once.
func (m TensorMap) AllTensors(yield func(t *tensors.Tensor)) {
	for _, values := range m {
		for _, t := range values {
			if t != nil {
				yield(t)
			}
		}
	}
}
