// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// GetParamOr returns the parameter key of the node converted to T, or defaultValue if it is not set.
// It returns an error if the parameter is set with a different type.
func GetParamOr[T any](node *Node, key string, defaultValue T) (T, error) {
	value, found := node.params[key]
	if !found || value == nil {
		return defaultValue, nil
	}
	typed, ok := value.(T)
	if !ok {
		return defaultValue, errors.Errorf("node %q (%s): parameter %q is %T, expected %T",
			node.name, node.op, key, value, defaultValue)
	}
	return typed, nil
}

// MustGetParamOr is like GetParamOr, but panics with an error if the parameter has the wrong type.
func MustGetParamOr[T any](node *Node, key string, defaultValue T) T {
	value, err := GetParamOr(node, key, defaultValue)
	if err != nil {
		panic(err)
	}
	return value
}

// ParamStringOr gets a string parameter, or returns defaultValue if it's not set.
func ParamStringOr(node *Node, key, defaultValue string) (string, error) {
	return GetParamOr(node, key, defaultValue)
}

// ParamBoolOr gets a boolean parameter, or returns defaultValue if it's not set.
// Integer values are accepted, with non-zero meaning true.
func ParamBoolOr(node *Node, key string, defaultValue bool) (bool, error) {
	value, found := node.params[key]
	if !found || value == nil {
		return defaultValue, nil
	}
	if b, ok := value.(bool); ok {
		return b, nil
	}
	i, err := ParamIntOr(node, key, 0)
	if err != nil {
		return defaultValue, errors.Errorf("node %q (%s): parameter %q is %T, expected bool",
			node.name, node.op, key, value)
	}
	return i != 0, nil
}

// ParamIntOr gets an integer parameter, or returns defaultValue if it's not set.
// Any Go integer type is accepted, as well as float64 holding an integer value (as decoded from JSON).
func ParamIntOr(node *Node, key string, defaultValue int) (int, error) {
	value, found := node.params[key]
	if !found || value == nil {
		return defaultValue, nil
	}
	switch v := value.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return defaultValue, errors.Errorf("node %q (%s): parameter %q is %T(%v), expected an integer",
		node.name, node.op, key, value, value)
}

// MustParamIntOr is like ParamIntOr but panics on error.
func MustParamIntOr(node *Node, key string, defaultValue int) int {
	value, err := ParamIntOr(node, key, defaultValue)
	if err != nil {
		exceptions.Panicf("%v", err)
	}
	return value
}
