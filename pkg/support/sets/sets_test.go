// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := Make[string](10)
	assert.Len(t, s, 0)
	assert.False(t, s.Has("a"))

	s.Insert("a", "b")
	assert.True(t, s.Has("a"))
	assert.True(t, s.Has("b"))
	assert.Len(t, s, 2)

	assert.False(t, s.InsertNew("a"))
	assert.True(t, s.InsertNew("c"))
	assert.Len(t, s, 3)

	s.Remove("a", "missing")
	assert.False(t, s.Has("a"))
	assert.Len(t, s, 2)

	s2 := MakeWith(1, 2, 2, 3)
	assert.Len(t, s2, 3)
	assert.True(t, s2.Has(3))
}
