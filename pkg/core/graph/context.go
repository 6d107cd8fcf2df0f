// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gomlx/graphexec/pkg/support/xslices"
)

// Frame is one level of loop nesting: the loop frame entered with an Enter node, and
// the current iteration within it.
type Frame struct {
	// Name of the frame (the frameName parameter of the Enter nodes).
	Name string

	// ID is unique per execution call: frames are numbered 1, 2, ... in order of first entry.
	// Entering the same frame name from the same enclosing iteration yields the same ID.
	ID int

	// Iteration is incremented by NextIteration, starting from 0.
	Iteration int
}

// Scope is a snapshot of the frame stack, outermost frame first. The top level is an empty Scope.
//
// A Scope is never modified in place, so it can be shared.
type Scope []Frame

// Innermost returns the innermost frame, or false if the scope is the top level.
func (s Scope) Innermost() (frame Frame, ok bool) {
	if len(s) == 0 {
		return
	}
	return xslices.Last(s), true
}

// ExecutionContext tracks the loop frame stack of one graph execution.
// It is owned by a single execution call and is not safe for concurrent use.
type ExecutionContext struct {
	scope Scope

	// frameIDs maps the context id of the enclosing scope plus the frame name to the frame id.
	frameIDs    map[string]int
	lastFrameID int
}

// NewExecutionContext returns a context at the top level: FrameID and IterationID are 0.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{frameIDs: make(map[string]int)}
}

// Depth returns the number of nested frames. 0 at the top level.
func (c *ExecutionContext) Depth() int { return len(c.scope) }

// FrameID returns the id of the innermost frame, or 0 at the top level.
func (c *ExecutionContext) FrameID() int {
	frame, _ := c.scope.Innermost()
	return frame.ID
}

// IterationID returns the iteration of the innermost frame, or 0 at the top level.
func (c *ExecutionContext) IterationID() int {
	frame, _ := c.scope.Innermost()
	return frame.Iteration
}

// FrameName returns the name of the innermost frame, or "" at the top level.
func (c *ExecutionContext) FrameName() string {
	frame, _ := c.scope.Innermost()
	return frame.Name
}

// EnterFrame pushes the frame with the given name, at iteration 0.
func (c *ExecutionContext) EnterFrame(frameName string) {
	key := c.ContextID() + "|" + frameName
	id, found := c.frameIDs[key]
	if !found {
		c.lastFrameID++
		id = c.lastFrameID
		c.frameIDs[key] = id
	}
	c.push(Frame{Name: frameName, ID: id})
}

// NextIteration advances the iteration of the innermost frame.
func (c *ExecutionContext) NextIteration() error {
	if len(c.scope) == 0 {
		return errors.New("NextIteration called at the top level, outside of any loop frame")
	}
	innermost, _ := c.scope.Innermost()
	innermost.Iteration++
	c.pop()
	c.push(innermost)
	return nil
}

// ExitFrame pops the innermost frame.
func (c *ExecutionContext) ExitFrame() error {
	if len(c.scope) == 0 {
		return errors.New("ExitFrame called at the top level, outside of any loop frame")
	}
	c.pop()
	return nil
}

// push and pop always create a new backing array, so Scope snapshots are never changed.
func (c *ExecutionContext) push(frame Frame) {
	newScope := make(Scope, len(c.scope), len(c.scope)+1)
	copy(newScope, c.scope)
	c.scope = append(newScope, frame)
}

func (c *ExecutionContext) pop() {
	c.scope = c.scope[:len(c.scope)-1:len(c.scope)-1]
}

// Scope returns a snapshot of the current frame stack.
func (c *ExecutionContext) Scope() Scope { return c.scope }

// SetScope restores a frame stack previously returned by Scope.
func (c *ExecutionContext) SetScope(scope Scope) { c.scope = scope }

// ContextID returns the id of the current frame path, "" at the top level:
// "frameID:iteration" for each level, joined by "/".
func (c *ExecutionContext) ContextID() string {
	return c.scope.ContextID()
}

// ContextIDs returns the id of the current frame path followed by the ids of each
// enclosing path, ending with the top level "".
func (c *ExecutionContext) ContextIDs() []string {
	ids := make([]string, 0, len(c.scope)+1)
	for depth := len(c.scope); depth >= 0; depth-- {
		ids = append(ids, c.scope[:depth].ContextID())
	}
	return ids
}

// ContextID returns the id of the frame path of the scope. See ExecutionContext.ContextID.
func (s Scope) ContextID() string {
	if len(s) == 0 {
		return ""
	}
	var sb strings.Builder
	for ii, frame := range s {
		if ii > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(strconv.Itoa(frame.ID))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(frame.Iteration))
	}
	return sb.String()
}
