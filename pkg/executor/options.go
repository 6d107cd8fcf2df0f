// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package executor

import "github.com/gomlx/graphexec/pkg/ops"

type options struct {
	registry *ops.Registry
	metrics  *Metrics
	name     string
}

// Option configures a GraphExecutor created with New.
type Option func(opts *options)

func collectOptions(opts ...Option) *options {
	o := &options{}
	for _, option := range opts {
		option(o)
	}
	if o.registry == nil {
		o.registry = ops.DefaultRegistry()
	}
	return o
}

// WithRegistry sets the registry used to resolve the kernel of each node.
// The default is ops.DefaultRegistry().
func WithRegistry(registry *ops.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithMetrics sets the metrics the executor reports to. By default, no metrics are collected.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithName sets the name of the executor, used in logs and error messages.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}
