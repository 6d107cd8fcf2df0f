// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package executor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Execution paths, used as the "path" label of the metrics.
const (
	PathStatic  = "static"
	PathDynamic = "dynamic"
)

// Metrics collected by a GraphExecutor. A nil *Metrics is valid and collects nothing.
//
// The same Metrics can be shared by several executors.
type Metrics struct {
	executions        *prometheus.CounterVec
	nodesExecuted     *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	unresolvedOutputs prometheus.Counter
	operatorFailures  *prometheus.CounterVec
}

// NewMetrics creates the executor metrics and registers them in reg.
// If reg is nil the metrics are created but not registered.
//
// It panics if the metrics are already registered in reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphexec_executions_total",
			Help: "Number of graph executions, by execution path.",
		}, []string{"path"}),
		nodesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphexec_nodes_executed_total",
			Help: "Number of node activations executed, by operator kind.",
		}, []string{"op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "graphexec_execution_duration_seconds",
			Help:    "Duration of graph executions, by execution path.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"path"}),
		unresolvedOutputs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphexec_unresolved_outputs_total",
			Help: "Number of requested outputs that could not be computed.",
		}),
		operatorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphexec_operator_failures_total",
			Help: "Number of node executions that failed, by operator kind.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.executions, m.nodesExecuted, m.duration, m.unresolvedOutputs, m.operatorFailures)
	}
	return m
}

func (m *Metrics) executionDone(path string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(path).Inc()
	m.duration.WithLabelValues(path).Observe(elapsed.Seconds())
}

func (m *Metrics) nodeExecuted(op string) {
	if m == nil {
		return
	}
	m.nodesExecuted.WithLabelValues(op).Inc()
}

func (m *Metrics) operatorFailed(op string) {
	if m == nil {
		return
	}
	m.operatorFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) outputsUnresolved(count int) {
	if m == nil {
		return
	}
	m.unresolvedOutputs.Add(float64(count))
}
