// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics provides the finalizer's optional Prometheus
// instrumentation. A nil *Set is valid and simply records nothing, so
// callers without a registry pay no cost.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set holds the counters and gauges the finalizer reports. A nil *Set is
// safe to use everywhere below: all methods are nil-receiver safe.
type Set struct {
	commitsBuffered    prometheus.Gauge
	blocksLinked       prometheus.Counter
	commitsEmitted     prometheus.Counter
	transactionsReject prometheus.Counter
}

// NewSet registers the finalizer's metrics with reg and returns a Set.
// If reg is nil or registration fails, returns nil, disabling metrics.
func NewSet(reg prometheus.Registerer) *Set {
	if reg == nil {
		return nil
	}
	s := &Set{
		commitsBuffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "commit_finalizer_commits_buffered",
			Help: "Number of commits currently buffered awaiting finalization.",
		}),
		blocksLinked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commit_finalizer_blocks_linked_total",
			Help: "Total number of blocks linked into the block graph.",
		}),
		commitsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commit_finalizer_commits_emitted_total",
			Help: "Total number of commits emitted downstream.",
		}),
		transactionsReject: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commit_finalizer_transactions_rejected_total",
			Help: "Total number of transactions decided as rejected.",
		}),
	}
	for _, c := range []prometheus.Collector{s.commitsBuffered, s.blocksLinked, s.commitsEmitted, s.transactionsReject} {
		if err := reg.Register(c); err != nil {
			return nil
		}
	}
	return s
}

// SetCommitsBuffered records the current buffer depth.
func (s *Set) SetCommitsBuffered(n int) {
	if s == nil {
		return
	}
	s.commitsBuffered.Set(float64(n))
}

// AddBlocksLinked increments the linked-block counter.
func (s *Set) AddBlocksLinked(n int) {
	if s == nil || n == 0 {
		return
	}
	s.blocksLinked.Add(float64(n))
}

// AddCommitsEmitted increments the emitted-commit counter.
func (s *Set) AddCommitsEmitted(n int) {
	if s == nil || n == 0 {
		return
	}
	s.commitsEmitted.Add(float64(n))
}

// AddTransactionsRejected increments the rejected-transaction counter.
func (s *Set) AddTransactionsRejected(n int) {
	if s == nil || n == 0 {
		return
	}
	s.transactionsReject.Add(float64(n))
}
