// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package syncs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	criticalContended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syncs_critical_contended_total",
		Help: "Critical section acquisitions that found the lock held by another thread",
	})
	criticalWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "syncs_critical_wait_seconds",
		Help: "Time contended critical section acquisitions spent waiting",
		// 13 buckets from 1µs to 1s.
		Buckets: prometheus.ExponentialBucketsRange(1e-6, 1, 13),
	})
	criticalReentries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syncs_critical_reentries_total",
		Help: "Recursive critical section acquisitions by the current owner",
	})
	criticalEventsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syncs_critical_events_created_total",
		Help: "Critical section wait objects created",
	})
)
