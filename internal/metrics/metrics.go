// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "preflight"

// Status labels for request observations.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder receives observations from the preflight bridge.
type Recorder interface {
	ObserveRequest(operation, status string, duration time.Duration)
	IncStorageCorruption()
}

// Prometheus is a Recorder backed by its own prometheus registry.
type Prometheus struct {
	registry          *prometheus.Registry
	requestDuration   *prometheus.HistogramVec
	storageCorruption prometheus.Counter
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "preflight request duration, labelled by operation and outcome",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"operation", "status"},
		),
		storageCorruption: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_corruption_total",
			Help:      "number of preflight calls aborted because ledger storage returned undecodable data",
		}),
	}
	p.registry.MustRegister(p.requestDuration, p.storageCorruption)
	return p
}

// Registry exposes the registry for an HTTP handler.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) ObserveRequest(operation, status string, duration time.Duration) {
	p.requestDuration.With(prometheus.Labels{"operation": operation, "status": status}).Observe(duration.Seconds())
}

func (p *Prometheus) IncStorageCorruption() {
	p.storageCorruption.Inc()
}

// Noop discards all observations.
type Noop struct{}

func (Noop) ObserveRequest(string, string, time.Duration) {}
func (Noop) IncStorageCorruption()                        {}
