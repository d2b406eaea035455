// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics holds the Prometheus collectors shared across the
// runtime core's subpackages. Registration against a process-wide
// registry is left to the host: collectors here are plain package-level
// vars (the idiom client_golang itself documents for library code), and
// the host registers them with its own prometheus.Registerer during
// startup via MustRegisterAll.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SendTotal counts write-stream sends, labeled by kind ("data" or
	// "watermark") and outcome ("ok", "stream_closed",
	// "timestamp_violation", "endpoint_error").
	SendTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dataflow",
		Subsystem: "writestream",
		Name:      "sends_total",
		Help:      "Total write-stream send attempts by kind and outcome.",
	}, []string{"kind", "outcome"})

	// EndpointErrorsTotal counts per-endpoint push failures during fan-out.
	EndpointErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dataflow",
		Subsystem: "writestream",
		Name:      "endpoint_errors_total",
		Help:      "Total per-endpoint push failures during fan-out.",
	})

	// NotifyPublishedTotal counts events published to the notification bus.
	NotifyPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dataflow",
		Subsystem: "notify",
		Name:      "published_total",
		Help:      "Total events published to the notification bus.",
	})

	// NotifyLaggedTotal counts Lagged resyncs observed by receivers.
	NotifyLaggedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dataflow",
		Subsystem: "notify",
		Name:      "lagged_total",
		Help:      "Total Lagged events returned to receivers that fell behind the ring.",
	})

	// StateAccessViolationsTotal counts rejected time-versioned-state
	// operations, labeled by the operation name.
	StateAccessViolationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dataflow",
		Subsystem: "state",
		Name:      "access_violations_total",
		Help:      "Total AccessViolation errors raised by time-versioned-state operations.",
	}, []string{"op"})
)

// MustRegisterAll registers every collector in this package against r. A
// host process calls this once against its own prometheus.Registerer
// (typically prometheus.DefaultRegisterer); subpackages never register
// themselves.
func MustRegisterAll(r prometheus.Registerer) {
	r.MustRegister(
		SendTotal,
		EndpointErrorsTotal,
		NotifyPublishedTotal,
		NotifyLaggedTotal,
		StateAccessViolationsTotal,
	)
}
