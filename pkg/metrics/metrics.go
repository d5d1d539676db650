// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for passkey ceremony,
// session, and HTTP request activity.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all go-passkey metrics
	Namespace = "passkey"

	// Label names
	LabelCeremony   = "ceremony"
	LabelStatus     = "status"
	LabelEvent      = "event"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"
	LabelCheckpoint = "checkpoint"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Ceremony names
	CeremonyRegister     = "register"
	CeremonyAuthenticate = "authenticate"

	// Security event names
	EventOriginMismatch     = "origin_mismatch"
	EventRPIDMismatch       = "rpid_mismatch"
	EventCounterRegression  = "counter_regression"
	EventVerificationFailed = "verification_failed"

	// Authorization checkpoint names
	CheckpointEdge     = "edge"
	CheckpointHandler  = "handler"
	CheckpointMutation = "mutation"
)

var (
	// CeremoniesTotal tracks completed ceremony finish attempts by flow and
	// outcome.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of completed WebAuthn ceremonies by flow and status",
		},
		[]string{LabelCeremony, LabelStatus},
	)

	// SecurityEventsTotal tracks security-relevant rejections: origin and
	// relying-party mismatches, counter regressions, verification failures.
	SecurityEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "security_events_total",
			Help:      "Total number of security-relevant ceremony rejections by event type",
		},
		[]string{LabelEvent},
	)

	// AuthorizationDenialsTotal tracks deny decisions by enforcement
	// checkpoint. Each checkpoint derives its own decision, so the same
	// request can be counted at most once per layer.
	AuthorizationDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "authorization_denials_total",
			Help:      "Total number of deny decisions by enforcement checkpoint",
		},
		[]string{LabelCheckpoint},
	)

	// ActiveSessions tracks the number of live server-side sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_sessions",
			Help:      "Number of live server-side sessions",
		},
	)

	// HTTPRequestsTotal tracks the total number of HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordCeremony records a ceremony finish attempt.
//
// Parameters:
//   - ceremony: The flow name (use Ceremony* constants)
//   - status: The outcome (use Status* constants)
func RecordCeremony(ceremony, status string) {
	if !enabled.Load() {
		return
	}
	CeremoniesTotal.WithLabelValues(ceremony, status).Inc()
}

// RecordSecurityEvent records a security-relevant rejection.
func RecordSecurityEvent(event string) {
	if !enabled.Load() {
		return
	}
	SecurityEventsTotal.WithLabelValues(event).Inc()
}

// RecordAuthorizationDenial records a deny decision at an enforcement
// checkpoint (use Checkpoint* constants).
func RecordAuthorizationDenial(checkpoint string) {
	if !enabled.Load() {
		return
	}
	AuthorizationDenialsTotal.WithLabelValues(checkpoint).Inc()
}

// SessionIssued increments the active session gauge.
func SessionIssued() {
	if !enabled.Load() {
		return
	}
	ActiveSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func SessionClosed() {
	if !enabled.Load() {
		return
	}
	ActiveSessions.Dec()
}

// RecordHTTPRequest records an HTTP request with its duration and status.
//
// Parameters:
//   - method: The HTTP method (GET, POST, etc.)
//   - statusCode: The HTTP status code as a string
//   - duration: The request duration in seconds
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
