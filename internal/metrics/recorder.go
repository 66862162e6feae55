// Package metrics records service metrics for Prometheus.
package metrics

import "time"

// Recorder is implemented by Prometheus-backed and no-op metrics.
type Recorder interface {
	// RecordEnrollment counts an enrollment attempt by result (success, no_face, invalid, error)
	RecordEnrollment(result string)
	// RecordVerification counts a verification by event type and result (match, no_match, rejected)
	RecordVerification(event, result string, duration time.Duration)
	// RecordEncoderCall observes the latency of one encoder call
	RecordEncoderCall(duration time.Duration, err error)
	// RecordPersist counts snapshot writes by backend and outcome
	RecordPersist(backend string, duration time.Duration, err error)
	// SetEnrolledUsers updates the enrolled identity gauge
	SetEnrolledUsers(n int)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

var _ Recorder = NoopMetrics{}

func (NoopMetrics) RecordEnrollment(string)                        {}
func (NoopMetrics) RecordVerification(string, string, time.Duration) {}
func (NoopMetrics) RecordEncoderCall(time.Duration, error)          {}
func (NoopMetrics) RecordPersist(string, time.Duration, error)      {}
func (NoopMetrics) SetEnrolledUsers(int)                            {}
