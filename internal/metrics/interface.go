// Package metrics provides interfaces for metrics collection and monitoring.
package metrics

import "time"

//go:generate mockgen -destination=mocks/mock_recorder.go -package=mocks github.com/anstrom/reconnoiter/internal/metrics Recorder

// Probe results used as label values.
const (
	ResultOpen    = "open"
	ResultClosed  = "closed"
	ResultFound   = "found"
	ResultMissing = "missing"
	ResultTimeout = "timeout"
	ResultError   = "error"
)

// Recorder is the set of observations the recon engine and its surfaces emit.
// This interface allows for easy mocking and testing of metrics functionality.
type Recorder interface {
	// ObserveProbe records one probe unit of a stage (port, banner, web,
	// subdomain, sweep) with its result and duration.
	ObserveProbe(stage, result string, duration time.Duration)

	// ObserveRateLimitWait records how long a probe waited for a limiter slot.
	ObserveRateLimitWait(duration time.Duration)

	// IncrementOperations counts a finished top-level operation by status.
	IncrementOperations(operation, status string)

	// RecordOperationDuration records how long a top-level operation took.
	RecordOperationDuration(operation string, duration time.Duration)

	// AddFindings counts discovered items (open ports, subdomains, live hosts).
	AddFindings(kind string, count int)

	// AddActiveOperations adjusts the in-flight operation gauge.
	AddActiveOperations(operation string, delta int)

	// IncrementHTTPRequests counts an API request.
	IncrementHTTPRequests(method, path, status string)

	// RecordHTTPDuration records an API request duration.
	RecordHTTPDuration(method, path string, duration time.Duration)

	// IncrementScheduledRuns counts a scheduled job execution.
	IncrementScheduledRuns(job, status string)
}

// Ensure that PrometheusMetrics implements Recorder interface.
var _ Recorder = (*PrometheusMetrics)(nil)

// Ensure that Nop implements Recorder interface.
var _ Recorder = Nop{}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveProbe(string, string, time.Duration) {}
func (Nop) ObserveRateLimitWait(time.Duration) {}
func (Nop) IncrementOperations(string, string) {}
func (Nop) RecordOperationDuration(string, time.Duration) {}
func (Nop) AddFindings(string, int) {}
func (Nop) AddActiveOperations(string, int) {}
func (Nop) IncrementHTTPRequests(string, string, string) {}
func (Nop) RecordHTTPDuration(string, string, time.Duration) {}
func (Nop) IncrementScheduledRuns(string, string) {}
