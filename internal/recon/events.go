package recon

import (
	"context"
	"time"
)

// EventType names a progress event.
type EventType string

const (
	EventStageStarted      EventType = "stage_started"
	EventStageCompleted    EventType = "stage_completed"
	EventPortOpen          EventType = "port_open"
	EventServiceIdentified EventType = "service_identified"
	EventWebFingerprinted  EventType = "web_fingerprinted"
	EventSubdomainFound    EventType = "subdomain_found"
	EventHostAlive         EventType = "host_alive"
)

// Stage names used in events, logs and metrics.
const (
	StagePort      = "port"
	StageBanner    = "banner"
	StageWeb       = "web"
	StageSubdomain = "subdomain"
	StageSweep     = "sweep"
)

// Event is a progress notification emitted while an operation runs.
type Event struct {
	Type      EventType `json:"type"`
	Stage     string    `json:"stage,omitempty"`
	Target    string    `json:"target,omitempty"`
	Port      int       `json:"port,omitempty"`
	Value     string    `json:"value,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink receives events. Emit is called from worker goroutines and must
// be safe for concurrent use; it should not block for long.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// Emit implements EventSink.
func (f EventSinkFunc) Emit(e Event) { f(e) }

type sinkKey struct{}

// WithEventSink returns a context whose operations report progress to sink.
func WithEventSink(ctx context.Context, sink EventSink) context.Context {
	return context.WithValue(ctx, sinkKey{}, sink)
}

// Emit reports e to the sink attached to ctx, if any. The timestamp is set here.
func Emit(ctx context.Context, e Event) {
	sink, ok := ctx.Value(sinkKey{}).(EventSink)
	if !ok || sink == nil {
		return
	}
	e.Timestamp = time.Now().UTC()
	sink.Emit(e)
}
