package dispatch

import (
	"sync"
)

// EventKind names a step of the resolution algorithm.
type EventKind string

const (
	EventCall     EventKind = "call"     // a call entered the node
	EventGuard    EventKind = "guard"    // one guard evaluation
	EventInstall  EventKind = "install"  // a specialization joined the chain
	EventConfirm  EventKind = "confirm"  // outcome of the post-install guard check
	EventExecute  EventKind = "execute"  // a specialization implementation ran
	EventRewrite  EventKind = "rewrite"  // a specialization was excluded
	EventFallback EventKind = "fallback" // the fallback ran
	EventMiss     EventKind = "miss"     // nothing applied and no fallback
	EventResult   EventKind = "result"   // the call returned a value
	EventError    EventKind = "error"    // the call returned an error
)

// Phase tells which pass of the resolution algorithm produced an event.
type Phase string

const (
	PhaseActive    Phase = "active"
	PhaseDiscovery Phase = "discovery"
	PhaseConfirm   Phase = "confirm"
	PhaseGeneric   Phase = "generic"
)

// Event is one entry of a node's trace.
//
// Seq is stamped from the node's logical clock, so two nodes sharing a
// clock produce a single totally ordered stream.
type Event struct {
	Seq            int64     `json:"seq"`
	Node           string    `json:"node"`
	Call           int64     `json:"call"`
	Kind           EventKind `json:"kind"`
	Phase          Phase     `json:"phase,omitempty"`
	Specialization string    `json:"specialization,omitempty"`
	Guard          string    `json:"guard,omitempty"`
	Passed         bool      `json:"passed,omitempty"`
	Detail         string    `json:"detail,omitempty"`
}

// hasOutcome reports whether Passed carries information for this kind.
func (e Event) hasOutcome() bool {
	return e.Kind == EventGuard || e.Kind == EventConfirm
}

// Canonical renders the event as a map suitable for ir.MarshalCanonical.
// Empty fields are omitted; passed is always present on guard and confirm
// events.
func (e Event) Canonical() map[string]any {
	m := map[string]any{
		"seq":  e.Seq,
		"node": e.Node,
		"call": e.Call,
		"kind": string(e.Kind),
	}
	if e.Phase != "" {
		m["phase"] = string(e.Phase)
	}
	if e.Specialization != "" {
		m["specialization"] = e.Specialization
	}
	if e.Guard != "" {
		m["guard"] = e.Guard
	}
	if e.hasOutcome() {
		m["passed"] = e.Passed
	}
	if e.Detail != "" {
		m["detail"] = e.Detail
	}
	return m
}

// Recorder receives trace events as they happen.
type Recorder interface {
	Record(Event)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(Event)

func (f RecorderFunc) Record(e Event) { f(e) }

// TraceBuffer is an in-memory Recorder. It is safe for concurrent use so
// one buffer can collect from several nodes.
type TraceBuffer struct {
	mu     sync.Mutex
	events []Event
}

func (b *TraceBuffer) Record(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

// Events returns a copy of the recorded events in arrival order.
func (b *TraceBuffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Len returns the number of recorded events.
func (b *TraceBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Reset drops all recorded events.
func (b *TraceBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

type nopRecorder struct{}

func (nopRecorder) Record(Event) {}
