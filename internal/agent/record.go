package agent

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies an activity record.
type EventKind string

const (
	EventDiscovery         EventKind = "discovery"
	EventLoad              EventKind = "load"
	EventCacheHit          EventKind = "cache_hit"
	EventCacheMiss         EventKind = "cache_miss"
	EventInvalidation      EventKind = "invalidation"
	EventModification      EventKind = "modification"
	EventSelection         EventKind = "selection"
	EventSelectionFallback EventKind = "selection_fallback"
	EventError             EventKind = "error"
)

// ActivityRecord is one append-only audit entry. Ownership transfers to the
// reporter on emission; the sink must be idempotent on
// (Timestamp, Kind, AgentID, SourcePath).
type ActivityRecord struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Kind           EventKind         `json:"kind"`
	AgentID        ID                `json:"agent_id,omitempty"`
	SourcePath     string            `json:"source_path,omitempty"`
	ViewGeneration int64             `json:"view_generation,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
}

// NewRecord creates a record with a fresh id and the current timestamp.
func NewRecord(kind EventKind) *ActivityRecord {
	return &ActivityRecord{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Kind:      kind,
	}
}

// WithAgent sets the agent id and returns the record.
func (r *ActivityRecord) WithAgent(id ID) *ActivityRecord {
	r.AgentID = id
	return r
}

// WithPath sets the source path and returns the record.
func (r *ActivityRecord) WithPath(path string) *ActivityRecord {
	r.SourcePath = path
	return r
}

// WithGeneration sets the view generation and returns the record.
func (r *ActivityRecord) WithGeneration(gen int64) *ActivityRecord {
	r.ViewGeneration = gen
	return r
}

// WithDetail adds one detail key and returns the record.
func (r *ActivityRecord) WithDetail(key, value string) *ActivityRecord {
	if r.Details == nil {
		r.Details = make(map[string]string)
	}
	r.Details[key] = value
	return r
}

// Emitter receives activity records. Implemented by the reporter; a nil-safe
// no-op emitter is used where auditing is not wired.
type Emitter interface {
	Emit(rec *ActivityRecord)
}

// NopEmitter discards all records.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(*ActivityRecord) {}
