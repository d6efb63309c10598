// Package audit records security-relevant events. Emission is fire and
// forget: a failing audit sink degrades to a log line and never blocks or
// fails the operation that produced the event.
package audit

import (
	"context"
	"time"
)

// Event is one audit record.
type Event struct {
	ID         int64          `json:"id"`
	OccurredAt time.Time      `json:"occurred_at"`
	ActorID    int64          `json:"actor_id"`
	TenantID   *int64         `json:"tenant_id,omitempty"`
	Action     string         `json:"action"`
	TargetKind string         `json:"target_kind"`
	TargetID   string         `json:"target_id"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Emitter accepts events. Implementations must not return control-flow
// errors to callers; degraded sinks log and drop.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// Discard is an Emitter that drops everything. Useful in tests.
type Discard struct{}

func (Discard) Emit(context.Context, Event) {}
