package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventBuilderGenerated EventType = "builder_generated"
	EventOverrideApplied  EventType = "override_applied"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// BuilderEvent reports the outcome of one builder generation.
type BuilderEvent struct {
	EventBase
	Generator string        `json:"generator"`
	Process   string        `json:"process"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// OverrideEvent reports the outcome of one override application.
type OverrideEvent struct {
	EventBase
	Override string `json:"override"`
	Port     string `json:"port"`
	Err      error  `json:"-"`
}

// LifecycleHooks defines callbacks for observability. Nil callbacks are skipped.
type LifecycleHooks struct {
	OnBuilderGenerated func(context.Context, *BuilderEvent)
	OnOverrideApplied  func(context.Context, *OverrideEvent)
}

// EmitBuilder calls OnBuilderGenerated if set.
func (h LifecycleHooks) EmitBuilder(ctx context.Context, e *BuilderEvent) {
	if h.OnBuilderGenerated != nil {
		h.OnBuilderGenerated(ctx, e)
	}
}

// EmitOverride calls OnOverrideApplied if set.
func (h LifecycleHooks) EmitOverride(ctx context.Context, e *OverrideEvent) {
	if h.OnOverrideApplied != nil {
		h.OnOverrideApplied(ctx, e)
	}
}
