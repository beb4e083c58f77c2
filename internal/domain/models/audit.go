package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageEventType names an entitlement operation worth auditing.
type UsageEventType string

const (
	UsageEventCheck   UsageEventType = "entitlement.check"
	UsageEventConsume UsageEventType = "entitlement.consume"
	UsageEventRelease UsageEventType = "entitlement.release"
)

// UsageEvent is a single audit trail entry for an entitlement operation.
type UsageEvent struct {
	EventID   uuid.UUID      `json:"event_id"`
	EventType UsageEventType `json:"event_type"`
	MachineID string         `json:"machine_id"`
	Item      string         `json:"item,omitempty"`
	TokenID   string         `json:"token_id,omitempty"`
	Result    string         `json:"result"` // "granted", "denied", "released" or "failure"
	TraceID   string         `json:"trace_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewUsageEvent creates a new usage event stamped with the current time.
func NewUsageEvent(eventType UsageEventType, machineID string, result string) *UsageEvent {
	return &UsageEvent{
		EventID:   uuid.New(),
		EventType: eventType,
		MachineID: machineID,
		Result:    result,
		Timestamp: time.Now().UTC(),
	}
}

// WithItem sets the item the event refers to.
func (e *UsageEvent) WithItem(item string) *UsageEvent {
	e.Item = item
	return e
}

// WithTokenID sets the consumption token identifier.
func (e *UsageEvent) WithTokenID(tokenID string) *UsageEvent {
	e.TokenID = tokenID
	return e
}

// WithTraceID sets the trace the event was produced in.
func (e *UsageEvent) WithTraceID(traceID string) *UsageEvent {
	e.TraceID = traceID
	return e
}
