package models

import "time"

// AuthorizationRequestArgs are the per-call inputs of one sign-on attempt.
// Empty strings mean "not supplied"; supplied values round-trip unchanged.
type AuthorizationRequestArgs struct {
	State string
	Nonce string
}

// AuthorizationResult is the outcome of one sign-on attempt.
// A nil Authorization means the user cancelled.
type AuthorizationResult struct {
	State         string
	Authorization *Authorization
}

// CancelledResult is the explicit "no result" value of a cancelled sign-on.
func CancelledResult() *AuthorizationResult {
	return &AuthorizationResult{}
}

// Cancelled reports whether the user dismissed the interactive surface.
func (r *AuthorizationResult) Cancelled() bool {
	return r == nil || r.Authorization == nil
}

// FlowState is the lifecycle position of an authorization flow.
type FlowState int

const (
	FlowIdle FlowState = iota
	FlowStarted
	FlowAwaitingUserInteraction
	FlowCompleted
	FlowCancelled
	FlowFailed
)

func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "idle"
	case FlowStarted:
		return "started"
	case FlowAwaitingUserInteraction:
		return "awaiting_user_interaction"
	case FlowCompleted:
		return "completed"
	case FlowCancelled:
		return "cancelled"
	case FlowFailed:
		return "failed"
	}
	return "unknown"
}

// Active reports whether a Run is in progress in this state.
func (s FlowState) Active() bool {
	return s == FlowStarted || s == FlowAwaitingUserInteraction
}

// Terminal reports whether the state ends a sign-on attempt.
func (s FlowState) Terminal() bool {
	return s == FlowCompleted || s == FlowCancelled || s == FlowFailed
}

// PendingRelease is a consumed grant that has not been released yet.
type PendingRelease struct {
	TokenID    string    `gorm:"primaryKey;size:255"`
	Item       string    `gorm:"size:255;index"`
	ConsumedAt time.Time `gorm:"not null"`
}

// TableName pins the gorm table name.
func (PendingRelease) TableName() string { return "pending_releases" }

// ReleaseOutcome reports the result of releasing one pending grant.
type ReleaseOutcome struct {
	TokenID string
	Item    string
	Err     error
}
