// Package events publishes authentication audit events. Publishing is best
// effort: the auth flow never waits on, or fails because of, an event.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names an audit event
type Type string

const (
	LoginSucceeded     Type = "login_succeeded"
	LoginFailed        Type = "login_failed"
	Logout             Type = "logout"
	PasswordReset      Type = "password_reset"
	PasswordResetFail  Type = "password_reset_failed"
	SessionInvalidated Type = "session_invalidated"
)

// Event is one audit record
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	BrowserID  string    `json:"browser_id"`
	Role       string    `json:"role,omitempty"`
	Email      string    `json:"email,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps an event with an id and the current time
func New(t Type, browserID string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		BrowserID:  browserID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events somewhere
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}
