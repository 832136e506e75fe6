package queue

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies an auth audit event
type EventType string

const (
	EventUserRegistered EventType = "user.registered"
	EventSessionLogin   EventType = "session.login"
	EventSessionRefresh EventType = "session.refresh"
	EventRefreshDenied  EventType = "session.refresh_denied"
	EventSessionLogout  EventType = "session.logout"
)

// Event is an auth audit event published by the API and consumed by the
// audit worker. Events are advisory: publishing failures never fail the
// originating request.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent creates an auth audit event
func NewEvent(eventType EventType, userID, email string) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		UserID:    userID,
		Email:     email,
		CreatedAt: time.Now(),
	}
}
