package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewEvent(t *testing.T) {
	t.Parallel()

	before := time.Now()
	event := NewEvent(EventSessionLogin, "user-1", "user@example.com")

	if event.ID == uuid.Nil {
		t.Error("expected a generated event ID")
	}
	if event.Type != EventSessionLogin {
		t.Errorf("expected type %q, got %q", EventSessionLogin, event.Type)
	}
	if event.UserID != "user-1" || event.Email != "user@example.com" {
		t.Errorf("identity not carried: %+v", event)
	}
	if event.CreatedAt.Before(before) || event.CreatedAt.After(time.Now()) {
		t.Errorf("CreatedAt outside expected window: %v", event.CreatedAt)
	}
}

func TestNewEventIDsAreUnique(t *testing.T) {
	t.Parallel()

	a := NewEvent(EventSessionLogout, "", "")
	b := NewEvent(EventSessionLogout, "", "")
	if a.ID == b.ID {
		t.Error("expected distinct event IDs")
	}
}
