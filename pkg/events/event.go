package events

import (
	"time"

	"github.com/digesthq/feed-digest/internal/domain"
)

// Digest lifecycle actions carried on events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event represents the payload published downstream when a digest changes.
type Event struct {
	Action     string        `json:"action"`
	Digest     domain.Digest `json:"digest"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewEvent constructs an Event for the given action + digest.
func NewEvent(action string, digest domain.Digest) Event {
	return Event{
		Action:     action,
		Digest:     digest,
		OccurredAt: time.Now().UTC(),
	}
}
