package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeIncidentReported Type = "incident.reported"
	TypeIncidentCritical Type = "incident.critical"
)

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"`
}

func New(t Type, actorID string, payload any, at time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: at.UTC(),
		ActorID:   actorID,
	}
}

// Bus fans events out to subscribers without blocking publishers.
type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
