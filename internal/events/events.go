// Package events defines the dispatch event bus and its event envelope.
//
// The bus is a one-way collaborator: the core emits signals consumed by the
// chat UI and notification dispatch, both outside this repository. Publish
// failures are logged by callers, never folded into the mutating transaction.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies an event kind; used as the routing key on AMQP.
type Type string

const (
	TypePersonaAssigned      Type = "persona.assigned"
	TypeClientAssigned       Type = "client.assigned"
	TypeLockStatusChanged    Type = "lock.status_changed"
	TypeQueuePositionChanged Type = "queue.position_changed"
	TypeInactivityWarning    Type = "inactivity.warning"
	TypeInactivityDetected   Type = "inactivity.detected"
	TypeConflictDetected     Type = "conflict.detected"
)

// Meta carries the envelope metadata shared by every event.
type Meta struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	Time          time.Time `json:"time"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Event is the published envelope.
type Event struct {
	Meta    Meta `json:"meta"`
	Payload any  `json:"payload"`
}

// New builds an event envelope with a fresh id and the given timestamp.
func New(eventType Type, at time.Time, payload any) Event {
	id := uuid.NewString()
	return Event{
		Meta: Meta{
			ID:            id,
			Type:          eventType,
			Time:          at.UTC(),
			CorrelationID: id,
		},
		Payload: payload,
	}
}

// Bus publishes events to downstream consumers.
type Bus interface {
	Publish(ctx context.Context, event Event) error
}

// PersonaAssigned signals a persona grant.
type PersonaAssigned struct {
	AssignmentID string `json:"assignment_id"`
	WorkerID     string `json:"worker_id"`
	PersonaID    string `json:"persona_id"`
	Primary      bool   `json:"primary"`
}

// ClientAssigned signals a client bound to a worker's assignment.
type ClientAssigned struct {
	AssignmentID string `json:"assignment_id"`
	WorkerID     string `json:"worker_id"`
	PersonaID    string `json:"persona_id"`
	ClientID     string `json:"client_id"`
}

// LockStatusChanged signals a lock acquire, release, or forced release.
type LockStatusChanged struct {
	ResourceID string `json:"resource_id"`
	HolderID   string `json:"holder_id,omitempty"`
	Locked     bool   `json:"locked"`
	Reason     string `json:"reason,omitempty"`
}

// QueuePositionChanged signals a worker's queue position after a reorder.
type QueuePositionChanged struct {
	WorkerID             string `json:"worker_id"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
}

// InactivityWarning signals an assignment close to idle reclamation.
type InactivityWarning struct {
	WorkerID  string    `json:"worker_id"`
	PersonaID string    `json:"persona_id"`
	ClientID  string    `json:"client_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InactivityDetected signals an idle assignment ready for reclamation.
type InactivityDetected struct {
	WorkerID  string `json:"worker_id"`
	PersonaID string `json:"persona_id"`
	ClientID  string `json:"client_id,omitempty"`
}

// ConflictDetected signals an invariant violation repaired by the resolver.
type ConflictDetected struct {
	Kind      string `json:"kind"`
	WorkerID  string `json:"worker_id,omitempty"`
	PersonaID string `json:"persona_id,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}
