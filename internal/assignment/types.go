package assignment

import (
	"time"

	"github.com/chatfloor/dispatch/internal/db"
	"github.com/chatfloor/dispatch/internal/db/sqlc"
)

// Assignment is a persona granted to a worker, optionally primary.
type Assignment struct {
	ID              string    `json:"id"`
	WorkerID        string    `json:"worker_id"`
	PersonaID       string    `json:"persona_id"`
	Active          bool      `json:"active"`
	Primary         bool      `json:"primary"`
	LastActivity    time.Time `json:"last_activity"`
	LastMessageSent time.Time `json:"last_message_sent,omitempty"`
	LastTyping      time.Time `json:"last_typing,omitempty"`
	GrantedAt       time.Time `json:"granted_at"`
	ReleasedAt      time.Time `json:"released_at,omitempty"`
}

// Worker is the subset of the externally-owned worker record this core reads.
type Worker struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Online      bool   `json:"online"`
}

func toAssignment(row sqlc.Assignment) Assignment {
	return Assignment{
		ID:              db.UUIDToString(row.ID),
		WorkerID:        db.UUIDToString(row.WorkerID),
		PersonaID:       db.UUIDToString(row.PersonaID),
		Active:          row.IsActive,
		Primary:         row.IsPrimary,
		LastActivity:    db.TimeFromPg(row.LastActivity),
		LastMessageSent: db.TimeFromPg(row.LastMessageSent),
		LastTyping:      db.TimeFromPg(row.LastTyping),
		GrantedAt:       db.TimeFromPg(row.GrantedAt),
		ReleasedAt:      db.TimeFromPg(row.ReleasedAt),
	}
}

func toWorker(row sqlc.Worker) Worker {
	return Worker{
		ID:          db.UUIDToString(row.ID),
		DisplayName: row.DisplayName,
		Online:      row.IsActive && row.IsOnline,
	}
}
