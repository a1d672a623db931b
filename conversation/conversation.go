// Package conversation keeps per-session chat history, the destination the
// session is currently about, and a pending destination-change confirmation.
package conversation

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("Sesión no encontrada")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Pending is a destination change awaiting the user's answer.
type Pending struct {
	DetectedDestination string    `json:"detected_destination"`
	CurrentDestination  string    `json:"current_destination"`
	OriginalQuestion    string    `json:"original_question"`
	CreatedAt           time.Time `json:"timestamp"`
}

// Store persists sessions. Writes to an unknown session create it, matching
// how the planner adopts ids sent by the client. Reads of an unknown session
// return empty values, not ErrSessionNotFound.
type Store interface {
	CreateSession(ctx context.Context) (string, error)
	SessionExists(ctx context.Context, id string) (bool, error)
	AddMessage(ctx context.Context, id, role, content string) error
	// Messages returns the newest limit messages in chronological order; limit <= 0 means all.
	Messages(ctx context.Context, id string, limit int) ([]Message, error)
	ClearMessages(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	SetCurrentDestination(ctx context.Context, id, destination string) error
	CurrentDestination(ctx context.Context, id string) (string, error)
	SetPending(ctx context.Context, id string, p Pending) error
	Pending(ctx context.Context, id string) (*Pending, error)
	ClearPending(ctx context.Context, id string) error
	Sessions(ctx context.Context) ([]string, error)
}
