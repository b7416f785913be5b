// Package session keeps the per-user form state: the current string value of
// every field the user has seen, and which panel is selected. Each session is
// isolated; nothing here is process-wide.
package session

import (
	"context"
	"errors"
)

// ErrSessionEnded is returned by operations on a session after End.
var ErrSessionEnded = errors.New("session ended")

// FieldKey identifies one field of one panel.
type FieldKey struct {
	PanelID string
	Feature string
}

func (k FieldKey) String() string {
	return k.PanelID + "_" + k.Feature
}

// FieldStore maps field keys to their current string value.
type FieldStore interface {
	// Get returns "" for keys that were never set.
	Get(ctx context.Context, key FieldKey) (string, error)
	Set(ctx context.Context, key FieldKey, value string) error
	// EnsureInitialized sets "" for absent keys only; existing values are kept.
	EnsureInitialized(ctx context.Context, keys []FieldKey) error
}

// Session is one user's FieldStore plus the selected panel.
type Session interface {
	FieldStore
	ID() string
	// Selected returns the selected panel id, or "" if none was chosen yet.
	Selected(ctx context.Context) (string, error)
	Select(ctx context.Context, panelID string) error
}

// Backend creates, finds and destroys sessions.
type Backend interface {
	// Open returns the session for id, creating empty state if needed.
	Open(ctx context.Context, id string) (Session, error)
	// End destroys the session's state. Ending an unknown id is not an error.
	End(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
