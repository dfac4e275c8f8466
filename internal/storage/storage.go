package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateIdentity is returned by CreateUser when the identity is
	// already registered.
	ErrDuplicateIdentity = errors.New("identity already registered")
	// ErrInvalidCredential is returned by Authenticate when no user matches
	// the identity/digest pair exactly.
	ErrInvalidCredential = errors.New("no user matches identity and digest")
)

// UserRecord holds the per-user context blobs hydrated at login.
type UserRecord struct {
	Identity string
	Profile  string
	Job      string
	Goals    string
}

// Interaction is one completed question/answer turn. Rows are append-only
// and grouped by session-group label for history replay.
type Interaction struct {
	Identity  string
	Group     string
	Sequence  int64
	Query     string
	Response  string
	CreatedAt time.Time
}

// SessionGroup summarizes one conversation for the session picker: the group
// label plus its earliest query and that query's timestamp.
type SessionGroup struct {
	Group      string
	FirstQuery string
	StartedAt  time.Time
}

// Store abstracts persistence of users and the interaction log.
// Implementations can be database-backed or in-memory and must be safe for
// concurrent use. Every call acquires and releases its own connection; there
// is no long-lived ambient cursor.
type Store interface {
	// EnsureSchema creates missing tables and columns. Safe to call on every
	// process start.
	EnsureSchema(ctx context.Context) error

	CreateUser(ctx context.Context, identity, digest string) error
	Authenticate(ctx context.Context, identity, digest string) (UserRecord, error)

	UpdateProfile(ctx context.Context, identity, blob string) error
	UpdateJob(ctx context.Context, identity, blob string) error
	UpdateGoals(ctx context.Context, identity, blob string) error

	// AppendInteraction inserts one turn. Callers treat a failure here as
	// "unsaved" and keep going; it must never abort the chat flow.
	AppendInteraction(ctx context.Context, identity, group, query, response string) error
	// ListSessionGroups returns one entry per distinct group owned by the
	// identity, newest-first by the group's earliest query timestamp.
	ListSessionGroups(ctx context.Context, identity string) ([]SessionGroup, error)
	// LoadSession returns the full turn history for a group in insertion
	// order.
	LoadSession(ctx context.Context, identity, group string) ([]Interaction, error)

	// CountInteractionsSince reports total turns and distinct identities
	// since a point in time. Used by the daily usage report.
	CountInteractionsSince(ctx context.Context, since time.Time) (turns int, users int, err error)

	Close() error
}
