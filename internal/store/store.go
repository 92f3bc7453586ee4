// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"classim/internal/domain"
)

// Repository defines the interface for persisting sessions and transcripts.
type Repository interface {
	// CreateSession persists a new session record.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by ID. Returns nil when not found.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// ListSessions retrieves all sessions, newest first.
	ListSessions(ctx context.Context) ([]*domain.Session, error)

	// DeleteSession removes a session and its utterances.
	DeleteSession(ctx context.Context, sessionID string) error

	// SaveUtterance appends one utterance to a session's transcript.
	SaveUtterance(ctx context.Context, utterance *domain.Utterance) error

	// ListUtterances retrieves a session's transcript in emission order.
	ListUtterances(ctx context.Context, sessionID string) ([]*domain.Utterance, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
