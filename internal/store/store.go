// Package store defines the persistence interfaces for agreements and
// session gate flags.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/agreements/internal/model"
)

// ErrUniqueViolation is returned by InsertAgreement when the confirmation
// code is already taken. Callers are expected to pick a new code and retry.
var ErrUniqueViolation = errors.New("unique constraint violation")

// ErrNotFound is returned when a looked-up agreement does not exist.
var ErrNotFound = errors.New("not found")

// Store is the agreement backend. Implementations are selected once at
// startup: the Postgres store when a database is configured, the local
// fallback otherwise.
type Store interface {
	// InsertAgreement persists a new agreement. The record must carry a
	// confirmation code; ID and AgreedAt are filled in when empty.
	InsertAgreement(ctx context.Context, a *model.Agreement) error
	GetAgreementByCode(ctx context.Context, code string) (*model.Agreement, error)
	// GetAgreementBySession returns the newest agreement signed in the given
	// reading session, or ErrNotFound.
	GetAgreementBySession(ctx context.Context, sessionID string) (*model.Agreement, error)
	// ListAgreements returns matching agreements newest first, plus the total
	// number of matches ignoring Limit and Offset.
	ListAgreements(ctx context.Context, filter model.AgreementFilter) ([]*model.Agreement, int, error)
	Close() error
}

// FlagStore holds the per-session "form unlocked" flag. Flags last for the
// session lifetime; an expired flag reads as unset.
type FlagStore interface {
	IsUnlocked(ctx context.Context, sessionID string) (bool, error)
	SetUnlocked(ctx context.Context, sessionID string, ttl time.Duration) error
	ClearUnlocked(ctx context.Context, sessionID string) error
	// PurgeExpired drops expired flags and reports how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}
