package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Accounts() AccountStore
	Runs() RunStore
}

// AccountStore manages user accounts.
type AccountStore interface {
	Get(ctx context.Context, username string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	Upsert(ctx context.Context, account Account) error
	Delete(ctx context.Context, username string) error
	UpdateLastLogin(ctx context.Context, username string, loginTime time.Time) error
}

// RunStore keeps the history of completed logging runs.
type RunStore interface {
	Add(ctx context.Context, run Run) error
	List(ctx context.Context, limit int) ([]Run, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
