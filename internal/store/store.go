package store

import (
	"context"
	"errors"

	"weHabitAPI/internal/types/challenge"
	"weHabitAPI/internal/types/feed"
	"weHabitAPI/internal/types/habit"
	"weHabitAPI/internal/user"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrConflict means a transaction lost a race and may be retried.
	ErrConflict = errors.New("store: transaction conflict")
)

// Reader is the read side shared by the store and its transactions.
// Returned values are owned by the caller.
type Reader interface {
	GetHabit(ctx context.Context, id string) (*habit.Habit, error)
	// ListHabits returns a user's habits ordered by creation time.
	ListHabits(ctx context.Context, userID string, activeOnly bool) ([]*habit.Habit, error)
	GetLog(ctx context.Context, key habit.LogKey) (*habit.CompletionLog, error)
	// ListLogs returns a habit's completions ordered by day.
	ListLogs(ctx context.Context, habitID, userID string) ([]*habit.CompletionLog, error)
	ListLogsForDay(ctx context.Context, userID, day string) ([]*habit.CompletionLog, error)
	GetProfile(ctx context.Context, id string) (*user.Profile, error)
	GetChallenge(ctx context.Context, id string) (*challenge.Challenge, error)
	ListChallenges(ctx context.Context, f challenge.Filter) ([]*challenge.Challenge, error)
	// ListFeed returns the newest activity first.
	ListFeed(ctx context.Context, userID string, limit int) ([]*feed.Activity, error)
}

// Writer mutates single documents. Ids are assigned by the caller.
type Writer interface {
	PutHabit(ctx context.Context, h *habit.Habit) error
	DeleteHabit(ctx context.Context, id string) error
	// InsertLog fails with ErrAlreadyExists when the key is taken.
	InsertLog(ctx context.Context, l *habit.CompletionLog) error
	DeleteLog(ctx context.Context, key habit.LogKey) error
	PutProfile(ctx context.Context, p *user.Profile) error
	DeleteProfile(ctx context.Context, id string) error
	PutChallenge(ctx context.Context, c *challenge.Challenge) error
	DeleteChallenge(ctx context.Context, id string) error
	InsertFeedEvent(ctx context.Context, a *feed.Activity) error
}

// Tx is a unit of work. Reads observe committed state only and every read
// must happen before the first write; writes become visible together on
// commit or not at all.
type Tx interface {
	Reader
	Writer
}

type Store interface {
	Tx

	// RunInTx runs fn in a transaction. A lost race surfaces as ErrConflict
	// or, for a duplicate log, ErrAlreadyExists. fn may run again on retry so
	// it must not have side effects outside tx.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// DeleteHabitLogs removes every completion of a habit and reports how many went.
	DeleteHabitLogs(ctx context.Context, habitID string) (int, error)
	// DeleteFeedEvents removes a user's activity of type t tied to correlationID.
	DeleteFeedEvents(ctx context.Context, userID string, t feed.EventType, correlationID string) (int, error)

	Close() error
}

// IsRetryable reports whether a transaction error is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyExists)
}
