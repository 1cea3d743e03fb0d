package fsstore

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weHabitAPI/internal/store"
	"weHabitAPI/internal/types/habit"
)

// setupEmulator connects to a Firestore emulator. Tests are skipped when
// FIRESTORE_EMULATOR_HOST is not set.
func setupEmulator(t *testing.T) *Store {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "wehabit-test")
	require.NoError(t, err)
	s := New(client)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHabitRoundTripAndDuplicateLog(t *testing.T) {
	s := setupEmulator(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	h := &habit.Habit{
		ID:                uuid.New().String(),
		UserID:            "user_" + uuid.New().String(),
		Name:              "Read",
		Type:              habit.TypePositive,
		Category:          habit.DefaultCategory,
		CurrentStreak:     2,
		BestStreak:        4,
		LastCompletedDate: &now,
		IsActive:          true,
		CreatedAt:         now,
	}
	require.NoError(t, s.PutHabit(ctx, h))

	got, err := s.GetHabit(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.Name, got.Name)
	assert.Equal(t, 4, got.BestStreak)
	require.NotNil(t, got.LastCompletedDate)
	assert.True(t, now.Equal(*got.LastCompletedDate))

	l := &habit.CompletionLog{HabitID: h.ID, UserID: h.UserID, Day: "2025-03-10", CompletedAt: now, IsCompleted: true}
	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertLog(ctx, l)
	})
	require.NoError(t, err)

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertLog(ctx, l)
	})
	assert.True(t, store.IsRetryable(err), "duplicate log should surface as a retryable error, got %v", err)

	n, err := s.DeleteHabitLogs(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetHabit(ctx, "missing-"+uuid.New().String())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
