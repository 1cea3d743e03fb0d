package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"weHabitAPI/internal/clock"
	"weHabitAPI/internal/store/memstore"
	"weHabitAPI/internal/types/habit"
	"weHabitAPI/internal/user"
)

var day0 = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	store      *memstore.Store
	now        time.Time
	clock      *clock.Clock
	effects    *EffectDispatcher
	shields    *ShieldService
	users      *UserService
	feed       *FeedService
	habits     *HabitService
	challenges *ChallengeService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{store: memstore.New(), now: day0}
	env.clock = clock.New(time.UTC, func() time.Time { return env.now })

	log := zap.NewNop()
	tx := NewTxRunner(env.store, 3, log)
	env.effects = NewEffectDispatcher(2, 64, 2, log)
	t.Cleanup(env.effects.Stop)

	env.shields = NewShieldService(tx, env.clock, 5, log)
	env.users = NewUserService(tx, env.clock, env.shields, 1, log)
	env.feed = NewFeedService(env.store, env.clock, log)
	env.habits = NewHabitService(tx, env.clock, env.shields, env.effects, log)
	env.challenges = NewChallengeService(tx, env.clock, env.effects, log)

	env.effects.SetActivityEmitter(env.feed)
	env.effects.SetExperienceAwarder(env.users)
	env.effects.SetChallengePropagator(env.challenges)
	env.effects.SetPushNotifier(env.feed)
	return env
}

// advance moves the clock forward by whole days.
func (e *testEnv) advance(days int) {
	e.effects.Flush()
	e.now = e.now.AddDate(0, 0, days)
}

func (e *testEnv) profile(t *testing.T, userID string, shields int) *user.Profile {
	t.Helper()
	p := &user.Profile{ID: userID, Username: "user-" + userID, Level: 1, StreakShields: shields, CreatedAt: e.now, UpdatedAt: e.now}
	require.NoError(t, e.store.PutProfile(context.Background(), p))
	return p
}

func (e *testEnv) habit(t *testing.T, userID, name string) *habit.Habit {
	t.Helper()
	h, err := e.habits.CreateHabit(context.Background(), userID, &habit.CreateHabitRequest{Name: name})
	require.NoError(t, err)
	return h
}

// storedHabit writes h directly, bypassing the service.
func (e *testEnv) storedHabit(t *testing.T, h *habit.Habit) *habit.Habit {
	t.Helper()
	if h.Category.ID == "" {
		h.Category = habit.DefaultCategory
	}
	if h.Type == "" {
		h.Type = habit.TypePositive
	}
	h.IsActive = true
	require.NoError(t, e.store.PutHabit(context.Background(), h))
	return h
}

func (e *testEnv) daysAgo(n int) *time.Time {
	t := e.now.AddDate(0, 0, -n)
	return &t
}
