package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weHabitAPI/internal/user"
)

func TestCreateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.users.CreateProfile(ctx, &user.CreateProfileRequest{UserID: "u1", Email: "u1@example.com", Username: "ana"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.StreakShields)
	assert.Equal(t, 1, p.Level)

	_, err = env.users.CreateProfile(ctx, &user.CreateProfileRequest{UserID: "u1", Username: "again"})
	assert.ErrorIs(t, err, ErrProfileExists)

	resp, err := env.users.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ana", resp.Username)
	assert.Equal(t, "Novice", resp.LevelInfo.Title)
	assert.Equal(t, 100, resp.LevelInfo.XPNeeded)

	_, err = env.users.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestAddExperience_LevelsUpAndGrantsShields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.profile(t, "u1", 1)

	require.NoError(t, env.users.AddExperience(ctx, "u1", 350))

	p, err := env.store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 350, p.TotalXP)
	assert.Equal(t, 3, p.Level)
	assert.Equal(t, 3, p.StreakShields)

	// Zero and negative amounts do nothing.
	require.NoError(t, env.users.AddExperience(ctx, "u1", 0))
	require.NoError(t, env.users.AddExperience(ctx, "u1", -5))

	// Shields stop at the cap.
	require.NoError(t, env.users.AddExperience(ctx, "u1", 60000))
	p, err = env.store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, p.Level)
	assert.Equal(t, 5, p.StreakShields)

	assert.ErrorIs(t, env.users.AddExperience(ctx, "missing", 10), ErrProfileNotFound)
}

func TestAddExperience_ConcurrentAwardsAreNotLost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.profile(t, "u1", 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, env.users.AddExperience(ctx, "u1", 10))
		}()
	}
	wg.Wait()

	p, err := env.store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 200, p.TotalXP)
}

func TestUpdateProfileAndPushTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.profile(t, "u1", 0)

	p, err := env.users.UpdateProfile(ctx, "u1", &user.UpdateProfileRequest{Username: "neo"})
	require.NoError(t, err)
	assert.Equal(t, "neo", p.Username)

	require.NoError(t, env.users.RegisterPushToken(ctx, "u1", "tok-1"))
	require.NoError(t, env.users.RegisterPushToken(ctx, "u1", "tok-1"))
	require.NoError(t, env.users.RegisterPushToken(ctx, "u1", "tok-2"))

	stored, err := env.store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1", "tok-2"}, stored.PushTokens)
}

func TestDeleteProfile_RemovesHabits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.profile(t, "u1", 0)
	h := env.habit(t, "u1", "Read")
	_, err := env.habits.CheckIn(ctx, "u1", h.ID)
	require.NoError(t, err)
	env.effects.Flush()

	require.NoError(t, env.users.DeleteProfile(ctx, "u1"))

	_, err = env.store.GetProfile(ctx, "u1")
	assert.Error(t, err)
	habits, err := env.store.ListHabits(ctx, "u1", false)
	require.NoError(t, err)
	assert.Empty(t, habits)
	assert.ErrorIs(t, env.users.DeleteProfile(ctx, "u1"), ErrProfileNotFound)
}
