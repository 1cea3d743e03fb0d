package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weHabitAPI/internal/engine"
	"weHabitAPI/internal/types/challenge"
	"weHabitAPI/internal/types/feed"
)

func (e *testEnv) challenge(t *testing.T, host, name string, days int, opponents ...string) *challenge.Challenge {
	t.Helper()
	c, err := e.challenges.CreateChallenge(context.Background(), host, &challenge.CreateChallengeRequest{
		ChallengeName: name,
		OpponentIDs:   opponents,
		DurationDays:  days,
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) score(t *testing.T, challengeID, userID string) challenge.Participant {
	t.Helper()
	c, err := e.store.GetChallenge(context.Background(), challengeID)
	require.NoError(t, err)
	i := c.Participant(userID)
	require.GreaterOrEqual(t, i, 0)
	return c.Participants[i]
}

func feedOfType(t *testing.T, env *testEnv, userID string, typ feed.EventType) []*feed.Activity {
	t.Helper()
	events, err := env.store.ListFeed(context.Background(), userID, 100)
	require.NoError(t, err)
	var out []*feed.Activity
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func TestCreateChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := env.challenge(t, "host", " Read 10 pages ", 0, "a", "host", "a", "b")

	assert.Equal(t, "Read 10 pages", c.ChallengeName)
	assert.Equal(t, challenge.DefaultDurationDays, c.DurationDays)
	assert.Equal(t, []string{"host", "a", "b"}, c.ParticipantIDs)
	assert.Len(t, c.Participants, 3)
	assert.True(t, c.EndDate.Equal(day0.AddDate(0, 0, 7)))

	_, err := env.challenges.CreateChallenge(ctx, "host", &challenge.CreateChallengeRequest{ChallengeName: "Solo", OpponentIDs: []string{"host"}})
	assert.Error(t, err)
}

func TestChallengeCheckIn_WinFiresOnce(t *testing.T) {
	// Setup
	env := newTestEnv(t)
	ctx := context.Background()
	env.profile(t, "u1", 0)
	c := env.challenge(t, "u1", "Run", 2, "u2")

	// Execute: day one progress, day two win.
	res, err := env.challenges.CheckIn(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.ScoreProgress, res.Outcome)

	env.advance(1)
	res, err = env.challenges.CheckIn(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.ScoreWon, res.Outcome)
	assert.True(t, res.AwardWin)

	res, err = env.challenges.CheckIn(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.ScoreAlreadyDone, res.Outcome)

	// Undo then redo re-reaches the cap without paying again.
	undone, err := env.challenges.UndoCheckIn(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.True(t, undone)
	env.effects.Flush()
	assert.Empty(t, feedOfType(t, env, "u1", feed.EventChallengeWon))
	assert.Equal(t, 1, env.score(t, c.ID, "u1").CurrentScore)

	res, err = env.challenges.CheckIn(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.ScoreWon, res.Outcome)
	assert.False(t, res.AwardWin)
	env.effects.Flush()

	// Assert
	p, err := env.store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, engine.ChallengeWinXP, p.TotalXP)

	won := feedOfType(t, env, "u1", feed.EventChallengeWon)
	require.Len(t, won, 1)
	assert.Equal(t, c.ID, won[0].CorrelationID)

	u1 := env.score(t, c.ID, "u1")
	assert.Equal(t, 2, u1.CurrentScore)
	assert.NotNil(t, u1.WonAt)
	assert.Equal(t, 0, env.score(t, c.ID, "u2").CurrentScore)

	// Once won, later days do not move the score.
	env.advance(1)
	res, err = env.challenges.CheckIn(ctx, "u1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.ScoreFinished, res.Outcome)
}

func TestHabitCheckIn_PropagatesToMatchingChallenges(t *testing.T) {
	// Setup
	env := newTestEnv(t)
	ctx := context.Background()
	env.profile(t, "u", 0)
	h := env.habit(t, "u", "Read 10 pages")
	a := env.challenge(t, "u", "Read 10 pages", 7, "x")
	b := env.challenge(t, "y", "Read 10 pages", 7, "u")
	failed := env.challenge(t, "u", "Read 10 pages", 7, "z")
	other := env.challenge(t, "u", "Run", 7, "x")
	require.NoError(t, env.challenges.GiveUp(ctx, "u", failed.ID))

	// Execute
	_, err := env.habits.CheckIn(ctx, "u", h.ID)
	require.NoError(t, err)
	env.effects.Flush()

	// Assert
	assert.Equal(t, 1, env.score(t, a.ID, "u").CurrentScore)
	assert.Equal(t, 1, env.score(t, b.ID, "u").CurrentScore)
	assert.Equal(t, 0, env.score(t, failed.ID, "u").CurrentScore)
	assert.Equal(t, 0, env.score(t, other.ID, "u").CurrentScore)
	assert.Equal(t, 0, env.score(t, a.ID, "x").CurrentScore)
	assert.Len(t, feedOfType(t, env, "u", feed.EventChallengeProgress), 2)

	// Undo mirrors into the same challenges.
	_, err = env.habits.UndoCheckIn(ctx, "u", h.ID)
	require.NoError(t, err)
	env.effects.Flush()

	assert.Equal(t, 0, env.score(t, a.ID, "u").CurrentScore)
	assert.Equal(t, 0, env.score(t, b.ID, "u").CurrentScore)
	assert.Empty(t, feedOfType(t, env, "u", feed.EventChallengeProgress))
	assert.Empty(t, feedOfType(t, env, "u", feed.EventHabitDone))
}

func TestChallengeGiveUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.challenge(t, "u1", "Run", 3, "u2")

	require.NoError(t, env.challenges.GiveUp(ctx, "u2", c.ID))
	require.NoError(t, env.challenges.GiveUp(ctx, "u2", c.ID))

	_, err := env.challenges.CheckIn(ctx, "u2", c.ID)
	assert.ErrorIs(t, err, ErrParticipantGaveUp)

	mine, err := env.challenges.MyChallenges(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, mine)

	mine, err = env.challenges.MyChallenges(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	err = env.challenges.GiveUp(ctx, "stranger", c.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestChallengeGiveUp_AfterWinIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.challenge(t, "u1", "Run", 1, "u2")

	res, err := env.challenges.CheckIn(ctx, "u1", c.ID)
	require.NoError(t, err)
	require.Equal(t, engine.ScoreWon, res.Outcome)

	err = env.challenges.GiveUp(ctx, "u1", c.ID)
	assert.ErrorIs(t, err, ErrChallengeWon)
}

func TestDeleteChallenge_HostOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.challenge(t, "host", "Run", 3, "guest")

	assert.ErrorIs(t, env.challenges.DeleteChallenge(ctx, "guest", c.ID), ErrNotHost)
	require.NoError(t, env.challenges.DeleteChallenge(ctx, "host", c.ID))
	assert.ErrorIs(t, env.challenges.DeleteChallenge(ctx, "host", c.ID), ErrChallengeNotFound)
}

func TestStandings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.profile(t, "a", 0)
	env.profile(t, "b", 0)
	c := env.challenge(t, "a", "Run", 5, "b", "c", "d")

	for _, u := range []string{"a", "b"} {
		_, err := env.challenges.CheckIn(ctx, u, c.ID)
		require.NoError(t, err)
	}
	require.NoError(t, env.challenges.GiveUp(ctx, "d", c.ID))

	lb, err := env.challenges.Standings(ctx, "c", c.ID)
	require.NoError(t, err)

	require.Len(t, lb.Entries, 4)
	assert.Equal(t, 5, lb.TargetScore)
	assert.Equal(t, 4, lb.TotalUsers)

	assert.Equal(t, "a", lb.Entries[0].UserID)
	assert.Equal(t, "user-a", lb.Entries[0].Username)
	assert.Equal(t, 1, lb.Entries[0].Rank)
	assert.Equal(t, 1, lb.Entries[1].Rank)
	assert.Equal(t, "c", lb.Entries[2].UserID)
	assert.Equal(t, 3, lb.Entries[2].Rank)
	assert.Equal(t, "d", lb.Entries[3].UserID)
	assert.True(t, lb.Entries[3].HasFailed)

	require.NotNil(t, lb.UserPosition)
	assert.Equal(t, "c", lb.UserPosition.UserID)

	_, err = env.challenges.Standings(ctx, "stranger", c.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestFindActiveChallenges_ExactName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.challenge(t, "u1", "Read", 3, "u2")
	env.challenge(t, "u1", "read", 3, "u2")

	ids, err := env.challenges.FindActiveChallenges(ctx, "u1", "Read")
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, ids)
}
