package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weHabitAPI/internal/notification"
	"weHabitAPI/internal/types/feed"
)

type fakePush struct {
	tokens []string
	msgs   []notification.Message
	err    error
}

func (f *fakePush) SendPush(_ context.Context, tokens []string, msg notification.Message) error {
	f.tokens = append(f.tokens, tokens...)
	f.msgs = append(f.msgs, msg)
	return f.err
}

func TestFeed_LogAndRemoveActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.profile(t, "u1", 0)

	require.NoError(t, env.feed.LogActivity(ctx, "u1", feed.EventChallengeProgress, "Progressed", "1/7", "c1"))
	require.NoError(t, env.feed.LogActivity(ctx, "u1", feed.EventChallengeProgress, "Progressed", "1/7", "c2"))
	require.NoError(t, env.feed.LogActivity(ctx, "nobody", feed.EventHabitDone, "Completed", "", "h1"))

	items, err := env.feed.RecentActivity(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "user-u1", items[0].Username)
	assert.Equal(t, day0, items[0].CreatedAt)

	require.NoError(t, env.feed.RemoveActivity(ctx, "u1", feed.EventChallengeProgress, "c1"))
	items, err = env.feed.RecentActivity(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "c2", items[0].CorrelationID)

	empty, err := env.feed.RecentActivity(ctx, "stranger", 10)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestFeed_NotifyUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.profile(t, "u1", 0)
	p.PushTokens = []string{"tok-1", "tok-2"}
	require.NoError(t, env.store.PutProfile(ctx, p))
	env.profile(t, "silent", 0)

	msg := notification.Message{Title: "Challenge won!"}

	// No provider configured.
	require.NoError(t, env.feed.NotifyUser(ctx, "u1", msg))

	push := &fakePush{}
	env.feed.SetPushProvider(push)
	require.NoError(t, env.feed.NotifyUser(ctx, "u1", msg))
	require.NoError(t, env.feed.NotifyUser(ctx, "silent", msg))
	require.NoError(t, env.feed.NotifyUser(ctx, "missing", msg))

	assert.Equal(t, []string{"tok-1", "tok-2"}, push.tokens)
	assert.Len(t, push.msgs, 1)

	push.err = errors.New("fcm down")
	assert.Error(t, env.feed.NotifyUser(ctx, "u1", msg))
}
