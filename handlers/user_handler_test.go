package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weHabitAPI/internal/types/feed"
	"weHabitAPI/internal/user"
)

func TestUserHandler_ProfileShieldsAndFeed(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, ts.store.PutProfile(ctx, &user.Profile{ID: "u1", Username: "ana", Level: 1, StreakShields: 2}))

	rr := ts.do(t, "GET", "/api/v1/user/profile", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var profile user.ProfileResponse
	decode(t, rr, &profile)
	assert.Equal(t, "ana", profile.Username)
	assert.Equal(t, 1, profile.LevelInfo.Level)

	rr = ts.do(t, "GET", "/api/v1/user/shields", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var shields map[string]int
	decode(t, rr, &shields)
	assert.Equal(t, 2, shields["streakShields"])
	assert.Equal(t, 5, shields["maxShields"])

	rr = ts.do(t, "POST", "/api/v1/habits", "u1", map[string]string{"name": "Read"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var h struct{ ID string }
	decode(t, rr, &h)
	require.Equal(t, http.StatusOK, ts.do(t, "POST", "/api/v1/habits/"+h.ID+"/check-in", "u1", nil).Code)
	ts.effects.Flush()

	rr = ts.do(t, "GET", "/api/v1/user/feed?limit=5", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var items []feed.Activity
	decode(t, rr, &items)
	require.Len(t, items, 1)
	assert.Equal(t, feed.EventHabitDone, items[0].Type)
	assert.Equal(t, "ana", items[0].Username)

	rr = ts.do(t, "GET", "/api/v1/user/profile", "missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
