package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weHabitAPI/internal/types/challenge"
	"weHabitAPI/internal/types/leaderboard"
)

func TestChallengeHandler_Flow(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, "POST", "/api/v1/challenges", "host", map[string]interface{}{
		"challengeName": "Run",
		"opponentIds":   []string{"guest"},
		"durationDays":  1,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var c challenge.Challenge
	decode(t, rr, &c)
	assert.Equal(t, []string{"host", "guest"}, c.ParticipantIDs)

	rr = ts.do(t, "POST", "/api/v1/challenges/"+c.ID+"/check-in", "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var res map[string]interface{}
	decode(t, rr, &res)
	assert.Equal(t, "won", res["outcome"])
	assert.Equal(t, float64(1), res["currentScore"])

	rr = ts.do(t, "GET", "/api/v1/challenges/"+c.ID+"/standings", "guest", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var lb leaderboard.Leaderboard
	decode(t, rr, &lb)
	require.Len(t, lb.Entries, 2)
	assert.Equal(t, "host", lb.Entries[0].UserID)
	assert.True(t, lb.Entries[0].HasWon)
	require.NotNil(t, lb.UserPosition)
	assert.Equal(t, 2, lb.UserPosition.Rank)
}

func TestChallengeHandler_Errors(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, "POST", "/api/v1/challenges", "host", map[string]interface{}{"challengeName": "Run"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, "POST", "/api/v1/challenges", "host", map[string]interface{}{"challengeName": "Run", "opponentIds": []string{"guest"}})
	require.Equal(t, http.StatusCreated, rr.Code)
	var c challenge.Challenge
	decode(t, rr, &c)

	rr = ts.do(t, "POST", "/api/v1/challenges/"+c.ID+"/check-in", "stranger", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, "POST", "/api/v1/challenges/missing/check-in", "host", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
