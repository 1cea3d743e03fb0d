package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weHabitAPI/internal/types/calendar"
	"weHabitAPI/internal/types/habit"
	"weHabitAPI/internal/types/streak"
)

func TestHabitHandler_CreateAndCheckIn(t *testing.T) {
	// Setup
	ts := newTestServer(t)

	// Execute
	rr := ts.do(t, "POST", "/api/v1/habits", "u1", map[string]string{"name": "Read"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created habit.Habit
	decode(t, rr, &created)

	first := ts.do(t, "POST", "/api/v1/habits/"+created.ID+"/check-in", "u1", nil)
	second := ts.do(t, "POST", "/api/v1/habits/"+created.ID+"/check-in", "u1", nil)

	// Assert
	require.Equal(t, http.StatusOK, first.Code)
	var res streak.CheckInResult
	decode(t, first, &res)
	assert.Equal(t, 1, res.StreakAfter)
	assert.True(t, res.IsFirstEverCompletion)

	require.Equal(t, http.StatusOK, second.Code)
	decode(t, second, &res)
	assert.True(t, res.AlreadyDone)

	rr = ts.do(t, "GET", "/api/v1/habits", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var habits []habit.Habit
	decode(t, rr, &habits)
	require.Len(t, habits, 1)
	assert.Equal(t, 1, habits[0].CurrentStreak)
}

func TestHabitHandler_Errors(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, "POST", "/api/v1/habits", "u1", map[string]string{"name": "Quit soda", "type": "negative"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var neg habit.Habit
	decode(t, rr, &neg)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   interface{}
		want   int
	}{
		{"unauthenticated", "GET", "/api/v1/habits", "", nil, http.StatusUnauthorized},
		{"missing name", "POST", "/api/v1/habits", "u1", map[string]string{"icon": "x"}, http.StatusBadRequest},
		{"bad type", "POST", "/api/v1/habits", "u1", map[string]string{"name": "a", "type": "maybe"}, http.StatusBadRequest},
		{"unknown habit", "POST", "/api/v1/habits/nope/check-in", "u1", nil, http.StatusNotFound},
		{"other user's habit", "POST", "/api/v1/habits/" + neg.ID + "/check-in", "u2", nil, http.StatusNotFound},
		{"negative habit", "POST", "/api/v1/habits/" + neg.ID + "/check-in", "u1", nil, http.StatusUnprocessableEntity},
		{"bad month", "GET", "/api/v1/habits/" + neg.ID + "/calendar?year=2025&month=0", "u1", nil, http.StatusBadRequest},
		{"missing year", "GET", "/api/v1/habits/" + neg.ID + "/calendar?month=3", "u1", nil, http.StatusBadRequest},
		{"move without category", "POST", "/api/v1/habits/move-category", "u1", map[string]interface{}{"habitIds": []string{neg.ID}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestHabitHandler_UndoAndCalendar(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, "POST", "/api/v1/habits", "u1", map[string]string{"name": "Run"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var h habit.Habit
	decode(t, rr, &h)

	require.Equal(t, http.StatusOK, ts.do(t, "POST", "/api/v1/habits/"+h.ID+"/check-in", "u1", nil).Code)

	rr = ts.do(t, "GET", "/api/v1/habits/"+h.ID+"/calendar?year=2025&month=3", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var cal calendar.CalendarResponse
	decode(t, rr, &cal)
	require.Len(t, cal.Days, 31)
	assert.True(t, cal.Days[9].Completed)

	rr = ts.do(t, "DELETE", "/api/v1/habits/"+h.ID+"/check-in", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var undo streak.UndoResult
	decode(t, rr, &undo)
	assert.True(t, undo.Undone)
	assert.Equal(t, 0, undo.CurrentStreak)
	assert.Nil(t, undo.LastCompletedDate)

	rr = ts.do(t, "DELETE", "/api/v1/habits/"+h.ID+"?hard=true", "u1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = ts.do(t, "DELETE", "/api/v1/habits/"+h.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
