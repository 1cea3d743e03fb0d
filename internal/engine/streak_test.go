package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weHabitAPI/internal/clock"
	"weHabitAPI/internal/types/habit"
	"weHabitAPI/internal/types/streak"
)

var day0 = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func clockAt(t time.Time) *clock.Clock {
	return clock.New(time.UTC, func() time.Time { return t })
}

func daysAgo(n int) *time.Time {
	t := day0.AddDate(0, 0, -n)
	return &t
}

func TestNextStreak(t *testing.T) {
	assert.Equal(t, 4, NextStreak(3, 1))
	assert.Equal(t, 1, NextStreak(3, 2))
	assert.Equal(t, 1, NextStreak(0, clock.Never))
}

func TestCheckInXPFor(t *testing.T) {
	assert.Equal(t, 10, CheckInXPFor(1))
	assert.Equal(t, 10, CheckInXPFor(3))
	assert.Equal(t, 15, CheckInXPFor(4))
}

func TestPlanCheckIn_FirstEver(t *testing.T) {
	h := &habit.Habit{ID: "h1", IsActive: true}

	plan := PlanCheckIn(h, clockAt(day0))
	plan.Apply(h)

	assert.False(t, plan.AlreadyDone)
	assert.True(t, plan.FirstEver)
	assert.Equal(t, "2025-03-10", plan.Day)
	assert.Equal(t, 1, h.CurrentStreak)
	assert.Equal(t, 1, h.BestStreak)
	require.NotNil(t, h.LastCompletedDate)
	assert.True(t, h.LastCompletedDate.Equal(day0))
}

func TestPlanCheckIn_Continuity(t *testing.T) {
	h := &habit.Habit{CurrentStreak: 3, BestStreak: 3, LastCompletedDate: daysAgo(1)}

	plan := PlanCheckIn(h, clockAt(day0))
	plan.Apply(h)

	assert.False(t, plan.FirstEver)
	assert.Equal(t, 4, h.CurrentStreak)
	assert.Equal(t, 4, h.BestStreak)
	require.NotNil(t, plan.PrevCompleted)
	assert.True(t, plan.PrevCompleted.Equal(*daysAgo(1)))
}

func TestPlanCheckIn_RestartAfterGap(t *testing.T) {
	h := &habit.Habit{CurrentStreak: 7, BestStreak: 9, LastCompletedDate: daysAgo(3)}

	PlanCheckIn(h, clockAt(day0)).Apply(h)

	assert.Equal(t, 1, h.CurrentStreak)
	assert.Equal(t, 9, h.BestStreak)
}

func TestPlanCheckIn_SameDayIsNoop(t *testing.T) {
	earlier := day0.Add(-2 * time.Hour)
	h := &habit.Habit{CurrentStreak: 2, BestStreak: 5, LastCompletedDate: &earlier}

	plan := PlanCheckIn(h, clockAt(day0))
	plan.Apply(h)

	assert.True(t, plan.AlreadyDone)
	assert.Equal(t, 2, h.CurrentStreak)
	assert.True(t, h.LastCompletedDate.Equal(earlier))
	assert.True(t, plan.Result(h).AlreadyDone)
}

func TestPlanUndo_RestoresPreviousCompletion(t *testing.T) {
	h := &habit.Habit{CurrentStreak: 4, BestStreak: 4, LastCompletedDate: &day0}
	logs := []*habit.CompletionLog{
		{Day: "2025-03-08", CompletedAt: *daysAgo(2)},
		{Day: "2025-03-09", CompletedAt: *daysAgo(1)},
		{Day: "2025-03-10", CompletedAt: day0},
	}

	plan := PlanUndo(h, logs, "2025-03-10")
	plan.Apply(h, day0)

	assert.Equal(t, 3, h.CurrentStreak)
	assert.Equal(t, 4, h.BestStreak)
	require.NotNil(t, h.LastCompletedDate)
	assert.True(t, h.LastCompletedDate.Equal(*daysAgo(1)))
}

func TestPlanUndo_OnlyCompletion(t *testing.T) {
	h := &habit.Habit{CurrentStreak: 1, BestStreak: 1, LastCompletedDate: &day0}

	PlanUndo(h, []*habit.CompletionLog{{Day: "2025-03-10", CompletedAt: day0}}, "2025-03-10").Apply(h, day0)

	assert.Equal(t, 0, h.CurrentStreak)
	assert.Nil(t, h.LastCompletedDate)
}

func TestPlanUndo_PrefersRecordedPreviousDate(t *testing.T) {
	// A shield moved lastCompletedDate to yesterday; the real log is two days back.
	repaired := *daysAgo(1)
	h := &habit.Habit{CurrentStreak: 6, BestStreak: 6, LastCompletedDate: &day0}
	logs := []*habit.CompletionLog{
		{Day: "2025-03-08", CompletedAt: *daysAgo(2)},
		{Day: "2025-03-10", CompletedAt: day0, PrevCompletedDate: &repaired},
	}

	PlanUndo(h, logs, "2025-03-10").Apply(h, day0)

	assert.Equal(t, 5, h.CurrentStreak)
	require.NotNil(t, h.LastCompletedDate)
	assert.True(t, h.LastCompletedDate.Equal(repaired))
	assert.False(t, NeedsRepair(h, clockAt(day0)))
}

func TestPlanRepair(t *testing.T) {
	clk := clockAt(day0)

	tests := []struct {
		name        string
		last        *time.Time
		streak      int
		shields     int
		wantOutcome streak.RepairOutcome
		wantStreak  int
	}{
		{name: "fresh streak", last: daysAgo(1), streak: 3, shields: 1, wantOutcome: streak.RepairNone, wantStreak: 3},
		{name: "one missed day with shield", last: daysAgo(2), streak: 5, shields: 1, wantOutcome: streak.RepairShielded, wantStreak: 5},
		{name: "one missed day without shield", last: daysAgo(2), streak: 5, shields: 0, wantOutcome: streak.RepairReset, wantStreak: 0},
		{name: "two missed days", last: daysAgo(3), streak: 5, shields: 3, wantOutcome: streak.RepairReset, wantStreak: 0},
		{name: "already zero", last: daysAgo(10), streak: 0, shields: 1, wantOutcome: streak.RepairNone, wantStreak: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &habit.Habit{IsActive: true, CurrentStreak: tt.streak, BestStreak: 8, LastCompletedDate: tt.last}

			plan := PlanRepair(h, clk, tt.shields)
			plan.Apply(h, day0)

			assert.Equal(t, tt.wantOutcome, plan.Outcome)
			assert.Equal(t, tt.wantOutcome == streak.RepairShielded, plan.ConsumesShield)
			assert.Equal(t, tt.wantStreak, h.CurrentStreak)
			assert.Equal(t, 8, h.BestStreak)
		})
	}
}

func TestShieldedStreakContinuesOnNextCheckIn(t *testing.T) {
	clk := clockAt(day0)
	h := &habit.Habit{IsActive: true, CurrentStreak: 5, BestStreak: 5, LastCompletedDate: daysAgo(2)}

	PlanRepair(h, clk, 1).Apply(h, day0)
	PlanCheckIn(h, clk).Apply(h)

	assert.Equal(t, 6, h.CurrentStreak)
	assert.Equal(t, 6, h.BestStreak)
}

func TestNegativeHabitSkipsRepair(t *testing.T) {
	h := &habit.Habit{IsActive: true, Type: habit.TypeNegative, CurrentStreak: 4, LastCompletedDate: daysAgo(5)}
	assert.False(t, NeedsRepair(h, clockAt(day0)))
}

func TestNegativeView(t *testing.T) {
	clk := clockAt(day0)
	h := &habit.Habit{Type: habit.TypeNegative, CreatedAt: *daysAgo(10), LastResetDate: daysAgo(4), BestStreak: 2}

	v := NegativeView(h, clk)

	assert.Equal(t, 4, v.CurrentStreak)
	assert.Equal(t, 4, v.BestStreak)
	assert.Equal(t, 0, h.CurrentStreak, "stored habit must not change")
}

func TestNegativeViewWithoutReset(t *testing.T) {
	h := &habit.Habit{Type: habit.TypeNegative, CreatedAt: *daysAgo(6)}
	assert.Equal(t, 6, NegativeView(h, clockAt(day0)).CurrentStreak)
}

func TestApplyNegativeReset(t *testing.T) {
	clk := clockAt(day0)
	h := &habit.Habit{Type: habit.TypeNegative, CreatedAt: *daysAgo(20), LastResetDate: daysAgo(12), BestStreak: 7}

	ApplyNegativeReset(h, clk)

	assert.Equal(t, 0, h.CurrentStreak)
	assert.Equal(t, 12, h.BestStreak)
	require.NotNil(t, h.LastResetDate)
	assert.True(t, h.LastResetDate.Equal(day0))
	assert.Equal(t, 0, NegativeView(h, clk).CurrentStreak)
}
