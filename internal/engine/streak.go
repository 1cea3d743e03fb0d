package engine

import (
	"sort"
	"time"

	"weHabitAPI/internal/clock"
	"weHabitAPI/internal/types/habit"
	"weHabitAPI/internal/types/streak"
)

const (
	CheckInXP            = 10
	StreakBonusXP        = 5
	StreakBonusThreshold = 3

	// ShieldCoverableGap is the only gap a shield repairs: exactly one missed day.
	ShieldCoverableGap = 2
)

// NextStreak is the streak after a completion that follows a gap of gap days.
// A broken or never-started streak restarts at 1.
func NextStreak(current, gap int) int {
	if gap == 1 {
		return current + 1
	}
	return 1
}

// CheckInXPFor returns the experience awarded for a check-in that produced newStreak.
func CheckInXPFor(newStreak int) int {
	xp := CheckInXP
	if newStreak > StreakBonusThreshold {
		xp += StreakBonusXP
	}
	return xp
}

type CheckInPlan struct {
	AlreadyDone bool
	Day         string
	NewStreak   int
	NewBest     int
	FirstEver   bool
	CompletedAt time.Time

	// PrevCompleted is h.LastCompletedDate before the check-in.
	PrevCompleted *time.Time
}

// PlanCheckIn decides the effect of checking in h at the clock's current time.
func PlanCheckIn(h *habit.Habit, clk *clock.Clock) CheckInPlan {
	now := clk.Now()
	today := clk.Day(now)
	if h.LastCompletedDate != nil && clk.Day(*h.LastCompletedDate) == today {
		return CheckInPlan{
			AlreadyDone: true,
			Day:         today,
			NewStreak:   h.CurrentStreak,
			NewBest:     h.BestStreak,
		}
	}

	gap := clk.DaysBetween(h.LastCompletedDate, today)
	next := NextStreak(h.CurrentStreak, gap)
	best := h.BestStreak
	if next > best {
		best = next
	}
	var prev *time.Time
	if h.LastCompletedDate != nil {
		p := *h.LastCompletedDate
		prev = &p
	}
	return CheckInPlan{
		Day:           today,
		NewStreak:     next,
		NewBest:       best,
		FirstEver:     h.LastCompletedDate == nil && h.BestStreak == 0,
		CompletedAt:   now,
		PrevCompleted: prev,
	}
}

// Apply writes the plan's streak fields onto h.
func (p CheckInPlan) Apply(h *habit.Habit) {
	if p.AlreadyDone {
		return
	}
	completedAt := p.CompletedAt
	h.CurrentStreak = p.NewStreak
	h.BestStreak = p.NewBest
	h.LastCompletedDate = &completedAt
	h.UpdatedAt = p.CompletedAt
}

func (p CheckInPlan) Result(h *habit.Habit) streak.CheckInResult {
	return streak.CheckInResult{
		HabitID:               h.ID,
		Day:                   p.Day,
		StreakAfter:           h.CurrentStreak,
		BestStreak:            h.BestStreak,
		IsFirstEverCompletion: p.FirstEver,
		AlreadyDone:           p.AlreadyDone,
		LastCompletedDate:     h.LastCompletedDate,
	}
}

type UndoPlan struct {
	NewStreak         int
	LastCompletedDate *time.Time
}

// PlanUndo rolls back today's completion. The lastCompletedDate recorded on
// today's log is restored, so a shield-repaired date survives the undo. Logs
// written without it fall back to the latest completion strictly before today.
// bestStreak is a high-water mark and is left alone.
func PlanUndo(h *habit.Habit, logs []*habit.CompletionLog, today string) UndoPlan {
	plan := UndoPlan{NewStreak: h.CurrentStreak - 1}
	if plan.NewStreak < 0 {
		plan.NewStreak = 0
	}

	var earlier []*habit.CompletionLog
	for _, l := range logs {
		if l.Day == today && l.PrevCompletedDate != nil {
			prev := *l.PrevCompletedDate
			plan.LastCompletedDate = &prev
			return plan
		}
		if l.Day < today {
			earlier = append(earlier, l)
		}
	}
	sort.Slice(earlier, func(i, j int) bool {
		return earlier[i].CompletedAt.After(earlier[j].CompletedAt)
	})
	if len(earlier) > 0 {
		prev := earlier[0].CompletedAt
		plan.LastCompletedDate = &prev
	}
	return plan
}

func (p UndoPlan) Apply(h *habit.Habit, now time.Time) {
	h.CurrentStreak = p.NewStreak
	h.LastCompletedDate = p.LastCompletedDate
	h.UpdatedAt = now
}

// NeedsRepair reports whether a listed habit has a stale streak.
func NeedsRepair(h *habit.Habit, clk *clock.Clock) bool {
	if !h.IsActive || h.IsNegative() || h.CurrentStreak <= 0 {
		return false
	}
	return clk.DaysSince(h.LastCompletedDate) > 1
}

type RepairPlan struct {
	Outcome           streak.RepairOutcome
	ConsumesShield    bool
	NewStreak         int
	LastCompletedDate *time.Time
}

// PlanRepair decides how a stale streak is repaired. A single missed day is
// covered by a shield when one is available: lastCompletedDate moves to
// yesterday so the next check-in continues the streak. Longer gaps reset
// currentStreak to 0 even when shields are available, and no shield is
// spent on them. bestStreak is always kept.
func PlanRepair(h *habit.Habit, clk *clock.Clock, shields int) RepairPlan {
	if !NeedsRepair(h, clk) {
		return RepairPlan{Outcome: streak.RepairNone, NewStreak: h.CurrentStreak, LastCompletedDate: h.LastCompletedDate}
	}
	gap := clk.DaysSince(h.LastCompletedDate)
	if gap == ShieldCoverableGap && shields > 0 {
		yesterday := clk.Yesterday()
		return RepairPlan{
			Outcome:           streak.RepairShielded,
			ConsumesShield:    true,
			NewStreak:         h.CurrentStreak,
			LastCompletedDate: &yesterday,
		}
	}
	return RepairPlan{Outcome: streak.RepairReset, NewStreak: 0, LastCompletedDate: h.LastCompletedDate}
}

func (p RepairPlan) Apply(h *habit.Habit, now time.Time) {
	if p.Outcome == streak.RepairNone {
		return
	}
	h.CurrentStreak = p.NewStreak
	h.LastCompletedDate = p.LastCompletedDate
	h.UpdatedAt = now
}

// NegativeView returns a copy of a negative habit with currentStreak derived
// from the days since the last relapse (or creation when it never reset).
// Nothing is written back.
func NegativeView(h *habit.Habit, clk *clock.Clock) *habit.Habit {
	v := h.Clone()
	since := h.LastResetDate
	if since == nil {
		created := h.CreatedAt
		since = &created
	}
	days := clk.DaysSince(since)
	if days == clock.Never || days < 0 {
		days = 0
	}
	v.CurrentStreak = days
	if days > v.BestStreak {
		v.BestStreak = days
	}
	return v
}

// ApplyNegativeReset records a relapse at now. The clean run that just ended
// is folded into bestStreak before currentStreak goes to 0.
func ApplyNegativeReset(h *habit.Habit, clk *clock.Clock) {
	view := NegativeView(h, clk)
	now := clk.Now()
	h.BestStreak = view.BestStreak
	h.CurrentStreak = 0
	h.LastResetDate = &now
	h.UpdatedAt = now
}
