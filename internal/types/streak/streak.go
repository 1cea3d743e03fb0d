package streak

import "time"

// CheckInResult is returned by a habit check-in. AlreadyDone marks the
// idempotent same-day path; the streak fields then reflect the stored state.
type CheckInResult struct {
	HabitID               string     `json:"habitId"`
	Day                   string     `json:"day"`
	StreakAfter           int        `json:"streakAfter"`
	BestStreak            int        `json:"bestStreak"`
	IsFirstEverCompletion bool       `json:"isFirstEverCompletion"`
	AlreadyDone           bool       `json:"alreadyDone"`
	LastCompletedDate     *time.Time `json:"lastCompletedDate"`
}

type UndoResult struct {
	HabitID           string     `json:"habitId"`
	Undone            bool       `json:"undone"`
	CurrentStreak     int        `json:"currentStreak"`
	LastCompletedDate *time.Time `json:"lastCompletedDate"`
}

type RepairOutcome string

const (
	RepairNone     RepairOutcome = "none"
	RepairShielded RepairOutcome = "shielded"
	RepairReset    RepairOutcome = "reset"
)
