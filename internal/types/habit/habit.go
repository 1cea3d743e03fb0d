package habit

import (
	"time"
)

type Type string

const (
	TypePositive Type = "positive"
	TypeNegative Type = "negative"
)

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyCustom Frequency = "custom"
)

type Category struct {
	ID    string `json:"id" db:"category_id" firestore:"id" validate:"required,max=40"`
	Label string `json:"label" db:"category_label" firestore:"label" validate:"max=40"`
	Color string `json:"color" db:"category_color" firestore:"color"`
}

// DefaultCategory is assigned when a habit is created without one.
var DefaultCategory = Category{ID: "other", Label: "General", Color: "#8E8E93"}

type Schedule struct {
	Frequency Frequency `json:"frequency" firestore:"frequency"`
	Weekdays  []int     `json:"weekdays,omitempty" firestore:"weekdays"`
}

type Habit struct {
	ID                string     `json:"id" db:"id" firestore:"-"`
	UserID            string     `json:"userId" db:"user_id" firestore:"userId"`
	Name              string     `json:"name" db:"name" firestore:"name"`
	Icon              string     `json:"icon" db:"icon" firestore:"icon"`
	Category          Category   `json:"category" firestore:"category"`
	Schedule          Schedule   `json:"schedule" firestore:"schedule"`
	Type              Type       `json:"type" db:"type" firestore:"type"`
	CurrentStreak     int        `json:"currentStreak" db:"current_streak" firestore:"currentStreak"`
	BestStreak        int        `json:"bestStreak" db:"best_streak" firestore:"bestStreak"`
	LastCompletedDate *time.Time `json:"lastCompletedDate" db:"last_completed_date" firestore:"lastCompletedDate"`
	LastResetDate     *time.Time `json:"lastResetDate,omitempty" db:"last_reset_date" firestore:"lastResetDate"`
	IsActive          bool       `json:"isActive" db:"is_active" firestore:"isActive"`
	CreatedAt         time.Time  `json:"createdAt" db:"created_at" firestore:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt" db:"updated_at" firestore:"updatedAt"`
}

func (h *Habit) IsNegative() bool {
	return h.Type == TypeNegative
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (h *Habit) Clone() *Habit {
	if h == nil {
		return nil
	}
	c := *h
	if h.LastCompletedDate != nil {
		t := *h.LastCompletedDate
		c.LastCompletedDate = &t
	}
	if h.LastResetDate != nil {
		t := *h.LastResetDate
		c.LastResetDate = &t
	}
	if h.Schedule.Weekdays != nil {
		c.Schedule.Weekdays = append([]int(nil), h.Schedule.Weekdays...)
	}
	return &c
}

// LogKey is the idempotence key of a completion: one row per habit, user and day.
type LogKey struct {
	HabitID string
	UserID  string
	Day     string
}

// DocID is the deterministic document id used by stores that key logs by id.
func (k LogKey) DocID() string {
	return k.HabitID + "_" + k.UserID + "_" + k.Day
}

type CompletionLog struct {
	ID          string    `json:"id" db:"id" firestore:"-"`
	HabitID     string    `json:"habitId" db:"habit_id" firestore:"habitId"`
	UserID      string    `json:"userId" db:"user_id" firestore:"userId"`
	Day         string    `json:"date" db:"day" firestore:"date"`
	CompletedAt time.Time `json:"completedAt" db:"completed_at" firestore:"completedAt"`
	IsCompleted bool      `json:"isCompleted" db:"is_completed" firestore:"isCompleted"`

	// PrevCompletedDate is the habit's lastCompletedDate before this check-in.
	PrevCompletedDate *time.Time `json:"prevCompletedDate,omitempty" db:"prev_completed_date" firestore:"prevCompletedDate,omitempty"`
}

func (l *CompletionLog) Key() LogKey {
	return LogKey{HabitID: l.HabitID, UserID: l.UserID, Day: l.Day}
}

type CreateHabitRequest struct {
	Name      string    `json:"name" validate:"required,min=1,max=80"`
	Icon      string    `json:"icon" validate:"max=32"`
	Category  *Category `json:"category,omitempty"`
	Frequency Frequency `json:"frequency" validate:"omitempty,oneof=daily custom"`
	Weekdays  []int     `json:"weekdays,omitempty" validate:"omitempty,dive,min=0,max=6"`
	Type      Type      `json:"type" validate:"omitempty,oneof=positive negative"`
}

// UpdateHabitRequest only carries presentation fields; streak fields are
// owned by the streak engine.
type UpdateHabitRequest struct {
	Name      *string    `json:"name,omitempty" validate:"omitempty,min=1,max=80"`
	Icon      *string    `json:"icon,omitempty" validate:"omitempty,max=32"`
	Category  *Category  `json:"category,omitempty"`
	Frequency *Frequency `json:"frequency,omitempty" validate:"omitempty,oneof=daily custom"`
	Weekdays  []int      `json:"weekdays,omitempty" validate:"omitempty,dive,min=0,max=6"`
}

type MoveCategoryRequest struct {
	HabitIDs []string `json:"habitIds" validate:"required,min=1,dive,required"`
	Category Category `json:"category"`
}

type BulkDeleteRequest struct {
	HabitIDs []string `json:"habitIds" validate:"required,min=1,dive,required"`
}
