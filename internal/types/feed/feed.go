package feed

import "time"

type EventType string

const (
	EventHabitDone         EventType = "habit_done"
	EventChallengeProgress EventType = "challenge_progress"
	EventChallengeWon      EventType = "challenge_won"
)

// Activity is one entry of a user's activity feed. CorrelationID ties the
// entry back to the habit or challenge that produced it so undo can remove it.
type Activity struct {
	ID            string    `json:"id" db:"id" firestore:"-"`
	UserID        string    `json:"userId" db:"user_id" firestore:"userId"`
	Username      string    `json:"username" db:"username" firestore:"username"`
	Avatar        string    `json:"avatar,omitempty" db:"avatar" firestore:"avatar"`
	Type          EventType `json:"type" db:"type" firestore:"type"`
	Title         string    `json:"title" db:"title" firestore:"title"`
	Description   string    `json:"description" db:"description" firestore:"description"`
	CorrelationID string    `json:"relatedId,omitempty" db:"correlation_id" firestore:"relatedId"`
	CreatedAt     time.Time `json:"timestamp" db:"created_at" firestore:"timestamp"`
}
