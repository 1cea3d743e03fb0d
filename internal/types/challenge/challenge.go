package challenge

import (
	"time"
)

// DefaultDurationDays is the target score when a challenge is created without one.
const DefaultDurationDays = 7

type Participant struct {
	UserID            string     `json:"userId" firestore:"userId"`
	CurrentScore      int        `json:"currentScore" firestore:"currentScore"`
	HasFailed         bool       `json:"hasFailed" firestore:"hasFailed"`
	LastCompletedDate *string    `json:"lastCompletedDate" firestore:"lastCompletedDate"`
	WonAt             *time.Time `json:"wonAt,omitempty" firestore:"wonAt"`
}

type Challenge struct {
	ID             string        `json:"id" db:"id" firestore:"-"`
	HostID         string        `json:"hostId" db:"host_id" firestore:"hostId"`
	ChallengeName  string        `json:"challengeName" db:"challenge_name" firestore:"challengeName"`
	DurationDays   int           `json:"durationDays" db:"duration_days" firestore:"durationDays"`
	StartDate      time.Time     `json:"startDate" db:"start_date" firestore:"startDate"`
	EndDate        time.Time     `json:"endDate" db:"end_date" firestore:"endDate"`
	IsActive       bool          `json:"isActive" db:"is_active" firestore:"isActive"`
	Participants   []Participant `json:"participants" firestore:"participants"`
	ParticipantIDs []string      `json:"participantIds" firestore:"participantIds"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at" firestore:"createdAt"`
}

// Participant returns the index of userID in Participants, or -1.
func (c *Challenge) Participant(userID string) int {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return i
		}
	}
	return -1
}

func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Participants = make([]Participant, len(c.Participants))
	for i, p := range c.Participants {
		if p.LastCompletedDate != nil {
			d := *p.LastCompletedDate
			p.LastCompletedDate = &d
		}
		if p.WonAt != nil {
			t := *p.WonAt
			p.WonAt = &t
		}
		cp.Participants[i] = p
	}
	cp.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	return &cp
}

// Filter narrows challenge scans. Empty fields do not filter.
type Filter struct {
	ParticipantID string
	ActiveOnly    bool
	Name          string
}

type CreateChallengeRequest struct {
	ChallengeName string   `json:"challengeName" validate:"required,min=1,max=80"`
	OpponentIDs   []string `json:"opponentIds" validate:"required,min=1,dive,required"`
	DurationDays  int      `json:"durationDays" validate:"omitempty,min=1,max=365"`
}
