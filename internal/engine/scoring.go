package engine

import (
	"errors"
	"sort"
	"time"

	"weHabitAPI/internal/types/challenge"
	"weHabitAPI/internal/types/feed"
)

// ChallengeWinXP is awarded once per participant when the target is first reached.
const ChallengeWinXP = 200

var (
	ErrNotParticipant    = errors.New("user is not a participant of this challenge")
	ErrParticipantGaveUp = errors.New("participant has given up this challenge")
	ErrChallengeInactive = errors.New("challenge is not active")
	ErrChallengeWon      = errors.New("participant already won this challenge")
)

// Matches reports whether a habit check-in by userID on habitName feeds c.
// The coupling is by exact name, not by id.
func Matches(c *challenge.Challenge, userID, habitName string) bool {
	if !c.IsActive || c.ChallengeName != habitName {
		return false
	}
	i := c.Participant(userID)
	return i >= 0 && !c.Participants[i].HasFailed
}

type ScoreOutcome string

const (
	ScoreProgress    ScoreOutcome = "progress"
	ScoreWon         ScoreOutcome = "won"
	ScoreAlreadyDone ScoreOutcome = "already_done"
	ScoreFinished    ScoreOutcome = "finished"
)

type ScoreResult struct {
	Outcome       ScoreOutcome
	PreviousScore int
	NewScore      int
	Target        int
	// AwardWin is true only the first time this participant reaches the target.
	AwardWin bool
}

// Changed reports whether the participant record was modified.
func (r ScoreResult) Changed() bool {
	return r.Outcome == ScoreProgress || r.Outcome == ScoreWon
}

// EventType is the feed entry describing this result.
func (r ScoreResult) EventType() feed.EventType {
	if r.Outcome == ScoreWon {
		return feed.EventChallengeWon
	}
	return feed.EventChallengeProgress
}

func participantFor(c *challenge.Challenge, userID string) (*challenge.Participant, error) {
	i := c.Participant(userID)
	if i < 0 {
		return nil, ErrNotParticipant
	}
	return &c.Participants[i], nil
}

// ScoreCheckIn records today's progress for userID in place on c. Only that
// participant's record changes.
func ScoreCheckIn(c *challenge.Challenge, userID, today string, now time.Time) (ScoreResult, error) {
	if !c.IsActive {
		return ScoreResult{}, ErrChallengeInactive
	}
	p, err := participantFor(c, userID)
	if err != nil {
		return ScoreResult{}, err
	}
	if p.HasFailed {
		return ScoreResult{}, ErrParticipantGaveUp
	}

	res := ScoreResult{PreviousScore: p.CurrentScore, NewScore: p.CurrentScore, Target: c.DurationDays}
	if p.LastCompletedDate != nil && *p.LastCompletedDate == today {
		res.Outcome = ScoreAlreadyDone
		return res, nil
	}
	if p.WonAt != nil && p.CurrentScore >= c.DurationDays {
		res.Outcome = ScoreFinished
		return res, nil
	}

	next := p.CurrentScore + 1
	if next > c.DurationDays {
		next = c.DurationDays
	}
	res.NewScore = next
	res.Outcome = ScoreProgress
	if next == c.DurationDays && res.PreviousScore != c.DurationDays {
		res.Outcome = ScoreWon
		if p.WonAt == nil {
			res.AwardWin = true
			wonAt := now
			p.WonAt = &wonAt
		}
	}

	day := today
	p.CurrentScore = next
	p.LastCompletedDate = &day
	return res, nil
}

// ScoreUndo reverses today's check-in for userID. It returns false when the
// participant has nothing to undo today. WonAt is kept so a redo cannot pay
// the win reward twice.
func ScoreUndo(c *challenge.Challenge, userID, today string) (bool, error) {
	p, err := participantFor(c, userID)
	if err != nil {
		return false, err
	}
	if p.LastCompletedDate == nil || *p.LastCompletedDate != today {
		return false, nil
	}
	p.CurrentScore--
	if p.CurrentScore < 0 {
		p.CurrentScore = 0
	}
	p.LastCompletedDate = nil
	return true, nil
}

// GiveUp marks userID as failed. It returns false when already failed.
func GiveUp(c *challenge.Challenge, userID string) (bool, error) {
	p, err := participantFor(c, userID)
	if err != nil {
		return false, err
	}
	if p.HasFailed {
		return false, nil
	}
	if p.WonAt != nil && p.CurrentScore >= c.DurationDays {
		return false, ErrChallengeWon
	}
	p.HasFailed = true
	return true, nil
}

// Ranked returns the participants ordered by score, active before failed,
// then by user id for a stable order.
func Ranked(c *challenge.Challenge) []challenge.Participant {
	out := append([]challenge.Participant(nil), c.Participants...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HasFailed != out[j].HasFailed {
			return !out[i].HasFailed
		}
		if out[i].CurrentScore != out[j].CurrentScore {
			return out[i].CurrentScore > out[j].CurrentScore
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
