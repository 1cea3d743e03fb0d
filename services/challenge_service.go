package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"weHabitAPI/internal/clock"
	"weHabitAPI/internal/engine"
	"weHabitAPI/internal/metrics"
	"weHabitAPI/internal/notification"
	"weHabitAPI/internal/store"
	"weHabitAPI/internal/types/challenge"
	"weHabitAPI/internal/types/feed"
	"weHabitAPI/internal/types/leaderboard"
)

type ChallengeService struct {
	tx      *TxRunner
	clock   *clock.Clock
	effects Emitter
	log     *zap.Logger
}

func NewChallengeService(tx *TxRunner, clk *clock.Clock, effects Emitter, log *zap.Logger) *ChallengeService {
	return &ChallengeService{tx: tx, clock: clk, effects: effects, log: log}
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, hostID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	name := strings.TrimSpace(req.ChallengeName)
	if name == "" {
		return nil, NewValidationError("challenge name is required", nil)
	}

	ids := []string{hostID}
	for _, id := range req.OpponentIDs {
		if id == "" || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return nil, NewValidationError("a challenge needs at least one opponent", nil)
	}

	days := req.DurationDays
	if days <= 0 {
		days = challenge.DefaultDurationDays
	}

	now := s.clock.Now()
	c := &challenge.Challenge{
		ID:             uuid.New().String(),
		HostID:         hostID,
		ChallengeName:  name,
		DurationDays:   days,
		StartDate:      now,
		EndDate:        now.AddDate(0, 0, days),
		IsActive:       true,
		ParticipantIDs: ids,
		CreatedAt:      now,
	}
	for _, id := range ids {
		c.Participants = append(c.Participants, challenge.Participant{UserID: id})
	}

	if err := s.tx.Store().PutChallenge(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	s.log.Info("challenge created",
		zap.String("challenge_id", c.ID),
		zap.String("host_id", hostID),
		zap.Int("participants", len(ids)))
	return c, nil
}

// GetChallenge is visible to participants only.
func (s *ChallengeService) GetChallenge(ctx context.Context, userID, challengeID string) (*challenge.Challenge, error) {
	c, err := s.tx.Store().GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, notFound(err, ErrChallengeNotFound)
	}
	if c.Participant(userID) < 0 {
		return nil, ErrNotParticipant
	}
	return c, nil
}

// MyChallenges lists active challenges the user has not given up on.
func (s *ChallengeService) MyChallenges(ctx context.Context, userID string) ([]*challenge.Challenge, error) {
	all, err := s.tx.Store().ListChallenges(ctx, challenge.Filter{ParticipantID: userID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	out := make([]*challenge.Challenge, 0, len(all))
	for _, c := range all {
		if i := c.Participant(userID); i >= 0 && !c.Participants[i].HasFailed {
			out = append(out, c)
		}
	}
	return out, nil
}

// FindActiveChallenges returns the ids of challenges a check-in of habitName
// counts toward.
func (s *ChallengeService) FindActiveChallenges(ctx context.Context, userID, habitName string) ([]string, error) {
	all, err := s.tx.Store().ListChallenges(ctx, challenge.Filter{ParticipantID: userID, ActiveOnly: true, Name: habitName})
	if err != nil {
		return nil, fmt.Errorf("failed to find challenges: %w", err)
	}
	var ids []string
	for _, c := range all {
		if engine.Matches(c, userID, habitName) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (s *ChallengeService) CheckIn(ctx context.Context, userID, challengeID string) (*engine.ScoreResult, error) {
	c, res, err := s.scoreCheckIn(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	s.effects.Emit(scoreEffects(c, userID, res)...)
	return &res, nil
}

func (s *ChallengeService) UndoCheckIn(ctx context.Context, userID, challengeID string) (bool, error) {
	c, undone, err := s.scoreUndo(ctx, userID, challengeID)
	if err != nil {
		return false, err
	}
	if undone {
		s.effects.Emit(undoEffects(c, userID)...)
	}
	return undone, nil
}

func (s *ChallengeService) GiveUp(ctx context.Context, userID, challengeID string) error {
	var changed bool
	err := s.tx.run(ctx, "challenge_give_up", func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetChallenge(ctx, challengeID)
		if err != nil {
			return notFound(err, ErrChallengeNotFound)
		}
		changed, err = engine.GiveUp(c, userID)
		if err != nil {
			return mapScoringErr(err)
		}
		if !changed {
			return nil
		}
		return tx.PutChallenge(ctx, c)
	})
	if err != nil {
		return fmt.Errorf("failed to give up challenge: %w", err)
	}
	if changed {
		metrics.ChallengeEvents.WithLabelValues("gave_up").Inc()
		s.log.Info("participant gave up", zap.String("challenge_id", challengeID), zap.String("user_id", userID))
	}
	return nil
}

func (s *ChallengeService) DeleteChallenge(ctx context.Context, userID, challengeID string) error {
	err := s.tx.run(ctx, "delete_challenge", func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetChallenge(ctx, challengeID)
		if err != nil {
			return notFound(err, ErrChallengeNotFound)
		}
		if c.HostID != userID {
			return ErrNotHost
		}
		return tx.DeleteChallenge(ctx, challengeID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	return nil
}

// Standings ranks the participants by score. Equal scores share a rank and
// participants who gave up are listed last.
func (s *ChallengeService) Standings(ctx context.Context, userID, challengeID string) (*leaderboard.Leaderboard, error) {
	c, err := s.GetChallenge(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}

	st := s.tx.Store()
	lb := &leaderboard.Leaderboard{
		ChallengeID: c.ID,
		TargetScore: c.DurationDays,
		TotalUsers:  len(c.Participants),
	}
	var prev *leaderboard.LeaderboardEntry
	for i, p := range engine.Ranked(c) {
		entry := &leaderboard.LeaderboardEntry{
			UserID:       p.UserID,
			CurrentScore: p.CurrentScore,
			HasFailed:    p.HasFailed,
			HasWon:       p.WonAt != nil && p.CurrentScore >= c.DurationDays,
			Rank:         i + 1,
		}
		if prev != nil && prev.CurrentScore == entry.CurrentScore && prev.HasFailed == entry.HasFailed {
			entry.Rank = prev.Rank
		}
		if profile, err := st.GetProfile(ctx, p.UserID); err == nil {
			entry.Username = profile.Username
			entry.ImageURL = profile.Avatar
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to load participant profile: %w", err)
		}
		if p.UserID == userID {
			lb.UserPosition = entry
		}
		lb.Entries = append(lb.Entries, entry)
		prev = entry
	}
	return lb, nil
}

// PropagateCheckIn scores a habit check-in on every matching challenge. Each
// challenge commits on its own; failures are joined and the effects of the
// challenges that did commit are still returned.
func (s *ChallengeService) PropagateCheckIn(ctx context.Context, userID, habitName string) ([]Effect, error) {
	ids, err := s.FindActiveChallenges(ctx, userID, habitName)
	if err != nil {
		return nil, err
	}

	var (
		effects []Effect
		errs    []error
	)
	for _, id := range ids {
		c, res, err := s.scoreCheckIn(ctx, userID, id)
		if err != nil {
			if skippable(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("challenge %s: %w", id, err))
			continue
		}
		effects = append(effects, scoreEffects(c, userID, res)...)
	}
	return effects, errors.Join(errs...)
}

func (s *ChallengeService) PropagateUndo(ctx context.Context, userID, habitName string) ([]Effect, error) {
	ids, err := s.FindActiveChallenges(ctx, userID, habitName)
	if err != nil {
		return nil, err
	}

	var (
		effects []Effect
		errs    []error
	)
	for _, id := range ids {
		c, undone, err := s.scoreUndo(ctx, userID, id)
		if err != nil {
			if skippable(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("challenge %s: %w", id, err))
			continue
		}
		if undone {
			effects = append(effects, undoEffects(c, userID)...)
		}
	}
	return effects, errors.Join(errs...)
}

// skippable reports errors caused by the challenge changing between the
// lookup and the transaction.
func skippable(err error) bool {
	return errors.Is(err, ErrChallengeNotFound) ||
		errors.Is(err, ErrParticipantGaveUp) ||
		errors.Is(err, ErrChallengeInactive) ||
		errors.Is(err, ErrNotParticipant)
}

func (s *ChallengeService) scoreCheckIn(ctx context.Context, userID, challengeID string) (*challenge.Challenge, engine.ScoreResult, error) {
	var (
		c   *challenge.Challenge
		res engine.ScoreResult
	)
	err := s.tx.run(ctx, "challenge_check_in", func(ctx context.Context, tx store.Tx) error {
		var err error
		c, err = tx.GetChallenge(ctx, challengeID)
		if err != nil {
			return notFound(err, ErrChallengeNotFound)
		}
		res, err = engine.ScoreCheckIn(c, userID, s.clock.Today(), s.clock.Now())
		if err != nil {
			return mapScoringErr(err)
		}
		if !res.Changed() {
			return nil
		}
		return tx.PutChallenge(ctx, c)
	})
	if err != nil {
		return nil, engine.ScoreResult{}, fmt.Errorf("failed to check in challenge: %w", err)
	}

	metrics.ChallengeEvents.WithLabelValues(string(res.Outcome)).Inc()
	if res.Outcome == engine.ScoreWon {
		s.log.Info("challenge won",
			zap.String("challenge_id", c.ID),
			zap.String("user_id", userID),
			zap.Bool("award", res.AwardWin))
	}
	return c, res, nil
}

func (s *ChallengeService) scoreUndo(ctx context.Context, userID, challengeID string) (*challenge.Challenge, bool, error) {
	var (
		c      *challenge.Challenge
		undone bool
	)
	err := s.tx.run(ctx, "challenge_undo", func(ctx context.Context, tx store.Tx) error {
		var err error
		c, err = tx.GetChallenge(ctx, challengeID)
		if err != nil {
			return notFound(err, ErrChallengeNotFound)
		}
		undone, err = engine.ScoreUndo(c, userID, s.clock.Today())
		if err != nil {
			return mapScoringErr(err)
		}
		if !undone {
			return nil
		}
		return tx.PutChallenge(ctx, c)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to undo challenge check-in: %w", err)
	}
	if undone {
		metrics.ChallengeEvents.WithLabelValues("undone").Inc()
	}
	return c, undone, nil
}

func scoreEffects(c *challenge.Challenge, userID string, res engine.ScoreResult) []Effect {
	if !res.Changed() {
		return nil
	}

	e := Effect{
		Kind:          EffectLogActivity,
		UserID:        userID,
		EventType:     res.EventType(),
		Title:         "Progressed in challenge: " + c.ChallengeName,
		Description:   fmt.Sprintf("%d/%d days completed", res.NewScore, res.Target),
		CorrelationID: c.ID,
	}
	if res.Outcome == engine.ScoreWon {
		e.Title = fmt.Sprintf("WON THE CHALLENGE: %s! 🏆", c.ChallengeName)
		e.Description = fmt.Sprintf("Completed all %d days.", res.Target)
	}
	effects := []Effect{e}

	if res.AwardWin {
		effects = append(effects,
			Effect{Kind: EffectAddExperience, UserID: userID, XP: engine.ChallengeWinXP},
			Effect{
				Kind:   EffectPush,
				UserID: userID,
				Push: notification.Message{
					Title: "Challenge won! 🏆",
					Body:  fmt.Sprintf("You completed %s. +%d XP", c.ChallengeName, engine.ChallengeWinXP),
					Data:  map[string]string{"type": string(feed.EventChallengeWon), "challengeId": c.ID},
				},
			},
		)
	}
	return effects
}

func undoEffects(c *challenge.Challenge, userID string) []Effect {
	return []Effect{
		{Kind: EffectRemoveActivity, UserID: userID, EventType: feed.EventChallengeProgress, CorrelationID: c.ID},
		{Kind: EffectRemoveActivity, UserID: userID, EventType: feed.EventChallengeWon, CorrelationID: c.ID},
	}
}
