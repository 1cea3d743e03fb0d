package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"weHabitAPI/internal/clock"
	"weHabitAPI/internal/store"
	"weHabitAPI/internal/user"
)

type UserService struct {
	tx             *TxRunner
	clock          *clock.Clock
	shields        *ShieldService
	initialShields int
	log            *zap.Logger
}

func NewUserService(tx *TxRunner, clk *clock.Clock, shields *ShieldService, initialShields int, log *zap.Logger) *UserService {
	return &UserService{
		tx:             tx,
		clock:          clk,
		shields:        shields,
		initialShields: initialShields,
		log:            log,
	}
}

func (s *UserService) CreateProfile(ctx context.Context, req *user.CreateProfileRequest) (*user.Profile, error) {
	now := s.clock.Now()
	p := &user.Profile{
		ID:        req.UserID,
		Email:     req.Email,
		Username:  req.Username,
		Avatar:    req.Avatar,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.shields.credit(p, s.initialShields)

	err := s.tx.run(ctx, "create_profile", func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetProfile(ctx, req.UserID); err == nil {
			return ErrProfileExists
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return tx.PutProfile(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	s.log.Info("profile created", zap.String("user_id", p.ID), zap.Int("shields", p.StreakShields))
	return p, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*user.ProfileResponse, error) {
	p, err := s.tx.Store().GetProfile(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrProfileNotFound)
	}
	return &user.ProfileResponse{Profile: p, LevelInfo: user.LevelFor(p.TotalXP)}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *user.UpdateProfileRequest) (*user.Profile, error) {
	var updated *user.Profile
	err := s.tx.run(ctx, "update_profile", func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProfile(ctx, userID)
		if err != nil {
			return notFound(err, ErrProfileNotFound)
		}
		if req.Username != "" {
			p.Username = req.Username
		}
		if req.Avatar != "" {
			p.Avatar = req.Avatar
		}
		p.UpdatedAt = s.clock.Now()
		updated = p
		return tx.PutProfile(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return updated, nil
}

// DeleteProfile removes the profile together with the user's habits and their logs.
func (s *UserService) DeleteProfile(ctx context.Context, userID string) error {
	st := s.tx.Store()
	if _, err := st.GetProfile(ctx, userID); err != nil {
		return notFound(err, ErrProfileNotFound)
	}

	habits, err := st.ListHabits(ctx, userID, false)
	if err != nil {
		return fmt.Errorf("failed to list habits: %w", err)
	}
	for _, h := range habits {
		if _, err := st.DeleteHabitLogs(ctx, h.ID); err != nil {
			return fmt.Errorf("failed to delete logs of habit %s: %w", h.ID, err)
		}
		if err := st.DeleteHabit(ctx, h.ID); err != nil {
			return fmt.Errorf("failed to delete habit %s: %w", h.ID, err)
		}
	}

	if err := st.DeleteProfile(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	s.log.Info("profile deleted", zap.String("user_id", userID), zap.Int("habits", len(habits)))
	return nil
}

// AddExperience adds amount to totalXP, recomputes the level and grants one
// shield per rank crossed, up to the shield cap.
func (s *UserService) AddExperience(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return nil
	}

	var granted, level int
	err := s.tx.run(ctx, "add_experience", func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProfile(ctx, userID)
		if err != nil {
			return notFound(err, ErrProfileNotFound)
		}
		before := p.TotalXP
		p.TotalXP += amount
		p.Level = user.LevelFor(p.TotalXP).Level
		granted = s.shields.credit(p, user.RanksCrossed(before, p.TotalXP))
		level = p.Level
		p.UpdatedAt = s.clock.Now()
		return tx.PutProfile(ctx, p)
	})
	if err != nil {
		return fmt.Errorf("failed to add experience: %w", err)
	}

	if granted > 0 {
		s.log.Info("level up",
			zap.String("user_id", userID),
			zap.Int("level", level),
			zap.Int("shields_granted", granted))
	}
	return nil
}

func (s *UserService) RegisterPushToken(ctx context.Context, userID, token string) error {
	err := s.tx.run(ctx, "register_push_token", func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProfile(ctx, userID)
		if err != nil {
			return notFound(err, ErrProfileNotFound)
		}
		if slices.Contains(p.PushTokens, token) {
			return nil
		}
		p.PushTokens = append(p.PushTokens, token)
		p.UpdatedAt = s.clock.Now()
		return tx.PutProfile(ctx, p)
	})
	if err != nil {
		return fmt.Errorf("failed to register push token: %w", err)
	}
	return nil
}
