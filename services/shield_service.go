package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"weHabitAPI/internal/clock"
	"weHabitAPI/internal/store"
	"weHabitAPI/internal/user"
)

// ShieldService owns the streakShields counter on profiles. The counter is
// only ever changed inside a store transaction so it never goes negative.
type ShieldService struct {
	tx         *TxRunner
	clock      *clock.Clock
	maxShields int
	log        *zap.Logger
}

func NewShieldService(tx *TxRunner, clk *clock.Clock, maxShields int, log *zap.Logger) *ShieldService {
	return &ShieldService{tx: tx, clock: clk, maxShields: maxShields, log: log}
}

func (s *ShieldService) MaxShields() int {
	return s.maxShields
}

// credit adds up to n shields to p without passing the cap and returns how
// many were actually added.
func (s *ShieldService) credit(p *user.Profile, n int) int {
	if n <= 0 {
		return 0
	}
	room := s.maxShields - p.StreakShields
	if room <= 0 {
		return 0
	}
	if n > room {
		n = room
	}
	p.StreakShields += n
	return n
}

// debit takes one shield from p. It reports false when none is left.
func (s *ShieldService) debit(p *user.Profile) bool {
	if p.StreakShields <= 0 {
		return false
	}
	p.StreakShields--
	return true
}

func (s *ShieldService) Balance(ctx context.Context, userID string) (int, error) {
	p, err := s.tx.Store().GetProfile(ctx, userID)
	if err != nil {
		return 0, notFound(err, ErrProfileNotFound)
	}
	return p.StreakShields, nil
}

// GrantShields adds n shields, capped, and returns the new balance.
func (s *ShieldService) GrantShields(ctx context.Context, userID string, n int) (int, error) {
	var balance int
	err := s.tx.run(ctx, "grant_shields", func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProfile(ctx, userID)
		if err != nil {
			return notFound(err, ErrProfileNotFound)
		}
		added := s.credit(p, n)
		balance = p.StreakShields
		if added == 0 {
			return nil
		}
		p.UpdatedAt = s.clock.Now()
		return tx.PutProfile(ctx, p)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to grant shields: %w", err)
	}
	return balance, nil
}

// ConsumeShield spends one shield and returns the remaining balance.
func (s *ShieldService) ConsumeShield(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.tx.run(ctx, "consume_shield", func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProfile(ctx, userID)
		if err != nil {
			return notFound(err, ErrProfileNotFound)
		}
		if !s.debit(p) {
			return ErrNoShields
		}
		balance = p.StreakShields
		p.UpdatedAt = s.clock.Now()
		return tx.PutProfile(ctx, p)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to consume shield: %w", err)
	}
	return balance, nil
}
