package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"weHabitAPI/internal/clock"
	"weHabitAPI/internal/notification"
	"weHabitAPI/internal/store"
	"weHabitAPI/internal/types/feed"
)

// PushProvider delivers a message to device tokens.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []string, msg notification.Message) error
}

const defaultFeedLimit = 50

// FeedService writes the activity feed and fans push notifications out to a
// user's devices. It is driven by the EffectDispatcher and never by the
// primary write path.
type FeedService struct {
	store store.Store
	clock *clock.Clock
	push  PushProvider
	log   *zap.Logger
}

func NewFeedService(st store.Store, clk *clock.Clock, log *zap.Logger) *FeedService {
	return &FeedService{store: st, clock: clk, log: log}
}

func (s *FeedService) SetPushProvider(p PushProvider) {
	s.push = p
}

// LogActivity stores one feed event. Username and avatar come from the
// profile; a missing profile still gets the event with an empty name.
func (s *FeedService) LogActivity(ctx context.Context, userID string, t feed.EventType, title, description, correlationID string) error {
	a := &feed.Activity{
		ID:            uuid.New().String(),
		UserID:        userID,
		Type:          t,
		Title:         title,
		Description:   description,
		CorrelationID: correlationID,
		CreatedAt:     s.clock.Now(),
	}

	p, err := s.store.GetProfile(ctx, userID)
	switch {
	case err == nil:
		a.Username = p.Username
		a.Avatar = p.Avatar
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("failed to load profile for feed: %w", err)
	}

	if err := s.store.InsertFeedEvent(ctx, a); err != nil {
		return fmt.Errorf("failed to insert feed event: %w", err)
	}
	return nil
}

func (s *FeedService) RemoveActivity(ctx context.Context, userID string, t feed.EventType, correlationID string) error {
	n, err := s.store.DeleteFeedEvents(ctx, userID, t, correlationID)
	if err != nil {
		return fmt.Errorf("failed to remove feed events: %w", err)
	}
	s.log.Debug("feed events removed",
		zap.String("user_id", userID),
		zap.String("type", string(t)),
		zap.String("related_id", correlationID),
		zap.Int("count", n))
	return nil
}

func (s *FeedService) RecentActivity(ctx context.Context, userID string, limit int) ([]*feed.Activity, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultFeedLimit
	}
	items, err := s.store.ListFeed(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}
	if items == nil {
		items = []*feed.Activity{}
	}
	return items, nil
}

// NotifyUser pushes msg to every registered device of userID. Users without
// tokens, or a service without a provider, are skipped silently.
func (s *FeedService) NotifyUser(ctx context.Context, userID string, msg notification.Message) error {
	if s.push == nil {
		return nil
	}
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load profile for push: %w", err)
	}
	if len(p.PushTokens) == 0 {
		return nil
	}
	return s.push.SendPush(ctx, p.PushTokens, msg)
}
