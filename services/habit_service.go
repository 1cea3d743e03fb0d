package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"weHabitAPI/internal/clock"
	"weHabitAPI/internal/engine"
	"weHabitAPI/internal/metrics"
	"weHabitAPI/internal/store"
	"weHabitAPI/internal/types/calendar"
	"weHabitAPI/internal/types/feed"
	"weHabitAPI/internal/types/habit"
	"weHabitAPI/internal/types/streak"
)

type HabitService struct {
	tx      *TxRunner
	clock   *clock.Clock
	shields *ShieldService
	effects Emitter
	log     *zap.Logger
}

func NewHabitService(tx *TxRunner, clk *clock.Clock, shields *ShieldService, effects Emitter, log *zap.Logger) *HabitService {
	return &HabitService{
		tx:      tx,
		clock:   clk,
		shields: shields,
		effects: effects,
		log:     log,
	}
}

// loadOwned reads a habit and hides habits of other users behind ErrHabitNotFound.
func loadOwned(ctx context.Context, r store.Reader, habitID, userID string) (*habit.Habit, error) {
	h, err := r.GetHabit(ctx, habitID)
	if err != nil {
		return nil, notFound(err, ErrHabitNotFound)
	}
	if h.UserID != userID {
		return nil, ErrHabitNotFound
	}
	return h, nil
}

func (s *HabitService) CreateHabit(ctx context.Context, userID string, req *habit.CreateHabitRequest) (*habit.Habit, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidationError("habit name is required", nil)
	}

	schedule := habit.Schedule{Frequency: req.Frequency, Weekdays: req.Weekdays}
	if schedule.Frequency == "" {
		schedule.Frequency = habit.FrequencyDaily
	}
	if schedule.Frequency == habit.FrequencyCustom && len(schedule.Weekdays) == 0 {
		return nil, NewValidationError("custom schedules need at least one weekday", nil)
	}
	if schedule.Frequency == habit.FrequencyDaily {
		schedule.Weekdays = nil
	}

	habitType := req.Type
	if habitType == "" {
		habitType = habit.TypePositive
	}

	category := habit.DefaultCategory
	if req.Category != nil && req.Category.ID != "" {
		category = *req.Category
	}

	now := s.clock.Now()
	h := &habit.Habit{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Icon:      req.Icon,
		Category:  category,
		Schedule:  schedule,
		Type:      habitType,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.tx.Store().PutHabit(ctx, h); err != nil {
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}

	s.log.Info("habit created",
		zap.String("user_id", userID),
		zap.String("habit_id", h.ID),
		zap.String("type", string(h.Type)))
	return h, nil
}

// UpdateHabit changes presentation fields only. Renaming a habit detaches it
// from challenges tracking the old name.
func (s *HabitService) UpdateHabit(ctx context.Context, userID, habitID string, req *habit.UpdateHabitRequest) (*habit.Habit, error) {
	var updated *habit.Habit
	err := s.tx.run(ctx, "update_habit", func(ctx context.Context, tx store.Tx) error {
		h, err := loadOwned(ctx, tx, habitID, userID)
		if err != nil {
			return err
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return NewValidationError("habit name is required", nil)
			}
			h.Name = name
		}
		if req.Icon != nil {
			h.Icon = *req.Icon
		}
		if req.Category != nil {
			h.Category = *req.Category
		}
		if req.Frequency != nil {
			h.Schedule.Frequency = *req.Frequency
		}
		if req.Weekdays != nil {
			h.Schedule.Weekdays = req.Weekdays
		}
		if h.Schedule.Frequency == habit.FrequencyCustom && len(h.Schedule.Weekdays) == 0 {
			return NewValidationError("custom schedules need at least one weekday", nil)
		}
		h.UpdatedAt = s.clock.Now()
		updated = h
		return tx.PutHabit(ctx, h)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update habit: %w", err)
	}
	return updated, nil
}

// DeleteHabit archives a habit, or with hard removes it together with its
// completion logs and the feed entries those completions produced.
func (s *HabitService) DeleteHabit(ctx context.Context, userID, habitID string, hard bool) error {
	if !hard {
		err := s.tx.run(ctx, "archive_habit", func(ctx context.Context, tx store.Tx) error {
			h, err := loadOwned(ctx, tx, habitID, userID)
			if err != nil {
				return err
			}
			if !h.IsActive {
				return nil
			}
			h.IsActive = false
			h.UpdatedAt = s.clock.Now()
			return tx.PutHabit(ctx, h)
		})
		if err != nil {
			return fmt.Errorf("failed to archive habit: %w", err)
		}
		return nil
	}

	st := s.tx.Store()
	h, err := loadOwned(ctx, st, habitID, userID)
	if err != nil {
		return err
	}
	logs, err := st.ListLogs(ctx, h.ID, userID)
	if err != nil {
		return fmt.Errorf("failed to list habit logs: %w", err)
	}
	if _, err := st.DeleteHabitLogs(ctx, h.ID); err != nil {
		return fmt.Errorf("failed to delete habit logs: %w", err)
	}
	if err := st.DeleteHabit(ctx, h.ID); err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}

	effects := make([]Effect, 0, len(logs))
	for _, l := range logs {
		effects = append(effects, Effect{
			Kind:          EffectRemoveActivity,
			UserID:        userID,
			EventType:     feed.EventHabitDone,
			CorrelationID: l.Key().DocID(),
		})
	}
	s.effects.Emit(effects...)

	s.log.Info("habit deleted",
		zap.String("user_id", userID),
		zap.String("habit_id", h.ID),
		zap.Int("logs", len(logs)))
	return nil
}

// DeleteHabits hard-deletes every habit in ids. It stops at the first failure.
func (s *HabitService) DeleteHabits(ctx context.Context, userID string, ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		if err := s.DeleteHabit(ctx, userID, id, true); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (s *HabitService) MoveHabitsToCategory(ctx context.Context, userID string, ids []string, category habit.Category) error {
	err := s.tx.run(ctx, "move_habits", func(ctx context.Context, tx store.Tx) error {
		habits := make([]*habit.Habit, 0, len(ids))
		for _, id := range ids {
			h, err := loadOwned(ctx, tx, id, userID)
			if err != nil {
				return err
			}
			habits = append(habits, h)
		}
		now := s.clock.Now()
		for _, h := range habits {
			h.Category = category
			h.UpdatedAt = now
			if err := tx.PutHabit(ctx, h); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to move habits: %w", err)
	}
	return nil
}

// CheckIn completes a positive habit for today. The habit update and the
// completion log commit together; a second call on the same day changes
// nothing and reports AlreadyDone.
func (s *HabitService) CheckIn(ctx context.Context, userID, habitID string) (*streak.CheckInResult, error) {
	var (
		h    *habit.Habit
		plan engine.CheckInPlan
	)
	err := s.tx.run(ctx, "check_in", func(ctx context.Context, tx store.Tx) error {
		var err error
		h, err = loadOwned(ctx, tx, habitID, userID)
		if err != nil {
			return err
		}
		if !h.IsActive {
			return ErrHabitInactive
		}
		if h.IsNegative() {
			return ErrNegativeHabit
		}

		plan = engine.PlanCheckIn(h, s.clock)
		if plan.AlreadyDone {
			return nil
		}

		key := habit.LogKey{HabitID: h.ID, UserID: userID, Day: plan.Day}
		if _, err := tx.GetLog(ctx, key); err == nil {
			plan = engine.CheckInPlan{AlreadyDone: true, Day: plan.Day, NewStreak: h.CurrentStreak, NewBest: h.BestStreak}
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		plan.Apply(h)
		if err := tx.PutHabit(ctx, h); err != nil {
			return err
		}
		return tx.InsertLog(ctx, &habit.CompletionLog{
			HabitID:           h.ID,
			UserID:            userID,
			Day:               plan.Day,
			CompletedAt:       plan.CompletedAt,
			IsCompleted:       true,
			PrevCompletedDate: plan.PrevCompleted,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check in habit: %w", err)
	}

	result := plan.Result(h)
	if plan.AlreadyDone {
		metrics.CheckIns.WithLabelValues("duplicate").Inc()
		return &result, nil
	}
	metrics.CheckIns.WithLabelValues("completed").Inc()

	s.effects.Emit(checkInEffects(h, userID, plan)...)

	s.log.Info("habit checked in",
		zap.String("user_id", userID),
		zap.String("habit_id", h.ID),
		zap.Int("streak", plan.NewStreak))
	return &result, nil
}

func checkInEffects(h *habit.Habit, userID string, plan engine.CheckInPlan) []Effect {
	description := "Started a new habit"
	if plan.NewStreak > 1 {
		description = fmt.Sprintf("%d-day streak! 🔥", plan.NewStreak)
	}
	return []Effect{
		{
			Kind:          EffectLogActivity,
			UserID:        userID,
			EventType:     feed.EventHabitDone,
			Title:         "Completed: " + h.Name,
			Description:   description,
			CorrelationID: habit.LogKey{HabitID: h.ID, UserID: userID, Day: plan.Day}.DocID(),
		},
		{Kind: EffectAddExperience, UserID: userID, XP: engine.CheckInXPFor(plan.NewStreak)},
		{Kind: EffectChallengeCheckIn, UserID: userID, HabitName: h.Name},
	}
}

// UndoCheckIn removes today's completion and rolls the streak back. Without
// a completion today it does nothing. XP already granted is kept.
func (s *HabitService) UndoCheckIn(ctx context.Context, userID, habitID string) (*streak.UndoResult, error) {
	var (
		h      *habit.Habit
		undone bool
	)
	today := s.clock.Today()
	key := habit.LogKey{HabitID: habitID, UserID: userID, Day: today}

	err := s.tx.run(ctx, "undo_check_in", func(ctx context.Context, tx store.Tx) error {
		var err error
		undone = false
		h, err = loadOwned(ctx, tx, habitID, userID)
		if err != nil {
			return err
		}
		if _, err := tx.GetLog(ctx, key); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		logs, err := tx.ListLogs(ctx, habitID, userID)
		if err != nil {
			return err
		}

		engine.PlanUndo(h, logs, today).Apply(h, s.clock.Now())
		if err := tx.DeleteLog(ctx, key); err != nil {
			return err
		}
		undone = true
		return tx.PutHabit(ctx, h)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to undo check-in: %w", err)
	}

	result := &streak.UndoResult{
		HabitID:           h.ID,
		Undone:            undone,
		CurrentStreak:     h.CurrentStreak,
		LastCompletedDate: h.LastCompletedDate,
	}
	if !undone {
		return result, nil
	}
	metrics.CheckIns.WithLabelValues("undone").Inc()

	s.effects.Emit(
		Effect{Kind: EffectRemoveActivity, UserID: userID, EventType: feed.EventHabitDone, CorrelationID: key.DocID()},
		Effect{Kind: EffectChallengeUndo, UserID: userID, HabitName: h.Name},
	)
	return result, nil
}

// ResetNegativeHabit records a relapse on a negative habit.
func (s *HabitService) ResetNegativeHabit(ctx context.Context, userID, habitID string) (*habit.Habit, error) {
	var h *habit.Habit
	err := s.tx.run(ctx, "reset_negative_habit", func(ctx context.Context, tx store.Tx) error {
		var err error
		h, err = loadOwned(ctx, tx, habitID, userID)
		if err != nil {
			return err
		}
		if !h.IsNegative() {
			return ErrPositiveHabit
		}
		engine.ApplyNegativeReset(h, s.clock)
		return tx.PutHabit(ctx, h)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset habit: %w", err)
	}
	return h, nil
}

// ListHabits returns the user's active habits. Stale positive streaks are
// repaired first, each in its own transaction; negative habits get their
// clean-day count computed on the fly.
func (s *HabitService) ListHabits(ctx context.Context, userID string) ([]*habit.Habit, error) {
	habits, err := s.tx.Store().ListHabits(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}

	out := make([]*habit.Habit, 0, len(habits))
	for _, h := range habits {
		switch {
		case h.IsNegative():
			out = append(out, engine.NegativeView(h, s.clock))
		case engine.NeedsRepair(h, s.clock):
			repaired, err := s.repairStreak(ctx, userID, h.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, repaired)
		default:
			out = append(out, h)
		}
	}
	return out, nil
}

// repairStreak applies PlanRepair to one habit. The shield, when spent, is
// taken in the same transaction as the habit write.
func (s *HabitService) repairStreak(ctx context.Context, userID, habitID string) (*habit.Habit, error) {
	var (
		h    *habit.Habit
		plan engine.RepairPlan
	)
	err := s.tx.run(ctx, "repair_streak", func(ctx context.Context, tx store.Tx) error {
		var err error
		h, err = loadOwned(ctx, tx, habitID, userID)
		if err != nil {
			return err
		}
		p, err := tx.GetProfile(ctx, userID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		shields := 0
		if p != nil {
			shields = p.StreakShields
		}

		plan = engine.PlanRepair(h, s.clock, shields)
		if plan.Outcome == streak.RepairNone {
			return nil
		}
		now := s.clock.Now()
		plan.Apply(h, now)
		if plan.ConsumesShield {
			if !s.shields.debit(p) {
				return ErrNoShields
			}
			p.UpdatedAt = now
			if err := tx.PutProfile(ctx, p); err != nil {
				return err
			}
		}
		return tx.PutHabit(ctx, h)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to repair streak: %w", err)
	}

	if plan.Outcome != streak.RepairNone {
		metrics.StreakRepairs.WithLabelValues(string(plan.Outcome)).Inc()
		s.log.Info("streak repaired",
			zap.String("user_id", userID),
			zap.String("habit_id", habitID),
			zap.String("outcome", string(plan.Outcome)),
			zap.Int("streak", h.CurrentStreak))
	}
	return h, nil
}

// History returns the days a habit was completed, oldest first.
func (s *HabitService) History(ctx context.Context, userID, habitID string) ([]string, error) {
	st := s.tx.Store()
	if _, err := loadOwned(ctx, st, habitID, userID); err != nil {
		return nil, err
	}
	logs, err := st.ListLogs(ctx, habitID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list habit logs: %w", err)
	}
	days := make([]string, 0, len(logs))
	for _, l := range logs {
		days = append(days, l.Day)
	}
	return days, nil
}

// TodayCompleted returns the ids of habits completed today.
func (s *HabitService) TodayCompleted(ctx context.Context, userID string) ([]string, error) {
	logs, err := s.tx.Store().ListLogsForDay(ctx, userID, s.clock.Today())
	if err != nil {
		return nil, fmt.Errorf("failed to list today's logs: %w", err)
	}
	ids := make([]string, 0, len(logs))
	for _, l := range logs {
		ids = append(ids, l.HabitID)
	}
	return ids, nil
}

func (s *HabitService) Calendar(ctx context.Context, userID, habitID string, year, month int) (*calendar.CalendarResponse, error) {
	if month < 1 || month > 12 {
		return nil, NewValidationError("month must be between 1 and 12", nil)
	}
	days, err := s.History(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	completed := make(map[string]bool, len(days))
	for _, d := range days {
		completed[d] = true
	}

	today := s.clock.Today()
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.clock.Location())
	resp := &calendar.CalendarResponse{HabitID: habitID, Year: year, Month: month}
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		day := d.Format(clock.DayFormat)
		resp.Days = append(resp.Days, &calendar.CalendarDay{
			Date:      day,
			Completed: completed[day],
			IsToday:   day == today,
		})
	}
	return resp, nil
}
