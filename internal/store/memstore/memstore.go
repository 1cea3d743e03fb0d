package memstore

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"

	"weHabitAPI/internal/store"
	"weHabitAPI/internal/types/challenge"
	"weHabitAPI/internal/types/feed"
	"weHabitAPI/internal/types/habit"
	"weHabitAPI/internal/user"
)

type data struct {
	habits     map[string]*habit.Habit
	logs       map[string]*habit.CompletionLog
	profiles   map[string]*user.Profile
	challenges map[string]*challenge.Challenge
	feed       map[string]*feed.Activity
}

func newData() *data {
	return &data{
		habits:     make(map[string]*habit.Habit),
		logs:       make(map[string]*habit.CompletionLog),
		profiles:   make(map[string]*user.Profile),
		challenges: make(map[string]*challenge.Challenge),
		feed:       make(map[string]*feed.Activity),
	}
}

// clone copies the maps only; stored values are never mutated in place.
func (d *data) clone() *data {
	c := newData()
	for k, v := range d.habits {
		c.habits[k] = v
	}
	for k, v := range d.logs {
		c.logs[k] = v
	}
	for k, v := range d.profiles {
		c.profiles[k] = v
	}
	for k, v := range d.challenges {
		c.challenges[k] = v
	}
	for k, v := range d.feed {
		c.feed[k] = v
	}
	return c
}

type op func(d *data) error

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*memTx)(nil)
)

// Store keeps everything in process memory. A transaction holds the store
// lock from its first read until commit, so transactions are serial.
type Store struct {
	mu          sync.Mutex
	d           *data
	failCommits int
}

func New() *Store {
	return &Store{d: newData()}
}

// FailNextCommits makes the next n commits fail with store.ErrConflict.
func (s *Store) FailNextCommits(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommits = n
}

func (s *Store) Close() error { return nil }

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{d: s.d}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failCommits > 0 {
		s.failCommits--
		return store.ErrConflict
	}

	next := s.d.clone()
	for _, o := range tx.ops {
		if err := o(next); err != nil {
			return err
		}
	}
	s.d = next
	return nil
}

// apply runs a single write outside a transaction.
func (s *Store) apply(o op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.d.clone()
	if err := o(next); err != nil {
		return err
	}
	s.d = next
	return nil
}

func (s *Store) read() *memTx {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memTx{d: s.d}
}

func (s *Store) GetHabit(ctx context.Context, id string) (*habit.Habit, error) {
	return s.read().GetHabit(ctx, id)
}

func (s *Store) ListHabits(ctx context.Context, userID string, activeOnly bool) ([]*habit.Habit, error) {
	return s.read().ListHabits(ctx, userID, activeOnly)
}

func (s *Store) GetLog(ctx context.Context, key habit.LogKey) (*habit.CompletionLog, error) {
	return s.read().GetLog(ctx, key)
}

func (s *Store) ListLogs(ctx context.Context, habitID, userID string) ([]*habit.CompletionLog, error) {
	return s.read().ListLogs(ctx, habitID, userID)
}

func (s *Store) ListLogsForDay(ctx context.Context, userID, day string) ([]*habit.CompletionLog, error) {
	return s.read().ListLogsForDay(ctx, userID, day)
}

func (s *Store) GetProfile(ctx context.Context, id string) (*user.Profile, error) {
	return s.read().GetProfile(ctx, id)
}

func (s *Store) GetChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	return s.read().GetChallenge(ctx, id)
}

func (s *Store) ListChallenges(ctx context.Context, f challenge.Filter) ([]*challenge.Challenge, error) {
	return s.read().ListChallenges(ctx, f)
}

func (s *Store) ListFeed(ctx context.Context, userID string, limit int) ([]*feed.Activity, error) {
	return s.read().ListFeed(ctx, userID, limit)
}

func (s *Store) PutHabit(_ context.Context, h *habit.Habit) error {
	return s.apply(putHabit(h))
}

func (s *Store) DeleteHabit(_ context.Context, id string) error {
	return s.apply(deleteHabit(id))
}

func (s *Store) InsertLog(_ context.Context, l *habit.CompletionLog) error {
	return s.apply(insertLog(l))
}

func (s *Store) DeleteLog(_ context.Context, key habit.LogKey) error {
	return s.apply(deleteLog(key))
}

func (s *Store) PutProfile(_ context.Context, p *user.Profile) error {
	return s.apply(putProfile(p))
}

func (s *Store) DeleteProfile(_ context.Context, id string) error {
	return s.apply(deleteProfile(id))
}

func (s *Store) PutChallenge(_ context.Context, c *challenge.Challenge) error {
	return s.apply(putChallenge(c))
}

func (s *Store) DeleteChallenge(_ context.Context, id string) error {
	return s.apply(deleteChallenge(id))
}

func (s *Store) InsertFeedEvent(_ context.Context, a *feed.Activity) error {
	return s.apply(insertFeedEvent(a))
}

func (s *Store) DeleteHabitLogs(_ context.Context, habitID string) (int, error) {
	n := 0
	err := s.apply(func(d *data) error {
		for k, l := range d.logs {
			if l.HabitID == habitID {
				delete(d.logs, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) DeleteFeedEvents(_ context.Context, userID string, t feed.EventType, correlationID string) (int, error) {
	n := 0
	err := s.apply(func(d *data) error {
		for k, a := range d.feed {
			if a.UserID == userID && a.Type == t && a.CorrelationID == correlationID {
				delete(d.feed, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

// memTx reads from the snapshot taken when it started and queues writes.
type memTx struct {
	d   *data
	ops []op
}

func (t *memTx) GetHabit(_ context.Context, id string) (*habit.Habit, error) {
	h, ok := t.d.habits[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return h.Clone(), nil
}

func (t *memTx) ListHabits(_ context.Context, userID string, activeOnly bool) ([]*habit.Habit, error) {
	var out []*habit.Habit
	for _, h := range t.d.habits {
		if h.UserID != userID || (activeOnly && !h.IsActive) {
			continue
		}
		out = append(out, h.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) GetLog(_ context.Context, key habit.LogKey) (*habit.CompletionLog, error) {
	l, ok := t.d.logs[key.DocID()]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (t *memTx) ListLogs(_ context.Context, habitID, userID string) ([]*habit.CompletionLog, error) {
	return t.filterLogs(func(l *habit.CompletionLog) bool {
		return l.HabitID == habitID && l.UserID == userID
	}), nil
}

func (t *memTx) ListLogsForDay(_ context.Context, userID, day string) ([]*habit.CompletionLog, error) {
	return t.filterLogs(func(l *habit.CompletionLog) bool {
		return l.UserID == userID && l.Day == day
	}), nil
}

func (t *memTx) filterLogs(keep func(*habit.CompletionLog) bool) []*habit.CompletionLog {
	var out []*habit.CompletionLog
	for _, l := range t.d.logs {
		if keep(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].HabitID < out[j].HabitID
	})
	return out
}

func (t *memTx) GetProfile(_ context.Context, id string) (*user.Profile, error) {
	p, ok := t.d.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p.Clone(), nil
}

func (t *memTx) GetChallenge(_ context.Context, id string) (*challenge.Challenge, error) {
	c, ok := t.d.challenges[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c.Clone(), nil
}

func (t *memTx) ListChallenges(_ context.Context, f challenge.Filter) ([]*challenge.Challenge, error) {
	var out []*challenge.Challenge
	for _, c := range t.d.challenges {
		if f.ActiveOnly && !c.IsActive {
			continue
		}
		if f.Name != "" && c.ChallengeName != f.Name {
			continue
		}
		if f.ParticipantID != "" && !slices.Contains(c.ParticipantIDs, f.ParticipantID) {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) ListFeed(_ context.Context, userID string, limit int) ([]*feed.Activity, error) {
	var out []*feed.Activity
	for _, a := range t.d.feed {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) PutHabit(_ context.Context, h *habit.Habit) error {
	t.ops = append(t.ops, putHabit(h))
	return nil
}

func (t *memTx) DeleteHabit(_ context.Context, id string) error {
	t.ops = append(t.ops, deleteHabit(id))
	return nil
}

func (t *memTx) InsertLog(_ context.Context, l *habit.CompletionLog) error {
	t.ops = append(t.ops, insertLog(l))
	return nil
}

func (t *memTx) DeleteLog(_ context.Context, key habit.LogKey) error {
	t.ops = append(t.ops, deleteLog(key))
	return nil
}

func (t *memTx) PutProfile(_ context.Context, p *user.Profile) error {
	t.ops = append(t.ops, putProfile(p))
	return nil
}

func (t *memTx) DeleteProfile(_ context.Context, id string) error {
	t.ops = append(t.ops, deleteProfile(id))
	return nil
}

func (t *memTx) PutChallenge(_ context.Context, c *challenge.Challenge) error {
	t.ops = append(t.ops, putChallenge(c))
	return nil
}

func (t *memTx) DeleteChallenge(_ context.Context, id string) error {
	t.ops = append(t.ops, deleteChallenge(id))
	return nil
}

func (t *memTx) InsertFeedEvent(_ context.Context, a *feed.Activity) error {
	t.ops = append(t.ops, insertFeedEvent(a))
	return nil
}

var errEmptyID = errors.New("memstore: empty id")

func putHabit(h *habit.Habit) op {
	h = h.Clone()
	return func(d *data) error {
		if h.ID == "" {
			return errEmptyID
		}
		d.habits[h.ID] = h
		return nil
	}
}

func deleteHabit(id string) op {
	return func(d *data) error {
		delete(d.habits, id)
		return nil
	}
}

func insertLog(l *habit.CompletionLog) op {
	cp := *l
	cp.ID = l.Key().DocID()
	if l.PrevCompletedDate != nil {
		prev := *l.PrevCompletedDate
		cp.PrevCompletedDate = &prev
	}
	return func(d *data) error {
		if _, ok := d.logs[cp.ID]; ok {
			return store.ErrAlreadyExists
		}
		d.logs[cp.ID] = &cp
		return nil
	}
}

func deleteLog(key habit.LogKey) op {
	return func(d *data) error {
		delete(d.logs, key.DocID())
		return nil
	}
}

func putProfile(p *user.Profile) op {
	p = p.Clone()
	return func(d *data) error {
		if p.ID == "" {
			return errEmptyID
		}
		d.profiles[p.ID] = p
		return nil
	}
}

func deleteProfile(id string) op {
	return func(d *data) error {
		delete(d.profiles, id)
		return nil
	}
}

func putChallenge(c *challenge.Challenge) op {
	c = c.Clone()
	return func(d *data) error {
		if c.ID == "" {
			return errEmptyID
		}
		d.challenges[c.ID] = c
		return nil
	}
}

func deleteChallenge(id string) op {
	return func(d *data) error {
		delete(d.challenges, id)
		return nil
	}
}

func insertFeedEvent(a *feed.Activity) op {
	cp := *a
	return func(d *data) error {
		if cp.ID == "" {
			return errEmptyID
		}
		if _, ok := d.feed[cp.ID]; ok {
			return store.ErrAlreadyExists
		}
		d.feed[cp.ID] = &cp
		return nil
	}
}
