package fsstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"weHabitAPI/internal/store"
	"weHabitAPI/internal/types/challenge"
	"weHabitAPI/internal/types/feed"
	"weHabitAPI/internal/types/habit"
	"weHabitAPI/internal/user"
)

const (
	colHabits     = "habits"
	colLogs       = "logs"
	colUsers      = "users"
	colChallenges = "challenges"
	colFeed       = "feed"
)

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*fsTx)(nil)
)

// Store persists to Cloud Firestore. Completion logs use deterministic
// document ids so a duplicate check-in collides on create.
type Store struct {
	client *firestore.Client
}

func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// mapErr translates gRPC status codes into store errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", store.ErrAlreadyExists, err)
	case codes.Aborted, codes.FailedPrecondition:
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(ctx, &fsTx{client: s.client, tx: t})
	}, firestore.MaxAttempts(1))
	if err == nil {
		return nil
	}
	// Errors returned by fn already carry store sentinels.
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrAlreadyExists) {
		return err
	}
	return mapErr(err)
}

// getter abstracts over a plain client and a transaction.
type getter interface {
	get(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error)
	all(ctx context.Context, q firestore.Query) ([]*firestore.DocumentSnapshot, error)
}

type direct struct{}

func (direct) get(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	return ref.Get(ctx)
}

func (direct) all(ctx context.Context, q firestore.Query) ([]*firestore.DocumentSnapshot, error) {
	return q.Documents(ctx).GetAll()
}

type inTx struct{ tx *firestore.Transaction }

func (g inTx) get(_ context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	return g.tx.Get(ref)
}

func (g inTx) all(_ context.Context, q firestore.Query) ([]*firestore.DocumentSnapshot, error) {
	return g.tx.Documents(q).GetAll()
}

type reader struct {
	client *firestore.Client
	g      getter
}

func (r reader) getHabit(ctx context.Context, id string) (*habit.Habit, error) {
	snap, err := r.g.get(ctx, r.client.Collection(colHabits).Doc(id))
	if err != nil {
		return nil, mapErr(err)
	}
	return decodeHabit(snap)
}

func decodeHabit(snap *firestore.DocumentSnapshot) (*habit.Habit, error) {
	var h habit.Habit
	if err := snap.DataTo(&h); err != nil {
		return nil, fmt.Errorf("failed to decode habit %s: %w", snap.Ref.ID, err)
	}
	h.ID = snap.Ref.ID
	return &h, nil
}

func (r reader) listHabits(ctx context.Context, userID string, activeOnly bool) ([]*habit.Habit, error) {
	q := r.client.Collection(colHabits).Where("userId", "==", userID)
	if activeOnly {
		q = q.Where("isActive", "==", true)
	}
	snaps, err := r.g.all(ctx, q.OrderBy("createdAt", firestore.Asc))
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]*habit.Habit, 0, len(snaps))
	for _, snap := range snaps {
		h, err := decodeHabit(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (r reader) getLog(ctx context.Context, key habit.LogKey) (*habit.CompletionLog, error) {
	snap, err := r.g.get(ctx, r.client.Collection(colLogs).Doc(key.DocID()))
	if err != nil {
		return nil, mapErr(err)
	}
	return decodeLog(snap)
}

func decodeLog(snap *firestore.DocumentSnapshot) (*habit.CompletionLog, error) {
	var l habit.CompletionLog
	if err := snap.DataTo(&l); err != nil {
		return nil, fmt.Errorf("failed to decode log %s: %w", snap.Ref.ID, err)
	}
	l.ID = snap.Ref.ID
	return &l, nil
}

func (r reader) queryLogs(ctx context.Context, q firestore.Query) ([]*habit.CompletionLog, error) {
	snaps, err := r.g.all(ctx, q.OrderBy("date", firestore.Asc))
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]*habit.CompletionLog, 0, len(snaps))
	for _, snap := range snaps {
		l, err := decodeLog(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r reader) listLogs(ctx context.Context, habitID, userID string) ([]*habit.CompletionLog, error) {
	q := r.client.Collection(colLogs).Where("habitId", "==", habitID).Where("userId", "==", userID)
	return r.queryLogs(ctx, q)
}

func (r reader) listLogsForDay(ctx context.Context, userID, day string) ([]*habit.CompletionLog, error) {
	q := r.client.Collection(colLogs).Where("userId", "==", userID).Where("date", "==", day)
	return r.queryLogs(ctx, q)
}

func (r reader) getProfile(ctx context.Context, id string) (*user.Profile, error) {
	snap, err := r.g.get(ctx, r.client.Collection(colUsers).Doc(id))
	if err != nil {
		return nil, mapErr(err)
	}
	var p user.Profile
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", id, err)
	}
	p.ID = snap.Ref.ID
	return &p, nil
}

func decodeChallenge(snap *firestore.DocumentSnapshot) (*challenge.Challenge, error) {
	var c challenge.Challenge
	if err := snap.DataTo(&c); err != nil {
		return nil, fmt.Errorf("failed to decode challenge %s: %w", snap.Ref.ID, err)
	}
	c.ID = snap.Ref.ID
	return &c, nil
}

func (r reader) getChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	snap, err := r.g.get(ctx, r.client.Collection(colChallenges).Doc(id))
	if err != nil {
		return nil, mapErr(err)
	}
	return decodeChallenge(snap)
}

func (r reader) listChallenges(ctx context.Context, f challenge.Filter) ([]*challenge.Challenge, error) {
	q := r.client.Collection(colChallenges).Query
	if f.ParticipantID != "" {
		q = q.Where("participantIds", "array-contains", f.ParticipantID)
	}
	if f.ActiveOnly {
		q = q.Where("isActive", "==", true)
	}
	if f.Name != "" {
		q = q.Where("challengeName", "==", f.Name)
	}
	snaps, err := r.g.all(ctx, q)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]*challenge.Challenge, 0, len(snaps))
	for _, snap := range snaps {
		c, err := decodeChallenge(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r reader) listFeed(ctx context.Context, userID string, limit int) ([]*feed.Activity, error) {
	q := r.client.Collection(colFeed).Where("userId", "==", userID).OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	snaps, err := r.g.all(ctx, q)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]*feed.Activity, 0, len(snaps))
	for _, snap := range snaps {
		var a feed.Activity
		if err := snap.DataTo(&a); err != nil {
			return nil, fmt.Errorf("failed to decode feed event %s: %w", snap.Ref.ID, err)
		}
		a.ID = snap.Ref.ID
		out = append(out, &a)
	}
	return out, nil
}

func (s *Store) r() reader { return reader{client: s.client, g: direct{}} }

func (s *Store) GetHabit(ctx context.Context, id string) (*habit.Habit, error) {
	return s.r().getHabit(ctx, id)
}

func (s *Store) ListHabits(ctx context.Context, userID string, activeOnly bool) ([]*habit.Habit, error) {
	return s.r().listHabits(ctx, userID, activeOnly)
}

func (s *Store) GetLog(ctx context.Context, key habit.LogKey) (*habit.CompletionLog, error) {
	return s.r().getLog(ctx, key)
}

func (s *Store) ListLogs(ctx context.Context, habitID, userID string) ([]*habit.CompletionLog, error) {
	return s.r().listLogs(ctx, habitID, userID)
}

func (s *Store) ListLogsForDay(ctx context.Context, userID, day string) ([]*habit.CompletionLog, error) {
	return s.r().listLogsForDay(ctx, userID, day)
}

func (s *Store) GetProfile(ctx context.Context, id string) (*user.Profile, error) {
	return s.r().getProfile(ctx, id)
}

func (s *Store) GetChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	return s.r().getChallenge(ctx, id)
}

func (s *Store) ListChallenges(ctx context.Context, f challenge.Filter) ([]*challenge.Challenge, error) {
	return s.r().listChallenges(ctx, f)
}

func (s *Store) ListFeed(ctx context.Context, userID string, limit int) ([]*feed.Activity, error) {
	return s.r().listFeed(ctx, userID, limit)
}

func (s *Store) PutHabit(ctx context.Context, h *habit.Habit) error {
	_, err := s.client.Collection(colHabits).Doc(h.ID).Set(ctx, h)
	return mapErr(err)
}

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	_, err := s.client.Collection(colHabits).Doc(id).Delete(ctx)
	return mapErr(err)
}

func (s *Store) InsertLog(ctx context.Context, l *habit.CompletionLog) error {
	_, err := s.client.Collection(colLogs).Doc(l.Key().DocID()).Create(ctx, l)
	return mapErr(err)
}

func (s *Store) DeleteLog(ctx context.Context, key habit.LogKey) error {
	_, err := s.client.Collection(colLogs).Doc(key.DocID()).Delete(ctx)
	return mapErr(err)
}

func (s *Store) PutProfile(ctx context.Context, p *user.Profile) error {
	_, err := s.client.Collection(colUsers).Doc(p.ID).Set(ctx, p)
	return mapErr(err)
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	_, err := s.client.Collection(colUsers).Doc(id).Delete(ctx)
	return mapErr(err)
}

func (s *Store) PutChallenge(ctx context.Context, c *challenge.Challenge) error {
	_, err := s.client.Collection(colChallenges).Doc(c.ID).Set(ctx, c)
	return mapErr(err)
}

func (s *Store) DeleteChallenge(ctx context.Context, id string) error {
	_, err := s.client.Collection(colChallenges).Doc(id).Delete(ctx)
	return mapErr(err)
}

func (s *Store) InsertFeedEvent(ctx context.Context, a *feed.Activity) error {
	_, err := s.client.Collection(colFeed).Doc(a.ID).Create(ctx, a)
	return mapErr(err)
}

// deleteQuery removes every document matched by q with a bulk writer.
func (s *Store) deleteQuery(ctx context.Context, q firestore.Query) (int, error) {
	bw := s.client.BulkWriter(ctx)
	n := 0
	it := q.Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return n, mapErr(err)
		}
		if _, err := bw.Delete(snap.Ref); err != nil {
			bw.End()
			return n, mapErr(err)
		}
		n++
	}
	bw.End()
	return n, nil
}

func (s *Store) DeleteHabitLogs(ctx context.Context, habitID string) (int, error) {
	return s.deleteQuery(ctx, s.client.Collection(colLogs).Where("habitId", "==", habitID))
}

func (s *Store) DeleteFeedEvents(ctx context.Context, userID string, t feed.EventType, correlationID string) (int, error) {
	q := s.client.Collection(colFeed).
		Where("userId", "==", userID).
		Where("type", "==", string(t)).
		Where("relatedId", "==", correlationID)
	return s.deleteQuery(ctx, q)
}

// fsTx wraps a Firestore transaction. Firestore rejects reads after the
// first write, which the store.Tx contract already demands of callers.
type fsTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *fsTx) r() reader { return reader{client: t.client, g: inTx{tx: t.tx}} }

func (t *fsTx) GetHabit(ctx context.Context, id string) (*habit.Habit, error) {
	return t.r().getHabit(ctx, id)
}

func (t *fsTx) ListHabits(ctx context.Context, userID string, activeOnly bool) ([]*habit.Habit, error) {
	return t.r().listHabits(ctx, userID, activeOnly)
}

func (t *fsTx) GetLog(ctx context.Context, key habit.LogKey) (*habit.CompletionLog, error) {
	return t.r().getLog(ctx, key)
}

func (t *fsTx) ListLogs(ctx context.Context, habitID, userID string) ([]*habit.CompletionLog, error) {
	return t.r().listLogs(ctx, habitID, userID)
}

func (t *fsTx) ListLogsForDay(ctx context.Context, userID, day string) ([]*habit.CompletionLog, error) {
	return t.r().listLogsForDay(ctx, userID, day)
}

func (t *fsTx) GetProfile(ctx context.Context, id string) (*user.Profile, error) {
	return t.r().getProfile(ctx, id)
}

func (t *fsTx) GetChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	return t.r().getChallenge(ctx, id)
}

func (t *fsTx) ListChallenges(ctx context.Context, f challenge.Filter) ([]*challenge.Challenge, error) {
	return t.r().listChallenges(ctx, f)
}

func (t *fsTx) ListFeed(ctx context.Context, userID string, limit int) ([]*feed.Activity, error) {
	return t.r().listFeed(ctx, userID, limit)
}

func (t *fsTx) PutHabit(_ context.Context, h *habit.Habit) error {
	return t.tx.Set(t.client.Collection(colHabits).Doc(h.ID), h)
}

func (t *fsTx) DeleteHabit(_ context.Context, id string) error {
	return t.tx.Delete(t.client.Collection(colHabits).Doc(id))
}

func (t *fsTx) InsertLog(_ context.Context, l *habit.CompletionLog) error {
	return t.tx.Create(t.client.Collection(colLogs).Doc(l.Key().DocID()), l)
}

func (t *fsTx) DeleteLog(_ context.Context, key habit.LogKey) error {
	return t.tx.Delete(t.client.Collection(colLogs).Doc(key.DocID()))
}

func (t *fsTx) PutProfile(_ context.Context, p *user.Profile) error {
	return t.tx.Set(t.client.Collection(colUsers).Doc(p.ID), p)
}

func (t *fsTx) DeleteProfile(_ context.Context, id string) error {
	return t.tx.Delete(t.client.Collection(colUsers).Doc(id))
}

func (t *fsTx) PutChallenge(_ context.Context, c *challenge.Challenge) error {
	return t.tx.Set(t.client.Collection(colChallenges).Doc(c.ID), c)
}

func (t *fsTx) DeleteChallenge(_ context.Context, id string) error {
	return t.tx.Delete(t.client.Collection(colChallenges).Doc(id))
}

func (t *fsTx) InsertFeedEvent(_ context.Context, a *feed.Activity) error {
	return t.tx.Create(t.client.Collection(colFeed).Doc(a.ID), a)
}
