package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"weHabitAPI/internal/store"
	"weHabitAPI/internal/types/challenge"
	"weHabitAPI/internal/types/feed"
	"weHabitAPI/internal/types/habit"
	"weHabitAPI/internal/user"
)

//go:embed schema.sql
var schema string

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*queries)(nil)
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists to PostgreSQL. Transactions run at SERIALIZABLE so a lost
// race surfaces as a serialization failure instead of a lost update.
type Store struct {
	*queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: &queries{q: pool}, pool: pool}
}

// Connect opens a pool and applies the schema.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return mapErr(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &queries{q: tx}); err != nil {
		return mapErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (s *Store) DeleteHabitLogs(ctx context.Context, habitID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM completion_logs WHERE habit_id = $1`, habitID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete habit logs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) DeleteFeedEvents(ctx context.Context, userID string, t feed.EventType, correlationID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM feed_events WHERE user_id = $1 AND type = $2 AND correlation_id = $3`,
		userID, string(t), correlationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete feed events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// mapErr translates pgx errors into store errors, keeping the cause.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		case "23505":
			return fmt.Errorf("%w: %v", store.ErrAlreadyExists, err)
		}
	}
	return err
}

type queries struct {
	q querier
}

const habitColumns = `id, user_id, name, icon, category_id, category_label, category_color,
	frequency, weekdays, type, current_streak, best_streak, last_completed_date,
	last_reset_date, is_active, created_at, updated_at`

func scanHabit(row pgx.Row) (*habit.Habit, error) {
	h := &habit.Habit{}
	err := row.Scan(
		&h.ID,
		&h.UserID,
		&h.Name,
		&h.Icon,
		&h.Category.ID,
		&h.Category.Label,
		&h.Category.Color,
		&h.Schedule.Frequency,
		&h.Schedule.Weekdays,
		&h.Type,
		&h.CurrentStreak,
		&h.BestStreak,
		&h.LastCompletedDate,
		&h.LastResetDate,
		&h.IsActive,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (r *queries) GetHabit(ctx context.Context, id string) (*habit.Habit, error) {
	h, err := scanHabit(r.q.QueryRow(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get habit: %w", err))
	}
	return h, nil
}

func (r *queries) ListHabits(ctx context.Context, userID string, activeOnly bool) ([]*habit.Habit, error) {
	rows, err := r.q.Query(ctx, `
	SELECT `+habitColumns+`
	FROM habits
	WHERE user_id = $1 AND ($2 = FALSE OR is_active)
	ORDER BY created_at, id
	`, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	var out []*habit.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *queries) PutHabit(ctx context.Context, h *habit.Habit) error {
	_, err := r.q.Exec(ctx, `
	INSERT INTO habits (`+habitColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		icon = EXCLUDED.icon,
		category_id = EXCLUDED.category_id,
		category_label = EXCLUDED.category_label,
		category_color = EXCLUDED.category_color,
		frequency = EXCLUDED.frequency,
		weekdays = EXCLUDED.weekdays,
		type = EXCLUDED.type,
		current_streak = EXCLUDED.current_streak,
		best_streak = EXCLUDED.best_streak,
		last_completed_date = EXCLUDED.last_completed_date,
		last_reset_date = EXCLUDED.last_reset_date,
		is_active = EXCLUDED.is_active,
		updated_at = EXCLUDED.updated_at
	`,
		h.ID, h.UserID, h.Name, h.Icon,
		h.Category.ID, h.Category.Label, h.Category.Color,
		string(h.Schedule.Frequency), h.Schedule.Weekdays, string(h.Type),
		h.CurrentStreak, h.BestStreak, h.LastCompletedDate, h.LastResetDate,
		h.IsActive, h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return mapErr(fmt.Errorf("failed to save habit: %w", err))
	}
	return nil
}

func (r *queries) DeleteHabit(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM habits WHERE id = $1`, id); err != nil {
		return mapErr(fmt.Errorf("failed to delete habit: %w", err))
	}
	return nil
}

const logColumns = `id, habit_id, user_id, day, completed_at, is_completed, prev_completed_date`

func scanLog(row pgx.Row) (*habit.CompletionLog, error) {
	l := &habit.CompletionLog{}
	if err := row.Scan(&l.ID, &l.HabitID, &l.UserID, &l.Day, &l.CompletedAt, &l.IsCompleted, &l.PrevCompletedDate); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *queries) GetLog(ctx context.Context, key habit.LogKey) (*habit.CompletionLog, error) {
	l, err := scanLog(r.q.QueryRow(ctx, `
	SELECT `+logColumns+` FROM completion_logs
	WHERE habit_id = $1 AND user_id = $2 AND day = $3
	`, key.HabitID, key.UserID, key.Day))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get log: %w", err))
	}
	return l, nil
}

func (r *queries) listLogs(ctx context.Context, sql string, args ...any) ([]*habit.CompletionLog, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	var out []*habit.CompletionLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *queries) ListLogs(ctx context.Context, habitID, userID string) ([]*habit.CompletionLog, error) {
	return r.listLogs(ctx, `
	SELECT `+logColumns+` FROM completion_logs
	WHERE habit_id = $1 AND user_id = $2
	ORDER BY day
	`, habitID, userID)
}

func (r *queries) ListLogsForDay(ctx context.Context, userID, day string) ([]*habit.CompletionLog, error) {
	return r.listLogs(ctx, `
	SELECT `+logColumns+` FROM completion_logs
	WHERE user_id = $1 AND day = $2
	ORDER BY habit_id
	`, userID, day)
}

func (r *queries) InsertLog(ctx context.Context, l *habit.CompletionLog) error {
	_, err := r.q.Exec(ctx, `
	INSERT INTO completion_logs (`+logColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, l.Key().DocID(), l.HabitID, l.UserID, l.Day, l.CompletedAt, l.IsCompleted, l.PrevCompletedDate)
	if err != nil {
		return mapErr(fmt.Errorf("failed to insert log: %w", err))
	}
	return nil
}

func (r *queries) DeleteLog(ctx context.Context, key habit.LogKey) error {
	_, err := r.q.Exec(ctx, `
	DELETE FROM completion_logs WHERE habit_id = $1 AND user_id = $2 AND day = $3
	`, key.HabitID, key.UserID, key.Day)
	if err != nil {
		return mapErr(fmt.Errorf("failed to delete log: %w", err))
	}
	return nil
}

func (r *queries) GetProfile(ctx context.Context, id string) (*user.Profile, error) {
	p := &user.Profile{}
	err := r.q.QueryRow(ctx, `
	SELECT id, email, username, avatar, total_xp, level, streak_shields, push_tokens, created_at, updated_at
	FROM profiles
	WHERE id = $1
	`, id).Scan(
		&p.ID,
		&p.Email,
		&p.Username,
		&p.Avatar,
		&p.TotalXP,
		&p.Level,
		&p.StreakShields,
		&p.PushTokens,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get profile: %w", err))
	}
	return p, nil
}

func (r *queries) PutProfile(ctx context.Context, p *user.Profile) error {
	_, err := r.q.Exec(ctx, `
	INSERT INTO profiles (id, email, username, avatar, total_xp, level, streak_shields, push_tokens, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		email = EXCLUDED.email,
		username = EXCLUDED.username,
		avatar = EXCLUDED.avatar,
		total_xp = EXCLUDED.total_xp,
		level = EXCLUDED.level,
		streak_shields = EXCLUDED.streak_shields,
		push_tokens = EXCLUDED.push_tokens,
		updated_at = EXCLUDED.updated_at
	`, p.ID, p.Email, p.Username, p.Avatar, p.TotalXP, p.Level, p.StreakShields, p.PushTokens, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapErr(fmt.Errorf("failed to save profile: %w", err))
	}
	return nil
}

func (r *queries) DeleteProfile(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		return mapErr(fmt.Errorf("failed to delete profile: %w", err))
	}
	return nil
}

const challengeColumns = `id, host_id, challenge_name, duration_days, start_date, end_date,
	is_active, participants, participant_ids, created_at`

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	c := &challenge.Challenge{}
	err := row.Scan(
		&c.ID,
		&c.HostID,
		&c.ChallengeName,
		&c.DurationDays,
		&c.StartDate,
		&c.EndDate,
		&c.IsActive,
		&c.Participants,
		&c.ParticipantIDs,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *queries) GetChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	c, err := scanChallenge(r.q.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get challenge: %w", err))
	}
	return c, nil
}

func (r *queries) ListChallenges(ctx context.Context, f challenge.Filter) ([]*challenge.Challenge, error) {
	rows, err := r.q.Query(ctx, `
	SELECT `+challengeColumns+`
	FROM challenges
	WHERE ($1 = '' OR $1 = ANY(participant_ids))
	  AND ($2 = FALSE OR is_active)
	  AND ($3 = '' OR challenge_name = $3)
	ORDER BY created_at DESC, id
	`, f.ParticipantID, f.ActiveOnly, f.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var out []*challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *queries) PutChallenge(ctx context.Context, c *challenge.Challenge) error {
	_, err := r.q.Exec(ctx, `
	INSERT INTO challenges (`+challengeColumns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		challenge_name = EXCLUDED.challenge_name,
		duration_days = EXCLUDED.duration_days,
		end_date = EXCLUDED.end_date,
		is_active = EXCLUDED.is_active,
		participants = EXCLUDED.participants,
		participant_ids = EXCLUDED.participant_ids
	`,
		c.ID, c.HostID, c.ChallengeName, c.DurationDays, c.StartDate, c.EndDate,
		c.IsActive, c.Participants, c.ParticipantIDs, c.CreatedAt,
	)
	if err != nil {
		return mapErr(fmt.Errorf("failed to save challenge: %w", err))
	}
	return nil
}

func (r *queries) DeleteChallenge(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM challenges WHERE id = $1`, id); err != nil {
		return mapErr(fmt.Errorf("failed to delete challenge: %w", err))
	}
	return nil
}

func (r *queries) ListFeed(ctx context.Context, userID string, limit int) ([]*feed.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.Query(ctx, `
	SELECT id, user_id, username, avatar, type, title, description, correlation_id, created_at
	FROM feed_events
	WHERE user_id = $1
	ORDER BY created_at DESC, id
	LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}
	defer rows.Close()

	var out []*feed.Activity
	for rows.Next() {
		a := &feed.Activity{}
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.Username,
			&a.Avatar,
			&a.Type,
			&a.Title,
			&a.Description,
			&a.CorrelationID,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan feed event: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *queries) InsertFeedEvent(ctx context.Context, a *feed.Activity) error {
	_, err := r.q.Exec(ctx, `
	INSERT INTO feed_events (id, user_id, username, avatar, type, title, description, correlation_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.UserID, a.Username, a.Avatar, string(a.Type), a.Title, a.Description, a.CorrelationID, a.CreatedAt)
	if err != nil {
		return mapErr(fmt.Errorf("failed to insert feed event: %w", err))
	}
	return nil
}
