package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/studyroom/internal/domain/model"
	"github.com/okian/studyroom/pkg/logger"
	"github.com/okian/studyroom/pkg/metrics"
)

const defaultMaxOpenConns = 4

// SQLiteStore implements SessionStore and results.KV on a SQLite database.
type SQLiteStore struct {
	db           *sql.DB
	maxOpenConns int
	logger       logger.Logger
}

var _ SessionStore = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database at path with WAL mode and a
// busy timeout, then applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		maxOpenConns: defaultMaxOpenConns,
		logger:       logger.Get().Named("repository"),
	}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	s.db = db

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.logger.Info(ctx, "document store ready", logger.String("path", path))
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func toMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateSession stores s and its participants in one transaction.
func (s *SQLiteStore) CreateSession(ctx context.Context, doc model.Session) error {
	defer observe("create_session", time.Now())
	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("create session: %w: empty id", ErrInvalid)
	}

	var minutes sql.NullInt64
	if doc.Minutes != nil {
		minutes = sql.NullInt64{Int64: int64(*doc.Minutes), Valid: true}
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, title, tag, host_uid, minutes, session_start_at, created_at, force_ended_at, finalized_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			doc.ID, doc.Title, doc.Tag, doc.HostUID, minutes,
			toMillis(doc.SessionStartAt), toMillis(doc.CreatedAt), toMillis(doc.ForceEndedAt), toMillis(doc.FinalizedAt),
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("create session %s: %w", doc.ID, ErrAlreadyExists)
		}
		if err != nil {
			return fmt.Errorf("create session %s: %w", doc.ID, err)
		}
		for _, p := range doc.Participants {
			if err := upsertParticipant(ctx, tx, doc.ID, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSession loads a session and its participants in join order.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	defer observe("get_session", time.Now())

	var (
		doc                                  model.Session
		minutes                              sql.NullInt64
		startAt, createdAt, forced, finished sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, tag, host_uid, minutes, session_start_at, created_at, force_ended_at, finalized_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Tag, &doc.HostUID, &minutes, &startAt, &createdAt, &forced, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	if minutes.Valid {
		m := int(minutes.Int64)
		doc.Minutes = &m
	}
	doc.SessionStartAt = fromMillis(startAt)
	doc.CreatedAt = fromMillis(createdAt)
	doc.ForceEndedAt = fromMillis(forced)
	doc.FinalizedAt = fromMillis(finished)

	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, display_name FROM participants WHERE session_id = ? ORDER BY rowid`, id)
	if err != nil {
		return model.Session{}, fmt.Errorf("list participants %s: %w", id, err)
	}
	defer rows.Close()

	doc.Participants = []model.Participant{}
	for rows.Next() {
		var (
			p    model.Participant
			name sql.NullString
		)
		if err := rows.Scan(&p.UID, &name); err != nil {
			return model.Session{}, fmt.Errorf("scan participant: %w", err)
		}
		if name.Valid {
			p.DisplayName = &name.String
		}
		doc.Participants = append(doc.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return model.Session{}, fmt.Errorf("list participants %s: %w", id, err)
	}
	return doc, nil
}

// Start records the start instant unless already set.
func (s *SQLiteStore) Start(ctx context.Context, id string, at time.Time) error {
	defer observe("start", time.Now())
	return s.updateSession(ctx, id,
		`UPDATE sessions SET session_start_at = COALESCE(session_start_at, ?) WHERE id = ?`, at.UnixMilli())
}

// ForceEnd records an early termination, keeping the earliest one.
func (s *SQLiteStore) ForceEnd(ctx context.Context, id string, at time.Time) error {
	defer observe("force_end", time.Now())
	return s.updateSession(ctx, id,
		`UPDATE sessions SET force_ended_at = MIN(COALESCE(force_ended_at, ?1), ?1) WHERE id = ?2`, at.UnixMilli())
}

// MarkFinalized records when the session's results were produced.
func (s *SQLiteStore) MarkFinalized(ctx context.Context, id string, at time.Time) error {
	defer observe("mark_finalized", time.Now())
	return s.updateSession(ctx, id,
		`UPDATE sessions SET finalized_at = ? WHERE id = ?`, at.UnixMilli())
}

func (s *SQLiteStore) updateSession(ctx context.Context, id, query string, at int64) error {
	res, err := s.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update session %s: %w", id, ErrNotFound)
	}
	return nil
}

// Join adds p to the session and opens a stay unless one is open already.
func (s *SQLiteStore) Join(ctx context.Context, id string, p model.Participant, at time.Time) error {
	defer observe("join", time.Now())
	if strings.TrimSpace(p.UID) == "" {
		return fmt.Errorf("join %s: %w: empty uid", id, ErrInvalid)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := sessionExists(ctx, tx, id); err != nil {
			return err
		}
		if err := upsertParticipant(ctx, tx, id, p); err != nil {
			return err
		}
		var open int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM stays WHERE session_id = ? AND uid = ? AND end_at IS NULL`, id, p.UID,
		).Scan(&open); err != nil {
			return fmt.Errorf("count open stays: %w", err)
		}
		if open > 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stays (session_id, uid, start_at) VALUES (?, ?, ?)`, id, p.UID, at.UnixMilli(),
		); err != nil {
			return fmt.Errorf("open stay: %w", err)
		}
		return nil
	})
}

// Leave closes every open stay of uid at at.
func (s *SQLiteStore) Leave(ctx context.Context, id, uid string, at time.Time) error {
	defer observe("leave", time.Now())
	res, err := s.db.ExecContext(ctx, `
		UPDATE stays SET end_at = MAX(start_at, ?) WHERE session_id = ? AND uid = ? AND end_at IS NULL`,
		at.UnixMilli(), id, uid)
	if err != nil {
		return fmt.Errorf("close stay: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close stay: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("leave %s/%s: %w", id, uid, ErrNoOpenStay)
	}
	return nil
}

// ListStays returns uid's stays in the session, oldest first.
func (s *SQLiteStore) ListStays(ctx context.Context, id, uid string) ([]model.StayInterval, error) {
	defer observe("list_stays", time.Now())
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_at, end_at FROM stays WHERE session_id = ? AND uid = ? ORDER BY start_at, id`, id, uid)
	if err != nil {
		return nil, fmt.Errorf("list stays %s/%s: %w", id, uid, err)
	}
	defer rows.Close()

	stays := []model.StayInterval{}
	for rows.Next() {
		var (
			start int64
			end   sql.NullInt64
		)
		if err := rows.Scan(&start, &end); err != nil {
			return nil, fmt.Errorf("scan stay: %w", err)
		}
		stays = append(stays, model.StayInterval{StartAt: time.UnixMilli(start).UTC(), EndAt: fromMillis(end)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stays %s/%s: %w", id, uid, err)
	}
	return stays, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func sessionExists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	return nil
}

func upsertParticipant(ctx context.Context, tx *sql.Tx, id string, p model.Participant) error {
	var name sql.NullString
	if p.DisplayName != nil {
		name = sql.NullString{String: *p.DisplayName, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO participants (session_id, uid, display_name) VALUES (?, ?, ?)
		ON CONFLICT(session_id, uid) DO UPDATE SET display_name = COALESCE(excluded.display_name, participants.display_name)`,
		id, p.UID, name,
	); err != nil {
		return fmt.Errorf("upsert participant %s/%s: %w", id, p.UID, err)
	}
	return nil
}
