// Package sqlite provides a SQLite-backed core.SessionStore. Events are
// stored as JSON rows ordered by insertion; the live state of a loaded
// session is the replay of those rows.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/internal/sqlitemigrate"
	"github.com/shanjing/adk-lab/replay"
	"github.com/shanjing/adk-lab/session/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrSessionExists is returned by Create for a duplicate session ID.
var ErrSessionExists = errors.New("session already exists")

// Store persists sessions in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the session database at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Create inserts a new empty session.
func (s *Store) Create(ctx context.Context, req core.CreateSessionRequest) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = core.NewID()
	}
	sess := core.NewSession(id)
	sess.AppName = req.AppName
	sess.UserID = req.UserID

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (id, app_name, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.AppName, sess.UserID, toMillis(sess.Created), toMillis(sess.Updated),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
		}
		return nil, unavailable("create session", err)
	}
	return sess, nil
}

// Get loads the session and its events, rebuilding State from the log.
func (s *Store) Get(ctx context.Context, id string) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var createdAt, updatedAt int64
	sess := core.NewSession(id)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT app_name, user_id, created_at, updated_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.AppName, &sess.UserID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, unavailable("get session", err)
	}

	events, err := s.Events(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Events = events
	sess.State = replay.ReconstructEvents(events)
	sess.Created = fromMillis(createdAt)
	sess.Updated = fromMillis(updatedAt)
	return sess, nil
}

// Events returns the stored events of a session in append order.
func (s *Store) Events(ctx context.Context, sessionID string) ([]core.Event, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT event_json FROM session_events WHERE session_id = ? ORDER BY seq`, sessionID,
	)
	if err != nil {
		return nil, unavailable("list events", err)
	}
	defer rows.Close()

	events := make([]core.Event, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, unavailable("scan event", err)
		}
		var ev core.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("decode event of session %s: %w", sessionID, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list events", err)
	}
	return events, nil
}

// AppendEvent stores ev at the end of the session log.
func (s *Store) AppendEvent(ctx context.Context, sessionID string, ev core.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin append", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, toMillis(time.Now()), sessionID,
	)
	if err != nil {
		return unavailable("touch session", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return unavailable("touch session", err)
	} else if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_events (session_id, event_id, author, timestamp, event_json) VALUES (?, ?, ?, ?, ?)`,
		sessionID, ev.ID, ev.Author, toMillis(ev.Timestamp), string(payload),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("event %s already appended to session %s", ev.ID, sessionID)
		}
		return unavailable("append event", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit append", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrStorageUnavailable, op, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ core.SessionStore = (*Store)(nil)
