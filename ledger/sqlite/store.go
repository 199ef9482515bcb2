// Package sqlite provides the durable SQLite-backed VisitLedger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shanjing/adk-lab/core"
	"github.com/shanjing/adk-lab/internal/sqlitemigrate"
	"github.com/shanjing/adk-lab/ledger/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists visits in a SQLite table with a UNIQUE (subject_id,
// resource_id) constraint. The constraint is what makes Record atomic across
// goroutines and processes sharing the file.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the ledger database at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
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
	return &Store{sqlDB: sqlDB, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the SQLite handle. Later calls fail with
// core.ErrStorageUnavailable.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// HasRecord reports whether subjectID has a recorded visit to resourceID.
func (s *Store) HasRecord(ctx context.Context, subjectID, resourceID string) (bool, error) {
	_, ok, err := s.Get(ctx, subjectID, resourceID)
	return ok, err
}

// Record inserts the visit. A second call for the same normalized pair
// returns core.AlreadyExists and leaves the stored row untouched.
func (s *Store) Record(ctx context.Context, subjectID, resourceID string) (core.RecordOutcome, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, unavailable("record visit", errors.New("storage is not configured"))
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO visits (subject_id, resource_id, recorded_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (subject_id, resource_id) DO NOTHING`,
		subjectID,
		core.NormalizeResource(resourceID),
		toMillis(s.now()),
	)
	if err != nil {
		if isVisitUniqueViolation(err) {
			return core.AlreadyExists, nil
		}
		return 0, unavailable("record visit", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("record visit", err)
	}
	if n == 0 {
		return core.AlreadyExists, nil
	}
	return core.Created, nil
}

// Get returns the recorded visit, if any.
func (s *Store) Get(ctx context.Context, subjectID, resourceID string) (core.Visit, bool, error) {
	if err := ctx.Err(); err != nil {
		return core.Visit{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return core.Visit{}, false, unavailable("get visit", errors.New("storage is not configured"))
	}

	var (
		v          core.Visit
		recordedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT subject_id, resource_id, recorded_at
		 FROM visits
		 WHERE subject_id = ? AND resource_id = ?`,
		subjectID, core.NormalizeResource(resourceID),
	).Scan(&v.SubjectID, &v.ResourceID, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Visit{}, false, nil
	}
	if err != nil {
		return core.Visit{}, false, unavailable("get visit", err)
	}
	v.RecordedAt = fromMillis(recordedAt)
	return v, true, nil
}

// List returns every visit of subjectID in insertion order.
func (s *Store) List(ctx context.Context, subjectID string) ([]core.Visit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, unavailable("list visits", errors.New("storage is not configured"))
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT subject_id, resource_id, recorded_at
		 FROM visits
		 WHERE subject_id = ?
		 ORDER BY id`,
		subjectID,
	)
	if err != nil {
		return nil, unavailable("list visits", err)
	}
	defer rows.Close()

	visits := make([]core.Visit, 0)
	for rows.Next() {
		var (
			v          core.Visit
			recordedAt int64
		)
		if err := rows.Scan(&v.SubjectID, &v.ResourceID, &recordedAt); err != nil {
			return nil, unavailable("scan visit", err)
		}
		v.RecordedAt = fromMillis(recordedAt)
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list visits", err)
	}
	return visits, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrStorageUnavailable, op, err)
}

func isVisitUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "visits.subject_id")
}

var _ core.VisitLedger = (*Store)(nil)
