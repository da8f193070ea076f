// Package postgres archives finished request records.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// DefaultOpTimeout bounds every statement when the caller's context has no
// earlier deadline.
const DefaultOpTimeout = 5 * time.Second

type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a new PostgreSQL store with the given database connection.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &Store{db: db, opTimeout: opTimeout}
}

// Migrate creates the request_log table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// PingContext implements api.HealthChecker.
func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertRequestLog archives one finished request. Archiving the same request
// id twice is a no-op.
func (s *Store) InsertRequestLog(ctx context.Context, m domain.RequestMetrics) error {
	if !m.Completed() {
		return fmt.Errorf("request %s not finished", m.RequestID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryInsertRequestLog,
		uuid.New(),
		m.RequestID,
		m.CorrelationID,
		string(m.RequestType),
		m.Subject,
		m.StartTime.UTC(),
		m.EndTime.UTC(),
		m.ResponseTime().Milliseconds(),
		m.StatusCode,
		string(m.DataSource),
		m.CacheHit,
		m.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// PurgeBefore deletes archived requests that ended before t.
func (s *Store) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, queryPurgeRequestLog, t.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Summary is one (request type, status) row of the archive.
type Summary struct {
	RequestType   domain.RequestType `json:"request_type"`
	StatusCode    int                `json:"status_code"`
	Count         int64              `json:"count"`
	AvgResponseMS float64            `json:"avg_response_ms"`
}

// Summarize aggregates requests started at or after since.
func (s *Store) Summarize(ctx context.Context, since time.Time) ([]Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, querySummarizeRequestLog, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Summary
	for rows.Next() {
		var sum Summary
		var rt string
		if err := rows.Scan(&rt, &sum.StatusCode, &sum.Count, &sum.AvgResponseMS); err != nil {
			return nil, err
		}
		sum.RequestType = domain.RequestType(rt)
		result = append(result, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	errStr := err.Error()
	return strings.Contains(errStr, "23505") || strings.Contains(errStr, "duplicate key")
}
