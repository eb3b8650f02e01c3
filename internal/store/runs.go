package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Product string
	Country string
	Outcome string
	Limit   int
}

const defaultRunLimit = 50

// Name identifies the journal in logs and metrics.
func (s *Store) Name() string { return "journal" }

// RunCompleted records a finished run.
func (s *Store) RunCompleted(ctx context.Context, run domain.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, product, country, date, outcome, status, result_ref,
			flashes, flashes_in_country, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Product, run.Country, run.Date, run.Outcome, run.Status,
		sql.NullString{String: run.ResultRef, Valid: run.ResultRef != ""},
		run.Flashes, run.FlashesInCountry,
		formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]domain.RunRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Product != "" {
		where = append(where, "product = ?")
		args = append(args, f.Product)
	}
	if f.Country != "" {
		where = append(where, "country = ?")
		args = append(args, strings.ToUpper(f.Country))
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}

	query := runColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, runColumns+" WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunRecord{}, ErrRunNotFound
	}
	return run, err
}

// OutcomeCounts tallies runs by outcome.
func (s *Store) OutcomeCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM runs GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const runColumns = `SELECT id, product, country, date, outcome, status, result_ref,
	flashes, flashes_in_country, started_at, finished_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (domain.RunRecord, error) {
	var (
		run              domain.RunRecord
		ref              sql.NullString
		started, finished string
	)
	err := sc.Scan(&run.ID, &run.Product, &run.Country, &run.Date, &run.Outcome, &run.Status, &ref,
		&run.Flashes, &run.FlashesInCountry, &started, &finished)
	if err != nil {
		return domain.RunRecord{}, err
	}
	run.ResultRef = ref.String
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return domain.RunRecord{}, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return domain.RunRecord{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
