package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const (
	FetchStatusOk    = "ok"
	FetchStatusError = "error"
)

// FetchCycleRow is the outcome of one refresh cycle. Prices are not kept
// here, only the latest snapshot exists.
type FetchCycleRow struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Source    string        `json:"source"`
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Windows   int           `json:"windows"`
	FetchedAt *time.Time    `json:"fetched_at,omitempty"`
}

func (d *Database) SaveFetchCycle(ctx context.Context, r FetchCycleRow) error {
	var fetchedAt sql.NullString
	if r.FetchedAt != nil {
		fetchedAt = sql.NullString{String: r.FetchedAt.UTC().Format(timestampLayout), Valid: true}
	}

	_, err := d.write.ExecContext(ctx, `
		INSERT INTO fetch_history (started_at, duration_ms, source, status, message, windows, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt.UTC().Format(timestampLayout),
		r.Duration.Milliseconds(),
		r.Source,
		r.Status,
		r.Message,
		r.Windows,
		fetchedAt)
	if err != nil {
		return fmt.Errorf("saving fetch cycle: %w", err)
	}
	return nil
}

// GetFetchCycles returns the newest cycles first.
func (d *Database) GetFetchCycles(ctx context.Context, limit int) ([]FetchCycleRow, error) {
	if limit < 1 {
		limit = 24
	}

	rows, err := d.read.QueryContext(ctx, `
		SELECT started_at, duration_ms, source, status, message, windows, fetched_at
		FROM fetch_history
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching fetch history: %w", err)
	}
	defer rows.Close()

	cycles := make([]FetchCycleRow, 0, limit)
	for rows.Next() {
		var (
			r          FetchCycleRow
			startedAt  string
			durationMs int64
			fetchedAt  sql.NullString
		)
		if err := rows.Scan(&startedAt, &durationMs, &r.Source, &r.Status, &r.Message, &r.Windows, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scanning fetch history: %w", err)
		}
		if r.StartedAt, err = time.Parse(timestampLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		if fetchedAt.Valid {
			t, err := time.Parse(timestampLayout, fetchedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing fetched_at: %w", err)
			}
			r.FetchedAt = &t
		}
		cycles = append(cycles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading fetch history rows: %w", err)
	}

	return cycles, nil
}

// PurgeFetchHistory deletes cycles older than retentionDays.
func (d *Database) PurgeFetchHistory(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	before := time.Now().Add(-24 * time.Hour * time.Duration(retentionDays)).UTC().Format(timestampLayout)

	res, err := d.write.ExecContext(ctx, `DELETE FROM fetch_history WHERE started_at < ?`, before)
	if err != nil {
		return fmt.Errorf("purging fetch history: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		d.logger.Warn("can't get rows affected by purge", slog.String("table", "fetch_history"), slog.Any("error", err))
	} else {
		d.logger.Debug(fmt.Sprintf("purged %d rows from fetch_history", n))
	}
	return nil
}
