package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gigboard/community-moderation/internal/core/domain"
)

// CountEventsBySeverity returns event counts grouped by severity for events
// created at or after since. Severities with no events are absent from the
// map; the caller zero-fills.
func (db *DB) CountEventsBySeverity(ctx context.Context, since time.Time) (map[domain.Severity]int, error) {
	rows, err := db.q.Query(ctx, `
		SELECT severity, COUNT(*)::int
		FROM moderation_events
		WHERE created_at >= $1
		GROUP BY severity
	`, since)
	if err != nil {
		return nil, fmt.Errorf("count events by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Severity]int)

	for rows.Next() {
		var (
			severity string
			count    int
		)

		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("scan severity count row: %w", err)
		}

		counts[domain.Severity(severity)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate severity count rows: %w", err)
	}

	return counts, nil
}

// CountEventsByAction returns event counts grouped by action for events
// created at or after since.
func (db *DB) CountEventsByAction(ctx context.Context, since time.Time) (map[domain.Action]int, error) {
	rows, err := db.q.Query(ctx, `
		SELECT action, COUNT(*)::int
		FROM moderation_events
		WHERE created_at >= $1
		GROUP BY action
	`, since)
	if err != nil {
		return nil, fmt.Errorf("count events by action: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Action]int)

	for rows.Next() {
		var (
			action string
			count  int
		)

		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("scan action count row: %w", err)
		}

		counts[domain.Action(action)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action count rows: %w", err)
	}

	return counts, nil
}

// OpenQueueSize returns the current number of open and acknowledged events,
// regardless of when they were created.
func (db *DB) OpenQueueSize(ctx context.Context) (int, error) {
	row := db.q.QueryRow(ctx, `
		SELECT COUNT(*)::int
		FROM moderation_events
		WHERE status IN ('open', 'acknowledged')
	`)

	var size int
	if err := row.Scan(&size); err != nil {
		return 0, fmt.Errorf("count open queue size: %w", err)
	}

	return size, nil
}

// OldestOpenEventAge returns the age of the oldest unresolved event, or nil
// when the queue is empty.
func (db *DB) OldestOpenEventAge(ctx context.Context) (*time.Duration, error) {
	row := db.q.QueryRow(ctx, `
		SELECT MIN(created_at)
		FROM moderation_events
		WHERE status IN ('open', 'acknowledged')
	`)

	var oldest pgtype.Timestamptz
	if err := row.Scan(&oldest); err != nil {
		return nil, fmt.Errorf("query oldest open event: %w", err)
	}

	if !oldest.Valid {
		return nil, nil
	}

	age := time.Since(oldest.Time)

	return &age, nil
}

// AverageResolutionSeconds computes the mean time from creation to resolution
// across all resolved events ever. Returns nil when nothing has been
// resolved yet.
func (db *DB) AverageResolutionSeconds(ctx context.Context) (*float64, error) {
	row := db.q.QueryRow(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)))
		FROM moderation_events
		WHERE resolved_at IS NOT NULL
	`)

	var avg pgtype.Float8
	if err := row.Scan(&avg); err != nil {
		return nil, fmt.Errorf("query average resolution seconds: %w", err)
	}

	if !avg.Valid {
		return nil, nil
	}

	v := avg.Float64

	return &v, nil
}
