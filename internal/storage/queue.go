package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gigboard/community-moderation/internal/core/domain"
)

const sqlAndJoin = " AND "

// QueueFilter selects moderation events for the triage queue.
type QueueFilter struct {
	Page       int
	PageSize   int
	Severities []domain.Severity
	Channels   []string
	Statuses   []domain.EventStatus
	Search     string
}

// EventFilter selects moderation events for the flat event listing.
type EventFilter struct {
	Page        int
	PageSize    int
	Status      *domain.EventStatus
	ActorID     *int64
	ChannelSlug string
	Since       *time.Time
	Until       *time.Time
}

// ListQueue returns one page of queue events ordered by severity rank and
// recency, plus the total number of matching events.
func (db *DB) ListQueue(ctx context.Context, filter QueueFilter) ([]ModerationEvent, int, error) {
	where, args := buildQueueFilters(filter)

	total, err := db.countModerationEvents(ctx, where, args)
	if err != nil {
		return nil, 0, fmt.Errorf("count queue events: %w", err)
	}

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	query := fmt.Sprintf(`
		SELECT %s
		FROM moderation_events
		WHERE %s
		ORDER BY %s DESC, created_at DESC
		LIMIT $%d OFFSET $%d
	`, moderationEventColumns, strings.Join(where, sqlAndJoin), severityRankSQL, len(args)-1, len(args))

	events, err := db.queryModerationEvents(ctx, query, args)
	if err != nil {
		return nil, 0, fmt.Errorf("list queue events: %w", err)
	}

	return events, total, nil
}

// ListEvents returns one page of events ordered by recency, plus the total
// number of matching events.
func (db *DB) ListEvents(ctx context.Context, filter EventFilter) ([]ModerationEvent, int, error) {
	where, args := buildEventFilters(filter)

	total, err := db.countModerationEvents(ctx, where, args)
	if err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	query := fmt.Sprintf(`
		SELECT %s
		FROM moderation_events
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, moderationEventColumns, strings.Join(where, sqlAndJoin), len(args)-1, len(args))

	events, err := db.queryModerationEvents(ctx, query, args)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	return events, total, nil
}

func buildQueueFilters(filter QueueFilter) ([]string, []any) {
	where := []string{"1=1"}
	args := make([]any, 0)

	if len(filter.Statuses) > 0 {
		args = append(args, statusStrings(filter.Statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	if len(filter.Severities) > 0 {
		severities := make([]string, len(filter.Severities))
		for i, s := range filter.Severities {
			severities[i] = string(s)
		}

		args = append(args, severities)
		where = append(where, fmt.Sprintf("severity = ANY($%d)", len(args)))
	}

	if len(filter.Channels) > 0 {
		args = append(args, filter.Channels)
		where = append(where, fmt.Sprintf("channel_slug = ANY($%d)", len(args)))
	}

	if filter.Search != "" {
		args = append(args, "%"+SanitizeUTF8(filter.Search)+"%")
		where = append(where, fmt.Sprintf("reason ILIKE $%d", len(args)))
	}

	return where, args
}

func buildEventFilters(filter EventFilter) ([]string, []any) {
	where := []string{"1=1"}
	args := make([]any, 0)

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	if filter.ActorID != nil {
		args = append(args, *filter.ActorID)
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)))
	}

	if filter.ChannelSlug != "" {
		args = append(args, filter.ChannelSlug)
		where = append(where, fmt.Sprintf("channel_slug = $%d", len(args)))
	}

	if filter.Since != nil {
		args = append(args, *filter.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	if filter.Until != nil {
		args = append(args, *filter.Until)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	return where, args
}

func statusStrings(statuses []domain.EventStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}

	return out
}

func (db *DB) countModerationEvents(ctx context.Context, where []string, args []any) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*)::int
		FROM moderation_events
		WHERE %s
	`, strings.Join(where, sqlAndJoin))

	var total int
	if err := db.q.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}

	return total, nil
}

func (db *DB) queryModerationEvents(ctx context.Context, query string, args []any) ([]ModerationEvent, error) {
	rows, err := db.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ModerationEvent

	for rows.Next() {
		ev, err := scanModerationEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan moderation event row: %w", err)
		}

		events = append(events, *ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderation event rows: %w", err)
	}

	return events, nil
}
