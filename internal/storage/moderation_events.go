package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gigboard/community-moderation/internal/core/domain"
)

// ModerationEvent is an alias for the domain type.
type ModerationEvent = domain.ModerationEvent

// moderationEventColumns is the shared column list for event row scans.
const moderationEventColumns = `
	id, thread_id, message_id, actor_id, channel_slug,
	action, severity, status, reason, metadata,
	resolved_by, resolved_at, created_at, updated_at`

// CreateModerationEvent inserts a new event row and fills in the generated
// id and timestamps on ev.
func (db *DB) CreateModerationEvent(ctx context.Context, ev *ModerationEvent) error {
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}

	var (
		id                   pgtype.UUID
		createdAt, updatedAt time.Time
	)

	err = db.q.QueryRow(ctx, `
		INSERT INTO moderation_events (
			thread_id, message_id, actor_id, channel_slug,
			action, severity, status, reason, metadata,
			resolved_by, resolved_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`,
		ev.ThreadID,
		toUUIDPtr(ev.MessageID),
		ev.ActorID,
		SanitizeUTF8(ev.ChannelSlug),
		string(ev.Action),
		string(ev.Severity),
		string(ev.Status),
		SanitizeUTF8(ev.Reason),
		metadata,
		toInt8Ptr(ev.ResolvedBy),
		toTimestamptzPtr(ev.ResolvedAt),
	).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		return fmt.Errorf("create moderation event: %w", err)
	}

	ev.ID = fromUUID(id)
	ev.CreatedAt = createdAt
	ev.UpdatedAt = updatedAt

	return nil
}

// GetModerationEvent fetches one event by id. A missing or malformed id
// yields (nil, nil) so callers can map it to not-found.
func (db *DB) GetModerationEvent(ctx context.Context, id string) (*ModerationEvent, error) {
	uid := toUUID(id)
	if !uid.Valid {
		return nil, nil
	}

	row := db.q.QueryRow(ctx, `
		SELECT `+moderationEventColumns+`
		FROM moderation_events
		WHERE id = $1
	`, uid)

	ev, err := scanModerationEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("get moderation event: %w", err)
	}

	return ev, nil
}

// SaveModerationEventResolution persists status and resolution fields for an
// already-loaded event. Last write wins on concurrent resolves.
func (db *DB) SaveModerationEventResolution(ctx context.Context, ev *ModerationEvent) error {
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}

	var updatedAt time.Time

	err = db.q.QueryRow(ctx, `
		UPDATE moderation_events
		SET status = $2,
			metadata = $3,
			resolved_by = $4,
			resolved_at = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`,
		toUUID(ev.ID),
		string(ev.Status),
		metadata,
		toInt8Ptr(ev.ResolvedBy),
		toTimestamptzPtr(ev.ResolvedAt),
	).Scan(&updatedAt)
	if err != nil {
		return fmt.Errorf("save moderation event resolution: %w", err)
	}

	ev.UpdatedAt = updatedAt

	return nil
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanModerationEvent(row rowScanner) (*ModerationEvent, error) {
	var (
		ev          ModerationEvent
		id          pgtype.UUID
		messageID   pgtype.UUID
		channelSlug pgtype.Text
		action      string
		severity    string
		status      string
		reason      pgtype.Text
		metadata    []byte
		resolvedBy  pgtype.Int8
		resolvedAt  pgtype.Timestamptz
	)

	if err := row.Scan(
		&id, &ev.ThreadID, &messageID, &ev.ActorID, &channelSlug,
		&action, &severity, &status, &reason, &metadata,
		&resolvedBy, &resolvedAt, &ev.CreatedAt, &ev.UpdatedAt,
	); err != nil {
		return nil, err
	}

	ev.ID = fromUUID(id)
	ev.MessageID = fromUUIDPtr(messageID)
	ev.ChannelSlug = fromText(channelSlug)
	ev.Action = domain.Action(action)
	ev.Severity = domain.Severity(severity)
	ev.Status = domain.EventStatus(status)
	ev.Reason = fromText(reason)
	ev.ResolvedBy = fromInt8Ptr(resolvedBy)
	ev.ResolvedAt = fromTimestamptzPtr(resolvedAt)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal event metadata: %w", err)
		}
	}

	return &ev, nil
}
