package db

import (
	"context"
	"fmt"
	"time"

	"github.com/gigboard/community-moderation/internal/core/domain"
)

// Message is an alias for the domain type.
type Message = domain.Message

// SaveMessage persists a community message and fills in the generated id and
// creation timestamp.
func (db *DB) SaveMessage(ctx context.Context, msg *Message) error {
	var (
		id        string
		createdAt time.Time
	)

	err := db.q.QueryRow(ctx, `
		INSERT INTO messages (thread_id, sender_id, channel_slug, body, normalized_body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, msg.ThreadID, msg.SenderID, msg.ChannelSlug, SanitizeUTF8(msg.Body), SanitizeUTF8(msg.NormalizedBody)).
		Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = createdAt

	return nil
}

// CountRecentDuplicates counts messages in one thread by one sender since the
// given time whose normalized body exactly equals the candidate.
func (db *DB) CountRecentDuplicates(ctx context.Context, threadID, senderID int64, normalizedBody string, since time.Time) (int, error) {
	row := db.q.QueryRow(ctx, `
		SELECT COUNT(*)::int
		FROM messages
		WHERE thread_id = $1
		  AND sender_id = $2
		  AND normalized_body = $3
		  AND created_at >= $4
	`, threadID, senderID, SanitizeUTF8(normalizedBody), since)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count recent duplicates: %w", err)
	}

	return count, nil
}
