// Package intake accepts community messages: it persists the message and
// runs the moderation pipeline against it inside one database transaction,
// so a message and its enforcement record commit or roll back together.
package intake

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gigboard/community-moderation/internal/core/domain"
	"github.com/gigboard/community-moderation/internal/moderation"
	"github.com/gigboard/community-moderation/internal/platform/observability"
	db "github.com/gigboard/community-moderation/internal/storage"
)

// Intake wires message persistence to the moderation engine and service.
type Intake struct {
	database *db.DB
	svc      *moderation.Service
	logger   *zerolog.Logger
}

// New creates an intake service.
func New(database *db.DB, svc *moderation.Service, logger *zerolog.Logger) *Intake {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Intake{database: database, svc: svc, logger: logger}
}

// SubmitRequest is one inbound community message.
type SubmitRequest struct {
	ThreadID    int64          `json:"threadId"`
	SenderID    int64          `json:"senderId"`
	ChannelSlug string         `json:"channelSlug"`
	Body        string         `json:"body"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SubmitResult reports what happened to a submitted message. Event is nil
// when the message was allowed.
type SubmitResult struct {
	Message    domain.Message          `json:"message"`
	Evaluation domain.Evaluation       `json:"evaluation"`
	Event      *domain.ModerationEvent `json:"event,omitempty"`
}

// Submit persists the message, evaluates it, and records the enforcement
// outcome, all within a single transaction. The message is saved before
// evaluation so the duplicate detector's history window includes it. Bus
// notification happens only after the transaction commits.
func (i *Intake) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if req.ThreadID <= 0 || req.SenderID <= 0 {
		return nil, fmt.Errorf("thread and sender ids are required")
	}

	if req.ChannelSlug == "" {
		return nil, fmt.Errorf("channel slug is required")
	}

	var result SubmitResult

	err := i.database.WithTx(ctx, func(tx *db.DB) error {
		msg := domain.Message{
			ThreadID:       req.ThreadID,
			SenderID:       req.SenderID,
			ChannelSlug:    req.ChannelSlug,
			Body:           req.Body,
			NormalizedBody: moderation.Normalize(req.Body),
		}

		if err := tx.SaveMessage(ctx, &msg); err != nil {
			return err
		}

		engine := moderation.NewEngine(tx, i.logger)

		eval, err := engine.Evaluate(ctx, moderation.EvalRequest{
			ThreadID:    req.ThreadID,
			SenderID:    req.SenderID,
			ChannelSlug: req.ChannelSlug,
			Body:        req.Body,
			Metadata:    req.Metadata,
		})
		if err != nil {
			return err
		}

		event, err := i.svc.RecordMessageModerationTx(ctx, tx, moderation.MessageModeration{
			ThreadID:    req.ThreadID,
			MessageID:   &msg.ID,
			ActorID:     req.SenderID,
			ChannelSlug: req.ChannelSlug,
			Decision:    eval.Decision,
			Severity:    eval.Severity,
			Signals:     eval.Signals,
			Score:       eval.Score,
			Metadata:    req.Metadata,
		})
		if err != nil {
			return err
		}

		result = SubmitResult{Message: msg, Evaluation: *eval, Event: event}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit message: %w", err)
	}

	observability.MessagesIngested.WithLabelValues(req.ChannelSlug).Inc()

	if result.Event != nil {
		i.svc.NotifyCreated(result.Event)
	}

	return &result, nil
}
