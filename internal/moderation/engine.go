package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gigboard/community-moderation/internal/core/domain"
	"github.com/gigboard/community-moderation/internal/platform/observability"
)

const (
	// duplicateWindow is the trailing window the duplicate detector inspects.
	duplicateWindow = 3 * time.Minute

	// duplicateThreshold is the number of identical messages inside the
	// window (the just-persisted message included) that makes a repeat.
	duplicateThreshold = 2

	// Decision thresholds over the aggregate score.
	reviewScoreThreshold = 35
	highScoreThreshold   = 60
)

// MessageHistory reads recent message history for the duplicate detector.
// The count is scoped to one thread, one sender, and the trailing window, and
// matches on the exact normalized body.
type MessageHistory interface {
	CountRecentDuplicates(ctx context.Context, threadID, senderID int64, normalizedBody string, since time.Time) (int, error)
}

// EvalRequest is one message to score, with the context the detectors need.
// Thread and sender are optional: without them the duplicate detector is
// skipped.
type EvalRequest struct {
	ThreadID    int64
	SenderID    int64
	ChannelSlug string
	Body        string
	Metadata    map[string]any
}

// Engine runs the full evaluation pipeline: normalization, detectors,
// aggregation, decision. Evaluation is stateless apart from the history read
// issued by the duplicate detector.
type Engine struct {
	history MessageHistory
	logger  *zerolog.Logger
}

// NewEngine creates an evaluation engine. history may be nil, which disables
// duplicate detection.
func NewEngine(history MessageHistory, logger *zerolog.Logger) *Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Engine{history: history, logger: logger}
}

// Evaluate scores a single message and returns the enforcement decision.
// Empty or whitespace-only bodies short-circuit to allow without running any
// detector.
func (e *Engine) Evaluate(ctx context.Context, req EvalRequest) (*domain.Evaluation, error) {
	sanitized := Sanitize(req.Body)
	if sanitized == "" {
		observability.EvaluationsTotal.WithLabelValues(string(domain.DecisionAllow)).Inc()

		return &domain.Evaluation{
			SanitizedBody: sanitized,
			Decision:      domain.DecisionAllow,
			Severity:      domain.SeverityLow,
			Score:         0,
			Signals:       []domain.Signal{},
			Metadata:      req.Metadata,
		}, nil
	}

	in := detectorInput{
		sanitized:  sanitized,
		normalized: Normalize(req.Body),
		logger:     e.logger,
	}

	signals := make([]domain.Signal, 0, len(textDetectors)+1)

	for _, detect := range textDetectors {
		if sig := detect(in); sig != nil {
			signals = append(signals, *sig)
		}
	}

	dupSignal, err := e.detectDuplicate(ctx, req, in.normalized)
	if err != nil {
		return nil, err
	}

	if dupSignal != nil {
		signals = append(signals, *dupSignal)
	}

	severity, score := aggregate(signals)
	decision := decide(severity, score)

	observability.EvaluationsTotal.WithLabelValues(string(decision)).Inc()

	for _, sig := range signals {
		observability.SignalsTotal.WithLabelValues(string(sig.Code)).Inc()
	}

	return &domain.Evaluation{
		SanitizedBody: sanitized,
		Decision:      decision,
		Severity:      severity,
		Score:         score,
		Signals:       signals,
		Metadata:      req.Metadata,
	}, nil
}

// detectDuplicate is the one detector that touches storage. Missing thread or
// sender context skips it rather than erroring. Two near-simultaneous
// duplicates may each miss the other in the window; undercounting is the safe
// failure direction, so no coordination is attempted.
func (e *Engine) detectDuplicate(ctx context.Context, req EvalRequest, normalized string) (*domain.Signal, error) {
	if e.history == nil || req.ThreadID == 0 || req.SenderID == 0 {
		return nil, nil
	}

	since := time.Now().Add(-duplicateWindow)

	count, err := e.history.CountRecentDuplicates(ctx, req.ThreadID, req.SenderID, normalized, since)
	if err != nil {
		return nil, fmt.Errorf("count recent duplicates: %w", err)
	}

	if count < duplicateThreshold {
		return nil, nil
	}

	return &domain.Signal{
		Code:     domain.SignalDuplicate,
		Message:  "sender repeated the same message in this thread",
		Severity: domain.SeverityMedium,
		Weight:   weightDuplicate,
		Data:     map[string]any{"count": count},
	}, nil
}

// aggregate sums signal weights and takes the maximum signal severity, low
// when there are no signals. The result does not depend on signal order.
func aggregate(signals []domain.Signal) (domain.Severity, int) {
	severity := domain.SeverityLow
	score := 0

	for _, sig := range signals {
		score += sig.Weight

		if sig.Severity.Rank() > severity.Rank() {
			severity = sig.Severity
		}
	}

	return severity, score
}

// decide maps aggregate severity and score to the enforcement outcome.
func decide(severity domain.Severity, score int) domain.Decision {
	switch {
	case severity == domain.SeverityCritical:
		return domain.DecisionBlock
	case severity == domain.SeverityHigh || score >= highScoreThreshold:
		return domain.DecisionReview
	case score >= reviewScoreThreshold:
		return domain.DecisionReview
	default:
		return domain.DecisionAllow
	}
}
