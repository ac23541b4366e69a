package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gigboard/community-moderation/internal/core/domain"
	"github.com/gigboard/community-moderation/internal/moderation/events"
	"github.com/gigboard/community-moderation/internal/platform/observability"
	db "github.com/gigboard/community-moderation/internal/storage"
)

const defaultOverviewDays = 7

// EventRepository is the persistence surface the service needs. *db.DB
// satisfies it, both pool-bound and transaction-bound.
type EventRepository interface {
	CreateModerationEvent(ctx context.Context, ev *domain.ModerationEvent) error
	GetModerationEvent(ctx context.Context, id string) (*domain.ModerationEvent, error)
	SaveModerationEventResolution(ctx context.Context, ev *domain.ModerationEvent) error
	ListQueue(ctx context.Context, filter db.QueueFilter) ([]domain.ModerationEvent, int, error)
	ListEvents(ctx context.Context, filter db.EventFilter) ([]domain.ModerationEvent, int, error)
	CountEventsBySeverity(ctx context.Context, since time.Time) (map[domain.Severity]int, error)
	CountEventsByAction(ctx context.Context, since time.Time) (map[domain.Action]int, error)
	OpenQueueSize(ctx context.Context) (int, error)
	AverageResolutionSeconds(ctx context.Context) (*float64, error)
}

// Service owns the moderation event lifecycle: recording automated and
// manual enforcement, resolving, and the queue/overview read side.
type Service struct {
	repo   EventRepository
	bus    *events.Bus
	logger *zerolog.Logger
}

// NewService creates the moderation service.
func NewService(repo EventRepository, bus *events.Bus, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Service{repo: repo, bus: bus, logger: logger}
}

// MessageModeration carries an evaluation outcome into the event store.
type MessageModeration struct {
	ThreadID    int64
	MessageID   *string
	ActorID     int64
	ChannelSlug string
	Decision    domain.Decision
	Severity    domain.Severity
	Signals     []domain.Signal
	Score       int
	Metadata    map[string]any
}

// ManualAction is a moderator-initiated event, not derived from automated
// scoring.
type ManualAction struct {
	ThreadID    int64
	MessageID   *string
	ActorID     int64
	ChannelSlug string
	Action      domain.Action
	Severity    domain.Severity
	Status      domain.EventStatus
	Reason      string
	Metadata    map[string]any
}

// Resolution closes out (or acknowledges) an event.
type Resolution struct {
	Status          domain.EventStatus
	ResolvedBy      int64
	ResolutionNotes string
}

// RecordMessageModeration persists the enforcement outcome of one evaluated
// message and emits the created event. Allow decisions are a deliberate
// no-persist: the result is (nil, nil).
func (s *Service) RecordMessageModeration(ctx context.Context, p MessageModeration) (*domain.ModerationEvent, error) {
	ev, err := s.RecordMessageModerationTx(ctx, s.repo, p)
	if err != nil || ev == nil {
		return ev, err
	}

	s.NotifyCreated(ev)

	return ev, nil
}

// RecordMessageModerationTx is RecordMessageModeration against a caller
// supplied (typically transaction-bound) repository. No bus event is emitted;
// the caller invokes NotifyCreated once its transaction has committed.
func (s *Service) RecordMessageModerationTx(ctx context.Context, repo EventRepository, p MessageModeration) (*domain.ModerationEvent, error) {
	if p.Decision == domain.DecisionAllow {
		return nil, nil
	}

	severity := p.Severity
	if severity.Rank() < domain.SeverityMedium.Rank() {
		// A low-severity message that still warranted a record is stored as
		// medium; pure low-risk cases were already allowed through.
		severity = domain.SeverityMedium
	}

	ev := &domain.ModerationEvent{
		ThreadID:    p.ThreadID,
		MessageID:   p.MessageID,
		ActorID:     p.ActorID,
		ChannelSlug: p.ChannelSlug,
		Action:      domain.ActionMessageFlagged,
		Severity:    severity,
		Status:      domain.StatusOpen,
		Reason:      Sanitize(summarizeSignals(p.Signals)),
		Metadata: domain.EventMetadata{
			Score:    p.Score,
			Signals:  p.Signals,
			Decision: p.Decision,
			Source:   domain.SourceAutomated,
			Extra:    p.Metadata,
		},
	}

	if p.Decision == domain.DecisionBlock {
		// Hard blocks never sit in the queue: the event is born resolved,
		// attributed to the system actor.
		now := time.Now()
		systemActor := domain.SystemActorID
		ev.Action = domain.ActionMessageBlocked
		ev.Status = domain.StatusResolved
		ev.ResolvedBy = &systemActor
		ev.ResolvedAt = &now
	}

	if err := repo.CreateModerationEvent(ctx, ev); err != nil {
		return nil, err
	}

	observability.EventsRecorded.WithLabelValues(string(ev.Action)).Inc()

	return ev, nil
}

// RecordModerationAction persists a manual moderator action and emits the
// created event.
func (s *Service) RecordModerationAction(ctx context.Context, p ManualAction) (*domain.ModerationEvent, error) {
	if p.Action == "" {
		return nil, fmt.Errorf("moderation action type is required")
	}

	severity := p.Severity
	if severity == "" {
		severity = domain.SeverityMedium
	}

	status := p.Status
	if !domain.ValidStatus(status) {
		status = domain.StatusOpen
	}

	ev := &domain.ModerationEvent{
		ThreadID:    p.ThreadID,
		MessageID:   p.MessageID,
		ActorID:     p.ActorID,
		ChannelSlug: p.ChannelSlug,
		Action:      p.Action,
		Severity:    severity,
		Status:      status,
		Reason:      Sanitize(p.Reason),
		Metadata: domain.EventMetadata{
			Source: "moderator",
			Extra:  p.Metadata,
		},
	}

	if err := s.repo.CreateModerationEvent(ctx, ev); err != nil {
		return nil, err
	}

	observability.EventsRecorded.WithLabelValues(string(ev.Action)).Inc()
	s.NotifyCreated(ev)

	return ev, nil
}

// ResolveEvent transitions an event's status and records who resolved it and
// why. An unknown id yields (nil, nil) with no write. Concurrent resolves are
// last-write-wins; resolvedAt is only ever overwritten by a later explicit
// resolve, never cleared.
func (s *Service) ResolveEvent(ctx context.Context, id string, res Resolution) (*domain.ModerationEvent, error) {
	ev, err := s.repo.GetModerationEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	if ev == nil {
		return nil, nil
	}

	status := res.Status
	if !domain.ValidStatus(status) {
		status = domain.StatusResolved
	}

	now := time.Now()
	resolvedBy := res.ResolvedBy

	ev.Status = status
	ev.ResolvedBy = &resolvedBy
	ev.ResolvedAt = &now

	if notes := Sanitize(res.ResolutionNotes); notes != "" {
		ev.Metadata.ResolutionNotes = notes
	}

	if err := s.repo.SaveModerationEventResolution(ctx, ev); err != nil {
		return nil, err
	}

	if status == domain.StatusResolved {
		observability.EventsResolved.Inc()
		observability.ResolutionDurationSeconds.Observe(now.Sub(ev.CreatedAt).Seconds())
	}

	if s.bus != nil {
		s.bus.Emit(events.TypeEventUpdated, ev)
	}

	return ev, nil
}

// NotifyCreated publishes an already-persisted event on the bus. Split out of
// the record path so transactional callers can defer it until after commit.
func (s *Service) NotifyCreated(ev *domain.ModerationEvent) {
	if s.bus != nil {
		s.bus.Emit(events.TypeEventCreated, ev)
	}
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// EventPage is one page of moderation events.
type EventPage struct {
	Items      []domain.ModerationEvent `json:"items"`
	Pagination Pagination               `json:"pagination"`
}

// ListQueue returns the triage queue: events still needing attention first,
// ordered by severity then recency. Without an explicit status filter only
// open and acknowledged events are returned.
func (s *Service) ListQueue(ctx context.Context, filter db.QueueFilter) (*EventPage, error) {
	filter.Page, filter.PageSize = clampPage(filter.Page, filter.PageSize, db.MaxQueuePageSize)

	if len(filter.Statuses) == 0 {
		filter.Statuses = []domain.EventStatus{domain.StatusOpen, domain.StatusAcknowledged}
	}

	items, total, err := s.repo.ListQueue(ctx, filter)
	if err != nil {
		return nil, err
	}

	return newEventPage(items, filter.Page, filter.PageSize, total), nil
}

// ListEvents returns the flat event history, newest first.
func (s *Service) ListEvents(ctx context.Context, filter db.EventFilter) (*EventPage, error) {
	filter.Page, filter.PageSize = clampPage(filter.Page, filter.PageSize, db.MaxEventPageSize)

	items, total, err := s.repo.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}

	return newEventPage(items, filter.Page, filter.PageSize, total), nil
}

// Overview is the dashboard rollup over a trailing window.
type Overview struct {
	WindowDays               int                     `json:"windowDays"`
	SeverityCounts           map[domain.Severity]int `json:"severityCounts"`
	ActionCounts             map[domain.Action]int   `json:"actionCounts"`
	QueueSize                int                     `json:"queueSize"`
	AverageResolutionSeconds *float64                `json:"averageResolutionSeconds"`
}

// GetOverview computes aggregate statistics over events created in the
// trailing days-long window. Severity and action counts are zero-filled so
// dashboards always see every bucket. The queue size counts all unresolved
// events regardless of the window, and the average resolution time spans all
// resolved events ever.
func (s *Service) GetOverview(ctx context.Context, days int) (*Overview, error) {
	if days <= 0 {
		days = defaultOverviewDays
	}

	since := time.Now().AddDate(0, 0, -days)

	severityCounts, err := s.repo.CountEventsBySeverity(ctx, since)
	if err != nil {
		return nil, err
	}

	actionCounts, err := s.repo.CountEventsByAction(ctx, since)
	if err != nil {
		return nil, err
	}

	queueSize, err := s.repo.OpenQueueSize(ctx)
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		WindowDays:     days,
		SeverityCounts: make(map[domain.Severity]int, len(domain.Severities)),
		ActionCounts:   make(map[domain.Action]int, len(domain.Actions)),
		QueueSize:      queueSize,
	}

	for _, severity := range domain.Severities {
		overview.SeverityCounts[severity] = severityCounts[severity]
	}

	for _, action := range domain.Actions {
		overview.ActionCounts[action] = actionCounts[action]
	}

	// A secondary metric must not take down the whole overview: degrade to
	// nil and keep the counts operators triage with.
	avg, err := s.repo.AverageResolutionSeconds(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("average resolution time query failed, omitting from overview")
	} else {
		overview.AverageResolutionSeconds = avg
	}

	return overview, nil
}

func clampPage(page, pageSize, maxPageSize int) (int, int) {
	if page < 1 {
		page = 1
	}

	if pageSize < 1 {
		pageSize = db.DefaultPageSize
	}

	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return page, pageSize
}

func newEventPage(items []domain.ModerationEvent, page, pageSize, total int) *EventPage {
	if items == nil {
		items = []domain.ModerationEvent{}
	}

	return &EventPage{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalItems: total,
			TotalPages: (total + pageSize - 1) / pageSize,
		},
	}
}

func summarizeSignals(signals []domain.Signal) string {
	if len(signals) == 0 {
		return "message flagged by automated review"
	}

	parts := make([]string, len(signals))
	for i, sig := range signals {
		parts[i] = sig.Message
	}

	return strings.Join(parts, "; ")
}
