package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigboard/community-moderation/internal/core/domain"
	"github.com/gigboard/community-moderation/internal/moderation/events"
	db "github.com/gigboard/community-moderation/internal/storage"
)

type fakeRepo struct {
	created  []*domain.ModerationEvent
	resolved []*domain.ModerationEvent
	byID     map[string]*domain.ModerationEvent

	queueFilter db.QueueFilter
	eventFilter db.EventFilter

	severityCounts map[domain.Severity]int
	actionCounts   map[domain.Action]int
	queueSize      int
	avgResolution  *float64
	avgErr         error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byID:           make(map[string]*domain.ModerationEvent),
		severityCounts: make(map[domain.Severity]int),
		actionCounts:   make(map[domain.Action]int),
	}
}

func (f *fakeRepo) CreateModerationEvent(_ context.Context, ev *domain.ModerationEvent) error {
	ev.ID = "00000000-0000-0000-0000-000000000001"
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = ev.CreatedAt
	f.created = append(f.created, ev)
	f.byID[ev.ID] = ev

	return nil
}

func (f *fakeRepo) GetModerationEvent(_ context.Context, id string) (*domain.ModerationEvent, error) {
	return f.byID[id], nil
}

func (f *fakeRepo) SaveModerationEventResolution(_ context.Context, ev *domain.ModerationEvent) error {
	ev.UpdatedAt = time.Now()
	f.resolved = append(f.resolved, ev)

	return nil
}

func (f *fakeRepo) ListQueue(_ context.Context, filter db.QueueFilter) ([]domain.ModerationEvent, int, error) {
	f.queueFilter = filter

	return nil, 0, nil
}

func (f *fakeRepo) ListEvents(_ context.Context, filter db.EventFilter) ([]domain.ModerationEvent, int, error) {
	f.eventFilter = filter

	return nil, 0, nil
}

func (f *fakeRepo) CountEventsBySeverity(_ context.Context, _ time.Time) (map[domain.Severity]int, error) {
	return f.severityCounts, nil
}

func (f *fakeRepo) CountEventsByAction(_ context.Context, _ time.Time) (map[domain.Action]int, error) {
	return f.actionCounts, nil
}

func (f *fakeRepo) OpenQueueSize(_ context.Context) (int, error) {
	return f.queueSize, nil
}

func (f *fakeRepo) AverageResolutionSeconds(_ context.Context) (*float64, error) {
	return f.avgResolution, f.avgErr
}

func TestRecordMessageModerationAllowIsNoPersist(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, events.NewBus(nil), nil)

	ev, err := svc.RecordMessageModeration(context.Background(), MessageModeration{
		ThreadID: 1,
		ActorID:  2,
		Decision: domain.DecisionAllow,
		Severity: domain.SeverityLow,
	})
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Empty(t, repo.created)
}

func TestRecordMessageModerationReview(t *testing.T) {
	repo := newFakeRepo()
	bus := events.NewBus(nil)

	var published []*domain.ModerationEvent

	bus.Subscribe(events.TypeEventCreated, func(evt *domain.ModerationEvent) {
		published = append(published, evt)
	})

	svc := NewService(repo, bus, nil)

	ev, err := svc.RecordMessageModeration(context.Background(), MessageModeration{
		ThreadID:    10,
		ActorID:     20,
		ChannelSlug: "flea-market",
		Decision:    domain.DecisionReview,
		Severity:    domain.SeverityHigh,
		Score:       40,
		Signals: []domain.Signal{
			{Code: domain.SignalScamKeywords, Message: "message contains high-risk scam phrasing", Severity: domain.SeverityHigh, Weight: 40},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, domain.ActionMessageFlagged, ev.Action)
	assert.Equal(t, domain.StatusOpen, ev.Status)
	assert.Equal(t, domain.SeverityHigh, ev.Severity)
	assert.Nil(t, ev.ResolvedBy)
	assert.Nil(t, ev.ResolvedAt)
	assert.Equal(t, 40, ev.Metadata.Score)
	assert.Equal(t, domain.SourceAutomated, ev.Metadata.Source)
	assert.Contains(t, ev.Reason, "scam phrasing")

	require.Len(t, published, 1)
	assert.Same(t, ev, published[0])
}

func TestRecordMessageModerationBlockIsPreResolved(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, events.NewBus(nil), nil)

	ev, err := svc.RecordMessageModeration(context.Background(), MessageModeration{
		ThreadID: 10,
		ActorID:  20,
		Decision: domain.DecisionBlock,
		Severity: domain.SeverityCritical,
		Score:    100,
	})
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, domain.ActionMessageBlocked, ev.Action)
	assert.Equal(t, domain.StatusResolved, ev.Status)
	require.NotNil(t, ev.ResolvedBy)
	assert.Equal(t, domain.SystemActorID, *ev.ResolvedBy)
	assert.NotNil(t, ev.ResolvedAt)
}

func TestRecordMessageModerationFloorsSeverity(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	ev, err := svc.RecordMessageModeration(context.Background(), MessageModeration{
		Decision: domain.DecisionReview,
		Severity: domain.SeverityLow,
	})
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, domain.SeverityMedium, ev.Severity)
}

func TestRecordModerationActionRequiresAction(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil)

	_, err := svc.RecordModerationAction(context.Background(), ManualAction{ActorID: 1})
	require.Error(t, err)
}

func TestRecordModerationActionDefaults(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	ev, err := svc.RecordModerationAction(context.Background(), ManualAction{
		ThreadID: 1,
		ActorID:  2,
		Action:   domain.ActionMemberWarned,
		Reason:   "repeated  off-topic <b>posts</b>",
	})
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, domain.SeverityMedium, ev.Severity)
	assert.Equal(t, domain.StatusOpen, ev.Status)
	assert.Equal(t, "repeated off-topic posts", ev.Reason)
	assert.Equal(t, "moderator", ev.Metadata.Source)
}

func TestResolveEventUnknownID(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	ev, err := svc.ResolveEvent(context.Background(), "11111111-1111-1111-1111-111111111111", Resolution{
		ResolvedBy: 5,
	})
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Empty(t, repo.resolved)
}

func TestResolveEvent(t *testing.T) {
	repo := newFakeRepo()
	bus := events.NewBus(nil)

	var updated []*domain.ModerationEvent

	bus.Subscribe(events.TypeEventUpdated, func(evt *domain.ModerationEvent) {
		updated = append(updated, evt)
	})

	svc := NewService(repo, bus, nil)

	created, err := svc.RecordModerationAction(context.Background(), ManualAction{
		ThreadID: 1,
		ActorID:  2,
		Action:   domain.ActionMessageFlagged,
	})
	require.NoError(t, err)

	ev, err := svc.ResolveEvent(context.Background(), created.ID, Resolution{
		Status:          domain.StatusResolved,
		ResolvedBy:      42,
		ResolutionNotes: "  checked, false  positive ",
	})
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, domain.StatusResolved, ev.Status)
	require.NotNil(t, ev.ResolvedBy)
	assert.Equal(t, int64(42), *ev.ResolvedBy)
	assert.NotNil(t, ev.ResolvedAt)
	assert.Equal(t, "checked, false positive", ev.Metadata.ResolutionNotes)

	require.Len(t, updated, 1)
}

func TestResolveEventInvalidStatusDefaultsToResolved(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.RecordModerationAction(context.Background(), ManualAction{
		ThreadID: 1,
		ActorID:  2,
		Action:   domain.ActionMemberMuted,
	})
	require.NoError(t, err)

	ev, err := svc.ResolveEvent(context.Background(), created.ID, Resolution{
		Status:     domain.EventStatus("bogus"),
		ResolvedBy: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, ev.Status)
}

func TestListQueueDefaults(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	page, err := svc.ListQueue(context.Background(), db.QueueFilter{})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.queueFilter.Page)
	assert.Equal(t, db.DefaultPageSize, repo.queueFilter.PageSize)
	assert.Equal(t,
		[]domain.EventStatus{domain.StatusOpen, domain.StatusAcknowledged},
		repo.queueFilter.Statuses)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 0, page.Pagination.TotalPages)
}

func TestListQueueClampsPageSize(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.ListQueue(context.Background(), db.QueueFilter{Page: -3, PageSize: 9999})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.queueFilter.Page)
	assert.Equal(t, db.MaxQueuePageSize, repo.queueFilter.PageSize)
}

func TestListQueueKeepsExplicitStatuses(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.ListQueue(context.Background(), db.QueueFilter{
		Statuses: []domain.EventStatus{domain.StatusResolved},
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.EventStatus{domain.StatusResolved}, repo.queueFilter.Statuses)
}

func TestListEventsClampsPageSize(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.ListEvents(context.Background(), db.EventFilter{PageSize: 500})
	require.NoError(t, err)

	assert.Equal(t, db.MaxEventPageSize, repo.eventFilter.PageSize)
}

func TestGetOverviewZeroFills(t *testing.T) {
	repo := newFakeRepo()
	repo.severityCounts[domain.SeverityHigh] = 3
	repo.actionCounts[domain.ActionMessageBlocked] = 2
	repo.queueSize = 5

	avg := 120.5
	repo.avgResolution = &avg

	svc := NewService(repo, nil, nil)

	overview, err := svc.GetOverview(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 7, overview.WindowDays)
	assert.Equal(t, 5, overview.QueueSize)

	for _, severity := range domain.Severities {
		_, ok := overview.SeverityCounts[severity]
		assert.True(t, ok, "missing severity bucket %s", severity)
	}

	for _, action := range domain.Actions {
		_, ok := overview.ActionCounts[action]
		assert.True(t, ok, "missing action bucket %s", action)
	}

	assert.Equal(t, 3, overview.SeverityCounts[domain.SeverityHigh])
	assert.Equal(t, 0, overview.SeverityCounts[domain.SeverityLow])
	assert.Equal(t, 2, overview.ActionCounts[domain.ActionMessageBlocked])

	require.NotNil(t, overview.AverageResolutionSeconds)
	assert.InDelta(t, 120.5, *overview.AverageResolutionSeconds, 0.001)
}

func TestGetOverviewDegradesAverageResolution(t *testing.T) {
	repo := newFakeRepo()
	repo.avgErr = errors.New("statement timeout")

	svc := NewService(repo, nil, nil)

	overview, err := svc.GetOverview(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 30, overview.WindowDays)
	assert.Nil(t, overview.AverageResolutionSeconds)
}
