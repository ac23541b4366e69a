package db

import (
	"testing"
	"time"

	"github.com/gigboard/community-moderation/internal/core/domain"
)

func TestBuildQueueFilters(t *testing.T) {
	tests := []struct {
		name      string
		filter    QueueFilter
		wantWhere []string
		wantArgs  int
	}{
		{
			name:      "empty filter",
			filter:    QueueFilter{},
			wantWhere: []string{"1=1"},
			wantArgs:  0,
		},
		{
			name: "statuses only",
			filter: QueueFilter{
				Statuses: []domain.EventStatus{domain.StatusOpen, domain.StatusAcknowledged},
			},
			wantWhere: []string{"1=1", "status = ANY($1)"},
			wantArgs:  1,
		},
		{
			name: "all filters",
			filter: QueueFilter{
				Statuses:   []domain.EventStatus{domain.StatusOpen},
				Severities: []domain.Severity{domain.SeverityCritical},
				Channels:   []string{"flea-market"},
				Search:     "scam",
			},
			wantWhere: []string{
				"1=1",
				"status = ANY($1)",
				"severity = ANY($2)",
				"channel_slug = ANY($3)",
				"reason ILIKE $4",
			},
			wantArgs: 4,
		},
		{
			name: "search without statuses keeps numbering dense",
			filter: QueueFilter{
				Search: "refund",
			},
			wantWhere: []string{"1=1", "reason ILIKE $1"},
			wantArgs:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildQueueFilters(tt.filter)

			if len(args) != tt.wantArgs {
				t.Errorf("args = %d, want %d", len(args), tt.wantArgs)
			}

			if len(where) != len(tt.wantWhere) {
				t.Fatalf("where = %v, want %v", where, tt.wantWhere)
			}

			for i := range where {
				if where[i] != tt.wantWhere[i] {
					t.Errorf("where[%d] = %q, want %q", i, where[i], tt.wantWhere[i])
				}
			}
		})
	}
}

func TestBuildQueueFiltersSearchPattern(t *testing.T) {
	_, args := buildQueueFilters(QueueFilter{Search: "scam"})

	if len(args) != 1 {
		t.Fatalf("args = %v, want one", args)
	}

	if args[0] != "%scam%" {
		t.Errorf("search arg = %v, want %%scam%%", args[0])
	}
}

func TestBuildEventFilters(t *testing.T) {
	status := domain.StatusResolved
	actorID := int64(42)
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	until := since.AddDate(0, 0, 7)

	where, args := buildEventFilters(EventFilter{
		Status:      &status,
		ActorID:     &actorID,
		ChannelSlug: "flea-market",
		Since:       &since,
		Until:       &until,
	})

	wantWhere := []string{
		"1=1",
		"status = $1",
		"actor_id = $2",
		"channel_slug = $3",
		"created_at >= $4",
		"created_at <= $5",
	}

	if len(where) != len(wantWhere) {
		t.Fatalf("where = %v, want %v", where, wantWhere)
	}

	for i := range where {
		if where[i] != wantWhere[i] {
			t.Errorf("where[%d] = %q, want %q", i, where[i], wantWhere[i])
		}
	}

	if len(args) != 5 {
		t.Errorf("args = %d, want 5", len(args))
	}

	if args[0] != "resolved" {
		t.Errorf("status arg = %v, want resolved", args[0])
	}
}

func TestBuildEventFiltersEmpty(t *testing.T) {
	where, args := buildEventFilters(EventFilter{})

	if len(where) != 1 || where[0] != "1=1" {
		t.Errorf("where = %v, want just 1=1", where)
	}

	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}
