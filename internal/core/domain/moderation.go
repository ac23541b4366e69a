package domain

import "time"

// Severity classifies the risk level of a signal or an aggregate evaluation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists all severity levels from lowest to highest.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank returns the ordering position of the severity, with unknown values
// ranked below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Decision is the enforcement outcome of evaluating a message.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionReview Decision = "review"
	DecisionBlock  Decision = "block"
)

// Action identifies what kind of enforcement a moderation event records.
type Action string

const (
	ActionMessageFlagged Action = "message_flagged"
	ActionMessageBlocked Action = "message_blocked"
	ActionMemberWarned   Action = "member_warned"
	ActionMemberMuted    Action = "member_muted"
)

// Actions lists all known action types, used for zero-filled overview counts.
var Actions = []Action{ActionMessageFlagged, ActionMessageBlocked, ActionMemberWarned, ActionMemberMuted}

// Event status constants.
type EventStatus string

const (
	StatusOpen         EventStatus = "open"
	StatusAcknowledged EventStatus = "acknowledged"
	StatusResolved     EventStatus = "resolved"
)

// EventStatuses lists the allowed status lifecycle values.
var EventStatuses = []EventStatus{StatusOpen, StatusAcknowledged, StatusResolved}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s EventStatus) bool {
	for _, known := range EventStatuses {
		if s == known {
			return true
		}
	}

	return false
}

// SystemActorID is the reserved actor id recorded as the resolver of
// automated blocks. Real marketplace user ids start at 1.
const SystemActorID int64 = 0

// SourceAutomated marks event metadata produced by the heuristic pipeline
// rather than a moderator.
const SourceAutomated = "automated_heuristics"

// SignalCode identifies one detector.
type SignalCode string

const (
	SignalProfanity     SignalCode = "profanity"
	SignalScamKeywords  SignalCode = "scam_keywords"
	SignalLinkDensity   SignalCode = "link_density"
	SignalBlockedDomain SignalCode = "blocked_domain"
	SignalMentionSpam   SignalCode = "mention_spam"
	SignalUppercaseSpam SignalCode = "uppercase_spam"
	SignalCharacterRuns SignalCode = "character_runs"
	SignalDuplicate     SignalCode = "duplicate_message"
)

// Signal is one detected risk indicator, produced per evaluation and never
// persisted on its own.
type Signal struct {
	Code     SignalCode     `json:"code"`
	Message  string         `json:"message"`
	Severity Severity       `json:"severity"`
	Weight   int            `json:"weight"`
	Data     map[string]any `json:"data,omitempty"`
}

// Evaluation is the result of scoring one message. It exists only for the
// duration of the evaluation call.
type Evaluation struct {
	SanitizedBody string         `json:"sanitizedBody"`
	Decision      Decision       `json:"decision"`
	Severity      Severity       `json:"severity"`
	Score         int            `json:"score"`
	Signals       []Signal       `json:"signals"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// EventMetadata is the structured detail stored with a moderation event.
// Extra carries caller-supplied passthrough fields.
type EventMetadata struct {
	Score           int            `json:"score,omitempty"`
	Signals         []Signal       `json:"signals,omitempty"`
	Decision        Decision       `json:"decision,omitempty"`
	Source          string         `json:"source,omitempty"`
	ResolutionNotes string         `json:"resolutionNotes,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// ModerationEvent is a durable record of a flagged or blocked message, or of
// a manual moderator action, with a status lifecycle.
type ModerationEvent struct {
	ID          string        `json:"id"`
	ThreadID    int64         `json:"threadId"`
	MessageID   *string       `json:"messageId,omitempty"`
	ActorID     int64         `json:"actorId"`
	ChannelSlug string        `json:"channelSlug"`
	Action      Action        `json:"action"`
	Severity    Severity      `json:"severity"`
	Status      EventStatus   `json:"status"`
	Reason      string        `json:"reason"`
	Metadata    EventMetadata `json:"metadata"`
	ResolvedBy  *int64        `json:"resolvedBy,omitempty"`
	ResolvedAt  *time.Time    `json:"resolvedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Message is a community message as persisted by the intake path. The
// normalized body supports exact-match duplicate detection.
type Message struct {
	ID             string    `json:"id"`
	ThreadID       int64     `json:"threadId"`
	SenderID       int64     `json:"senderId"`
	ChannelSlug    string    `json:"channelSlug"`
	Body           string    `json:"body"`
	NormalizedBody string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}
