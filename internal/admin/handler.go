// Package admin exposes the moderation queue, overview, and resolve
// operations as a JSON API for operator tooling, plus the message intake
// endpoint and a websocket relay of moderation bus events.
package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/gigboard/community-moderation/internal/core/domain"
	"github.com/gigboard/community-moderation/internal/intake"
	"github.com/gigboard/community-moderation/internal/moderation"
	db "github.com/gigboard/community-moderation/internal/storage"
)

const (
	maxBodyBytes = 1 << 20

	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json; charset=utf-8"

	errMsgUnauthorized = "authorization required"
	errMsgNotFound     = "moderation event not found"
	errMsgBadJSON      = "request body is not valid JSON"
)

// Handler routes the moderation API. Mount it under /api.
type Handler struct {
	svc          *moderation.Service
	intake       *intake.Intake
	stream       *Stream
	authToken    string
	overviewDays int
	logger       *zerolog.Logger
	mux          *http.ServeMux
}

// NewHandler creates the API handler. An empty authToken disables the bearer
// token check (local development only). overviewDays is the overview window
// applied when the request does not carry a days parameter; zero falls back
// to the service default.
func NewHandler(svc *moderation.Service, in *intake.Intake, stream *Stream, authToken string, overviewDays int, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	h := &Handler{
		svc:          svc,
		intake:       in,
		stream:       stream,
		authToken:    authToken,
		overviewDays: overviewDays,
		logger:       logger,
		mux:          http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /messages", h.handleSubmitMessage)
	h.mux.HandleFunc("GET /moderation/queue", h.handleQueue)
	h.mux.HandleFunc("GET /moderation/events", h.handleListEvents)
	h.mux.HandleFunc("GET /moderation/overview", h.handleOverview)
	h.mux.HandleFunc("POST /moderation/events", h.handleCreateEvent)
	h.mux.HandleFunc("POST /moderation/events/{id}/resolve", h.handleResolve)

	if stream != nil {
		h.mux.HandleFunc("GET /moderation/stream", stream.handleConnect)
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, errMsgUnauthorized)

		return
	}

	h.mux.ServeHTTP(w, r)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.authToken == "" {
		return true
	}

	header := r.Header.Get("Authorization")

	return strings.TrimPrefix(header, "Bearer ") == h.authToken
}

func (h *Handler) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req intake.SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.intake.Submit(r.Context(), req)
	if err != nil {
		h.serveInternalError(w, err, "message intake failed")

		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := db.QueueFilter{
		Page:     intParam(q.Get("page")),
		PageSize: intParam(q.Get("pageSize")),
		Search:   q.Get("search"),
		Channels: splitParam(q.Get("channels")),
	}

	for _, s := range splitParam(q.Get("severities")) {
		filter.Severities = append(filter.Severities, domain.Severity(s))
	}

	for _, s := range splitParam(q.Get("status")) {
		filter.Statuses = append(filter.Statuses, domain.EventStatus(s))
	}

	page, err := h.svc.ListQueue(r.Context(), filter)
	if err != nil {
		h.serveInternalError(w, err, "queue listing failed")

		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := db.EventFilter{
		Page:        intParam(q.Get("page")),
		PageSize:    intParam(q.Get("pageSize")),
		ChannelSlug: q.Get("channel"),
	}

	if v := q.Get("status"); v != "" {
		status := domain.EventStatus(v)
		filter.Status = &status
	}

	if v := q.Get("actorId"); v != "" {
		actorID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "actorId must be an integer")

			return
		}

		filter.ActorID = &actorID
	}

	var err error

	if filter.Since, err = timeParam(q.Get("since")); err != nil {
		writeError(w, http.StatusBadRequest, "since is not a recognizable time")

		return
	}

	if filter.Until, err = timeParam(q.Get("until")); err != nil {
		writeError(w, http.StatusBadRequest, "until is not a recognizable time")

		return
	}

	page, err := h.svc.ListEvents(r.Context(), filter)
	if err != nil {
		h.serveInternalError(w, err, "event listing failed")

		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	days := intParam(r.URL.Query().Get("days"))
	if days <= 0 {
		days = h.overviewDays
	}

	overview, err := h.svc.GetOverview(r.Context(), days)
	if err != nil {
		h.serveInternalError(w, err, "overview failed")

		return
	}

	writeJSON(w, http.StatusOK, overview)
}

type createEventRequest struct {
	ThreadID    int64          `json:"threadId"`
	MessageID   *string        `json:"messageId,omitempty"`
	ActorID     int64          `json:"actorId"`
	ChannelSlug string         `json:"channelSlug"`
	Action      string         `json:"action"`
	Severity    string         `json:"severity,omitempty"`
	Status      string         `json:"status,omitempty"`
	Reason      string         `json:"reason"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := h.svc.RecordModerationAction(r.Context(), moderation.ManualAction{
		ThreadID:    req.ThreadID,
		MessageID:   req.MessageID,
		ActorID:     req.ActorID,
		ChannelSlug: req.ChannelSlug,
		Action:      domain.Action(req.Action),
		Severity:    domain.Severity(req.Severity),
		Status:      domain.EventStatus(req.Status),
		Reason:      req.Reason,
		Metadata:    req.Metadata,
	})
	if err != nil {
		if strings.Contains(err.Error(), "required") {
			writeError(w, http.StatusBadRequest, err.Error())

			return
		}

		h.serveInternalError(w, err, "manual action failed")

		return
	}

	writeJSON(w, http.StatusCreated, ev)
}

type resolveRequest struct {
	Status          string `json:"status,omitempty"`
	ResolvedBy      int64  `json:"resolvedBy"`
	ResolutionNotes string `json:"resolutionNotes,omitempty"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := h.svc.ResolveEvent(r.Context(), id, moderation.Resolution{
		Status:          domain.EventStatus(req.Status),
		ResolvedBy:      req.ResolvedBy,
		ResolutionNotes: req.ResolutionNotes,
	})
	if err != nil {
		h.serveInternalError(w, err, "resolve failed")

		return
	}

	if ev == nil {
		writeError(w, http.StatusNotFound, errMsgNotFound)

		return
	}

	writeJSON(w, http.StatusOK, ev)
}

func (h *Handler) serveInternalError(w http.ResponseWriter, err error, msg string) {
	h.logger.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, msg)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	defer func() {
		_ = r.Body.Close()
	}()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, errMsgBadJSON)

		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(contentTypeHeader, contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func intParam(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}

	return n
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}

	var out []string

	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}

// timeParam parses a flexible timestamp (RFC3339, date-only, etc.).
func timeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}

	t, err := dateparse.ParseAny(v)
	if err != nil {
		return nil, fmt.Errorf("parse time param: %w", err)
	}

	return &t, nil
}
