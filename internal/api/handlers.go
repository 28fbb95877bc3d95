package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skychat-ai/skychat/internal/search"
	"github.com/skychat-ai/skychat/internal/session"
	"github.com/skychat-ai/skychat/internal/transcript"
)

const maxRequestBodySize = 1 << 20 // 1MB

// NoReplyText is returned to clients when a run finishes without producing
// an assistant message.
const NoReplyText = "Sorry, I couldn't generate a response."

// TurnRunner is one live conversation against the hosted assistant.
type TurnRunner interface {
	SubmitTurn(ctx context.Context, userText string) (string, error)
	ThreadID() string
}

// Searcher answers one-shot search queries outside of any conversation.
type Searcher interface {
	Web(ctx context.Context, query string) (string, error)
	Scoped(ctx context.Context, query, domain string) (string, error)
	Domains() []string
}

type Deps struct {
	Store     *transcript.Store
	NewRunner func() TurnRunner // one runner per session, created lazily
	Search    Searcher
	Token     string
}

type handler struct {
	deps Deps

	mu      sync.Mutex
	runners map[string]TurnRunner
}

// NewHandler returns the HTTP handler for the session/turn/rating surface.
// /health is open; everything else requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	h := &handler{deps: deps, runners: make(map[string]TurnRunner)}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/sessions", h.createSession)
		r.Get("/sessions", h.listSessions)
		r.Get("/sessions/{id}/turns", h.listTurns)
		r.Post("/sessions/{id}/turns", h.submitTurn)
		r.Post("/turns/{id}/rating", h.rateTurn)
		r.Post("/search/web", h.searchWeb)
		r.Post("/search/kb", h.searchKB)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// runner returns the live conversation for a session, creating it on first use.
func (h *handler) runner(sessionID string) TurnRunner {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.runners[sessionID]; ok {
		return r
	}
	r := h.deps.NewRunner()
	h.runners[sessionID] = r
	return r
}

type sessionResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Title     string `json:"title"`
	ThreadID  string `json:"thread_id,omitempty"`
}

func sessionJSON(s transcript.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		Title:     s.Title,
		ThreadID:  s.ThreadID,
	}
}

func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	// An empty body is fine, the title is optional.
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}

	sess := transcript.Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Title:     req.Title,
	}
	if err := h.deps.Store.CreateSession(sess); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to create session: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sessionJSON(sess))
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 20, 100)

	sessions, err := h.deps.Store.ListSessions(limit)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to list sessions: %v", err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionJSON(s))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

type turnResponse struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Rating    int    `json:"rating,omitempty"`
	Feedback  string `json:"feedback,omitempty"`
}

func turnJSON(t transcript.Turn) turnResponse {
	return turnResponse{
		ID:        t.ID,
		SessionID: t.SessionID,
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
		Role:      t.Role,
		Content:   t.Content,
		Rating:    t.Rating,
		Feedback:  t.Feedback,
	}
}

func (h *handler) listTurns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.deps.Store.GetSession(id); errors.Is(err, transcript.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "session not found")
		return
	} else if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get session: %v", err)
		return
	}

	turns, err := h.deps.Store.SessionTurns(id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to list turns: %v", err)
		return
	}

	out := make([]turnResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, turnJSON(t))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (h *handler) submitTurn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	id := chi.URLParam(r, "id")

	if _, err := h.deps.Store.GetSession(id); errors.Is(err, transcript.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "session not found")
		return
	} else if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get session: %v", err)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if req.Text == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
		return
	}

	runner := h.runner(id)

	reply, err := runner.SubmitTurn(r.Context(), req.Text)
	noReply := false
	switch {
	case errors.Is(err, session.ErrNoReply):
		reply = NoReplyText
		noReply = true
	case errors.Is(err, session.ErrTurnInFlight):
		httpError(w, http.StatusConflict, "invalid_request_error", "a turn is already in progress for this session")
		return
	case err != nil:
		httpError(w, http.StatusBadGateway, "api_error", "assistant error: %v", err)
		return
	}

	if threadID := runner.ThreadID(); threadID != "" {
		if err := h.deps.Store.SetSessionThread(id, threadID); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record thread: %v", err)
			return
		}
	}

	now := time.Now().UTC()
	userTurn := transcript.Turn{
		ID:        uuid.New().String(),
		SessionID: id,
		CreatedAt: now,
		Role:      "user",
		Content:   req.Text,
	}
	assistantTurn := transcript.Turn{
		ID:        uuid.New().String(),
		SessionID: id,
		CreatedAt: now,
		Role:      "assistant",
		Content:   reply,
	}
	if err := h.deps.Store.AppendTurn(userTurn); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to record turn: %v", err)
		return
	}
	if err := h.deps.Store.AppendTurn(assistantTurn); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to record turn: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"turn_id":  assistantTurn.ID,
		"reply":    reply,
		"no_reply": noReply,
	})
}

func (h *handler) rateTurn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	id := chi.URLParam(r, "id")

	var req struct {
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}

	err := h.deps.Store.RateTurn(id, req.Rating, req.Feedback)
	switch {
	case errors.Is(err, transcript.ErrInvalidRating):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "rating must be between 1 and 10")
		return
	case errors.Is(err, transcript.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "turn not found")
		return
	case err != nil:
		httpError(w, http.StatusInternalServerError, "api_error", "failed to rate turn: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "rated"})
}

func (h *handler) searchWeb(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if req.Query == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
		return
	}

	answer, err := h.deps.Search.Web(r.Context(), req.Query)
	if err != nil {
		httpError(w, http.StatusBadGateway, "api_error", "search failed: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"answer": answer})
}

func (h *handler) searchKB(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req struct {
		Query  string `json:"query"`
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if req.Query == "" || req.Domain == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "query and domain are required")
		return
	}

	answer, err := h.deps.Search.Scoped(r.Context(), req.Query, req.Domain)
	switch {
	case errors.Is(err, search.ErrUnknownDomain):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown domain %q, valid domains: %v", req.Domain, h.deps.Search.Domains())
		return
	case err != nil:
		httpError(w, http.StatusBadGateway, "api_error", "search failed: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"answer": answer})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
