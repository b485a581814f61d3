package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/askpath/askpath/internal/log"
	"github.com/askpath/askpath/internal/session"
)

// sessionStore is what the session management endpoints need.
type sessionStore interface {
	Create(ctx context.Context, userID, title, category string) (*session.Session, error)
	Session(ctx context.Context, token string) (*session.Session, error)
	Sessions(ctx context.Context, userID string) ([]session.Session, error)
	Messages(ctx context.Context, token string) ([]session.Message, error)
	AppendMessage(ctx context.Context, token, userID, question, answer, source string) (*session.Message, error)
	Update(ctx context.Context, token, title, category string) (*session.Session, error)
	Delete(ctx context.Context, token string) error
	ClearMessages(ctx context.Context, token string) (int64, error)
}

// SessionHandler serves the chat-session management endpoints.
type SessionHandler struct {
	store  sessionStore
	logger log.Logger
}

// NewSessionHandler wires the session endpoints.
func NewSessionHandler(store sessionStore, logger log.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

type createSessionRequest struct {
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// Create handles POST /api/chat-sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		WriteError(w, http.StatusBadRequest, "user_id must not be empty")
		return
	}

	sess, err := h.store.Create(r.Context(), req.UserID, req.Title, req.Category)
	if err != nil {
		h.logger.Error("create session failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	WriteData(w, http.StatusCreated, "session created", sess)
}

// List handles GET /api/chat-sessions/user/{userID}.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.logger.Error("list sessions failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	WriteData(w, http.StatusOK, "", sessions)
}

// Get handles GET /api/chat-sessions/{sessionID}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Session(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		h.writeStoreError(w, err, "get session")
		return
	}
	WriteData(w, http.StatusOK, "", sess)
}

type updateSessionRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

// Update handles PUT /api/chat-sessions/{sessionID}. Metadata only;
// messages are untouched.
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.store.Update(r.Context(), r.PathValue("sessionID"), req.Title, req.Category)
	if err != nil {
		h.writeStoreError(w, err, "update session")
		return
	}
	WriteData(w, http.StatusOK, "session updated", sess)
}

// Delete handles DELETE /api/chat-sessions/{sessionID}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("sessionID")); err != nil {
		h.writeStoreError(w, err, "delete session")
		return
	}
	WriteData(w, http.StatusOK, "session deleted", nil)
}

// Messages handles GET /api/chat-sessions/{sessionID}/messages.
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.store.Messages(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		h.writeStoreError(w, err, "list messages")
		return
	}
	if msgs == nil {
		msgs = []session.Message{}
	}
	WriteData(w, http.StatusOK, "", msgs)
}

type appendMessageRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source"`
}

// AppendMessage handles POST /api/chat-sessions/{sessionID}/messages.
// Answer and source are optional so a caller can log a question before
// it is resolved.
func (h *SessionHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		WriteError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	msg, err := h.store.AppendMessage(r.Context(), r.PathValue("sessionID"),
		req.UserID, req.Question, req.Answer, req.Source)
	if err != nil {
		h.writeStoreError(w, err, "append message")
		return
	}
	WriteData(w, http.StatusCreated, "message recorded", msg)
}

// ClearMessages handles DELETE /api/chat-sessions/{sessionID}/messages.
func (h *SessionHandler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.ClearMessages(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		h.writeStoreError(w, err, "clear messages")
		return
	}
	WriteData(w, http.StatusOK, "messages cleared", map[string]int64{"messages_cleared": deleted})
}

func (h *SessionHandler) writeStoreError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, session.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	h.logger.Error(op+" failed", "error", err)
	WriteError(w, http.StatusInternalServerError, "internal server error")
}
