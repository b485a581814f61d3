package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/askpath/askpath/internal/log"
	"github.com/askpath/askpath/internal/pipeline"
	"github.com/askpath/askpath/internal/session"
)

// Answerer resolves a question through the tier cascade.
type Answerer interface {
	Answer(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// chatSessions is the slice of the session store the chat endpoint
// needs for conversation tracking.
type chatSessions interface {
	Session(ctx context.Context, token string) (*session.Session, error)
	AppendMessage(ctx context.Context, token, userID, question, answer, source string) (*session.Message, error)
	CompleteMessage(ctx context.Context, messageToken, answer, source string) (*session.Message, error)
}

// ChatHandler serves the main question endpoint.
type ChatHandler struct {
	answerer Answerer
	sessions chatSessions
	logger   log.Logger
}

// NewChatHandler wires the chat endpoint.
func NewChatHandler(answerer Answerer, sessions chatSessions, logger log.Logger) *ChatHandler {
	return &ChatHandler{answerer: answerer, sessions: sessions, logger: logger}
}

type chatRequest struct {
	Question   string `json:"question"`
	SessionID  string `json:"session_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	WorkflowID *int64 `json:"workflow_id,omitempty"`
}

type chatResponse struct {
	*pipeline.Result
	SessionID string `json:"session_id,omitempty"`
}

// Ask handles POST /api/chat. When a session token is supplied the
// question is logged to that session before the cascade runs and the
// answer is filled in once it resolves, so a disconnect mid-pipeline
// leaves a recorded question rather than nothing. An unknown token is
// a 404 before any tier runs.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		WriteError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	ctx := r.Context()
	var logged *session.Message
	if req.SessionID != "" {
		if _, err := h.sessions.Session(ctx, req.SessionID); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "session not found")
				return
			}
			h.logger.Error("session lookup failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		msg, err := h.sessions.AppendMessage(ctx, req.SessionID, req.UserID, req.Question, "", "")
		if err != nil {
			h.logger.Error("log question failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		logged = msg
	}

	result, err := h.answerer.Answer(ctx, pipeline.Request{
		Question:   req.Question,
		WorkflowID: req.WorkflowID,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQuestion) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("answer pipeline failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if logged != nil {
		// history completion is best effort once the answer exists
		if _, err := h.sessions.CompleteMessage(ctx, logged.MessageID, storedAnswer(result), storedSource(result)); err != nil {
			h.logger.Error("complete message failed", "error", err)
		}
	}

	WriteJSON(w, http.StatusOK, chatResponse{Result: result, SessionID: req.SessionID})
}

// storedAnswer flattens a result into the single answer column; graph
// answers are joined line by line.
func storedAnswer(res *pipeline.Result) string {
	if len(res.Answers) > 0 {
		return strings.Join(res.Answers, "\n")
	}
	if res.Answer != "" {
		return res.Answer
	}
	return res.Message
}

func storedSource(res *pipeline.Result) string {
	if res.Source == "" {
		return pipeline.SourceUnknown
	}
	return res.Source
}
