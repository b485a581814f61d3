package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/askpath/askpath/internal/log"
	"github.com/askpath/askpath/internal/pipeline"
	"github.com/askpath/askpath/internal/session"
)

type fakeAnswerer struct {
	result *pipeline.Result
	err    error
	asked  pipeline.Request
	ran    bool
}

func (f *fakeAnswerer) Answer(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.asked = req
	f.ran = true
	return f.result, f.err
}

type fakeChatSessions struct {
	sessions  map[string]*session.Session
	appended  []session.Message
	completed map[string]session.Message
	nextMsg   int
}

func newFakeChatSessions(tokens ...string) *fakeChatSessions {
	f := &fakeChatSessions{
		sessions:  make(map[string]*session.Session),
		completed: make(map[string]session.Message),
	}
	for _, tok := range tokens {
		f.sessions[tok] = &session.Session{SessionID: tok, UserID: "u1", Title: "t", IsActive: true}
	}
	return f
}

func (f *fakeChatSessions) Session(_ context.Context, token string) (*session.Session, error) {
	if s, ok := f.sessions[token]; ok {
		return s, nil
	}
	return nil, session.ErrNotFound
}

func (f *fakeChatSessions) AppendMessage(_ context.Context, token, userID, question, answer, source string) (*session.Message, error) {
	if _, ok := f.sessions[token]; !ok {
		return nil, session.ErrNotFound
	}
	f.nextMsg++
	m := session.Message{
		MessageID: session.NewMessageToken(),
		SessionID: token,
		UserID:    userID,
		Question:  question,
		Answer:    answer,
		Source:    source,
	}
	f.appended = append(f.appended, m)
	return &m, nil
}

func (f *fakeChatSessions) CompleteMessage(_ context.Context, messageToken, answer, source string) (*session.Message, error) {
	for _, m := range f.appended {
		if m.MessageID == messageToken {
			m.Answer = answer
			m.Source = source
			f.completed[messageToken] = m
			return &m, nil
		}
	}
	return nil, session.ErrMessageNotFound
}

func postChat(t *testing.T, h *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Ask(rec, req)
	return rec
}

func TestChatHandler_EmptyQuestion(t *testing.T) {
	h := NewChatHandler(&fakeAnswerer{}, newFakeChatSessions(), log.NewNop())

	for _, body := range []string{`{}`, `{"question":""}`, `{"question":"   "}`} {
		rec := postChat(t, h, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Ask(%s) status = %d, want 400", body, rec.Code)
		}
	}
}

func TestChatHandler_InvalidJSON(t *testing.T) {
	h := NewChatHandler(&fakeAnswerer{}, newFakeChatSessions(), log.NewNop())
	if rec := postChat(t, h, `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("Ask(bad json) status = %d, want 400", rec.Code)
	}
}

func TestChatHandler_UnknownSession(t *testing.T) {
	ans := &fakeAnswerer{result: &pipeline.Result{Success: true}}
	h := NewChatHandler(ans, newFakeChatSessions(), log.NewNop())

	rec := postChat(t, h, `{"question":"hi","session_id":"session_1_deadbeef"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Ask(unknown session) status = %d, want 404", rec.Code)
	}
	if ans.ran {
		t.Error("pipeline ran for a request with an unknown session")
	}
}

func TestChatHandler_StatelessAnswer(t *testing.T) {
	ans := &fakeAnswerer{result: &pipeline.Result{
		Success: true,
		Source:  pipeline.SourceFAQ,
		Answer:  "We are open 9 to 5.",
		FAQID:   3,
	}}
	h := NewChatHandler(ans, newFakeChatSessions(), log.NewNop())

	rec := postChat(t, h, `{"question":"opening hours?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Ask() status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	var got struct {
		Success bool   `json:"success"`
		Answer  string `json:"answer"`
		Source  string `json:"source"`
		FAQID   int64  `json:"faq_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !got.Success || got.Source != "faq" || got.FAQID != 3 {
		t.Errorf("Ask() = %+v, want faq payload", got)
	}
}

func TestChatHandler_WorkflowScope(t *testing.T) {
	ans := &fakeAnswerer{result: &pipeline.Result{Success: true, Source: pipeline.SourceRAG, Answer: "ok"}}
	h := NewChatHandler(ans, newFakeChatSessions(), log.NewNop())

	rec := postChat(t, h, `{"question":"hi","workflow_id":7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Ask() status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	if ans.asked.WorkflowID == nil || *ans.asked.WorkflowID != 7 {
		t.Errorf("pipeline workflow scope = %v, want 7", ans.asked.WorkflowID)
	}
}

func TestChatHandler_RecordsConversation(t *testing.T) {
	const token = "session_1_cafe0123"
	store := newFakeChatSessions(token)
	ans := &fakeAnswerer{result: &pipeline.Result{
		Success: true,
		Source:  pipeline.SourceKnowledgeGraph,
		Answers: []string{"Click Forgot Password.", "Check your email."},
	}}
	h := NewChatHandler(ans, store, log.NewNop())

	rec := postChat(t, h, `{"question":"forgot password","session_id":"`+token+`","user_id":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Ask() status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	if len(store.appended) != 1 {
		t.Fatalf("appended %d messages, want one logged question", len(store.appended))
	}
	logged := store.appended[0]
	if logged.Question != "forgot password" || logged.UserID != "u1" || logged.Answer != "" {
		t.Errorf("logged message = %+v, want unresolved question", logged)
	}

	done, ok := store.completed[logged.MessageID]
	if !ok {
		t.Fatal("logged question was never completed with the answer")
	}
	if done.Source != "knowledge_graph" || !strings.Contains(done.Answer, "Check your email.") {
		t.Errorf("completed message = %+v, want joined graph answer with source", done)
	}
}

func TestChatHandler_PipelineError(t *testing.T) {
	ans := &fakeAnswerer{err: context.DeadlineExceeded}
	h := NewChatHandler(ans, newFakeChatSessions(), log.NewNop())

	rec := postChat(t, h, `{"question":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Ask(pipeline error) status = %d, want 500", rec.Code)
	}
}
