package api

import (
	"net/http"
	"time"

	"github.com/askpath/askpath/internal/log"
)

// ServerConfig carries the HTTP-facing knobs.
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
	TrustProxy  bool
	RateRPS     float64
	RateBurst   int
}

// Handlers groups everything the router mounts.
type Handlers struct {
	Chat      *ChatHandler
	Sessions  *SessionHandler
	FAQ       *FAQHandler
	Graph     *GraphHandler
	Documents *DocumentHandler
	Health    *HealthHandler
}

// NewServer assembles the router and wraps it in the middleware stack:
// recovery outermost, then request IDs, tracing, access logging, CORS
// and the per-IP rate limit.
func NewServer(cfg ServerConfig, h Handlers, logger log.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health.Live)
	mux.HandleFunc("GET /ready", h.Health.Ready)

	mux.HandleFunc("POST /api/chat", h.Chat.Ask)

	mux.HandleFunc("POST /api/chat-sessions", h.Sessions.Create)
	mux.HandleFunc("GET /api/chat-sessions/user/{userID}", h.Sessions.List)
	mux.HandleFunc("GET /api/chat-sessions/{sessionID}", h.Sessions.Get)
	mux.HandleFunc("PUT /api/chat-sessions/{sessionID}", h.Sessions.Update)
	mux.HandleFunc("DELETE /api/chat-sessions/{sessionID}", h.Sessions.Delete)
	mux.HandleFunc("GET /api/chat-sessions/{sessionID}/messages", h.Sessions.Messages)
	mux.HandleFunc("POST /api/chat-sessions/{sessionID}/messages", h.Sessions.AppendMessage)
	mux.HandleFunc("DELETE /api/chat-sessions/{sessionID}/messages", h.Sessions.ClearMessages)

	mux.HandleFunc("POST /api/faq", h.FAQ.Create)
	mux.HandleFunc("GET /api/faq", h.FAQ.List)
	mux.HandleFunc("GET /api/faq/categories", h.FAQ.Categories)
	mux.HandleFunc("GET /api/faq/search", h.FAQ.Search)
	mux.HandleFunc("GET /api/faq/{id}", h.FAQ.Get)
	mux.HandleFunc("PUT /api/faq/{id}", h.FAQ.Update)
	mux.HandleFunc("DELETE /api/faq/{id}", h.FAQ.Delete)

	mux.HandleFunc("POST /api/documents", h.Documents.Register)
	mux.HandleFunc("GET /api/documents", h.Documents.List)
	mux.HandleFunc("POST /api/documents/{id}/chunks", h.Documents.AddChunk)
	mux.HandleFunc("PUT /api/documents/{id}/status", h.Documents.MarkProcessed)

	mux.HandleFunc("POST /api/workflows", h.Graph.CreateWorkflow)
	mux.HandleFunc("GET /api/workflows", h.Graph.ListWorkflows)
	mux.HandleFunc("GET /api/workflows/{id}", h.Graph.GetWorkflow)
	mux.HandleFunc("DELETE /api/workflows/{id}", h.Graph.DeleteWorkflow)
	mux.HandleFunc("POST /api/workflows/{id}/nodes", h.Graph.CreateNode)
	mux.HandleFunc("GET /api/workflows/{id}/nodes", h.Graph.ListNodes)
	mux.HandleFunc("DELETE /api/nodes/{id}", h.Graph.DeleteNode)
	mux.HandleFunc("POST /api/workflows/{id}/edges", h.Graph.CreateEdge)
	mux.HandleFunc("GET /api/workflows/{id}/edges", h.Graph.ListEdges)
	mux.HandleFunc("DELETE /api/edges/{id}", h.Graph.DeleteEdge)

	var handler http.Handler = mux
	if cfg.RateRPS > 0 {
		handler = RateLimit(cfg.RateRPS, cfg.RateBurst, cfg.TrustProxy)(handler)
	}
	handler = CORS(cfg.CORSOrigins)(handler)
	handler = Logging(logger)(handler)
	handler = Trace(handler)
	handler = RequestID(handler)
	handler = Recovery(logger)(handler)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Generation can legitimately take minutes, so no WriteTimeout.
		IdleTimeout: 120 * time.Second,
	}
}
