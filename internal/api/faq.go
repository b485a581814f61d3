package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/askpath/askpath/internal/faq"
	"github.com/askpath/askpath/internal/log"
)

// faqStore is what the FAQ management endpoints need.
type faqStore interface {
	Create(ctx context.Context, question, answer, category string) (*faq.Entry, error)
	Entry(ctx context.Context, id int64) (*faq.Entry, error)
	Entries(ctx context.Context, category string) ([]faq.Entry, error)
	Categories(ctx context.Context) ([]string, error)
	Update(ctx context.Context, id int64, question, answer, category string) (*faq.Entry, error)
	Delete(ctx context.Context, id int64) error
	Match(ctx context.Context, question string) (faq.MatchResult, error)
}

// FAQHandler serves the FAQ management and search endpoints.
type FAQHandler struct {
	store  faqStore
	logger log.Logger
}

// NewFAQHandler wires the FAQ endpoints.
func NewFAQHandler(store faqStore, logger log.Logger) *FAQHandler {
	return &FAQHandler{store: store, logger: logger}
}

type faqRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category,omitempty"`
}

func (req *faqRequest) validate() string {
	if strings.TrimSpace(req.Question) == "" {
		return "question must not be empty"
	}
	if strings.TrimSpace(req.Answer) == "" {
		return "answer must not be empty"
	}
	return ""
}

// Create handles POST /api/faq.
func (h *FAQHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req faqRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		WriteError(w, http.StatusBadRequest, msg)
		return
	}

	entry, err := h.store.Create(r.Context(), req.Question, req.Answer, req.Category)
	if err != nil {
		if errors.Is(err, faq.ErrDuplicateQuestion) {
			WriteError(w, http.StatusConflict, "an entry with this question already exists")
			return
		}
		h.logger.Error("create faq failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	WriteData(w, http.StatusCreated, "faq created", entry)
}

// List handles GET /api/faq with an optional category filter.
func (h *FAQHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.Entries(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.logger.Error("list faq failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if entries == nil {
		entries = []faq.Entry{}
	}
	WriteData(w, http.StatusOK, "", entries)
}

// Categories handles GET /api/faq/categories.
func (h *FAQHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.Categories(r.Context())
	if err != nil {
		h.logger.Error("list categories failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if cats == nil {
		cats = []string{}
	}
	WriteData(w, http.StatusOK, "", cats)
}

// Search handles GET /api/faq/search?q=...; it runs the same matcher
// the answer cascade uses.
func (h *FAQHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		WriteError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	m, err := h.store.Match(r.Context(), q)
	if err != nil {
		h.logger.Error("faq search failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	WriteData(w, http.StatusOK, "", m)
}

// Get handles GET /api/faq/{id}.
func (h *FAQHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	entry, err := h.store.Entry(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "get faq")
		return
	}
	WriteData(w, http.StatusOK, "", entry)
}

// Update handles PUT /api/faq/{id}.
func (h *FAQHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req faqRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		WriteError(w, http.StatusBadRequest, msg)
		return
	}

	entry, err := h.store.Update(r.Context(), id, req.Question, req.Answer, req.Category)
	if err != nil {
		if errors.Is(err, faq.ErrDuplicateQuestion) {
			WriteError(w, http.StatusConflict, "an entry with this question already exists")
			return
		}
		h.writeStoreError(w, err, "update faq")
		return
	}
	WriteData(w, http.StatusOK, "faq updated", entry)
}

// Delete handles DELETE /api/faq/{id}.
func (h *FAQHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "delete faq")
		return
	}
	WriteData(w, http.StatusOK, "faq deleted", nil)
}

func (h *FAQHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *FAQHandler) writeStoreError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, faq.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "faq entry not found")
		return
	}
	h.logger.Error(op+" failed", "error", err)
	WriteError(w, http.StatusInternalServerError, "internal server error")
}
