package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/askpath/askpath/internal/knowledge"
	"github.com/askpath/askpath/internal/log"
)

// documentStore is what the document ingestion endpoints need.
type documentStore interface {
	RegisterDocument(ctx context.Context, filename, description string) (*knowledge.PDFDocument, error)
	Documents(ctx context.Context) ([]knowledge.PDFDocument, error)
	AddChunk(ctx context.Context, pdfID int64, document string, page int, text string) (int64, error)
	MarkProcessed(ctx context.Context, pdfID int64, status int, message string, chunkCount, embeddingCount int) error
}

// DocumentHandler serves document registration and chunk ingestion.
// Text extraction happens client-side; this API receives extracted
// chunks and embeds them on write.
type DocumentHandler struct {
	store  documentStore
	logger log.Logger
}

// NewDocumentHandler wires the document endpoints.
func NewDocumentHandler(store documentStore, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{store: store, logger: logger}
}

type registerDocumentRequest struct {
	Filename    string `json:"filename"`
	Description string `json:"description,omitempty"`
}

// Register handles POST /api/documents.
func (h *DocumentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		WriteError(w, http.StatusBadRequest, "filename must not be empty")
		return
	}

	doc, err := h.store.RegisterDocument(r.Context(), req.Filename, req.Description)
	if err != nil {
		h.logger.Error("register document failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	WriteData(w, http.StatusCreated, "document registered", doc)
}

// List handles GET /api/documents.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.Documents(r.Context())
	if err != nil {
		h.logger.Error("list documents failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if docs == nil {
		docs = []knowledge.PDFDocument{}
	}
	WriteData(w, http.StatusOK, "", docs)
}

type addChunkRequest struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
	Text     string `json:"text"`
}

// AddChunk handles POST /api/documents/{id}/chunks. The chunk is
// embedded synchronously before it is stored.
func (h *DocumentHandler) AddChunk(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req addChunkRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, http.StatusBadRequest, "text must not be empty")
		return
	}

	chunkID, err := h.store.AddChunk(r.Context(), id, req.Document, req.Page, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, knowledge.ErrDocumentNotFound):
			WriteError(w, http.StatusNotFound, "document not found")
		case errors.Is(err, knowledge.ErrEmbedding):
			WriteError(w, http.StatusBadGateway, "embedding service unavailable")
		default:
			h.logger.Error("add chunk failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	WriteData(w, http.StatusCreated, "chunk stored", map[string]int64{"chunk_id": chunkID})
}

type markProcessedRequest struct {
	Status         int    `json:"status"`
	Message        string `json:"message,omitempty"`
	ChunkCount     int    `json:"chunk_count"`
	EmbeddingCount int    `json:"embedding_count"`
}

// MarkProcessed handles PUT /api/documents/{id}/status, recording the
// outcome of an ingestion run.
func (h *DocumentHandler) MarkProcessed(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req markProcessedRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.MarkProcessed(r.Context(), id, req.Status, req.Message, req.ChunkCount, req.EmbeddingCount); err != nil {
		if errors.Is(err, knowledge.ErrDocumentNotFound) {
			WriteError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("mark processed failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	WriteData(w, http.StatusOK, "status updated", nil)
}
