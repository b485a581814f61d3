package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/askpath/askpath/internal/knowledge"
	"github.com/askpath/askpath/internal/log"
)

type fakeDocumentStore struct {
	docs    map[int64]*knowledge.PDFDocument
	nextID  int64
	chunkID int64
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[int64]*knowledge.PDFDocument), nextID: 1}
}

func (f *fakeDocumentStore) RegisterDocument(_ context.Context, filename, description string) (*knowledge.PDFDocument, error) {
	d := &knowledge.PDFDocument{ID: f.nextID, Filename: filename, Description: description}
	f.docs[d.ID] = d
	f.nextID++
	return d, nil
}

func (f *fakeDocumentStore) Documents(_ context.Context) ([]knowledge.PDFDocument, error) {
	var out []knowledge.PDFDocument
	for _, d := range f.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeDocumentStore) AddChunk(_ context.Context, pdfID int64, _ string, _ int, _ string) (int64, error) {
	if _, ok := f.docs[pdfID]; !ok {
		return 0, knowledge.ErrDocumentNotFound
	}
	f.chunkID++
	return f.chunkID, nil
}

func (f *fakeDocumentStore) MarkProcessed(_ context.Context, pdfID int64, status int, _ string, _, _ int) error {
	d, ok := f.docs[pdfID]
	if !ok {
		return knowledge.ErrDocumentNotFound
	}
	d.IsProcessed = status
	return nil
}

func documentRouter(h *DocumentHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents", h.Register)
	mux.HandleFunc("GET /api/documents", h.List)
	mux.HandleFunc("POST /api/documents/{id}/chunks", h.AddChunk)
	mux.HandleFunc("PUT /api/documents/{id}/status", h.MarkProcessed)
	return mux
}

func TestDocumentHandler_Ingestion(t *testing.T) {
	store := newFakeDocumentStore()
	mux := documentRouter(NewDocumentHandler(store, log.NewNop()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents",
		strings.NewReader(`{"filename":"handbook.pdf","description":"employee handbook"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201; body %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents/1/chunks",
		strings.NewReader(`{"document":"handbook.pdf","page":3,"text":"Vacation accrues monthly."}`)))
	if rec.Code != http.StatusCreated {
		t.Errorf("add chunk status = %d, want 201; body %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/documents/1/status",
		strings.NewReader(`{"status":2,"chunk_count":1,"embedding_count":1}`)))
	if rec.Code != http.StatusOK {
		t.Errorf("mark processed status = %d, want 200; body %s", rec.Code, rec.Body)
	}
	if store.docs[1].IsProcessed != knowledge.ProcessingCompleted {
		t.Errorf("document status = %d, want completed", store.docs[1].IsProcessed)
	}
}

func TestDocumentHandler_Validation(t *testing.T) {
	mux := documentRouter(NewDocumentHandler(newFakeDocumentStore(), log.NewNop()))

	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"blank filename", http.MethodPost, "/api/documents", `{"filename":" "}`, http.StatusBadRequest},
		{"blank chunk text", http.MethodPost, "/api/documents/1/chunks", `{"text":""}`, http.StatusBadRequest},
		{"unknown document chunk", http.MethodPost, "/api/documents/99/chunks", `{"text":"hi"}`, http.StatusNotFound},
		{"bad id", http.MethodPost, "/api/documents/abc/chunks", `{"text":"hi"}`, http.StatusBadRequest},
		{"unknown document status", http.MethodPut, "/api/documents/99/status", `{"status":2}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))
			if rec.Code != tc.want {
				t.Errorf("%s %s status = %d, want %d", tc.method, tc.path, rec.Code, tc.want)
			}
		})
	}
}
