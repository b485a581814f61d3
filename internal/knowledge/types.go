// Package knowledge stores document chunks with vector embeddings and
// serves similarity search for the retrieval-augmented answer tier.
//
// Embeddings are generated through an injected ai.Embedder and stored in a
// pgvector column; search returns the nearest chunks with cosine similarity
// scores and document provenance. An empty result set means "no relevant
// content", never an error.
package knowledge

import (
	"errors"
	"time"
)

// VectorDimension is the embedding width of the document_chunks schema.
// gemini-embedding-001 truncates to this via OutputDimensionality.
const VectorDimension int32 = 768

const (
	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 30 * time.Second

	// SearchTimeout bounds a vector search query.
	SearchTimeout = 10 * time.Second
)

// Sentinel errors checked with errors.Is().
var (
	// ErrEmbedding indicates the embedder rejected the input or the
	// upstream embedding service is unavailable.
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmptyText indicates blank input that cannot be embedded.
	ErrEmptyText = errors.New("text must not be empty")

	// ErrDocumentNotFound indicates the referenced source document
	// does not exist.
	ErrDocumentNotFound = errors.New("document not found")
)

// Document processing states, mirrored in pdf_documents.is_processed.
const (
	ProcessingPending   = 0
	ProcessingActive    = 1
	ProcessingCompleted = 2
	ProcessingFailed    = -1
)

// Chunk is one retrieval unit: a bounded span of source-document text.
// Score is the cosine similarity against the query; it is zero on chunks
// that did not come from a search.
type Chunk struct {
	ID       int64   `json:"id"`
	PDFID    int64   `json:"pdf_id"`
	Document string  `json:"document"`
	Page     int     `json:"page"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// PDFDocument is a registered source document. Binary content lives
// outside this system; the row records provenance and chunking progress.
type PDFDocument struct {
	ID               int64      `json:"id"`
	Filename         string     `json:"filename"`
	Description      string     `json:"description,omitempty"`
	ChunkCount       int        `json:"chunk_count"`
	EmbeddingCount   int        `json:"embedding_count"`
	IsProcessed      int        `json:"is_processed"`
	ProcessingStatus string     `json:"processing_status,omitempty"`
	UploadedAt       time.Time  `json:"uploaded_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}
