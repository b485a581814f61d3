package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/askpath/askpath/internal/log"
)

// foreignKeyViolation is the PostgreSQL error code for FK breaks.
const foreignKeyViolation = "23503"

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages document chunks backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db       querier
	embedder ai.Embedder
	logger   log.Logger
}

// NewStore creates a chunk Store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: pool, embedder: embedder, logger: logger}, nil
}

// Embed generates a vector embedding for the given text.
// Failures wrap ErrEmbedding so the pipeline can degrade instead of crash.
func (s *Store) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return pgvector.Vector{}, ErrEmptyText
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	dim := VectorDimension
	resp, err := s.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("%w: empty embedding response", ErrEmbedding)
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Search embeds the question and returns the topK nearest chunks by cosine
// similarity, highest score first. An empty slice is a valid result.
func (s *Store) Search(ctx context.Context, question string, topK int) ([]Chunk, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	vec, err := s.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, SearchTimeout)
	defer cancel()

	rows, err := s.db.Query(queryCtx,
		`SELECT id, pdf_id, document, page, chunk_text,
		        1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.PDFID, &c.Document, &c.Page, &c.Text, &c.Score); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}

	s.logger.Debug("vector search completed", "top_k", topK, "found", len(chunks))
	return chunks, nil
}

// AddChunk embeds text and stores it as a retrieval unit for the given
// registered document.
func (s *Store) AddChunk(ctx context.Context, pdfID int64, document string, page int, text string) (int64, error) {
	vec, err := s.Embed(ctx, text)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRow(ctx,
		`INSERT INTO document_chunks (pdf_id, document, page, chunk_text, embedding)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		pdfID, document, page, text, vec,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return 0, fmt.Errorf("document %d: %w", pdfID, ErrDocumentNotFound)
		}
		return 0, fmt.Errorf("inserting chunk: %w", err)
	}

	s.logger.Debug("added chunk", "id", id, "pdf_id", pdfID, "length", len(text))
	return id, nil
}

// RegisterDocument records a source document so its chunks carry provenance.
func (s *Store) RegisterDocument(ctx context.Context, filename, description string) (*PDFDocument, error) {
	var d PDFDocument
	err := s.db.QueryRow(ctx,
		`INSERT INTO pdf_documents (filename, description)
		 VALUES ($1, NULLIF($2, ''))
		 RETURNING id, filename, COALESCE(description, ''), chunk_count,
		           embedding_count, is_processed, COALESCE(processing_status, ''),
		           uploaded_at, processed_at`,
		filename, description,
	).Scan(&d.ID, &d.Filename, &d.Description, &d.ChunkCount,
		&d.EmbeddingCount, &d.IsProcessed, &d.ProcessingStatus,
		&d.UploadedAt, &d.ProcessedAt)
	if err != nil {
		return nil, fmt.Errorf("registering document: %w", err)
	}

	s.logger.Debug("registered document", "id", d.ID, "filename", d.Filename)
	return &d, nil
}

// Documents lists registered documents, newest first.
func (s *Store) Documents(ctx context.Context) ([]PDFDocument, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, filename, COALESCE(description, ''), chunk_count,
		        embedding_count, is_processed, COALESCE(processing_status, ''),
		        uploaded_at, processed_at
		 FROM pdf_documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []PDFDocument
	for rows.Next() {
		var d PDFDocument
		if err := rows.Scan(&d.ID, &d.Filename, &d.Description, &d.ChunkCount,
			&d.EmbeddingCount, &d.IsProcessed, &d.ProcessingStatus,
			&d.UploadedAt, &d.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// MarkProcessed updates a document's processing progress. Completed
// documents also get a processed_at timestamp.
func (s *Store) MarkProcessed(ctx context.Context, pdfID int64, status int, message string, chunkCount, embeddingCount int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE pdf_documents
		 SET is_processed = $2,
		     processing_status = NULLIF($3, ''),
		     chunk_count = GREATEST(chunk_count, $4),
		     embedding_count = GREATEST(embedding_count, $5),
		     processed_at = CASE WHEN $2 = $6 THEN now() ELSE processed_at END
		 WHERE id = $1`,
		pdfID, status, message, chunkCount, embeddingCount, ProcessingCompleted)
	if err != nil {
		return fmt.Errorf("updating document %d: %w", pdfID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", pdfID, ErrDocumentNotFound)
	}
	return nil
}
