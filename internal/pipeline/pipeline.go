// Package pipeline implements the three-tier answer cascade.
//
// A question is tried against the knowledge graph first, then the FAQ
// table, and finally retrieval-augmented generation. Each tier is a
// strategy object behind the Tier interface; a tier that cannot answer
// reports a miss and the orchestrator moves on. The RAG tier never
// surfaces a hard failure to the caller: when generation breaks down it
// degrades to an extractive answer built from the retrieved chunks.
package pipeline

import (
	"context"
	"errors"

	"github.com/askpath/askpath/internal/faq"
	"github.com/askpath/askpath/internal/graph"
	"github.com/askpath/askpath/internal/knowledge"
)

// ErrEmptyQuestion rejects blank input before any tier runs.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Answer sources, persisted alongside resolved messages.
const (
	SourceKnowledgeGraph = "knowledge_graph"
	SourceFAQ            = "faq"
	SourceRAG            = "rag"
	SourceUnknown        = "unknown"
)

// Request is one question submitted to the cascade. WorkflowID
// optionally scopes the graph tier; nil searches every workflow.
type Request struct {
	Question   string
	WorkflowID *int64
}

// SourceDocument identifies one distinct document that contributed
// chunks to a generated answer.
type SourceDocument struct {
	Document string `json:"document"`
	PDFID    int64  `json:"pdf_id"`
}

// Result is the outcome of one pass through the cascade. The populated
// fields depend on Source; Message is set only when Success is false.
type Result struct {
	Success  bool   `json:"success"`
	Source   string `json:"source,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Message  string `json:"message,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`

	// Tier 1 payload.
	Answers     []string           `json:"answers,omitempty"`
	TargetNodes []graph.TargetNode `json:"target_nodes,omitempty"`

	// Tier 2 payload.
	FAQID     int64  `json:"faq_id,omitempty"`
	Category  string `json:"category,omitempty"`
	MatchType string `json:"match_type,omitempty"`

	// Tier 3 payload.
	ChunksUsed      int              `json:"chunks_used,omitempty"`
	SourceDocuments []SourceDocument `json:"source_documents,omitempty"`
}

// GraphMatcher answers from the decision graph.
type GraphMatcher interface {
	Match(ctx context.Context, question string, workflowID *int64) (graph.MatchResult, error)
}

// FAQMatcher answers from the FAQ table.
type FAQMatcher interface {
	Match(ctx context.Context, question string) (faq.MatchResult, error)
}

// Retriever finds document chunks relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.Chunk, error)
}

// Generator produces a model answer for a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Tier is one stage of the cascade. Attempt returns (nil, nil) on a
// miss; any non-nil Result ends the cascade.
type Tier interface {
	Name() string
	Attempt(ctx context.Context, req Request) (*Result, error)
}
