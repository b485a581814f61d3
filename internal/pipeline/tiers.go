package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/askpath/askpath/internal/knowledge"
	"github.com/askpath/askpath/internal/llm"
	"github.com/askpath/askpath/internal/log"
)

// graphTier answers from the decision graph, scoped by the request's
// workflow when one is given.
type graphTier struct {
	matcher GraphMatcher
	logger  log.Logger
}

// NewGraphTier builds the first tier of the cascade.
func NewGraphTier(matcher GraphMatcher, logger log.Logger) Tier {
	return &graphTier{matcher: matcher, logger: logger}
}

func (t *graphTier) Name() string { return "knowledge_graph" }

func (t *graphTier) Attempt(ctx context.Context, req Request) (*Result, error) {
	m, err := t.matcher.Match(ctx, req.Question, req.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("graph match: %w", err)
	}
	if !m.Matched {
		return nil, nil
	}
	return &Result{
		Success:     true,
		Source:      SourceKnowledgeGraph,
		Answers:     m.Answers,
		TargetNodes: m.TargetNodes,
	}, nil
}

// faqTier answers from the FAQ table.
type faqTier struct {
	matcher FAQMatcher
	logger  log.Logger
}

// NewFAQTier builds the second tier of the cascade.
func NewFAQTier(matcher FAQMatcher, logger log.Logger) Tier {
	return &faqTier{matcher: matcher, logger: logger}
}

func (t *faqTier) Name() string { return "faq" }

func (t *faqTier) Attempt(ctx context.Context, req Request) (*Result, error) {
	m, err := t.matcher.Match(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("faq match: %w", err)
	}
	if !m.Matched {
		return nil, nil
	}
	return &Result{
		Success:   true,
		Source:    SourceFAQ,
		Answer:    m.Answer,
		FAQID:     m.FAQID,
		Category:  m.Category,
		MatchType: m.MatchType,
	}, nil
}

const (
	// fallbackChunks and fallbackExcerptLen bound the extractive answer
	// assembled when generation fails.
	fallbackChunks     = 3
	fallbackExcerptLen = 300

	noAnswerMessage = "I could not find relevant information to answer your question. Please try rephrasing it or contact support."
)

// ragTier is the terminal tier: it always produces a Result. When
// generation fails it falls back to an extractive answer from the
// retrieved chunks, and only reports failure when there is nothing to
// extract from either.
type ragTier struct {
	retriever Retriever
	generator Generator
	topK      int
	logger    log.Logger
}

// NewRAGTier builds the third tier of the cascade.
func NewRAGTier(retriever Retriever, generator Generator, topK int, logger log.Logger) Tier {
	if topK <= 0 {
		topK = maxContextChunks
	}
	return &ragTier{retriever: retriever, generator: generator, topK: topK, logger: logger}
}

func (t *ragTier) Name() string { return "rag" }

func (t *ragTier) Attempt(ctx context.Context, req Request) (*Result, error) {
	chunks, err := t.retriever.Search(ctx, req.Question, t.topK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Nothing retrieved means nothing to ground a generation on, so
		// the expensive model call is skipped entirely.
		t.logger.Warn("retrieval failed, skipping generation", "error", err)
		return &Result{
			Success: false,
			Message: noAnswerMessage,
		}, nil
	}

	answer, genErr := t.generator.Generate(ctx, buildPrompt(BuildContext(chunks), req.Question))
	if genErr == nil {
		return &Result{
			Success:         true,
			Source:          SourceRAG,
			Answer:          answer,
			ChunksUsed:      len(chunks),
			SourceDocuments: sourceDocuments(chunks),
		}, nil
	}

	switch {
	case errors.Is(genErr, llm.ErrUpstreamTimeout):
		t.logger.Warn("generation timed out, using extractive fallback")
	default:
		t.logger.Warn("generation failed, using extractive fallback", "error", genErr)
	}

	if len(chunks) == 0 {
		return &Result{
			Success: false,
			Message: noAnswerMessage,
		}, nil
	}
	return &Result{
		Success:         true,
		Source:          SourceRAG,
		Answer:          extractiveAnswer(chunks),
		Fallback:        true,
		ChunksUsed:      len(chunks),
		SourceDocuments: sourceDocuments(chunks),
	}, nil
}

// sourceDocuments lists the distinct documents behind a chunk set, one
// entry per pdf id in first-seen order.
func sourceDocuments(chunks []knowledge.Chunk) []SourceDocument {
	if len(chunks) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(chunks))
	var out []SourceDocument
	for _, c := range chunks {
		if seen[c.PDFID] {
			continue
		}
		seen[c.PDFID] = true
		out = append(out, SourceDocument{Document: c.Document, PDFID: c.PDFID})
	}
	return out
}

// extractiveAnswer stitches short excerpts of the best chunks into a
// readable non-generative answer.
func extractiveAnswer(chunks []knowledge.Chunk) string {
	n := len(chunks)
	if n > fallbackChunks {
		n = fallbackChunks
	}

	var b strings.Builder
	b.WriteString("Based on the available documents:\n")
	for _, c := range chunks[:n] {
		text := strings.TrimSpace(c.Text)
		if r := []rune(text); len(r) > fallbackExcerptLen {
			text = string(r[:fallbackExcerptLen]) + "..."
		}
		fmt.Fprintf(&b, "\n- %s (Source: %s, page %d)\n", text, c.Document, c.Page)
	}
	return b.String()
}
