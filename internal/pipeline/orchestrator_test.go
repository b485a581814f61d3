package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/askpath/askpath/internal/faq"
	"github.com/askpath/askpath/internal/graph"
	"github.com/askpath/askpath/internal/knowledge"
	"github.com/askpath/askpath/internal/llm"
	"github.com/askpath/askpath/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeGraph struct {
	result     graph.MatchResult
	err        error
	calls      int
	workflowID *int64
}

func (f *fakeGraph) Match(_ context.Context, _ string, workflowID *int64) (graph.MatchResult, error) {
	f.calls++
	f.workflowID = workflowID
	return f.result, f.err
}

type fakeFAQ struct {
	result faq.MatchResult
	err    error
	calls  int
}

func (f *fakeFAQ) Match(_ context.Context, _ string) (faq.MatchResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeRetriever struct {
	chunks []knowledge.Chunk
	err    error
	calls  int
}

func (f *fakeRetriever) Search(_ context.Context, _ string, _ int) ([]knowledge.Chunk, error) {
	f.calls++
	return f.chunks, f.err
}

type fakeGenerator struct {
	answer string
	err    error
	calls  int
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.answer, f.err
}

func newCascade(g *fakeGraph, f *fakeFAQ, r *fakeRetriever, gen *fakeGenerator) *Orchestrator {
	logger := log.NewNop()
	return NewOrchestrator([]Tier{
		NewGraphTier(g, logger),
		NewFAQTier(f, logger),
		NewRAGTier(r, gen, 5, logger),
	}, logger)
}

func ask(q string) Request {
	return Request{Question: q}
}

func sampleChunks() []knowledge.Chunk {
	return []knowledge.Chunk{
		{PDFID: 1, Document: "guide.pdf", Page: 3, Text: "Click Forgot Password on the login page.", Score: 0.91},
		{PDFID: 1, Document: "guide.pdf", Page: 4, Text: "The reset link expires after one hour.", Score: 0.82},
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	o := newCascade(&fakeGraph{}, &fakeFAQ{}, &fakeRetriever{}, &fakeGenerator{})

	for _, q := range []string{"", "   ", "\t\n"} {
		if _, err := o.Answer(context.Background(), ask(q)); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("Answer(%q) error = %v, want ErrEmptyQuestion", q, err)
		}
	}
}

func TestAnswer_GraphHitStopsCascade(t *testing.T) {
	g := &fakeGraph{result: graph.MatchResult{
		Matched: true,
		Answers: []string{"Open the login page.", "Click Forgot Password."},
		TargetNodes: []graph.TargetNode{
			{ID: 1, Text: "Open the login page."},
			{ID: 2, Text: "Click Forgot Password."},
		},
	}}
	f := &fakeFAQ{}
	r := &fakeRetriever{}
	gen := &fakeGenerator{}

	res, err := newCascade(g, f, r, gen).Answer(context.Background(), ask("forgot password"))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !res.Success || res.Source != SourceKnowledgeGraph {
		t.Errorf("Answer() = success=%v source=%q, want graph success", res.Success, res.Source)
	}
	if len(res.TargetNodes) != 2 {
		t.Errorf("Answer() targets = %d, want 2", len(res.TargetNodes))
	}
	if len(res.Answers) != 2 || res.Answers[0] != "Open the login page." {
		t.Errorf("Answer() answers = %v, want graph answers in edge order", res.Answers)
	}
	if f.calls != 0 || r.calls != 0 || gen.calls != 0 {
		t.Errorf("lower tiers ran after graph hit: faq=%d retriever=%d generator=%d", f.calls, r.calls, gen.calls)
	}
}

func TestAnswer_WorkflowScopeReachesMatcher(t *testing.T) {
	g := &fakeGraph{}
	o := newCascade(g, &fakeFAQ{}, &fakeRetriever{}, &fakeGenerator{answer: "ok"})

	id := int64(42)
	if _, err := o.Answer(context.Background(), Request{Question: "q", WorkflowID: &id}); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if g.workflowID == nil || *g.workflowID != 42 {
		t.Errorf("graph matcher workflow scope = %v, want 42", g.workflowID)
	}
}

func TestAnswer_FAQAfterGraphMiss(t *testing.T) {
	g := &fakeGraph{}
	f := &fakeFAQ{result: faq.MatchResult{
		Matched:   true,
		Answer:    "We are open 9 to 5.",
		FAQID:     7,
		Category:  "general",
		MatchType: faq.MatchPartial,
	}}
	gen := &fakeGenerator{}

	res, err := newCascade(g, f, &fakeRetriever{}, gen).Answer(context.Background(), ask("opening hours?"))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if res.Source != SourceFAQ || res.FAQID != 7 || res.MatchType != faq.MatchPartial {
		t.Errorf("Answer() = %+v, want faq payload", res)
	}
	if g.calls != 1 {
		t.Errorf("graph tier calls = %d, want 1", g.calls)
	}
	if gen.calls != 0 {
		t.Error("generator ran after faq hit")
	}
}

func TestAnswer_RAGGeneration(t *testing.T) {
	r := &fakeRetriever{chunks: sampleChunks()}
	gen := &fakeGenerator{answer: "Use the Forgot Password link; the email expires in an hour."}

	res, err := newCascade(&fakeGraph{}, &fakeFAQ{}, r, gen).Answer(context.Background(), ask("how do I reset?"))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !res.Success || res.Source != SourceRAG || res.Fallback {
		t.Errorf("Answer() = success=%v source=%q fallback=%v, want clean rag answer", res.Success, res.Source, res.Fallback)
	}
	if res.ChunksUsed != 2 {
		t.Errorf("Answer() chunks_used = %d, want 2", res.ChunksUsed)
	}
	if len(res.SourceDocuments) != 1 || res.SourceDocuments[0].PDFID != 1 {
		t.Errorf("Answer() source_documents = %v, want one entry per distinct pdf", res.SourceDocuments)
	}
	if !strings.Contains(gen.prompt, "guide.pdf") {
		t.Errorf("generator prompt missing retrieved context: %q", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "how do I reset?") {
		t.Errorf("generator prompt missing question: %q", gen.prompt)
	}
}

func TestAnswer_SourceDocumentDedup(t *testing.T) {
	r := &fakeRetriever{chunks: []knowledge.Chunk{
		{PDFID: 2, Document: "contract.pdf", Page: 1, Text: "Termination clause part one.", Score: 0.95},
		{PDFID: 2, Document: "contract.pdf", Page: 2, Text: "Termination clause part two.", Score: 0.90},
		{PDFID: 2, Document: "contract.pdf", Page: 9, Text: "Notice periods.", Score: 0.85},
	}}
	gen := &fakeGenerator{answer: "The clause requires 30 days notice."}

	res, err := newCascade(&fakeGraph{}, &fakeFAQ{}, r, gen).Answer(context.Background(), ask("explain the termination clause"))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if res.ChunksUsed != 3 {
		t.Errorf("Answer() chunks_used = %d, want 3", res.ChunksUsed)
	}
	if len(res.SourceDocuments) != 1 || res.SourceDocuments[0].Document != "contract.pdf" {
		t.Errorf("Answer() source_documents = %v, want single contract.pdf entry", res.SourceDocuments)
	}
}

func TestAnswer_FallbackWhenGenerationFails(t *testing.T) {
	r := &fakeRetriever{chunks: sampleChunks()}
	gen := &fakeGenerator{err: llm.ErrUpstreamTimeout}

	res, err := newCascade(&fakeGraph{}, &fakeFAQ{}, r, gen).Answer(context.Background(), ask("how do I reset?"))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !res.Success || !res.Fallback {
		t.Errorf("Answer() = success=%v fallback=%v, want extractive fallback", res.Success, res.Fallback)
	}
	if !strings.Contains(res.Answer, "Based on the available documents:") {
		t.Errorf("Answer() = %q, want extractive framing", res.Answer)
	}
	if !strings.Contains(res.Answer, "guide.pdf") {
		t.Errorf("Answer() = %q, want source citation", res.Answer)
	}
}

func TestAnswer_FailureOnlyWithNothingToSay(t *testing.T) {
	r := &fakeRetriever{}
	gen := &fakeGenerator{err: errors.New("boom")}

	res, err := newCascade(&fakeGraph{}, &fakeFAQ{}, r, gen).Answer(context.Background(), ask("anything?"))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if res.Success {
		t.Error("Answer() succeeded with no chunks and a dead generator")
	}
	if res.Message == "" {
		t.Error("Answer() failure carries no user-facing message")
	}
}

func TestAnswer_TierErrorFallsThrough(t *testing.T) {
	g := &fakeGraph{err: errors.New("graph store down")}
	f := &fakeFAQ{result: faq.MatchResult{Matched: true, Answer: "still works", FAQID: 1, MatchType: faq.MatchExact}}

	res, err := newCascade(g, f, &fakeRetriever{}, &fakeGenerator{}).Answer(context.Background(), ask("opening hours?"))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if res.Source != SourceFAQ {
		t.Errorf("Answer() source = %q, want faq after graph error", res.Source)
	}
}

func TestAnswer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := &fakeGraph{err: ctx.Err()}
	_, err := newCascade(g, &fakeFAQ{}, &fakeRetriever{}, &fakeGenerator{}).Answer(ctx, ask("question"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Answer(cancelled ctx) error = %v, want context.Canceled", err)
	}
}

func TestAnswer_RetrievalErrorSkipsGeneration(t *testing.T) {
	r := &fakeRetriever{err: errors.New("connection refused")}
	gen := &fakeGenerator{answer: "contextless generated answer"}

	res, err := newCascade(&fakeGraph{}, &fakeFAQ{}, r, gen).Answer(context.Background(), ask("question"))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator calls = %d after a dead vector store, want 0", gen.calls)
	}
	if res.Success {
		t.Error("Answer() succeeded with nothing retrieved to ground it")
	}
	if res.Message == "" {
		t.Error("Answer() failure carries no user-facing message")
	}
}

func TestAnswer_EmptyRetrievalStillGenerates(t *testing.T) {
	r := &fakeRetriever{}
	gen := &fakeGenerator{answer: "best effort answer"}

	res, err := newCascade(&fakeGraph{}, &fakeFAQ{}, r, gen).Answer(context.Background(), ask("question"))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !res.Success || res.Answer != "best effort answer" {
		t.Errorf("Answer() = %+v, want generated answer without context", res)
	}
	if !strings.Contains(gen.prompt, "No relevant documents") {
		t.Errorf("generator prompt = %q, want no-documents framing", gen.prompt)
	}
}

func TestExtractiveAnswer_Truncates(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := extractiveAnswer([]knowledge.Chunk{
		{Document: "big.pdf", Page: 1, Text: long, Score: 0.9},
	})
	if !strings.Contains(got, strings.Repeat("a", fallbackExcerptLen)+"...") {
		t.Error("extractiveAnswer() did not truncate long chunk")
	}
	if strings.Contains(got, strings.Repeat("a", fallbackExcerptLen+1)) {
		t.Error("extractiveAnswer() kept more than the excerpt budget")
	}
}

func TestExtractiveAnswer_CapsChunks(t *testing.T) {
	got := extractiveAnswer([]knowledge.Chunk{
		{Document: "a.pdf", Text: "one"},
		{Document: "b.pdf", Text: "two"},
		{Document: "c.pdf", Text: "three"},
		{Document: "d.pdf", Text: "four"},
	})
	if strings.Contains(got, "d.pdf") {
		t.Errorf("extractiveAnswer() used more than %d chunks:\n%s", fallbackChunks, got)
	}
}
