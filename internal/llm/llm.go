// Package llm wraps answer generation behind a bounded, retrying client.
//
// The pipeline must never hang or crash on the model call: every Generate
// is capped by a timeout, transient upstream failures are retried with
// exponential backoff, and all terminal failures map onto the package
// sentinels so the caller can degrade to a non-generative answer.
package llm

import "errors"

// Sentinel errors checked with errors.Is().
var (
	// ErrUpstreamTimeout indicates the model produced no response within
	// the configured deadline.
	ErrUpstreamTimeout = errors.New("llm upstream timeout")

	// ErrUpstream indicates a non-retryable upstream failure (bad status,
	// malformed response, exhausted retries).
	ErrUpstream = errors.New("llm upstream error")

	// ErrEmptyResponse indicates generation succeeded but produced no
	// usable text.
	ErrEmptyResponse = errors.New("llm returned empty response")
)

// SystemPrompt instructs the model to answer strictly from the supplied
// context and keep output in plain markdown.
const SystemPrompt = `You are a helpful AI assistant. Answer questions based on the provided context. Follow these formatting rules:

1. Start with a direct, concise answer (1-2 sentences)
2. Use markdown bullet points for lists and numbered lists for steps
3. Use **bold** for important terms and section headers
4. Never use HTML or tables - convert to bullet points
5. Be specific and cite document sources by name`
