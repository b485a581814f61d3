package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/askpath/askpath/internal/knowledge"
)

const (
	// maxContextChars bounds the assembled context so the prompt stays
	// well inside the model's input window.
	maxContextChars = 8000

	// maxContextChunks caps how many chunks feed the prompt.
	maxContextChunks = 5
)

// BuildContext assembles retrieved chunks into the context block of the
// generation prompt. Chunks are ordered by descending relevance, each
// prefixed with a provenance header, and the total is truncated at the
// character budget on a chunk boundary.
func BuildContext(chunks []knowledge.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}

	ordered := make([]knowledge.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})
	if len(ordered) > maxContextChunks {
		ordered = ordered[:maxContextChunks]
	}

	var b strings.Builder
	for i, c := range ordered {
		section := fmt.Sprintf("CHUNK %d: [Source: %s, Page: %d, Relevance Score: %.4f]\n%s\n\n",
			i+1, c.Document, c.Page, c.Score, c.Text)
		if b.Len()+len(section) > maxContextChars {
			// An oversized leading chunk is cut to the budget rather
			// than admitted whole.
			if b.Len() == 0 {
				b.WriteString(section[:maxContextChars])
			}
			break
		}
		b.WriteString(section)
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildPrompt wraps a context block and the user question into the final
// generation prompt.
func buildPrompt(contextBlock, question string) string {
	if contextBlock == "" {
		return fmt.Sprintf("No relevant documents were found.\n\nQuestion: %s\n\nExplain that the answer is not available in the knowledge base.", question)
	}
	return fmt.Sprintf("Context from documents:\n\n%s\n\nQuestion: %s\n\nAnswer the question using only the context above.", contextBlock, question)
}
