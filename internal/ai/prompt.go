package ai

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/docmind/internal/engine"
)

const (
	// maxInputTokens caps the document text sent for summaries, tags and
	// embeddings.
	maxInputTokens = 6000

	defaultMaxContextTokens = 4000
)

const summarySystemPrompt = `You summarize documents for a collaborative editor.
Write a concise, neutral summary of the document in at most five sentences.
Reply with the summary only: no preamble, no headings, no markdown.`

const tagsSystemPrompt = `You label documents with topic tags for search.
Produce between 5 and 7 short tags (one to three words each) describing the document.
Reply with the tags only, one per line or comma separated.`

const answerSystemPrompt = `You answer questions about the user's documents.
Use only the provided context. If the context does not contain the answer, say so briefly.`

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// truncate cuts text to roughly maxTokens tokens on a rune boundary.
func truncate(text string, maxTokens int) string {
	limit := maxTokens * 4
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}

// BuildSummaryPrompt constructs the chat messages for summarizing text.
func BuildSummaryPrompt(text string) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: truncate(text, maxInputTokens)},
	}
}

// BuildTagsPrompt constructs the chat messages for tagging text.
func BuildTagsPrompt(text string) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: tagsSystemPrompt},
		{Role: "user", Content: truncate(text, maxInputTokens)},
	}
}

// Passage is one retrieved document offered to the answer prompt.
type Passage struct {
	Title string
	Text  string
	Score float64
}

// BuildAnswerPrompt assembles the Q&A messages. Passages are added best
// score first until maxContextTokens is spent; passages that do not fit are
// skipped.
func BuildAnswerPrompt(question string, passages []Passage, maxContextTokens int) []engine.Message {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}

	sorted := make([]Passage, len(passages))
	copy(sorted, passages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	var sb strings.Builder
	remaining := maxContextTokens
	for _, p := range sorted {
		entry := formatPassage(p)
		tokens := EstimateTokens(entry)
		if tokens > remaining {
			continue
		}
		sb.WriteString(entry)
		remaining -= tokens
	}

	user := fmt.Sprintf("Answer this question using the following context:\n\n%s\nQuestion: %s", sb.String(), question)
	return []engine.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: user},
	}
}

func formatPassage(p Passage) string {
	if p.Title == "" {
		return p.Text + "\n\n"
	}
	return fmt.Sprintf("[%s]\n%s\n\n", p.Title, p.Text)
}
