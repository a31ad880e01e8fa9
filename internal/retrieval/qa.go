package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/docmind/internal/ai"
	"github.com/kalambet/docmind/internal/metrics"
)

// Answerer produces a natural-language answer from passages.
type Answerer interface {
	Answer(ctx context.Context, question string, passages []ai.Passage) (string, error)
}

// Answer is the outcome of a question: the model's answer and the documents
// it was given.
type Answer struct {
	Question string
	Answer   string
	Context  []Result
}

// QA answers questions from the best matching documents.
type QA struct {
	search   *Searcher
	answerer Answerer
	topK     int
}

// NewQA creates a QA that feeds the topK semantic matches to answerer.
func NewQA(search *Searcher, answerer Answerer, topK int) *QA {
	if topK <= 0 {
		topK = 3
	}
	return &QA{search: search, answerer: answerer, topK: topK}
}

// Ask embeds the question, ranks completed documents, and answers from the
// best matches. With no comparable documents the answer is empty and the
// model is not called.
func (q *QA) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}

	ans, err := q.ask(ctx, question)
	metrics.SearchRequests.WithLabelValues("qa", metrics.Outcome(err)).Inc()
	return ans, err
}

func (q *QA) ask(ctx context.Context, question string) (Answer, error) {
	ranked, err := q.search.semantic(ctx, question, q.topK)
	if err != nil {
		return Answer{}, err
	}
	if len(ranked) == 0 {
		return Answer{Question: question, Context: []Result{}}, nil
	}

	passages := make([]ai.Passage, len(ranked))
	for i, r := range ranked {
		passages[i] = ai.Passage{Title: r.Document.Title, Text: r.Document.Content, Score: *r.Similarity}
	}

	text, err := q.answerer.Answer(ctx, question, passages)
	if err != nil {
		return Answer{}, fmt.Errorf("answering question: %w", err)
	}
	return Answer{Question: question, Answer: text, Context: ranked}, nil
}
