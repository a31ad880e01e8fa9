package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/docmind/internal/metrics"
	"github.com/kalambet/docmind/internal/storage"
)

// ErrInvalidInput is returned for an empty query or an unknown search mode.
var ErrInvalidInput = errors.New("invalid input")

// Search modes.
const (
	ModeText     = "text"
	ModeSemantic = "semantic"
)

// DocumentSource is the read side of the document store used by search.
type DocumentSource interface {
	SearchDocumentsText(query string) ([]storage.Document, error)
	EmbeddedDocuments() ([]storage.Document, error)
}

// QueryEmbedder embeds free text.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result is a matched document. Similarity is set only for semantic matches.
type Result struct {
	Document   storage.Document
	Similarity *float64
}

// Searcher dispatches between literal and embedding-based search.
type Searcher struct {
	docs     DocumentSource
	embedder QueryEmbedder
	logger   *slog.Logger
}

// NewSearcher creates a Searcher over docs using embedder for queries.
func NewSearcher(docs DocumentSource, embedder QueryEmbedder) *Searcher {
	return &Searcher{docs: docs, embedder: embedder, logger: slog.Default()}
}

// Search runs query in the given mode. Text mode is a case-insensitive
// substring match on title or content in store order. Semantic mode ranks
// completed documents by cosine similarity to the query embedding, best
// first; documents whose embedding is missing or of a different dimension
// are skipped.
func (s *Searcher) Search(ctx context.Context, query, mode string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	var (
		results []Result
		err     error
	)
	switch mode {
	case ModeText:
		results, err = s.text(query)
	case ModeSemantic:
		results, err = s.semantic(ctx, query, 0)
	default:
		return nil, fmt.Errorf("%w: invalid search type %q", ErrInvalidInput, mode)
	}
	metrics.SearchRequests.WithLabelValues(mode, metrics.Outcome(err)).Inc()
	return results, err
}

func (s *Searcher) text(query string) ([]Result, error) {
	docs, err := s.docs.SearchDocumentsText(query)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	results := make([]Result, len(docs))
	for i, d := range docs {
		results[i] = Result{Document: d}
	}
	return results, nil
}

// semantic ranks candidates against the query. limit <= 0 returns every
// comparable candidate.
func (s *Searcher) semantic(ctx context.Context, query string, limit int) ([]Result, error) {
	docs, err := s.docs.EmbeddedDocuments()
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}
	if len(docs) == 0 {
		return []Result{}, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	entries := make([]scored, 0, len(docs))
	for i, d := range docs {
		if len(d.Embedding) == 0 {
			continue
		}
		sim, err := CosineSimilarity(vec, d.Embedding)
		if err != nil {
			s.logger.Warn("skipping document in semantic ranking", "doc_id", d.ID, "error", err)
			continue
		}
		entries = append(entries, scored{idx: i, score: sim})
	}

	ranked := topK(entries, limit)
	results := make([]Result, len(ranked))
	for i, r := range ranked {
		sim := r.score
		results[i] = Result{Document: docs[r.idx], Similarity: &sim}
	}
	return results, nil
}
