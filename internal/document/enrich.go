package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/docmind/internal/metrics"
	"github.com/kalambet/docmind/internal/storage"
)

// JobType is the job queue type of enrichment tasks.
const JobType = "document_enrich"

// Enrichment kinds.
const (
	KindFull    = "full"
	KindSummary = "summary"
	KindTags    = "tags"
)

// Enricher is the AI provider contract.
type Enricher interface {
	Summarize(ctx context.Context, text string) (string, error)
	Tags(ctx context.Context, text string) ([]string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Task is the payload of an enrichment job. Generation is the document's
// ai_generation when the task was scheduled; results for an older
// generation are discarded.
type Task struct {
	DocumentID string `json:"document_id"`
	Kind       string `json:"kind"`
	Generation int64  `json:"generation"`
}

// RegenerateSummary moves the document back to pending and schedules a
// summary-only enrichment. It returns without waiting for the result.
func (m *Manager) RegenerateSummary(user storage.User, id string) error {
	return m.regenerate(user, id, KindSummary)
}

// RegenerateTags is RegenerateSummary for tags.
func (m *Manager) RegenerateTags(user storage.User, id string) error {
	return m.regenerate(user, id, KindTags)
}

func (m *Manager) regenerate(user storage.User, id, kind string) error {
	doc, err := m.Get(id)
	if err != nil {
		return err
	}
	// Bumping the generation discards any in-flight task, so a document that
	// never received its embedding gets a full pass instead.
	if len(doc.Embedding) == 0 {
		kind = KindFull
	}

	gen, err := m.store.BeginEnrichment(id)
	if err != nil {
		return mapStoreErr(err, "document", id)
	}
	m.logger.Info("regenerating", "doc_id", id, "kind", kind, "generation", gen, "requested_by", user.ID)
	m.publisher.Publish(id, map[string]any{"_id": id, "aiStatus": storage.AIStatusPending})
	m.schedule(id, kind, gen)
	return nil
}

// schedule queues an enrichment task. If the queue rejects it the document
// is marked failed so it does not stay pending forever.
func (m *Manager) schedule(id, kind string, gen int64) {
	err := m.scheduler.Enqueue(JobType, Task{DocumentID: id, Kind: kind, Generation: gen}, 1)
	if err == nil {
		return
	}
	m.logger.Error("scheduling enrichment", "doc_id", id, "kind", kind, "error", err)
	m.fail(id, kind, gen, err)
}

// HandleJob decodes a Task and runs it. It is the worker handler for JobType.
func (m *Manager) HandleJob(ctx context.Context, payload []byte) error {
	var t Task
	if err := json.Unmarshal(payload, &t); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	return m.Enrich(ctx, t)
}

// Enrich runs the AI calls for t and commits the outcome if t is still the
// document's current generation. A full task runs summary, tags and
// embedding concurrently and commits them together or not at all. AI
// failures move the document to failed and are returned after the status
// has been recorded. If ctx is cancelled mid-call nothing is written and
// ctx's error is returned.
func (m *Manager) Enrich(ctx context.Context, t Task) error {
	doc, err := m.store.GetDocument(t.DocumentID)
	if errors.Is(err, storage.ErrNotFound) {
		m.logger.Info("skipping enrichment of deleted document", "doc_id", t.DocumentID)
		metrics.EnrichmentTotal.WithLabelValues(t.Kind, metrics.OutcomeStale).Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading document %s: %w", t.DocumentID, err)
	}
	if doc.AIGeneration != t.Generation {
		m.stale(t)
		return nil
	}

	start := time.Now()
	e, err := m.generate(ctx, t.Kind, doc.Content)
	metrics.EnrichmentDuration.WithLabelValues(t.Kind).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown: the document stays pending and the job is requeued
			// on the next start.
			m.logger.Info("enrichment interrupted", "doc_id", t.DocumentID, "kind", t.Kind, "error", err)
			return fmt.Errorf("enriching document %s: %w", t.DocumentID, ctx.Err())
		}
		if !m.fail(t.DocumentID, t.Kind, t.Generation, err) {
			return nil
		}
		return fmt.Errorf("enriching document %s: %w", t.DocumentID, err)
	}

	ok, err := m.store.CompleteEnrichment(t.DocumentID, t.Generation, e)
	if err != nil {
		return err
	}
	if !ok {
		m.stale(t)
		return nil
	}

	delta := map[string]any{"_id": t.DocumentID, "aiStatus": storage.AIStatusCompleted}
	if e.Summary != nil {
		delta["summary"] = *e.Summary
	}
	if e.Tags != nil {
		delta["tags"] = e.Tags
	}
	m.publisher.Publish(t.DocumentID, delta)
	metrics.EnrichmentTotal.WithLabelValues(t.Kind, metrics.OutcomeSuccess).Inc()
	m.logger.Info("enrichment completed", "doc_id", t.DocumentID, "kind", t.Kind, "duration", time.Since(start))
	return nil
}

func (m *Manager) generate(ctx context.Context, kind, content string) (storage.Enrichment, error) {
	var e storage.Enrichment
	switch kind {
	case KindSummary:
		s, err := m.ai.Summarize(ctx, content)
		if err != nil {
			return e, err
		}
		e.Summary = &s
	case KindTags:
		tags, err := m.ai.Tags(ctx, content)
		if err != nil {
			return e, err
		}
		e.Tags = tags
	case KindFull:
		var (
			summary string
			tags    []string
			vec     []float32
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			summary, err = m.ai.Summarize(gctx, content)
			return err
		})
		g.Go(func() (err error) {
			tags, err = m.ai.Tags(gctx, content)
			return err
		})
		g.Go(func() (err error) {
			vec, err = m.ai.Embed(gctx, content)
			return err
		})
		if err := g.Wait(); err != nil {
			return e, err
		}
		e = storage.Enrichment{Summary: &summary, Tags: tags, Embedding: vec}
	default:
		return e, fmt.Errorf("%w: unknown enrichment kind %q", ErrInvalidInput, kind)
	}
	return e, nil
}

// fail records a failed enrichment and reports whether the write applied.
func (m *Manager) fail(id, kind string, gen int64, cause error) bool {
	ok, err := m.store.FailEnrichment(id, gen)
	if err != nil {
		m.logger.Error("marking enrichment failed", "doc_id", id, "error", err)
		return false
	}
	if !ok {
		m.stale(Task{DocumentID: id, Kind: kind, Generation: gen})
		return false
	}
	m.logger.Warn("enrichment failed", "doc_id", id, "kind", kind, "error", cause)
	metrics.EnrichmentTotal.WithLabelValues(kind, metrics.OutcomeError).Inc()
	m.publisher.Publish(id, map[string]any{
		"_id":      id,
		"aiStatus": storage.AIStatusFailed,
		"error":    "AI processing failed",
	})
	return true
}

func (m *Manager) stale(t Task) {
	m.logger.Info("discarding stale enrichment", "doc_id", t.DocumentID, "kind", t.Kind, "generation", t.Generation)
	metrics.EnrichmentTotal.WithLabelValues(t.Kind, metrics.OutcomeStale).Inc()
}
