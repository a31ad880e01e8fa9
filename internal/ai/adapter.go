// Package ai turns an inference backend into the three document operations
// the service needs (summary, tags and embedding) plus question answering.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kalambet/docmind/internal/engine"
	"github.com/kalambet/docmind/internal/metrics"
)

// ErrProvider marks every failure that originates in the AI provider.
var ErrProvider = errors.New("ai provider failure")

// Backend is the subset of engine.Engine used by the adapter.
type Backend interface {
	Chat(ctx context.Context, model string, messages []engine.Message, opts *engine.ChatOptions) (string, error)
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Options configures an Adapter.
type Options struct {
	ChatModel  string
	EmbedModel string

	// Timeout bounds each provider call. Zero means no extra deadline.
	Timeout time.Duration

	// RequestsPerSecond and Burst throttle provider calls. A zero rate
	// disables throttling.
	RequestsPerSecond float64
	Burst             int

	// MaxContextTokens bounds the context passed to Answer.
	MaxContextTokens int
}

// Adapter wraps a Backend with prompts, output normalization, rate limiting
// and per-call deadlines.
type Adapter struct {
	backend Backend
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates an Adapter.
func New(b Backend, opts Options) *Adapter {
	var lim *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &Adapter{
		backend: b,
		opts:    opts,
		limiter: lim,
		logger:  slog.Default(),
	}
}

// call waits for a rate slot, applies the timeout and records the outcome.
// Errors are wrapped with ErrProvider.
func (a *Adapter) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			metrics.AIRequests.WithLabelValues(op, metrics.OutcomeError).Inc()
			return fmt.Errorf("%w: %s: waiting for rate limit: %w", ErrProvider, op, err)
		}
	}

	err := fn(ctx)
	metrics.AIRequests.WithLabelValues(op, metrics.Outcome(err)).Inc()
	if err != nil {
		a.logger.Debug("ai call failed", "op", op, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrProvider, op, err)
	}
	return nil
}

// Summarize returns a short summary of text.
func (a *Adapter) Summarize(ctx context.Context, text string) (string, error) {
	var out string
	err := a.call(ctx, "summarize", func(ctx context.Context) error {
		raw, err := a.backend.Chat(ctx, a.opts.ChatModel, BuildSummaryPrompt(text), &engine.ChatOptions{Temperature: 0.3})
		if err != nil {
			return err
		}
		out = strings.TrimSpace(raw)
		if out == "" {
			return errors.New("empty summary")
		}
		return nil
	})
	return out, err
}

// Tags returns 5 to 7 normalized topic tags for text.
func (a *Adapter) Tags(ctx context.Context, text string) ([]string, error) {
	var tags []string
	err := a.call(ctx, "tags", func(ctx context.Context) error {
		raw, err := a.backend.Chat(ctx, a.opts.ChatModel, BuildTagsPrompt(text), &engine.ChatOptions{Temperature: 0.2})
		if err != nil {
			return err
		}
		tags = ParseTags(raw)
		if len(tags) == 0 {
			return fmt.Errorf("no tags in response %q", raw)
		}
		return nil
	})
	return tags, err
}

// Embed returns the embedding vector for text.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := a.call(ctx, "embed", func(ctx context.Context) error {
		v, err := a.backend.Embed(ctx, a.opts.EmbedModel, truncate(text, maxInputTokens))
		if err != nil {
			return err
		}
		if len(v) == 0 {
			return errors.New("empty embedding")
		}
		vec = v
		return nil
	})
	return vec, err
}

// Answer asks the chat model to answer question from passages.
func (a *Adapter) Answer(ctx context.Context, question string, passages []Passage) (string, error) {
	var out string
	err := a.call(ctx, "answer", func(ctx context.Context) error {
		raw, err := a.backend.Chat(ctx, a.opts.ChatModel, BuildAnswerPrompt(question, passages, a.opts.MaxContextTokens), &engine.ChatOptions{Temperature: 0.2})
		if err != nil {
			return err
		}
		out = strings.TrimSpace(raw)
		return nil
	})
	return out, err
}
