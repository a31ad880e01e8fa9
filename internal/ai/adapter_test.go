package ai

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/docmind/internal/engine"
)

type mockBackend struct {
	chatFn  func(ctx context.Context, model string, messages []engine.Message) (string, error)
	embedFn func(ctx context.Context, model, text string) ([]float32, error)
	calls   atomic.Int32
}

func (m *mockBackend) Chat(ctx context.Context, model string, messages []engine.Message, _ *engine.ChatOptions) (string, error) {
	m.calls.Add(1)
	return m.chatFn(ctx, model, messages)
}

func (m *mockBackend) Embed(ctx context.Context, model, text string) ([]float32, error) {
	m.calls.Add(1)
	return m.embedFn(ctx, model, text)
}

func TestSummarize(t *testing.T) {
	b := &mockBackend{chatFn: func(_ context.Context, model string, msgs []engine.Message) (string, error) {
		if model != "chat-model" {
			t.Errorf("model = %q, want chat-model", model)
		}
		if msgs[len(msgs)-1].Content != "hello world" {
			t.Errorf("user message = %q, want document text", msgs[len(msgs)-1].Content)
		}
		return "  A greeting.\n", nil
	}}
	a := New(b, Options{ChatModel: "chat-model"})

	got, err := a.Summarize(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "A greeting." {
		t.Errorf("summary = %q, want %q", got, "A greeting.")
	}
}

func TestSummarize_EmptyIsProviderError(t *testing.T) {
	b := &mockBackend{chatFn: func(context.Context, string, []engine.Message) (string, error) { return "   ", nil }}
	_, err := New(b, Options{}).Summarize(context.Background(), "x")
	if !errors.Is(err, ErrProvider) {
		t.Errorf("err = %v, want ErrProvider", err)
	}
}

func TestTags_Normalized(t *testing.T) {
	b := &mockBackend{chatFn: func(context.Context, string, []engine.Message) (string, error) {
		return "Here are the tags:\n1. **Go**\n2. Concurrency\n\n3. #Channels", nil
	}}
	got, err := New(b, Options{}).Tags(context.Background(), "text")
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	want := []string{"Go", "Concurrency", "Channels"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestEmbed_WrapsBackendError(t *testing.T) {
	backendErr := errors.New("connection refused")
	b := &mockBackend{embedFn: func(context.Context, string, string) ([]float32, error) { return nil, backendErr }}

	_, err := New(b, Options{EmbedModel: "e"}).Embed(context.Background(), "x")
	if !errors.Is(err, ErrProvider) {
		t.Errorf("err = %v, want ErrProvider", err)
	}
	if !errors.Is(err, backendErr) {
		t.Errorf("err = %v, want it to wrap the backend error", err)
	}
}

func TestEmbed_Timeout(t *testing.T) {
	b := &mockBackend{embedFn: func(ctx context.Context, _, _ string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	a := New(b, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := a.Embed(context.Background(), "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout not applied")
	}
}

func TestRateLimitHonoursContext(t *testing.T) {
	b := &mockBackend{embedFn: func(context.Context, string, string) ([]float32, error) { return []float32{1}, nil }}
	a := New(b, Options{RequestsPerSecond: 0.001, Burst: 1})

	if _, err := a.Embed(context.Background(), "first"); err != nil {
		t.Fatalf("first Embed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := a.Embed(ctx, "second"); !errors.Is(err, ErrProvider) {
		t.Errorf("err = %v, want ErrProvider from rate limiter", err)
	}
	if n := b.calls.Load(); n != 1 {
		t.Errorf("backend calls = %d, want 1", n)
	}
}

func TestAnswer_UsesContext(t *testing.T) {
	var prompt string
	b := &mockBackend{chatFn: func(_ context.Context, _ string, msgs []engine.Message) (string, error) {
		prompt = msgs[len(msgs)-1].Content
		return "42", nil
	}}
	got, err := New(b, Options{}).Answer(context.Background(), "What is it?", []Passage{{Title: "Doc", Text: "The answer is 42.", Score: 0.9}})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "42" {
		t.Errorf("answer = %q, want 42", got)
	}
	if !strings.Contains(prompt, "The answer is 42.") || !strings.Contains(prompt, "Question: What is it?") {
		t.Errorf("prompt missing context or question: %q", prompt)
	}
}
