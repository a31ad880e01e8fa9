package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/docmind/internal/ai"
	"github.com/kalambet/docmind/internal/storage"
)

type mockSource struct {
	docs []storage.Document
}

// SearchDocumentsText mirrors the store's case-insensitive substring match.
func (m *mockSource) SearchDocumentsText(query string) ([]storage.Document, error) {
	q := strings.ToLower(query)
	var out []storage.Document
	for _, d := range m.docs {
		if strings.Contains(strings.ToLower(d.Title), q) || strings.Contains(strings.ToLower(d.Content), q) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockSource) EmbeddedDocuments() ([]storage.Document, error) {
	var out []storage.Document
	for _, d := range m.docs {
		if d.AIStatus == storage.AIStatusCompleted && d.Embedding != nil {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(context.Context, string) ([]float32, error) {
	m.calls++
	return m.vec, m.err
}

type mockAnswerer struct {
	passages []ai.Passage
	calls    int
}

func (m *mockAnswerer) Answer(_ context.Context, _ string, passages []ai.Passage) (string, error) {
	m.calls++
	m.passages = passages
	return "an answer", nil
}

func completed(id, title string, emb ...float32) storage.Document {
	return storage.Document{ID: id, Title: title, AIStatus: storage.AIStatusCompleted, Embedding: emb}
}

func TestSearch_TextCaseInsensitive(t *testing.T) {
	src := &mockSource{docs: []storage.Document{
		{ID: "1", Title: "Quarterly Report", Content: "numbers"},
		{ID: "2", Title: "Notes", Content: "see the REPORT later"},
		{ID: "3", Title: "Other", Content: "nothing"},
	}}
	emb := &mockEmbedder{}
	s := NewSearcher(src, emb)

	got, err := s.Search(context.Background(), "report", ModeText)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].Document.ID != "1" || got[1].Document.ID != "2" {
		t.Fatalf("results = %+v, want docs 1 and 2", got)
	}
	for _, r := range got {
		if r.Similarity != nil {
			t.Errorf("text result %s carries a similarity", r.Document.ID)
		}
	}
	if emb.calls != 0 {
		t.Errorf("text search called the embedder %d times", emb.calls)
	}
}

func TestSearch_SemanticRanksAndSkipsMismatched(t *testing.T) {
	src := &mockSource{docs: []storage.Document{
		completed("far", "far", 0, 1),
		completed("near", "near", 1, 0.1),
		completed("odd", "odd", 1, 0, 0),
		{ID: "pending", AIStatus: storage.AIStatusPending, Embedding: []float32{1, 0}},
	}}
	s := NewSearcher(src, &mockEmbedder{vec: []float32{1, 0}})

	got, err := s.Search(context.Background(), "anything", ModeSemantic)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (mismatched and pending excluded): %+v", len(got), got)
	}
	if got[0].Document.ID != "near" || got[1].Document.ID != "far" {
		t.Errorf("order = %s, %s; want near, far", got[0].Document.ID, got[1].Document.ID)
	}
	for _, r := range got {
		if r.Similarity == nil || *r.Similarity < -1 || *r.Similarity > 1 {
			t.Errorf("bad similarity for %s: %v", r.Document.ID, r.Similarity)
		}
	}
	if *got[0].Similarity < *got[1].Similarity {
		t.Error("results not sorted by similarity")
	}
}

func TestSearch_SemanticNoCandidatesSkipsEmbedding(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{1}}
	s := NewSearcher(&mockSource{}, emb)

	got, err := s.Search(context.Background(), "q", ModeSemantic)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d results, want 0", len(got))
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times, want 0", emb.calls)
	}
}

func TestSearch_InvalidInput(t *testing.T) {
	s := NewSearcher(&mockSource{}, &mockEmbedder{})
	if _, err := s.Search(context.Background(), "  ", ModeText); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty query err = %v, want ErrInvalidInput", err)
	}
	if _, err := s.Search(context.Background(), "q", "fuzzy"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad mode err = %v, want ErrInvalidInput", err)
	}
}

func TestSearch_EmbedErrorPropagates(t *testing.T) {
	embErr := errors.New("provider down")
	s := NewSearcher(&mockSource{docs: []storage.Document{completed("a", "a", 1)}}, &mockEmbedder{err: embErr})
	if _, err := s.Search(context.Background(), "q", ModeSemantic); !errors.Is(err, embErr) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
}

func TestAsk_TopKContext(t *testing.T) {
	src := &mockSource{docs: []storage.Document{
		completed("a", "A", 1, 0),
		completed("b", "B", 0.9, 0.1),
		completed("c", "C", 0, 1),
		completed("d", "D", -1, 0),
	}}
	ans := &mockAnswerer{}
	qa := NewQA(NewSearcher(src, &mockEmbedder{vec: []float32{1, 0}}), ans, 2)

	got, err := qa.Ask(context.Background(), "what?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got.Answer != "an answer" || got.Question != "what?" {
		t.Errorf("answer = %+v", got)
	}
	if len(got.Context) != 2 || got.Context[0].Document.ID != "a" || got.Context[1].Document.ID != "b" {
		t.Errorf("context = %+v, want a, b", got.Context)
	}
	if len(ans.passages) != 2 || ans.passages[0].Title != "A" {
		t.Errorf("passages = %+v", ans.passages)
	}
}

func TestAsk_NoDocuments(t *testing.T) {
	ans := &mockAnswerer{}
	emb := &mockEmbedder{vec: []float32{1}}
	got, err := NewQA(NewSearcher(&mockSource{}, emb), ans, 3).Ask(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got.Answer != "" || len(got.Context) != 0 {
		t.Errorf("got %+v, want empty answer and context", got)
	}
	if ans.calls != 0 || emb.calls != 0 {
		t.Errorf("answerer calls = %d, embed calls = %d; want 0", ans.calls, emb.calls)
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	qa := NewQA(NewSearcher(&mockSource{}, &mockEmbedder{}), &mockAnswerer{}, 3)
	if _, err := qa.Ask(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
