package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/docmind/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"document not found: x","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

// useServer points the API commands at ts for the duration of the test.
func useServer(t *testing.T, ts *testServer) {
	t.Helper()
	oldToken, oldServer := tokenFlag, serverFlag
	tokenFlag, serverFlag = "test-token", ts.server.URL
	t.Cleanup(func() { tokenFlag, serverFlag = oldToken, oldServer })
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	return rootCmd.Execute()
}

var ctx = context.Background()

func TestClient_PostCreate(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /document": `{"_id":"doc-123","title":"A","aiStatus":"pending","tags":[]}`,
	})

	resp, err := ts.client().post(ctx, "/document", map[string]any{"title": "A", "content": "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var d docView
	if err := decodeJSON(resp, &d); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if d.ID != "doc-123" || d.AIStatus != "pending" {
		t.Errorf("doc = %+v", d)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != http.MethodPost || r.Path != "/document" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["title"] != "A" || body["content"] != "hello" {
		t.Errorf("body = %v", body)
	}
}

func TestDecodeJSON_ErrorMessage(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := ts.client().get(ctx, "/document/missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = decodeJSON(resp, nil)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "document not found") {
		t.Errorf("error = %v", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := &apiClient{baseURL: "http://127.0.0.1:1", token: "t", httpClient: http.DefaultClient}
	if _, err := c.get(ctx, "/health"); err == nil || !strings.Contains(err.Error(), "docmind serve") {
		t.Errorf("err = %v", err)
	}
}

func TestNewAPIClient_RequiresToken(t *testing.T) {
	old := tokenFlag
	defer func() { tokenFlag = old }()
	tokenFlag = ""
	t.Setenv("DOCMIND_TOKEN", "")

	if _, err := newAPIClient(); err == nil {
		t.Fatal("expected error without a token")
	}

	t.Setenv("DOCMIND_TOKEN", "env-token")
	oldServer := serverFlag
	defer func() { serverFlag = oldServer }()
	serverFlag = "http://example.test/"
	c, err := newAPIClient()
	if err != nil {
		t.Fatalf("newAPIClient: %v", err)
	}
	if c.token != "env-token" || c.baseURL != "http://example.test" {
		t.Errorf("client = %+v", c)
	}
}

func TestSearchCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /search/document": `[{"_id":"d1","title":"Greeting","aiStatus":"completed","tags":["hi"],"similarity":0.9}]`,
	})
	useServer(t, ts)

	if err := execute(t, "search", "hello", "world", "--type", "text"); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	var body map[string]string
	json.Unmarshal([]byte(ts.requests[0].Body), &body)
	if body["query"] != "hello world" || body["type"] != "text" {
		t.Errorf("body = %v", body)
	}
}

func TestDocUpdateCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /document/d1": `{"message":"Document updated","doc":{"_id":"d1"}}`,
	})
	useServer(t, ts)

	if err := execute(t, "doc", "update", "d1", "--title", "New"); err != nil {
		t.Fatalf("update: %v", err)
	}
	var body map[string]any
	json.Unmarshal([]byte(ts.requests[0].Body), &body)
	if body["title"] != "New" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["content"]; ok {
		t.Errorf("content should not be sent when the flag is unset: %v", body)
	}
}

func TestDocSummarizeCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /document/d1/summarize": `{"_id":"d1","aiStatus":"pending"}`,
	})
	useServer(t, ts)

	if err := execute(t, "doc", "summarize", "d1"); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if ts.requests[0].Path != "/document/d1/summarize" {
		t.Errorf("path = %s", ts.requests[0].Path)
	}

	if err := execute(t, "doc", "summarize", "missing"); err == nil {
		t.Error("expected error for unknown document")
	}
}

func TestDocumentFileBody(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.md")
	os.WriteFile(txt, []byte("hello"), 0o644)
	pdf := filepath.Join(dir, "scan.PDF")
	os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644)

	kind, enc, err := documentFileBody(txt)
	if err != nil {
		t.Fatal(err)
	}
	if kind != "text" || enc != base64.StdEncoding.EncodeToString([]byte("hello")) {
		t.Errorf("text file = %s %s", kind, enc)
	}
	if kind, _, _ := documentFileBody(pdf); kind != "pdf" {
		t.Errorf("pdf kind = %s", kind)
	}
	if _, _, err := documentFileBody(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewUser(t *testing.T) {
	u, err := newUser(" Ada ", "ada@example.com", storage.RoleAdmin)
	if err != nil {
		t.Fatalf("newUser: %v", err)
	}
	if u.ID == "" || u.Name != "Ada" || u.Role != storage.RoleAdmin || u.CreatedAt.IsZero() {
		t.Errorf("user = %+v", u)
	}

	tests := []struct {
		name, email, role string
	}{
		{"", "a@example.com", storage.RoleUser},
		{"A", "", storage.RoleUser},
		{"A", "not-an-email", storage.RoleUser},
		{"A", "a@example.com", "root"},
	}
	for _, tt := range tests {
		if _, err := newUser(tt.name, tt.email, tt.role); err == nil {
			t.Errorf("newUser(%q, %q, %q) should fail", tt.name, tt.email, tt.role)
		}
	}
}

func TestFormatDocumentLine(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()
	noColor = true

	sim := 0.5
	line := formatDocumentLine(docView{ID: "d1", Title: "T", AIStatus: "completed", Tags: []string{"a", "b"}, Similarity: &sim})
	if line != "0.500  d1  completed  T  [a, b]" {
		t.Errorf("line = %q", line)
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if result := colorize(colorRed, "x"); strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	noColor = false
	if result := colorize(colorRed, "x"); !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
