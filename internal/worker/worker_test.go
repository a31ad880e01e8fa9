package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/docmind/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// resetRunAfter sets run_after to now so the job is immediately claimable after FailJob backoff.
func resetRunAfter(t *testing.T, store *storage.Store) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := store.DB().Exec(`UPDATE jobs SET run_after = ?`, now); err != nil {
		t.Fatalf("resetRunAfter: %v", err)
	}
}

func jobStatus(t *testing.T, store *storage.Store) (string, int) {
	t.Helper()
	var status string
	var attempts int
	if err := store.DB().QueryRow(`SELECT status, attempts FROM jobs`).Scan(&status, &attempts); err != nil {
		t.Fatalf("query job: %v", err)
	}
	return status, attempts
}

type testPayload struct {
	DocumentID string `json:"document_id"`
}

func TestWorker_ProcessesJob(t *testing.T) {
	store := openTestStore(t)
	w := New(store, Options{})

	var got testPayload
	w.Handle("test_job", func(_ context.Context, payload []byte) error {
		return json.Unmarshal(payload, &got)
	})
	if err := w.Enqueue("test_job", testPayload{DocumentID: "doc-1"}, 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}
	if got.DocumentID != "doc-1" {
		t.Errorf("payload document_id = %q, want doc-1", got.DocumentID)
	}
	if status, _ := jobStatus(t, store); status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}

	didWork, err = w.RunOnce(context.Background())
	if err != nil || didWork {
		t.Errorf("empty queue: didWork=%v err=%v", didWork, err)
	}
}

func TestWorker_SingleAttemptFailsTerminally(t *testing.T) {
	store := openTestStore(t)
	w := New(store, Options{})
	w.Handle("test_job", func(context.Context, []byte) error { return errors.New("boom") })
	if err := w.Enqueue("test_job", testPayload{}, 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	status, attempts := jobStatus(t, store)
	if status != "failed" || attempts != 1 {
		t.Errorf("status=%q attempts=%d, want failed/1", status, attempts)
	}
}

func TestWorker_RetryOnFailure(t *testing.T) {
	store := openTestStore(t)
	w := New(store, Options{})

	var calls atomic.Int32
	w.Handle("test_job", func(context.Context, []byte) error {
		if n := calls.Add(1); n <= 2 {
			return fmt.Errorf("transient error %d", n)
		}
		return nil
	})
	if err := w.Enqueue("test_job", testPayload{}, 3); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		didWork, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce %d error: %v", i, err)
		}
		if !didWork {
			t.Fatalf("RunOnce %d returned false", i)
		}
		if i < 3 {
			status, attempts := jobStatus(t, store)
			if status != "pending" || attempts != i {
				t.Errorf("after fail %d: status=%q attempts=%d", i, status, attempts)
			}
			resetRunAfter(t, store)
		}
	}
	if status, _ := jobStatus(t, store); status != "completed" {
		t.Errorf("final status = %q, want completed", status)
	}
}

func TestWorker_PanicMarksJobFailed(t *testing.T) {
	store := openTestStore(t)
	w := New(store, Options{})
	w.Handle("test_job", func(context.Context, []byte) error { panic("handler bug") })
	if err := w.Enqueue("test_job", testPayload{}, 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if status, _ := jobStatus(t, store); status != "failed" {
		t.Errorf("status = %q, want failed", status)
	}
}

func TestWorker_RunRequeuesAndDrains(t *testing.T) {
	store := openTestStore(t)
	w := New(store, Options{Concurrency: 3, PollInterval: 10 * time.Millisecond})

	const total = 20
	var mu sync.Mutex
	seen := make(map[string]bool)
	w.Handle("test_job", func(_ context.Context, payload []byte) error {
		var p testPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		mu.Lock()
		seen[p.DocumentID] = true
		mu.Unlock()
		return nil
	})

	for i := 0; i < total; i++ {
		if err := w.Enqueue("test_job", testPayload{DocumentID: fmt.Sprintf("doc-%d", i)}, 1); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	// Simulate a job interrupted by a crash.
	claimed, err := store.ClaimNextJob([]string{"test_job"})
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextJob: %v %v", claimed, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		n, err := store.CountJobs("completed")
		if err != nil {
			t.Fatalf("CountJobs: %v", err)
		}
		if n == total {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out with %d/%d jobs completed", n, total)
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != total {
		t.Errorf("handled %d distinct jobs, want %d", len(seen), total)
	}
}

func TestWorker_CancelledJobIsReleased(t *testing.T) {
	store := openTestStore(t)
	w := New(store, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	w.Handle("test_job", func(hctx context.Context, _ []byte) error {
		cancel()
		return hctx.Err()
	})
	if err := w.Enqueue("test_job", testPayload{DocumentID: "doc-1"}, 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	didWork, err := w.RunOnce(ctx)
	if err != nil || !didWork {
		t.Fatalf("RunOnce: didWork=%v err=%v", didWork, err)
	}
	status, attempts := jobStatus(t, store)
	if status != "pending" || attempts != 0 {
		t.Errorf("status = %q attempts = %d, want pending with 0 attempts", status, attempts)
	}

	var ran bool
	w2 := New(store, Options{})
	w2.Handle("test_job", func(context.Context, []byte) error { ran = true; return nil })
	if _, err := w2.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce after restart: %v", err)
	}
	if status, _ := jobStatus(t, store); !ran || status != "completed" {
		t.Errorf("ran = %v status = %q, want the released job to complete", ran, status)
	}
}
