package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/docmind/internal/storage"
)

func TestIssueVerify(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	raw, err := tokens.Issue(storage.User{ID: "u1", Email: "a@b.c", Role: storage.RoleUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	id, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id != "u1" {
		t.Errorf("subject = %q, want u1", id)
	}
}

func TestVerify_Rejects(t *testing.T) {
	good := NewTokens("secret", time.Hour)
	raw, _ := good.Issue(storage.User{ID: "u1"})

	if _, err := NewTokens("other", time.Hour).Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret err = %v, want ErrInvalidToken", err)
	}

	expired := NewTokens("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _ := expired.Issue(storage.User{ID: "u1"})
	if _, err := good.Verify(old); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired err = %v, want ErrInvalidToken", err)
	}

	if _, err := good.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "abc"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: "fromcookie"}) }, "fromcookie"},
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=q" }, "q"},
		{"bearer wins", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer h")
			r.AddCookie(&http.Cookie{Name: CookieName, Value: "c"})
		}, "h"},
		{"none", func(*http.Request) {}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tt.setup(r)
			if got := TokenFromRequest(r); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserContext(t *testing.T) {
	if _, ok := UserFromContext(context.Background()); ok {
		t.Error("empty context should carry no user")
	}
	ctx := WithUser(context.Background(), storage.User{ID: "u1"})
	if u, ok := UserFromContext(ctx); !ok || u.ID != "u1" {
		t.Errorf("got %+v %v", u, ok)
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type countingStore struct {
	calls atomic.Int32
}

func (s *countingStore) GetUser(id string) (storage.User, error) {
	s.calls.Add(1)
	if id == "missing" {
		return storage.User{}, storage.ErrNotFound
	}
	return storage.User{ID: id}, nil
}

func TestUserCache_TTL(t *testing.T) {
	store := &countingStore{}
	clock := &fakeClock{now: time.Now()}
	c := NewUserCacheWithClock(store, clock, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := c.Get("u1"); err != nil {
			t.Fatal(err)
		}
	}
	if n := store.calls.Load(); n != 1 {
		t.Errorf("store calls = %d, want 1", n)
	}

	clock.now = clock.now.Add(2 * time.Minute)
	c.Get("u1")
	if n := store.calls.Load(); n != 2 {
		t.Errorf("store calls after expiry = %d, want 2", n)
	}

	c.Invalidate("u1")
	c.Get("u1")
	if n := store.calls.Load(); n != 3 {
		t.Errorf("store calls after invalidate = %d, want 3", n)
	}

	if _, err := c.Get("missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
