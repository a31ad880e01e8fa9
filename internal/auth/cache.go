package auth

import (
	"sync"
	"time"

	"github.com/kalambet/docmind/internal/storage"
)

// UserStore loads users by id. Implemented by storage.Store.
type UserStore interface {
	GetUser(id string) (storage.User, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cachedUser struct {
	user     storage.User
	loadedAt time.Time
}

// UserCache resolves user ids with a short-lived cache so every
// authenticated request does not hit the database.
type UserCache struct {
	store UserStore
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	users map[string]cachedUser
}

// NewUserCache creates a UserCache with a 30-second TTL.
func NewUserCache(store UserStore) *UserCache {
	return NewUserCacheWithClock(store, realClock{}, 30*time.Second)
}

// NewUserCacheWithClock creates a UserCache with a custom clock (for testing).
func NewUserCacheWithClock(store UserStore, clock Clock, ttl time.Duration) *UserCache {
	return &UserCache{
		store: store,
		clock: clock,
		ttl:   ttl,
		users: make(map[string]cachedUser),
	}
}

// Get returns the user with id, from cache when fresh.
func (c *UserCache) Get(id string) (storage.User, error) {
	now := c.clock.Now()

	c.mu.RLock()
	e, ok := c.users[id]
	c.mu.RUnlock()
	if ok && now.Before(e.loadedAt.Add(c.ttl)) {
		return e.user, nil
	}

	u, err := c.store.GetUser(id)
	if err != nil {
		return storage.User{}, err
	}

	c.mu.Lock()
	c.users[id] = cachedUser{user: u, loadedAt: now}
	c.mu.Unlock()
	return u, nil
}

// Invalidate drops id from the cache.
func (c *UserCache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.users, id)
	c.mu.Unlock()
}
