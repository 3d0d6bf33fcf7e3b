package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/taskmaster/todos/internal/domain/entities"
)

// DefaultSize is used when the configured size is not positive
const DefaultSize = 10000

// UserCache is an in-process read-through cache of users keyed by id.
// Entries never expire; they are replaced or removed by writes, and the least
// recently used entry is evicted once the cache is full.
type UserCache struct {
	entries *lru.Cache[int64, entities.User]
	hits    atomic.Int64
	misses  atomic.Int64
}

// Stats is a snapshot of cache counters
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// NewUserCache creates a cache holding at most size users
func NewUserCache(size int) (*UserCache, error) {
	if size <= 0 {
		size = DefaultSize
	}

	entries, err := lru.New[int64, entities.User](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create user cache: %w", err)
	}

	return &UserCache{entries: entries}, nil
}

// Get returns the cached snapshot for id
func (c *UserCache) Get(id int64) (*entities.User, bool) {
	user, ok := c.entries.Get(id)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &user, true
}

// Put stores a copy of user under id, without its password hash
func (c *UserCache) Put(id int64, user *entities.User) {
	if user == nil {
		return
	}
	c.entries.Add(id, *user.Sanitized())
}

// Fill stores user only if id is not cached yet. Read-through loads use it so
// a slow read never overwrites a value written after a committed update.
func (c *UserCache) Fill(id int64, user *entities.User) {
	if user == nil {
		return
	}
	c.entries.ContainsOrAdd(id, *user.Sanitized())
}

// Invalidate drops the entry for id
func (c *UserCache) Invalidate(id int64) {
	c.entries.Remove(id)
}

// InvalidateAll drops every entry
func (c *UserCache) InvalidateAll() {
	c.entries.Purge()
}

func (c *UserCache) Len() int {
	return c.entries.Len()
}

func (c *UserCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.entries.Len(),
	}
}
