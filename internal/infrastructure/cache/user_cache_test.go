package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/todos/internal/domain/entities"
)

func newCache(t *testing.T, size int) *UserCache {
	t.Helper()
	c, err := NewUserCache(size)
	require.NoError(t, err)
	return c
}

func TestUserCache_PutGet(t *testing.T) {
	c := newCache(t, 10)

	_, ok := c.Get(1)
	assert.False(t, ok)

	c.Put(1, &entities.User{ID: 1, Username: "alice", PasswordHash: "secret", Role: entities.RoleMember})

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Username)
	assert.Empty(t, got.PasswordHash, "hashes are never cached")

	assert.Equal(t, Stats{Hits: 1, Misses: 1, Size: 1}, c.Stats())
}

func TestUserCache_ReturnsCopies(t *testing.T) {
	c := newCache(t, 10)
	c.Put(1, &entities.User{ID: 1, Role: entities.RoleMember})

	got, _ := c.Get(1)
	got.Role = entities.RoleAdmin

	again, _ := c.Get(1)
	assert.Equal(t, entities.RoleMember, again.Role)
}

func TestUserCache_FillDoesNotOverwrite(t *testing.T) {
	c := newCache(t, 10)
	c.Put(1, &entities.User{ID: 1, Role: entities.RoleAdmin})
	c.Fill(1, &entities.User{ID: 1, Role: entities.RoleMember})

	got, _ := c.Get(1)
	assert.Equal(t, entities.RoleAdmin, got.Role)

	c.Fill(2, &entities.User{ID: 2, Role: entities.RoleMember})
	_, ok := c.Get(2)
	assert.True(t, ok)
}

func TestUserCache_Invalidate(t *testing.T) {
	c := newCache(t, 10)
	c.Put(1, &entities.User{ID: 1})
	c.Put(2, &entities.User{ID: 2})

	c.Invalidate(1)
	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.InvalidateAll()
	assert.Zero(t, c.Len())
}

func TestUserCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newCache(t, 2)
	c.Put(1, &entities.User{ID: 1})
	c.Put(2, &entities.User{ID: 2})
	c.Get(1)
	c.Put(3, &entities.User{ID: 3})

	_, ok := c.Get(2)
	assert.False(t, ok)
	_, ok = c.Get(1)
	assert.True(t, ok)
}

func TestUserCache_DefaultSize(t *testing.T) {
	c := newCache(t, 0)
	for i := int64(0); i < 50; i++ {
		c.Put(i, &entities.User{ID: i})
	}
	assert.Equal(t, 50, c.Len())
}

func TestUserCache_ConcurrentAccess(t *testing.T) {
	c := newCache(t, 100)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := int64(0); i < 200; i++ {
				id := i % 20
				c.Put(id, &entities.User{ID: id})
				c.Get(id)
				if i%7 == 0 {
					c.Invalidate(id)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 20)
}
