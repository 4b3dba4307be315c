package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/awmpietro/golang-api-surface-inference/internal/endpoint"
)

// Result is what gets memoized per network log.
type Result struct {
	Table endpoint.Table
	Stats endpoint.Stats
}

type InMemory struct {
	mu    sync.RWMutex
	max   int
	items map[string]Result
	group singleflight.Group
}

func NewInMemory(max int) *InMemory {
	return &InMemory{
		max:   max,
		items: make(map[string]Result, max),
	}
}

// GetOrCompute returns the memoized result for payload, computing it at most
// once across concurrent callers. Errors and panics are not cached.
func (c *InMemory) GetOrCompute(payload string, fn func() (Result, error)) (Result, error) {
	key := hash(payload)

	c.mu.RLock()
	if v, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return cloneResult(v), nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (res any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("endpoint inference panicked: %v", r)
			}
		}()

		c.mu.RLock()
		if v, ok := c.items[key]; ok {
			c.mu.RUnlock()
			return v, nil
		}
		c.mu.RUnlock()

		computed, err := fn()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if len(c.items) < c.max {
			c.items[key] = computed
		}
		c.mu.Unlock()

		return computed, nil
	})
	if err != nil {
		return Result{}, err
	}

	return cloneResult(v.(Result)), nil
}

func (c *InMemory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func cloneResult(r Result) Result {
	return Result{Table: r.Table.Clone(), Stats: r.Stats}
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
