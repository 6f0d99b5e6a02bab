// Package fetch routes remote loads through the tiered cache and makes sure
// only the latest request of a coordinator commits its result.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finboard/internal/cache"
	"finboard/internal/log"
)

// ErrSuperseded is returned to a call whose result was discarded because a
// newer call on the same coordinator started. It is an outcome, not a failure.
var ErrSuperseded = errors.New("fetch: superseded by a newer request")

// IsSuperseded reports whether err means the call was superseded.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}

// Producer performs the remote fetch. It should honour ctx cancellation.
type Producer[T any] func(ctx context.Context) (T, error)

// Coordinator serializes loads of one logical entity. Each Load supersedes
// the previous one: the earlier call's context is cancelled and its result is
// never written to the cache.
type Coordinator[T any] struct {
	mu         sync.Mutex
	cache      *cache.TieredCache
	ttl        time.Duration
	logger     *log.Logger
	generation uint64
	cancel     context.CancelFunc
}

// NewCoordinator creates a coordinator writing results into c with ttl.
func NewCoordinator[T any](c *cache.TieredCache, ttl time.Duration, logger *log.Logger) *Coordinator[T] {
	if logger == nil {
		logger = log.Discard()
	}
	return &Coordinator[T]{
		cache:  c,
		ttl:    ttl,
		logger: logger.WithComponent(log.ComponentFetch),
	}
}

// Load returns the cached value for key or runs producer when the cache
// misses or force is set.
func (c *Coordinator[T]) Load(ctx context.Context, key string, producer Producer[T], force bool) (T, error) {
	var zero T

	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancel != nil {
		c.cancel()
	}
	callCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer c.release(gen, cancel)

	if !force {
		if v, ok := cache.Get[T](c.cache, key); ok {
			return v, nil
		}
	}

	result, err := producer(callCtx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		c.logger.Debug("Discarding superseded result", log.FieldKey, key, log.FieldGeneration, gen)
		return zero, ErrSuperseded
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if callCtx.Err() != nil {
			return zero, ErrSuperseded
		}
		return zero, fmt.Errorf("load %s: %w", key, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}

	c.cache.Set(key, result, c.ttl)
	return result, nil
}

// Refresh bypasses the cache.
func (c *Coordinator[T]) Refresh(ctx context.Context, key string, producer Producer[T]) (T, error) {
	return c.Load(ctx, key, producer, true)
}

// Cancel aborts the in-flight call, if any, which then reports ErrSuperseded.
func (c *Coordinator[T]) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// release frees the context of a finished call unless a newer call owns it.
func (c *Coordinator[T]) release(gen uint64, cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen {
		c.cancel = nil
	}
}
