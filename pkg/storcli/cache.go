package storcli

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Entry is one cached result.
type Entry struct {
	Key       string
	Command   Command
	Result    Result
	CreatedAt time.Time
}

// ComputeFunc produces the result for a cache miss.
type ComputeFunc func(ctx context.Context) (Result, error)

// Cache stores successful results of read-only commands, keyed by
// Command.Key. Entries never expire; they are dropped by invalidation.
//
// Concurrent reads of one key share a single compute call. Mutating
// commands are serialized per key, never stored, and invalidate the
// entries of the controller they target when they finish.
type Cache struct {
	mu      sync.RWMutex
	enabled bool
	entries map[string]Entry
	gen     uint64

	flights singleflight.Group
	writers *kmutex.Kmutex

	metrics *Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// NewCache returns an empty cache. A disabled cache still collapses
// concurrent identical reads but stores nothing.
func NewCache(enabled bool) *Cache {
	return &Cache{
		enabled: enabled,
		entries: make(map[string]Entry),
		writers: kmutex.New(),
		log:     zerolog.Nop(),
		now:     time.Now,
	}
}

func (c *Cache) observe(m *Metrics, log zerolog.Logger) {
	c.metrics = m
	c.log = log
}

// GetOrCompute returns the cached result for cmd or runs compute. The bool
// reports whether the result came from a stored entry. Only OK results
// from read-only commands are stored; errors are never cached.
func (c *Cache) GetOrCompute(ctx context.Context, cmd Command, compute ComputeFunc) (Result, bool, error) {
	key := cmd.Key()
	if cmd.Mutating() {
		return c.mutate(ctx, key, cmd, compute)
	}

	if e, ok := c.lookup(key); ok {
		c.metrics.cacheHit()
		c.log.Debug().Str("event", "cache.hit").Str("key", key).Msg("served from cache")
		return e.Result.clone(), true, nil
	}
	c.metrics.cacheMiss()

	gen := c.generation()
	// The generation is part of the flight key so a read issued after an
	// invalidation never joins a flight that started before it.
	ch := c.flights.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		res, err := compute(context.WithoutCancel(ctx))
		if err == nil && res.OK {
			c.store(key, gen, cmd, res)
		}
		return res, err
	})
	select {
	case r := <-ch:
		// Joined callers each get their own copy of the shared result.
		res, _ := r.Val.(Result)
		return res.clone(), false, r.Err
	case <-ctx.Done():
		return Result{}, false, ctx.Err()
	}
}

func (c *Cache) mutate(ctx context.Context, key string, cmd Command, compute ComputeFunc) (Result, bool, error) {
	c.writers.Lock(key)
	defer c.writers.Unlock(key)
	res, err := compute(ctx)
	// A failed mutation may still have changed state.
	c.invalidateFor(cmd)
	return res, false, err
}

func (c *Cache) lookup(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.enabled {
		return Entry{}, false
	}
	e, ok := c.entries[key]
	return e, ok
}

func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *Cache) store(key string, gen uint64, cmd Command, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || c.gen != gen {
		return
	}
	c.entries[key] = Entry{Key: key, Command: cmd, Result: res.clone(), CreatedAt: c.now()}
}

// invalidateFor drops what a mutating cmd may have made stale: the entries
// of its controller plus global and /call entries, or everything when the
// command is not scoped to a single controller.
func (c *Cache) invalidateFor(cmd Command) int {
	scope := cmd.Scope()
	if scope == "" || scope == "/call" {
		return c.Invalidate(func(Command) bool { return true })
	}
	return c.InvalidateScope(scope)
}

// InvalidateScope drops the entries of one controller ("/c0") together with
// global and /call entries. An empty scope or "/call" drops everything.
func (c *Cache) InvalidateScope(scope string) int {
	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope != "" && !strings.HasPrefix(scope, "/") {
		scope = "/" + scope
	}
	if scope == "" || scope == "/call" {
		return c.Invalidate(func(Command) bool { return true })
	}
	return c.Invalidate(func(cmd Command) bool {
		s := cmd.Scope()
		return s == scope || s == "" || s == "/call"
	})
}

// Invalidate drops every entry whose command satisfies pred and returns how
// many were dropped. In-flight reads that started before the call do not
// store their results.
func (c *Cache) Invalidate(pred func(Command) bool) int {
	c.mu.Lock()
	c.gen++
	n := 0
	for k, e := range c.entries {
		if pred(e.Command) {
			delete(c.entries, k)
			n++
		}
	}
	c.mu.Unlock()

	c.metrics.invalidated(n)
	c.log.Debug().Str("event", "cache.invalidate").Int("dropped", n).Msg("cache invalidated")
	return n
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.Invalidate(func(Command) bool { return true })
}

// Enabled reports whether results are stored.
func (c *Cache) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles storage. Disabling drops every entry.
func (c *Cache) SetEnabled(on bool) {
	c.mu.Lock()
	was := c.enabled
	c.enabled = on
	c.mu.Unlock()
	if was && !on {
		c.Clear()
	}
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a snapshot of the stored entries ordered by key.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		e.Result = e.Result.clone()
		out = append(out, e)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// clone deep-copies the decoded JSON trees of r so no two callers share a
// mutable map.
func (r Result) clone() Result {
	r.Payload = cloneMap(r.Payload)
	r.Response.Payload = cloneMap(r.Response.Payload)
	if r.Response.Controllers != nil {
		ctrls := make([]ControllerResult, len(r.Response.Controllers))
		for i, cr := range r.Response.Controllers {
			cr.Data = cloneMap(cr.Data)
			if cr.Details != nil {
				details := make([]map[string]any, len(cr.Details))
				for j, d := range cr.Details {
					details[j] = cloneMap(d)
				}
				cr.Details = details
			}
			ctrls[i] = cr
		}
		r.Response.Controllers = ctrls
	}
	return r
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(x))
		for i, e := range x {
			out[i] = cloneMap(e)
		}
		return out
	}
	return v
}
