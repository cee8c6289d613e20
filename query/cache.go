// Package query is the console's read cache. Entries are addressed by a Key
// whose first component is the entity name; mutations drop whole entities,
// or narrower slices of them, by key prefix.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"orchconsole/logger"
)

// ErrDisabled is returned by Fetch for a query whose required identifier is
// missing. Nothing is requested.
var ErrDisabled = errors.New("query disabled")

// Key is an ordered list of components: entity name first, then every
// filter and pagination parameter.
type Key []string

// NewKey formats each part with fmt and returns the key.
func NewKey(entity string, parts ...any) Key {
	k := make(Key, 0, len(parts)+1)
	k = append(k, entity)
	for _, p := range parts {
		k = append(k, fmt.Sprint(p))
	}
	return k
}

// String encodes the key for storage. Components are path-escaped and joined
// with "/", so a prefix of the encoded form is always a component prefix.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, c := range k {
		parts[i] = url.PathEscape(c)
	}
	return strings.Join(parts, "/")
}

// HasPrefix reports whether p is a component-wise prefix of k.
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

// Backend stores encoded entries. DeletePrefix receives an encoded prefix
// and removes the exact key plus every key below it; "" removes everything.
type Backend interface {
	Get(ctx context.Context, key string) (data []byte, storedAt time.Time, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, storedAt time.Time) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

type Config struct {
	Backend Backend
	// StaleTime is how long an entry is served without refetching. Zero
	// refetches on every read.
	StaleTime  time.Duration
	RetryDelay time.Duration
	Logger     *logger.Logger
	Now        func() time.Time
}

type SubscriberID int

type subscriber struct {
	id     SubscriberID
	prefix Key
	fn     func(Key)
}

// Cache is safe for concurrent use.
type Cache struct {
	backend    Backend
	staleTime  time.Duration
	retryDelay time.Duration
	log        *logger.Logger
	now        func() time.Time
	group      singleflight.Group

	mu          sync.Mutex
	seq         uint64
	invalidated map[string]uint64
	inflight    map[string]flight
	flightID    uint64
	staleMu     sync.RWMutex
	subs        []subscriber
	nextID      SubscriberID
}

func New(c Config) *Cache {
	if c.Backend == nil {
		c.Backend = NewMemoryBackend()
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Cache{
		backend:     c.Backend,
		staleTime:   c.StaleTime,
		retryDelay:  c.RetryDelay,
		log:         c.Logger,
		now:         c.Now,
		invalidated: make(map[string]uint64),
		inflight:    make(map[string]flight),
	}
}

// StaleTime returns the current freshness window.
func (c *Cache) StaleTime() time.Duration {
	c.staleMu.RLock()
	defer c.staleMu.RUnlock()
	return c.staleTime
}

// SetStaleTime changes the freshness window for subsequent reads.
func (c *Cache) SetStaleTime(d time.Duration) {
	c.staleMu.Lock()
	c.staleTime = d
	c.staleMu.Unlock()
}

func (c *Cache) Close() error {
	return c.backend.Close()
}

// Query describes one keyed read.
type Query[T any] struct {
	Key      Key
	Fn       func(ctx context.Context) (T, error)
	Disabled bool
}

// Fetch returns the cached value for q.Key while it is fresh, and otherwise
// runs q.Fn. Concurrent fetches of one key share a single call. A failed call
// is retried once after the cache's retry delay unless it was cancelled. The
// shared call is not cancelled when one waiter gives up.
func Fetch[T any](ctx context.Context, c *Cache, q Query[T]) (T, error) {
	var zero T
	if q.Disabled {
		return zero, ErrDisabled
	}
	k := q.Key.String()

	if stale := c.StaleTime(); stale > 0 {
		data, at, ok, err := c.backend.Get(ctx, k)
		if err != nil {
			c.log.Warnf("query: read %s: %v", k, err)
		} else if ok && c.now().Sub(at) < stale {
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				return v, nil
			}
		}
	}

	ch := c.group.DoChan(k, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		start, id := c.begin(k, q.Key)
		defer c.end(k, id)

		v, err := q.Fn(fctx)
		if err != nil && !isCancelled(err) {
			c.log.Debugf("query: %s failed, retrying in %s: %v", k, c.retryDelay, err)
			if c.retryDelay > 0 {
				time.Sleep(c.retryDelay)
			}
			v, err = q.Fn(fctx)
		}
		if err != nil {
			return nil, err
		}
		c.store(fctx, q.Key, v, start)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("query: %s: cached value has type %T", k, res.Val)
		}
		return v, nil
	}
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type flight struct {
	id  uint64
	key Key
}

func (c *Cache) begin(k string, key Key) (seq, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flightID++
	c.inflight[k] = flight{id: c.flightID, key: key}
	return c.seq, c.flightID
}

func (c *Cache) end(k string, id uint64) {
	c.mu.Lock()
	if f, ok := c.inflight[k]; ok && f.id == id {
		delete(c.inflight, k)
	}
	c.mu.Unlock()
}

// store writes v unless a prefix of key was invalidated after start.
func (c *Cache) store(ctx context.Context, key Key, v any, start uint64) {
	c.mu.Lock()
	for i := 0; i <= len(key); i++ {
		if c.invalidated[key[:i].String()] > start {
			c.mu.Unlock()
			c.log.Debugf("query: dropping late result for %s", key)
			return
		}
	}
	c.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warnf("query: encode %s: %v", key, err)
		return
	}
	if err := c.backend.Set(ctx, key.String(), data, c.now()); err != nil {
		c.log.Warnf("query: write %s: %v", key, err)
	}
}

// Invalidate drops every entry whose key starts with prefix and notifies the
// subscribers whose prefixes overlap it. No prefix drops everything.
func (c *Cache) Invalidate(ctx context.Context, prefix ...string) error {
	p := Key(prefix)
	enc := p.String()

	c.mu.Lock()
	c.seq++
	c.invalidated[enc] = c.seq
	for k, f := range c.inflight {
		// Later reads of this key start a new call instead of joining one
		// that may return pre-invalidation data.
		if f.key.HasPrefix(p) {
			c.group.Forget(k)
		}
	}
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	err := c.backend.DeletePrefix(ctx, enc)
	if err != nil {
		c.log.Warnf("query: invalidate %s: %v", enc, err)
	}

	for _, s := range subs {
		if p.HasPrefix(s.prefix) || s.prefix.HasPrefix(p) {
			s.fn(p)
		}
	}
	return err
}

// Subscribe calls fn with the invalidated prefix whenever an invalidation
// overlaps prefix.
func (c *Cache) Subscribe(prefix Key, fn func(Key)) SubscriberID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.subs = append(c.subs, subscriber{id: c.nextID, prefix: append(Key(nil), prefix...), fn: fn})
	return c.nextID
}

func (c *Cache) Unsubscribe(id SubscriberID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}
