// Package resultstore holds completed invocation outcomes keyed by correlation id.
//
// The store is sharded by a hash of the correlation id so concurrent invocations with different
// ids rarely contend on the same lock. Growth is bounded: each shard keeps at most its share of
// the configured capacity and evicts its oldest entry to make room. An optional TTL expires
// entries that were never collected.
package resultstore

import (
	"container/list"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/morezero/invocation-gateway/pkg/invocation"
)

const (
	logPrefix = "resultstore:store"

	DefaultCapacity = 10000
	DefaultShards   = 32
)

// Options configures a Store. Zero values use the defaults.
type Options struct {
	// Capacity is the maximum number of stored outcomes across all shards.
	Capacity int
	// Shards is the number of lock shards; capped at Capacity.
	Shards int
	// TTL expires entries this long after they were stored. Zero disables expiry.
	TTL time.Duration
	// SweepInterval is how often expired entries are purged. Defaults to TTL/2, at least 1s.
	SweepInterval time.Duration
	// OnEvict is called (outside the shard lock) when an entry is dropped for capacity or TTL.
	OnEvict func(correlationID string, reason EvictReason)
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// EvictReason says why an entry left the store without being read.
type EvictReason string

const (
	EvictCapacity EvictReason = "capacity"
	EvictExpired  EvictReason = "expired"
)

type entry struct {
	id       string
	outcome  *invocation.Outcome
	storedAt time.Time
}

type shard struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // oldest at front
	capacity int
}

// Store is a bounded, concurrency-safe map from correlation id to outcome.
type Store struct {
	shards  []*shard
	ttl     time.Duration
	now     func() time.Time
	onEvict func(string, EvictReason)
	// size tracks len over all shards; updated under the owning shard lock.
	size atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Store. When a TTL is set a background sweeper runs until Close.
func New(opts Options) *Store {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	n := opts.Shards
	if n <= 0 {
		n = DefaultShards
	}
	if n > capacity {
		n = capacity
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		shards:  make([]*shard, n),
		ttl:     opts.TTL,
		now:     now,
		onEvict: opts.OnEvict,
		stop:    make(chan struct{}),
	}

	// Spread capacity so the shard capacities sum to exactly capacity.
	base, extra := capacity/n, capacity%n
	for i := range s.shards {
		c := base
		if i < extra {
			c++
		}
		s.shards[i] = &shard{items: make(map[string]*list.Element), order: list.New(), capacity: c}
	}

	if s.ttl > 0 {
		interval := opts.SweepInterval
		if interval <= 0 {
			interval = s.ttl / 2
		}
		if interval < time.Second {
			interval = time.Second
		}
		s.wg.Add(1)
		go s.sweepLoop(interval)
	}

	slog.Debug(fmt.Sprintf("%s - created store capacity=%d shards=%d ttl=%s", logPrefix, capacity, n, s.ttl))
	return s
}

func (s *Store) shardFor(id string) *shard {
	return s.shards[xxhash.Sum64String(id)%uint64(len(s.shards))]
}

// Put inserts or overwrites the outcome for id. An overwrite counts as the newest entry.
func (s *Store) Put(id string, outcome *invocation.Outcome) {
	sh := s.shardFor(id)
	var evicted []string

	sh.mu.Lock()
	if el, ok := sh.items[id]; ok {
		e := el.Value.(*entry)
		e.outcome = outcome
		e.storedAt = s.now()
		sh.order.MoveToBack(el)
	} else {
		for sh.order.Len() >= sh.capacity {
			oldest := sh.order.Front()
			old := sh.order.Remove(oldest).(*entry)
			delete(sh.items, old.id)
			evicted = append(evicted, old.id)
		}
		sh.items[id] = sh.order.PushBack(&entry{id: id, outcome: outcome, storedAt: s.now()})
		s.size.Add(int64(1 - len(evicted)))
	}
	sh.mu.Unlock()

	for _, old := range evicted {
		slog.Debug(fmt.Sprintf("%s - evicted correlation_id=%s to stay within capacity", logPrefix, old))
		s.notifyEvict(old, EvictCapacity)
	}
}

// Get returns the outcome for id. With clear set, a found entry is removed in the same critical
// section. found is false when nothing is stored (never stored, already cleared, evicted or expired).
func (s *Store) Get(id string, clear bool) (outcome *invocation.Outcome, found bool) {
	sh := s.shardFor(id)
	expired := false

	sh.mu.Lock()
	el, ok := sh.items[id]
	if ok {
		e := el.Value.(*entry)
		if s.isExpired(e) {
			sh.order.Remove(el)
			delete(sh.items, id)
			s.size.Add(-1)
			expired = true
		} else {
			outcome, found = e.outcome, true
			if clear {
				sh.order.Remove(el)
				delete(sh.items, id)
				s.size.Add(-1)
			}
		}
	}
	sh.mu.Unlock()

	if expired {
		s.notifyEvict(id, EvictExpired)
	}
	return outcome, found
}

// Delete removes id and reports whether it was present.
func (s *Store) Delete(id string) bool {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	el, ok := sh.items[id]
	if !ok {
		return false
	}
	sh.order.Remove(el)
	delete(sh.items, id)
	s.size.Add(-1)
	return true
}

// Len returns the number of stored entries, expired ones not yet swept included. It takes no
// shard lock.
func (s *Store) Len() int {
	return int(s.size.Load())
}

// Capacity returns the configured upper bound on stored entries.
func (s *Store) Capacity() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.capacity
	}
	return n
}

// Sweep removes expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	var expired []string
	for _, sh := range s.shards {
		sh.mu.Lock()
		// Entries are ordered by store time, so stop at the first live one.
		for el := sh.order.Front(); el != nil; {
			e := el.Value.(*entry)
			if !s.isExpired(e) {
				break
			}
			next := el.Next()
			sh.order.Remove(el)
			delete(sh.items, e.id)
			s.size.Add(-1)
			expired = append(expired, e.id)
			el = next
		}
		sh.mu.Unlock()
	}
	for _, id := range expired {
		s.notifyEvict(id, EvictExpired)
	}
	if len(expired) > 0 {
		slog.Debug(fmt.Sprintf("%s - swept %d expired results", logPrefix, len(expired)))
	}
	return len(expired)
}

// Close stops the sweeper. The stored entries stay readable.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Store) sweepLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) isExpired(e *entry) bool {
	return s.ttl > 0 && s.now().Sub(e.storedAt) >= s.ttl
}

func (s *Store) notifyEvict(id string, reason EvictReason) {
	if s.onEvict != nil {
		s.onEvict(id, reason)
	}
}
