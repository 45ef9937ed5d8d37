// Package memory is an in-process store implementing every repository port.
// Rows read with a ...ForUpdate call are locked until the transaction ends;
// every other read is validated against its version at commit, so a
// transaction that observed stale data fails with a retryable conflict and
// is re-run.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ledgercore/internal/platform/db"
	"github.com/odyssey-erp/ledgercore/internal/shared"
)

type cell struct {
	version uint64
	value   any
}

// Store keeps every record as a versioned cell.
type Store struct {
	mu          sync.RWMutex
	cells       map[string]*cell
	locks       *keyLocks
	retry       db.RetryPolicy
	lockTimeout time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithRetryPolicy bounds conflict retries.
func WithRetryPolicy(p db.RetryPolicy) Option {
	return func(s *Store) { s.retry = p }
}

// WithLockTimeout bounds how long a transaction waits for a row lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		cells:       make(map[string]*cell),
		locks:       newKeyLocks(),
		retry:       db.DefaultRetryPolicy(),
		lockTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) run(ctx context.Context, fn func(context.Context, *memTx) error) error {
	return db.Retry(ctx, s.retry, shared.IsRetryable, func(ctx context.Context) error {
		tx := &memTx{
			s:       s,
			ctx:     ctx,
			reads:   make(map[string]uint64),
			cache:   make(map[string]any),
			writes:  make(map[string]any),
			appends: make(map[string][]uuid.UUID),
			held:    make(map[string]struct{}),
		}
		defer tx.release()
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.commit()
	})
}

type memTx struct {
	s       *Store
	ctx     context.Context
	reads   map[string]uint64
	cache   map[string]any
	writes  map[string]any
	appends map[string][]uuid.UUID
	held    map[string]struct{}
}

func staleRead(key string) error {
	return shared.ErrConflict.Wrap(fmt.Errorf("memory: %s changed during transaction", key))
}

// get returns the value for key as seen by this transaction. A nil value
// marks a deleted record.
func (t *memTx) get(key string) (any, bool) {
	if v, ok := t.writes[key]; ok {
		return v, v != nil
	}
	if v, ok := t.cache[key]; ok {
		return v, v != nil
	}
	t.s.mu.RLock()
	c := t.s.cells[key]
	t.s.mu.RUnlock()
	if c == nil {
		t.reads[key] = 0
		t.cache[key] = nil
		return nil, false
	}
	t.reads[key] = c.version
	t.cache[key] = c.value
	return c.value, c.value != nil
}

// lock takes the row lock for key. A snapshot taken before the lock must
// still be current.
func (t *memTx) lock(key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(t.ctx, t.s.lockTimeout)
	defer cancel()
	if err := t.s.locks.acquire(ctx, key); err != nil {
		if t.ctx.Err() != nil {
			return t.ctx.Err()
		}
		return shared.ErrConflict.Wrap(fmt.Errorf("memory: lock wait timeout on %s", key))
	}
	t.held[key] = struct{}{}
	if seen, ok := t.reads[key]; ok {
		t.s.mu.RLock()
		var current uint64
		if c := t.s.cells[key]; c != nil {
			current = c.version
		}
		t.s.mu.RUnlock()
		if current != seen {
			return staleRead(key)
		}
	}
	return nil
}

func (t *memTx) put(key string, v any) {
	t.writes[key] = v
}

// index returns the ids listed under key including this transaction's appends.
func (t *memTx) index(key string) []uuid.UUID {
	var out []uuid.UUID
	if v, ok := t.get(key); ok {
		out = append(out, v.([]uuid.UUID)...)
	}
	return append(out, t.appends[key]...)
}

// addToIndex appends id at commit without reading the index, so concurrent
// inserts do not conflict with each other.
func (t *memTx) addToIndex(key string, id uuid.UUID) {
	t.appends[key] = append(t.appends[key], id)
}

func (t *memTx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for key, seen := range t.reads {
		var current uint64
		if c := t.s.cells[key]; c != nil {
			current = c.version
		}
		if current != seen {
			return staleRead(key)
		}
	}
	for key, v := range t.writes {
		t.s.bump(key, v)
	}
	for key, ids := range t.appends {
		var list []uuid.UUID
		if c := t.s.cells[key]; c != nil {
			list = append(list, c.value.([]uuid.UUID)...)
		}
		t.s.bump(key, append(list, ids...))
	}
	return nil
}

func (s *Store) bump(key string, v any) {
	c := s.cells[key]
	if c == nil {
		c = &cell{}
		s.cells[key] = c
	}
	c.version++
	c.value = v
}

func (t *memTx) release() {
	for key := range t.held {
		t.s.locks.release(key)
	}
	t.held = nil
}

type keyLocks struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newKeyLocks() *keyLocks {
	return &keyLocks{held: make(map[string]chan struct{})}
}

func (l *keyLocks) acquire(ctx context.Context, key string) error {
	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			l.held[key] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *keyLocks) release(key string) {
	l.mu.Lock()
	ch, ok := l.held[key]
	delete(l.held, key)
	l.mu.Unlock()
	if ok {
		close(ch)
	}
}

func key(kind string, parts ...any) string {
	k := kind
	for _, p := range parts {
		k += "/" + fmt.Sprint(p)
	}
	return k
}
