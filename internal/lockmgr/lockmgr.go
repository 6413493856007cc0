// Package lockmgr provides per-key reader/writer locking for the row
// engine. Where the teacher (pkg/storage/engine.go) protects an entire
// table with one sync.RWMutex and leaves finer-grained locking to
// per-Table mutexes, this package generalizes that idiom to one latch per
// composite entity key, tracked in a registry the way the teacher's
// TransactionRegistry (pkg/storage/transaction_manager.go) tracks active
// transactions in a mutex-guarded map (spec §4.2 Lock Manager).
package lockmgr

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bobboyms/fiberdb/pkg/fibererrors"
)

// DefaultTimeout is the wait ceiling before a lock acquisition gives up and
// reports a deadlock (spec §4.2 "default timeout of 10s").
const DefaultTimeout = 10 * time.Second

type lockKind int

const (
	readLock lockKind = iota
	writeLock
)

// keyLatch is the per-key state: how many readers hold it, whether a
// writer holds it, and a FIFO queue of waiters so writers are never
// starved by a steady stream of readers.
type keyLatch struct {
	mu        sync.Mutex
	readers   int
	writer    bool
	waiters   *list.List // of *waiter, queued in arrival order
	refCount  int        // active holders + queued waiters referencing this latch
}

type waiter struct {
	kind   lockKind
	ready  chan struct{}
	cancel bool
}

// Manager owns one keyLatch per composite key and the bookkeeping needed
// to acquire single or multiple keys without deadlocking.
type Manager struct {
	mu      sync.Mutex
	latches map[string]*keyLatch
	timeout time.Duration

	activeWriteLocks int64
	activeReadLocks  int64
	queuedWaiters    int64
}

// New returns a Manager using DefaultTimeout.
func New() *Manager {
	return &Manager{
		latches: make(map[string]*keyLatch),
		timeout: DefaultTimeout,
	}
}

// NewWithTimeout returns a Manager using a caller-supplied acquisition
// timeout, useful for tests that want deadlocks to surface quickly.
func NewWithTimeout(timeout time.Duration) *Manager {
	return &Manager{
		latches: make(map[string]*keyLatch),
		timeout: timeout,
	}
}

func (m *Manager) acquireLatch(key string) *keyLatch {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.latches[key]
	if !ok {
		l = &keyLatch{waiters: list.New()}
		m.latches[key] = l
	}
	l.refCount++
	return l
}

func (m *Manager) releaseLatchRef(key string, l *keyLatch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.refCount--
	if l.refCount == 0 {
		delete(m.latches, key)
	}
}

// Stats reports a point-in-time snapshot of lock activity for observability
// (spec §4.2 "expose counts of active write locks, active read locks, and
// queued waiters").
type Stats struct {
	ActiveWriteLocks int64
	ActiveReadLocks  int64
	QueuedWaiters    int64
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		ActiveWriteLocks: m.activeWriteLocks,
		ActiveReadLocks:  m.activeReadLocks,
		QueuedWaiters:    m.queuedWaiters,
	}
}

// Unlock releases the lock previously returned by lock(). Safe to call
// exactly once per successful lock acquisition.
type Unlock func()

func (m *Manager) lock(ctx context.Context, key string, kind lockKind) (Unlock, error) {
	latch := m.acquireLatch(key)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	latch.mu.Lock()

	canAcquire := func() bool {
		if latch.waiters.Len() > 0 {
			return false
		}
		if kind == readLock {
			return !latch.writer
		}
		return !latch.writer && latch.readers == 0
	}

	if canAcquire() {
		m.grant(latch, kind)
		latch.mu.Unlock()
		return m.unlockFunc(key, latch, kind), nil
	}

	w := &waiter{kind: kind, ready: make(chan struct{})}
	elem := latch.waiters.PushBack(w)
	m.addQueuedWaiter(1)
	latch.mu.Unlock()

	select {
	case <-w.ready:
		m.addQueuedWaiter(-1)
		return m.unlockFunc(key, latch, kind), nil
	case <-ctx.Done():
		latch.mu.Lock()
		if !w.cancel {
			w.cancel = true
			latch.waiters.Remove(elem)
			m.addQueuedWaiter(-1)
		}
		latch.mu.Unlock()
		m.releaseLatchRef(key, latch)
		return nil, &fibererrors.DeadlockError{Key: key, Timeout: m.timeout.String(), ReadLock: kind == readLock}
	}
}

func (m *Manager) addQueuedWaiter(delta int64) {
	m.mu.Lock()
	m.queuedWaiters += delta
	m.mu.Unlock()
}

func (m *Manager) grant(latch *keyLatch, kind lockKind) {
	if kind == readLock {
		latch.readers++
		m.mu.Lock()
		m.activeReadLocks++
		m.mu.Unlock()
	} else {
		latch.writer = true
		m.mu.Lock()
		m.activeWriteLocks++
		m.mu.Unlock()
	}
}

func (m *Manager) unlockFunc(key string, latch *keyLatch, kind lockKind) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			latch.mu.Lock()
			if kind == readLock {
				latch.readers--
				m.mu.Lock()
				m.activeReadLocks--
				m.mu.Unlock()
			} else {
				latch.writer = false
				m.mu.Lock()
				m.activeWriteLocks--
				m.mu.Unlock()
			}
			m.wakeWaiters(latch)
			latch.mu.Unlock()
			m.releaseLatchRef(key, latch)
		})
	}
}

// wakeWaiters grants the lock to as many front-of-queue waiters as the
// current state allows: one writer, or a run of readers, never both. Must
// be called with latch.mu held.
func (m *Manager) wakeWaiters(latch *keyLatch) {
	for {
		front := latch.waiters.Front()
		if front == nil {
			return
		}
		w := front.Value.(*waiter)

		if w.kind == writeLock {
			if latch.writer || latch.readers > 0 {
				return
			}
			latch.waiters.Remove(front)
			latch.writer = true
			m.mu.Lock()
			m.activeWriteLocks++
			m.mu.Unlock()
			close(w.ready)
			return
		}

		// Reader at the front: only grant if no writer holds or is ahead of it.
		if latch.writer {
			return
		}
		latch.waiters.Remove(front)
		latch.readers++
		m.mu.Lock()
		m.activeReadLocks++
		m.mu.Unlock()
		close(w.ready)
		// Keep granting subsequent readers, but stop the moment a writer is
		// next in line (FIFO write-waiter fairness, spec §4.2).
		if next := latch.waiters.Front(); next != nil && next.Value.(*waiter).kind == writeLock {
			return
		}
	}
}

// WithReadLock runs fn while holding a read lock on key.
func (m *Manager) WithReadLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := m.lock(ctx, key, readLock)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// WithWriteLock runs fn while holding a write lock on key.
func (m *Manager) WithWriteLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := m.lock(ctx, key, writeLock)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// WithMultipleWriteLocks acquires write locks on every key in keys and runs
// fn while holding all of them. Keys are sorted lexicographically before
// acquisition so that any two callers locking overlapping key sets always
// take their locks in the same order, which rules out circular-wait
// deadlocks between concurrent multi-key operations (spec §4.2 "multi-key
// operations acquire locks in a fixed global order").
func (m *Manager) WithMultipleWriteLocks(ctx context.Context, keys []string, fn func() error) error {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	// De-duplicate: acquiring the same key's write lock twice on one
	// goroutine would deadlock against itself.
	deduped := sorted[:0]
	var last string
	for i, k := range sorted {
		if i == 0 || k != last {
			deduped = append(deduped, k)
			last = k
		}
	}

	var unlocks []Unlock
	defer func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}()

	for _, key := range deduped {
		unlock, err := m.lock(ctx, key, writeLock)
		if err != nil {
			return err
		}
		unlocks = append(unlocks, unlock)
	}

	return fn()
}
