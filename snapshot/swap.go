// Package snapshot provides an RCU-style atomically swapped reference to
// the current ServerSnapshot. Readers acquire a reference in O(1) without
// a lock; a single writer publishes a new snapshot atomically; the
// previous snapshot is released once its last reader drops its
// reference.
package snapshot

import (
	"fmt"
	"sync"
	"sync/atomic"

	"ethpir/shard"
)

// ServerSnapshot is the full lane set held behind a Swap.
type ServerSnapshot struct {
	Lanes             map[string]*shard.LaneSnapshot
	GlobalBlockNumber uint64
}

func (s *ServerSnapshot) close() error {
	var first error
	for _, lane := range s.Lanes {
		if err := lane.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// holder wraps a ServerSnapshot with a reference count. It starts at 1,
// a bias held by the publication itself; Publish drops that bias once
// the new holder replaces it, so the snapshot is released exactly when
// the last reader (plus the now-retired publish bias) has let go.
type holder struct {
	snap *ServerSnapshot
	refs int64
}

func (h *holder) acquire() { atomic.AddInt64(&h.refs, 1) }

func (h *holder) release() {
	if atomic.AddInt64(&h.refs, -1) == 0 {
		// Best-effort: a failure releasing shard file descriptors is not
		// actionable by the caller that happened to drop the last
		// reference, so the close error is discarded rather than
		// returned from here.
		_ = h.snap.close()
	}
}

// Swap is a single atomically-updatable reference to the current
// ServerSnapshot: one writer at a time, many concurrent readers, and
// lock-free acquisition. This deliberately does not use sync.RWMutex: a
// reader holding an RWMutex read-lock would block a writer's Publish
// indefinitely under a steady stream of readers, and writers must never
// wait on readers here; the atomic-pointer-plus-refcount scheme gives
// writers a wait-free publish regardless of reader load.
type Swap struct {
	current    atomic.Pointer[holder]
	writerLock sync.Mutex
}

// New creates a Swap already published with initial.
func New(initial *ServerSnapshot) *Swap {
	s := &Swap{}
	s.current.Store(&holder{snap: initial, refs: 1})
	return s
}

// Ref is a reader's held reference to one ServerSnapshot. The snapshot
// underneath it is guaranteed alive until Release is called, even across
// any number of intervening Publish calls: a reader that acquires before
// a swap runs entirely against the old snapshot.
type Ref struct {
	h        *holder
	released int32
}

// Snapshot returns the ServerSnapshot this reference holds alive.
func (r *Ref) Snapshot() *ServerSnapshot { return r.h.snap }

// Release drops this reference. Calling Release more than once is safe;
// only the first call has any effect.
func (r *Ref) Release() {
	if atomic.CompareAndSwapInt32(&r.released, 0, 1) {
		r.h.release()
	}
}

// Acquire returns a live reference to the currently published snapshot
// in O(1) with no lock.
func (s *Swap) Acquire() *Ref {
	h := s.current.Load()
	h.acquire()
	return &Ref{h: h}
}

// Publish atomically installs next as the current snapshot and releases
// the previous one's publish bias. Publish itself never blocks on
// readers; it only serialises against concurrent Publish calls, so a
// single writer at a time is enforced by writerLock, not by readers.
func (s *Swap) Publish(next *ServerSnapshot) {
	s.writerLock.Lock()
	defer s.writerLock.Unlock()
	h := &holder{snap: next, refs: 1}
	old := s.current.Swap(h)
	old.release()
}

// Current is a convenience for callers (tests, admin endpoints) that
// just need a read-only peek without holding a reference alive; it MUST
// NOT be used to retain the snapshot across any suspension point.
func (s *Swap) Current() (*ServerSnapshot, error) {
	h := s.current.Load()
	if h == nil {
		return nil, fmt.Errorf("snapshot: swap has no published snapshot")
	}
	return h.snap, nil
}
