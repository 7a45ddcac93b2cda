// Package router resolves a lane name against the currently published
// snapshot. It is a pure lookup: no mutable state of its own, no
// caching, no retries. Every call reads the live ServerSnapshot through
// a snapshot.Swap and either hands back a held reference to the named
// lane or reports that the lane is not loaded.
package router

import (
	"fmt"

	"ethpir/pirerr"
	"ethpir/shard"
	"ethpir/snapshot"
)

// ErrLaneNotLoaded is returned (wrapped with the lane name) when the
// requested lane is absent from the current snapshot, whether because it
// was never configured or because a reload dropped it. Callers match
// against this with errors.Is; the caller decides whether that is
// transient (retry later) or permanent (misconfigured lane name).
var ErrLaneNotLoaded = pirerr.LaneNotLoaded

// Router dispatches (lane name, query) pairs to the lane snapshot that
// should answer them. It owns nothing beyond the Swap it was built with;
// building a new Router for a different Swap is just as valid as reusing
// one, since Route carries no state across calls.
type Router struct {
	swap *snapshot.Swap
}

// New builds a Router reading lanes from swap.
func New(swap *snapshot.Swap) *Router {
	return &Router{swap: swap}
}

// Route acquires a reference to the currently published ServerSnapshot
// and resolves lane within it. On success the caller owns the returned
// snapshot.Ref and MUST call Release once it is done evaluating the
// query, however that evaluation turns out; on ErrLaneNotLoaded the
// reference has already been released and there is nothing for the
// caller to clean up.
//
// Route never blocks on a reload in progress: Acquire is lock-free, so a
// concurrent Publish either has already happened (Route sees the new
// snapshot) or hasn't (Route sees the old one); either is a valid
// outcome under the no-cross-snapshot-mixing guarantee.
func (r *Router) Route(lane string) (*snapshot.Ref, *shard.LaneSnapshot, error) {
	ref := r.swap.Acquire()
	ls, ok := ref.Snapshot().Lanes[lane]
	if !ok {
		ref.Release()
		return nil, nil, fmt.Errorf("%w: %q", ErrLaneNotLoaded, lane)
	}
	return ref, ls, nil
}
