package snapshot

import (
	"fmt"

	"ethpir/pirerr"
	"ethpir/shard"
)

// BuildServerSnapshot loads every lane in cfgs from disk into a fresh,
// self-contained ServerSnapshot, without touching whatever snapshot is
// currently published on any Swap. Callers publish the result themselves
// once every lane has loaded; on error, any lane that did load is closed
// again and nothing is returned for the caller to publish, so a partial
// reload can never become visible to a reader.
func BuildServerSnapshot(cfgs []shard.LaneConfig, blockNumber uint64) (*ServerSnapshot, error) {
	lanes := make(map[string]*shard.LaneSnapshot, len(cfgs))
	for _, cfg := range cfgs {
		ls, err := shard.NewLaneSnapshot(cfg)
		if err != nil {
			for _, built := range lanes {
				_ = built.Close()
			}
			return nil, fmt.Errorf("%w: lane %s: %v", pirerr.ShardIoError, cfg.Name, err)
		}
		lanes[cfg.Name] = ls
	}
	return &ServerSnapshot{Lanes: lanes, GlobalBlockNumber: blockNumber}, nil
}

// Reloader ties BuildServerSnapshot to a Swap: each rebuild reads the
// latest lane configuration from Lanes, builds a fresh snapshot, and
// publishes it only if the build succeeds. On failure the previously
// published snapshot is left untouched and OnErr (if set) observes the
// failure, matching the rule that a reload failure is never visible to
// clients, only logged.
type Reloader struct {
	Swap  *Swap
	Lanes func() ([]shard.LaneConfig, uint64)
	OnErr func(error)
}

// Rebuild runs one build-then-publish cycle. It is the function normally
// handed to NewDebouncer as the rebuild callback, so that rapid reload
// triggers collapse into a single in-flight Rebuild.
func (r *Reloader) Rebuild() error {
	cfgs, blockNumber := r.Lanes()
	next, err := BuildServerSnapshot(cfgs, blockNumber)
	if err != nil {
		if r.OnErr != nil {
			r.OnErr(err)
		}
		return err
	}
	r.Swap.Publish(next)
	return nil
}
