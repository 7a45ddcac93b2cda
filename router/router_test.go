package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ethpir/shard"
	"ethpir/snapshot"
)

func testSnapshot(lanes ...string) *snapshot.ServerSnapshot {
	m := make(map[string]*shard.LaneSnapshot, len(lanes))
	for _, name := range lanes {
		m[name] = &shard.LaneSnapshot{Name: name, EntryCount: 4}
	}
	return &snapshot.ServerSnapshot{Lanes: m, GlobalBlockNumber: 1}
}

func TestRouteReturnsLoadedLane(t *testing.T) {
	sw := snapshot.New(testSnapshot("hot", "cold"))
	r := New(sw)

	ref, lane, err := r.Route("hot")
	require.NoError(t, err)
	require.NotNil(t, ref)
	defer ref.Release()
	require.Equal(t, "hot", lane.Name)
}

func TestRouteReportsLaneNotLoaded(t *testing.T) {
	sw := snapshot.New(testSnapshot("hot"))
	r := New(sw)

	ref, lane, err := r.Route("cold")
	require.Nil(t, ref)
	require.Nil(t, lane)
	require.True(t, errors.Is(err, ErrLaneNotLoaded))
}

func TestRouteObservesLatestPublishedSnapshot(t *testing.T) {
	sw := snapshot.New(testSnapshot("hot"))
	r := New(sw)

	sw.Publish(testSnapshot("hot", "cold"))

	ref, lane, err := r.Route("cold")
	require.NoError(t, err)
	require.Equal(t, "cold", lane.Name)
	ref.Release()
}

func TestRouteHeldReferenceSurvivesLaterReload(t *testing.T) {
	sw := snapshot.New(testSnapshot("hot"))
	r := New(sw)

	ref, lane, err := r.Route("hot")
	require.NoError(t, err)
	require.Equal(t, "hot", lane.Name)

	sw.Publish(testSnapshot("hot", "cold"))

	// ref still points at the snapshot it was acquired from, not whatever
	// is current now.
	require.Same(t, lane, ref.Snapshot().Lanes["hot"])
	ref.Release()
}
