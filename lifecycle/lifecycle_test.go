package lifecycle

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ethpir/pirerr"
	"ethpir/pirparams"
	"ethpir/protocol"
	"ethpir/ringmath"
	"ethpir/rlwescheme"
	"ethpir/router"
	"ethpir/shard"
	"ethpir/snapshot"
)

// buildTestLane writes a tiny real shard+CRS to disk and loads it back
// through shard.NewLaneSnapshot, then attaches box as the lane's
// evaluation box. Using one box for both query generation and server
// evaluation mirrors how the rest of this package's tests exercise the
// scheme without a second secret-key-holding party.
func buildTestLane(t *testing.T, name string, recordVals [][]uint64) (*shard.LaneSnapshot, *rlwescheme.Box) {
	t.Helper()
	box, err := rlwescheme.NewBox(pirparams.Reference)
	require.NoError(t, err)

	dir := t.TempDir()
	records := make([]*ringmath.Element, len(recordVals))
	for i, vals := range recordVals {
		m, err := protocol.EncodeCoeffs(box.Engine, vals)
		require.NoError(t, err)
		records[i] = m
	}
	shardPath := filepath.Join(dir, "shard-0.bin")
	require.NoError(t, shard.Write(shardPath, pirparams.Reference.Version, box.Engine.D(), records))

	crs := shard.CrsMetadata{PirParamsVersion: pirparams.Reference.Version, Lane: name}
	raw, err := json.Marshal(crs)
	require.NoError(t, err)
	crsPath := filepath.Join(dir, name+".crs.json")
	require.NoError(t, os.WriteFile(crsPath, raw, 0o644))

	lane, err := shard.NewLaneSnapshot(shard.LaneConfig{
		Name:        name,
		ShardPaths:  []string{shardPath},
		CrsPath:     crsPath,
		EntryWidth:  32,
		Params:      pirparams.Reference,
		RecordWidth: 1,
	})
	require.NoError(t, err)
	lane.EvalBox = box
	return lane, box
}

func testRouter(lane *shard.LaneSnapshot) *router.Router {
	sw := snapshot.New(&snapshot.ServerSnapshot{
		Lanes: map[string]*shard.LaneSnapshot{lane.Name: lane},
	})
	return router.New(sw)
}

func TestHandleBaselineOnePackingRoundTrip(t *testing.T) {
	lane, box := buildTestLane(t, "hot", [][]uint64{{10}, {20}, {30}, {40}})
	rtr := testRouter(lane)

	grid, err := protocol.NewGrid(lane.EntryCount, lane.RecordWidth)
	require.NoError(t, err)
	target := 2

	env, state, err := protocol.QueryGen(box, grid, target, protocol.Baseline, protocol.OnePacking)
	require.NoError(t, err)

	resp, err := Handle(rtr, Request{Lane: "hot", Seeded: false, Query: *env})
	require.NoError(t, err)

	got, err := protocol.Extract(pirparams.Reference, state, resp)
	require.NoError(t, err)
	require.Equal(t, uint64(30), got[0])
}

func TestHandleSwitchedInspiRINGRoundTrip(t *testing.T) {
	lane, box := buildTestLane(t, "hot", [][]uint64{{11}, {22}, {33}, {44}})
	rtr := testRouter(lane)

	grid, err := protocol.NewGrid(lane.EntryCount, lane.RecordWidth)
	require.NoError(t, err)
	target := 1

	env, state, err := protocol.QueryGen(box, grid, target, protocol.Switched, protocol.InspiRING)
	require.NoError(t, err)

	resp, err := Handle(rtr, Request{Lane: "hot", Seeded: false, Query: *env})
	require.NoError(t, err)

	got, err := protocol.Extract(pirparams.Reference, state, resp)
	require.NoError(t, err)
	require.Equal(t, uint64(22), got[0])
}

func TestHandleSeededRoundTrip(t *testing.T) {
	lane, box := buildTestLane(t, "hot", [][]uint64{{1}, {2}, {3}, {4}})
	rtr := testRouter(lane)

	grid, err := protocol.NewGrid(lane.EntryCount, lane.RecordWidth)
	require.NoError(t, err)

	env, state, err := protocol.QueryGen(box, grid, 3, protocol.Seeded, protocol.OnePacking)
	require.NoError(t, err)

	resp, err := Handle(rtr, Request{Lane: "hot", Seeded: true, Query: *env})
	require.NoError(t, err)

	got, err := protocol.Extract(pirparams.Reference, state, resp)
	require.NoError(t, err)
	require.Equal(t, uint64(4), got[0])
}

func TestHandleRejectsSeededFlagVariantMismatch(t *testing.T) {
	lane, box := buildTestLane(t, "hot", [][]uint64{{1}, {2}})
	rtr := testRouter(lane)

	grid, err := protocol.NewGrid(lane.EntryCount, lane.RecordWidth)
	require.NoError(t, err)
	env, _, err := protocol.QueryGen(box, grid, 0, protocol.Baseline, protocol.OnePacking)
	require.NoError(t, err)

	_, err = Handle(rtr, Request{Lane: "hot", Seeded: true, Query: *env})
	require.True(t, errors.Is(err, pirerr.MalformedQuery))
}

func TestHandleReturnsLaneNotLoaded(t *testing.T) {
	lane, box := buildTestLane(t, "hot", [][]uint64{{1}, {2}})
	rtr := testRouter(lane)

	grid, err := protocol.NewGrid(lane.EntryCount, lane.RecordWidth)
	require.NoError(t, err)
	env, _, err := protocol.QueryGen(box, grid, 0, protocol.Baseline, protocol.OnePacking)
	require.NoError(t, err)

	_, err = Handle(rtr, Request{Lane: "cold", Seeded: false, Query: *env})
	require.True(t, errors.Is(err, pirerr.LaneNotLoaded))
}

func TestHandleReturnsVersionMismatch(t *testing.T) {
	lane, box := buildTestLane(t, "hot", [][]uint64{{1}, {2}})
	rtr := testRouter(lane)

	grid, err := protocol.NewGrid(lane.EntryCount, lane.RecordWidth)
	require.NoError(t, err)
	env, _, err := protocol.QueryGen(box, grid, 0, protocol.Baseline, protocol.OnePacking)
	require.NoError(t, err)
	env.PirParamsVersion++

	_, err = Handle(rtr, Request{Lane: "hot", Seeded: false, Query: *env})
	require.True(t, errors.Is(err, pirerr.VersionMismatch))
}

func TestHandleReturnsMalformedQueryOnMissingSelector(t *testing.T) {
	lane, box := buildTestLane(t, "hot", [][]uint64{{1}, {2}})
	rtr := testRouter(lane)

	grid, err := protocol.NewGrid(lane.EntryCount, lane.RecordWidth)
	require.NoError(t, err)
	env, _, err := protocol.QueryGen(box, grid, 0, protocol.Baseline, protocol.OnePacking)
	require.NoError(t, err)
	env.Baseline = nil // drop the only populated selector field

	_, err = Handle(rtr, Request{Lane: "hot", Seeded: false, Query: *env})
	require.True(t, errors.Is(err, pirerr.MalformedQuery))
}
