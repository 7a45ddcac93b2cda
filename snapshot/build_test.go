package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ethpir/pirerr"
	"ethpir/pirparams"
	"ethpir/ringmath"
	"ethpir/shard"
)

func writeTestShard(t *testing.T, dir, name string, vals []uint64) string {
	t.Helper()
	e, err := ringmath.NewEngine(pirparams.Reference)
	require.NoError(t, err)
	coeffs := make([]uint64, e.D())
	copy(coeffs, vals)
	el, err := e.FromCoeffs(coeffs)
	require.NoError(t, err)
	ntt, err := e.ToNTT(el)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, shard.Write(path, pirparams.Reference.Version, e.D(), []*ringmath.Element{ntt}))
	return path
}

func writeTestCrs(t *testing.T, dir, lane string) string {
	t.Helper()
	crs := shard.CrsMetadata{PirParamsVersion: pirparams.Reference.Version, Lane: lane}
	raw, err := json.Marshal(crs)
	require.NoError(t, err)
	path := filepath.Join(dir, lane+".crs.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestBuildServerSnapshotLoadsAllLanes(t *testing.T) {
	dir := t.TempDir()
	hotShard := writeTestShard(t, dir, "hot.bin", []uint64{1})
	hotCrs := writeTestCrs(t, dir, "hot")
	coldShard := writeTestShard(t, dir, "cold.bin", []uint64{2})
	coldCrs := writeTestCrs(t, dir, "cold")

	cfgs := []shard.LaneConfig{
		{Name: "hot", ShardPaths: []string{hotShard}, CrsPath: hotCrs, Params: pirparams.Reference, RecordWidth: 1},
		{Name: "cold", ShardPaths: []string{coldShard}, CrsPath: coldCrs, Params: pirparams.Reference, RecordWidth: 1},
	}

	snap, err := BuildServerSnapshot(cfgs, 42)
	require.NoError(t, err)
	defer snap.close()

	require.Equal(t, uint64(42), snap.GlobalBlockNumber)
	require.Len(t, snap.Lanes, 2)
	require.Equal(t, 1, snap.Lanes["hot"].Len())
	require.Equal(t, 1, snap.Lanes["cold"].Len())
}

func TestBuildServerSnapshotWrapsShardIoError(t *testing.T) {
	dir := t.TempDir()
	cfgs := []shard.LaneConfig{
		{Name: "hot", ShardPaths: []string{filepath.Join(dir, "missing.bin")}, CrsPath: filepath.Join(dir, "missing.crs.json"), Params: pirparams.Reference, RecordWidth: 1},
	}

	_, err := BuildServerSnapshot(cfgs, 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, pirerr.ShardIoError))
}

func TestReloaderPublishesOnSuccessAndSkipsOnFailure(t *testing.T) {
	dir := t.TempDir()
	hotShard := writeTestShard(t, dir, "hot.bin", []uint64{1})
	hotCrs := writeTestCrs(t, dir, "hot")

	sw := New(&ServerSnapshot{Lanes: map[string]*shard.LaneSnapshot{}})

	good := []shard.LaneConfig{
		{Name: "hot", ShardPaths: []string{hotShard}, CrsPath: hotCrs, Params: pirparams.Reference, RecordWidth: 1},
	}
	var lastErr error
	r := &Reloader{
		Swap:  sw,
		Lanes: func() ([]shard.LaneConfig, uint64) { return good, 1 },
		OnErr: func(err error) { lastErr = err },
	}
	require.NoError(t, r.Rebuild())
	require.NoError(t, lastErr)

	ref := sw.Acquire()
	require.Len(t, ref.Snapshot().Lanes, 1)
	ref.Release()

	bad := []shard.LaneConfig{
		{Name: "cold", ShardPaths: []string{filepath.Join(dir, "missing.bin")}, CrsPath: filepath.Join(dir, "missing.crs.json"), Params: pirparams.Reference, RecordWidth: 1},
	}
	r.Lanes = func() ([]shard.LaneConfig, uint64) { return bad, 2 }
	err := r.Rebuild()
	require.Error(t, err)
	require.True(t, errors.Is(lastErr, pirerr.ShardIoError))

	ref2 := sw.Acquire()
	defer ref2.Release()
	require.Len(t, ref2.Snapshot().Lanes, 1, "failed reload must leave the prior snapshot published")
}
