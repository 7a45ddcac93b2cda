package shard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"ethpir/pirparams"
	"ethpir/ringmath"
)

func testEngine(t *testing.T) *ringmath.Engine {
	t.Helper()
	e, err := ringmath.NewEngine(pirparams.Reference)
	require.NoError(t, err)
	return e
}

func nttRecord(t *testing.T, e *ringmath.Engine, vals []uint64) *ringmath.Element {
	t.Helper()
	coeffs := make([]uint64, e.D())
	copy(coeffs, vals)
	el, err := e.FromCoeffs(coeffs)
	require.NoError(t, err)
	ntt, err := e.ToNTT(el)
	require.NoError(t, err)
	return ntt
}

func writeCrsFile(t *testing.T, dir string, version uint16, lane string) string {
	t.Helper()
	crs := CrsMetadata{PirParamsVersion: version, Lane: lane, AutomorphismExponents: []uint64{3, 5}}
	raw, err := json.Marshal(crs)
	require.NoError(t, err)
	path := filepath.Join(dir, lane+".crs.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestShardWriteAndReadIntoMemoryRoundTrip(t *testing.T) {
	e := testEngine(t)
	dir := t.TempDir()
	records := []*ringmath.Element{
		nttRecord(t, e, []uint64{1, 2, 3}),
		nttRecord(t, e, []uint64{4, 5, 6}),
	}
	path := filepath.Join(dir, "shard-0.bin")
	require.NoError(t, Write(path, pirparams.Reference.Version, e.D(), records))

	s, err := Open(path, e.D(), ReadIntoMemory)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, 2, s.Len())
	got0, err := s.At(0)
	require.NoError(t, err)
	require.Equal(t, records[0].Coeffs, got0.Coeffs)
	require.Equal(t, ringmath.Evaluation, got0.Form)

	got1, err := s.At(1)
	require.NoError(t, err)
	require.Equal(t, records[1].Coeffs, got1.Coeffs)
}

func TestShardMemoryMapMatchesReadIntoMemory(t *testing.T) {
	e := testEngine(t)
	dir := t.TempDir()
	records := []*ringmath.Element{nttRecord(t, e, []uint64{9, 8, 7})}
	path := filepath.Join(dir, "shard-0.bin")
	require.NoError(t, Write(path, pirparams.Reference.Version, e.D(), records))

	mem, err := Open(path, e.D(), ReadIntoMemory)
	require.NoError(t, err)
	defer mem.Close()
	mapped, err := Open(path, e.D(), MemoryMap)
	require.NoError(t, err)
	defer mapped.Close()

	a, err := mem.At(0)
	require.NoError(t, err)
	b, err := mapped.At(0)
	require.NoError(t, err)
	require.Equal(t, a.Coeffs, b.Coeffs)
}

func TestShardAtRejectsOutOfRange(t *testing.T) {
	e := testEngine(t)
	dir := t.TempDir()
	records := []*ringmath.Element{nttRecord(t, e, []uint64{1})}
	path := filepath.Join(dir, "shard-0.bin")
	require.NoError(t, Write(path, pirparams.Reference.Version, e.D(), records))

	s, err := Open(path, e.D(), ReadIntoMemory)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.At(1)
	require.Error(t, err)
	_, err = s.At(-1)
	require.Error(t, err)
}

func TestOpenRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, headerSize), 0o644))
	_, err := Open(path, 8, ReadIntoMemory)
	require.Error(t, err)
}

func TestNewLaneSnapshotComposesMultipleShards(t *testing.T) {
	e := testEngine(t)
	dir := t.TempDir()

	shard0 := []*ringmath.Element{nttRecord(t, e, []uint64{1}), nttRecord(t, e, []uint64{2})}
	shard1 := []*ringmath.Element{nttRecord(t, e, []uint64{3})}
	path0 := filepath.Join(dir, "shard-0.bin")
	path1 := filepath.Join(dir, "shard-1.bin")
	require.NoError(t, Write(path0, pirparams.Reference.Version, e.D(), shard0))
	require.NoError(t, Write(path1, pirparams.Reference.Version, e.D(), shard1))

	crsPath := writeCrsFile(t, dir, pirparams.Reference.Version, "hot")

	lane, err := NewLaneSnapshot(LaneConfig{
		Name:        "hot",
		ShardPaths:  []string{path0, path1},
		CrsPath:     crsPath,
		EntryWidth:  32,
		BlockNumber: 100,
		Params:      pirparams.Reference,
		RecordWidth: 1,
		LoadMode:    ReadIntoMemory,
	})
	require.NoError(t, err)
	defer lane.Close()

	require.Equal(t, 3, lane.Len())
	for i, want := range [][]*ringmath.Element{shard0[0:1], shard0[1:2], shard1[0:1]} {
		got, err := lane.At(i)
		require.NoError(t, err)
		require.Equal(t, want[0].Coeffs, got.Coeffs)
	}
	_, err = lane.At(3)
	require.Error(t, err)
}

func TestNewLaneSnapshotRejectsCrsVersionMismatch(t *testing.T) {
	e := testEngine(t)
	dir := t.TempDir()
	records := []*ringmath.Element{nttRecord(t, e, []uint64{1})}
	path := filepath.Join(dir, "shard-0.bin")
	require.NoError(t, Write(path, pirparams.Reference.Version, e.D(), records))
	crsPath := writeCrsFile(t, dir, pirparams.Reference.Version+1, "hot")

	_, err := NewLaneSnapshot(LaneConfig{
		Name:        "hot",
		ShardPaths:  []string{path},
		CrsPath:     crsPath,
		Params:      pirparams.Reference,
		RecordWidth: 1,
		LoadMode:    ReadIntoMemory,
	})
	require.Error(t, err)
}
