package shard

import (
	"encoding/json"
	"fmt"
	"os"

	"ethpir/pirparams"
	"ethpir/ringmath"
	"ethpir/rlwescheme"
)

// CrsMetadata is the public, lane-scoped common reference material a
// client needs before it can query a lane: the automorphism key-switch
// matrices the server evaluates queries with, and the
// parameter set they were generated under. Unlike a per-client key
// bundle, this CRS is public and shared by every client of the lane.
// The key-switch matrices themselves are public (each digit is an RLWE
// ciphertext); only the exponents a client additionally needs to
// reproduce locally are singled out by AutomorphismExponents.
type CrsMetadata struct {
	PirParamsVersion uint16 `json:"pir_params_version"`
	Lane             string `json:"lane"`
	// AutomorphismExponents lists the Galois exponents t a client needs
	// automorphism keys for to use the Switched query variant against
	// this lane (log2(D1) of them, matching protocol.Expand's rounds).
	AutomorphismExponents []uint64 `json:"automorphism_exponents"`
	// AutomorphismKeys holds the public key-switch matrix for each
	// exponent in AutomorphismExponents, letting the server apply
	// protocol.Expand without ever holding the lane's secret key.
	AutomorphismKeys map[uint64]*rlwescheme.KeySwitchKey `json:"automorphism_keys,omitempty"`
}

func loadCrsMetadata(path string) (CrsMetadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return CrsMetadata{}, fmt.Errorf("shard: reading CRS metadata %s: %w", path, err)
	}
	var crs CrsMetadata
	if err := json.Unmarshal(raw, &crs); err != nil {
		return CrsMetadata{}, fmt.Errorf("shard: parsing CRS metadata %s: %w", path, err)
	}
	return crs, nil
}

// LaneSnapshot is one named lane's full, immutable grid of records: a
// fixed entry count N, entry width w, public CRS, the shards composing
// the grid, and the block number the data was extracted at. Once
// constructed it never changes; a reload builds a new LaneSnapshot
// rather than mutating this one.
type LaneSnapshot struct {
	Name        string
	EntryCount  int
	EntryWidth  int
	BlockNumber uint64
	Params      pirparams.Params
	Crs         CrsMetadata
	RecordWidth int
	// EvalBox is a secret-key-free rlwescheme.Box: its Engine and the
	// public AutomorphismKeys from Crs are enough to run
	// protocol.AnswerGen and protocol.Expand, neither of which ever
	// needs the lane's secret key.
	EvalBox      *rlwescheme.Box
	shards       []*Shard
	shardOffsets []int // shardOffsets[i] = first global index held by shards[i]
}

// LaneConfig names the files that make up one lane on disk.
type LaneConfig struct {
	Name        string
	ShardPaths  []string
	CrsPath     string
	EntryWidth  int
	BlockNumber uint64
	Params      pirparams.Params
	RecordWidth int
	LoadMode    LoadMode
}

// NewLaneSnapshot loads every shard in cfg and the lane's CRS metadata,
// producing an immutable LaneSnapshot. Construction is idempotent: given
// the same files and CRS, two calls produce structurally identical
// snapshots, since Open is a pure function of file contents and
// LaneConfig carries no mutable state.
func NewLaneSnapshot(cfg LaneConfig) (*LaneSnapshot, error) {
	engine, err := ringmath.NewEngine(cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("shard: building engine for lane %s: %w", cfg.Name, err)
	}
	d := engine.D()

	crs, err := loadCrsMetadata(cfg.CrsPath)
	if err != nil {
		return nil, err
	}
	if crs.PirParamsVersion != cfg.Params.Version {
		return nil, fmt.Errorf("shard: lane %s CRS version %d does not match params version %d", cfg.Name, crs.PirParamsVersion, cfg.Params.Version)
	}

	shards := make([]*Shard, 0, len(cfg.ShardPaths))
	offsets := make([]int, 0, len(cfg.ShardPaths))
	total := 0
	for _, path := range cfg.ShardPaths {
		s, err := Open(path, d, cfg.LoadMode)
		if err != nil {
			closeAll(shards)
			return nil, err
		}
		offsets = append(offsets, total)
		total += s.Len()
		shards = append(shards, s)
	}

	autoKeys := crs.AutomorphismKeys
	if autoKeys == nil {
		autoKeys = make(map[uint64]*rlwescheme.KeySwitchKey)
	}
	evalBox := &rlwescheme.Box{
		Engine:           engine,
		AutomorphismKeys: autoKeys,
	}

	return &LaneSnapshot{
		Name:         cfg.Name,
		EntryCount:   total,
		EntryWidth:   cfg.EntryWidth,
		BlockNumber:  cfg.BlockNumber,
		Params:       cfg.Params,
		Crs:          crs,
		RecordWidth:  cfg.RecordWidth,
		EvalBox:      evalBox,
		shards:       shards,
		shardOffsets: offsets,
	}, nil
}

func closeAll(shards []*Shard) {
	for _, s := range shards {
		_ = s.Close()
	}
}

// Len implements protocol.RecordSource: the logical record count N,
// regardless of how many shards or grid padding cells back it.
func (l *LaneSnapshot) Len() int { return l.EntryCount }

// At implements protocol.RecordSource, dispatching global index idx to
// the shard that holds it; each shard holds a contiguous slice of rows
// of the grid.
func (l *LaneSnapshot) At(idx int) (*ringmath.Element, error) {
	if idx < 0 || idx >= l.EntryCount {
		return nil, fmt.Errorf("shard: index %d out of range [0, %d)", idx, l.EntryCount)
	}
	for i := len(l.shardOffsets) - 1; i >= 0; i-- {
		if idx >= l.shardOffsets[i] {
			return l.shards[i].At(idx - l.shardOffsets[i])
		}
	}
	return nil, fmt.Errorf("shard: index %d not covered by any shard", idx)
}

// Close releases every shard's resources (relevant for mmap mode).
func (l *LaneSnapshot) Close() error {
	var first error
	for _, s := range l.shards {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
