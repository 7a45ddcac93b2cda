package main

import (
	"encoding/json"
	"fmt"
	"os"

	"ethpir/pirparams"
	"ethpir/shard"
)

// laneFileConfig is one lane's entry in the server's JSON config file,
// the on-disk counterpart of shard.LaneConfig (which carries a resolved
// pirparams.Params and LoadMode instead of their JSON-friendly forms).
type laneFileConfig struct {
	Name        string `json:"name"`
	ShardPaths  []string `json:"shard_paths"`
	CrsPath     string `json:"crs_path"`
	EntryWidth  int    `json:"entry_width"`
	RecordWidth int    `json:"record_width"`
	BlockNumber uint64 `json:"block_number"`
	MemoryMap   bool   `json:"memory_map"`
}

type serverConfig struct {
	Lanes []laneFileConfig `json:"lanes"`
}

func loadServerConfig(path string) (serverConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return serverConfig{}, fmt.Errorf("pirserver: reading config %s: %w", path, err)
	}
	var cfg serverConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return serverConfig{}, fmt.Errorf("pirserver: parsing config %s: %w", path, err)
	}
	if len(cfg.Lanes) == 0 {
		return serverConfig{}, fmt.Errorf("pirserver: config %s declares no lanes", path)
	}
	return cfg, nil
}

func (c serverConfig) laneConfigs() []shard.LaneConfig {
	out := make([]shard.LaneConfig, len(c.Lanes))
	for i, l := range c.Lanes {
		mode := shard.ReadIntoMemory
		if l.MemoryMap {
			mode = shard.MemoryMap
		}
		out[i] = shard.LaneConfig{
			Name:        l.Name,
			ShardPaths:  l.ShardPaths,
			CrsPath:     l.CrsPath,
			EntryWidth:  l.EntryWidth,
			BlockNumber: l.BlockNumber,
			Params:      pirparams.Reference,
			RecordWidth: l.RecordWidth,
			LoadMode:    mode,
		}
	}
	return out
}

// globalBlockNumber is the highest per-lane block number in the config,
// standing in for the chain head this snapshot was extracted at.
func (c serverConfig) globalBlockNumber() uint64 {
	var max uint64
	for _, l := range c.Lanes {
		if l.BlockNumber > max {
			max = l.BlockNumber
		}
	}
	return max
}
