// Command pirserver serves private reads over a periodically reloaded
// Ethereum state snapshot. It owns no secret key material: every
// automorphism key it uses to evaluate Switched queries is a public
// key-switch matrix carried in each lane's CRS file.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"ethpir/router"
	"ethpir/shard"
	"ethpir/snapshot"
	"ethpir/telemetry"
)

func main() {
	configPath := flag.String("config", "pirserver.json", "path to the lane configuration file")
	addr := flag.String("addr", ":8088", "listen address")
	reloadWindow := flag.Duration("reload-debounce", 5*time.Second, "minimum interval between snapshot rebuilds")
	logPath := flag.String("log", "", "log file path (defaults to stderr)")
	flag.Parse()

	if *logPath != "" {
		if err := telemetry.Init(*logPath); err != nil {
			fmt.Fprintf(os.Stderr, "pirserver: %v\n", err)
			os.Exit(1)
		}
	}
	log := telemetry.With("pirserver")

	cfg, err := loadServerConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}

	initial, err := snapshot.BuildServerSnapshot(cfg.laneConfigs(), cfg.globalBlockNumber())
	if err != nil {
		log.WithError(err).Fatal("building initial snapshot")
	}
	swap := snapshot.New(initial)
	rtr := router.New(swap)

	reloader := &snapshot.Reloader{
		Swap: swap,
		Lanes: func() ([]shard.LaneConfig, uint64) {
			fresh, err := loadServerConfig(*configPath)
			if err != nil {
				log.WithError(err).Warn("reload: reloading config")
				return cfg.laneConfigs(), cfg.globalBlockNumber()
			}
			cfg = fresh
			return fresh.laneConfigs(), fresh.globalBlockNumber()
		},
		OnErr: func(err error) { log.WithError(err).Warn("reload failed, keeping prior snapshot") },
	}
	debouncer := snapshot.NewDebouncer(*reloadWindow, reloader.Rebuild)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	registerRoutes(r, rtr, swap, debouncer, log)

	log.WithField("addr", *addr).Info("pirserver listening")
	if err := r.Run(*addr); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
