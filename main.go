package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sentinelfs/config"
	"sentinelfs/controlsocket"
	"sentinelfs/logging"
	"sentinelfs/orchestrator"
)

const logRingCapacity = 500

func main() {
	configPath := flag.String("config", "/etc/sentinelfs/config.json", "path to the daemon config file")
	flag.Parse()

	mgr := config.NewManager(*configPath)
	cfg, err := mgr.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentinelfsd: load config: %v\n", err)
		os.Exit(1)
	}

	ring := logging.NewRingLogger(logging.NewStdLogger(os.Stderr, logging.LevelInfo), logRingCapacity)

	daemon, err := orchestrator.New(cfg, ring)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentinelfsd: build daemon: %v\n", err)
		os.Exit(1)
	}

	appCtx, appCtxCancel := context.WithCancel(context.Background())
	defer appCtxCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		ring.Infof("sentinelfsd: interrupt received, shutting down")
		appCtxCancel()
	}()

	ctl := controlsocket.New(cfg.ControlSocketPath, daemon, ring, ring, nil)
	go func() {
		if err := ctl.ListenAndServe(appCtx); err != nil {
			ring.Errorf("sentinelfsd: control socket: %v", err)
		}
	}()
	defer ctl.Close()

	ring.Infof("sentinelfsd: starting, peer_id=%s watch_roots=%v", cfg.PeerID, cfg.WatchRoots)
	if err := daemon.Run(appCtx); err != nil {
		ring.Errorf("sentinelfsd: %v", err)
		os.Exit(1)
	}
}
