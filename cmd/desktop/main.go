package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"voxelplay.ai/internal/host/desktop"
	persistlog "voxelplay.ai/internal/persistence/log"
	"voxelplay.ai/internal/sim/playground"
	"voxelplay.ai/internal/sim/tuning"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/playground.yaml", "playground tuning file")
		scriptPath = flag.String("script", "", "script run on F5 (defaults to the house example)")
		exportPath = flag.String("export", "", "file written on F9 (defaults to voxel-data.json)")
		dataDir    = flag.String("data", "", "data directory; enables autosave and resume when set")
		lines      = flag.Int("console_lines", 8, "console lines shown in the overlay")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[desktop] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	cfg := playground.Config{Tuning: tune, Logger: logger}
	if *dataDir != "" {
		worldDir := filepath.Join(*dataDir, "worlds", tune.WorldID)
		cfg.SnapshotDir = filepath.Join(worldDir, "snapshots")
		consoleLog := persistlog.NewConsoleLogger(worldDir)
		defer consoleLog.Close()
		cfg.Console = consoleLog
	}

	win, err := desktop.New(cfg, desktop.Options{
		ScriptPath:   *scriptPath,
		ExportPath:   *exportPath,
		ConsoleLines: *lines,
	})
	if err != nil {
		logger.Fatalf("desktop: %v", err)
	}
	pg := win.Playground()
	if cfg.SnapshotDir != "" {
		path, err := pg.LoadLatest()
		if err != nil {
			logger.Fatalf("load latest snapshot: %v", err)
		}
		if path != "" {
			logger.Printf("resumed from snapshot=%s voxels=%d", path, pg.Store().Len())
		}
	}

	if err := win.Run(); err != nil {
		logger.Printf("window: %v", err)
	}
	if cfg.SnapshotDir != "" && pg.Dirty() {
		if path, err := pg.Autosave(); err != nil {
			logger.Printf("final snapshot: %v", err)
		} else {
			logger.Printf("final snapshot=%s", path)
		}
	}
}
