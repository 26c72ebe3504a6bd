package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelplay.ai/internal/persistence/indexdb"
	persistlog "voxelplay.ai/internal/persistence/log"
	"voxelplay.ai/internal/persistence/snapshot"
	"voxelplay.ai/internal/sim/playground"
	"voxelplay.ai/internal/sim/tuning"
	"voxelplay.ai/internal/transport/viewer"
)

func main() {
	var (
		addr         = flag.String("addr", "127.0.0.1:8080", "listen address")
		configPath   = flag.String("config", "./configs/playground.yaml", "playground tuning file")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		worldID      = flag.String("world", "", "world id (defaults to world_id from the tuning file)")
		snapPath     = flag.String("snapshot", "", "resume from a snapshot file")
		loadLatest   = flag.Bool("load_latest_snapshot", true, "resume from the newest snapshot in the world dir")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite run/save index")
		allowRemote  = flag.Bool("allow_remote", false, "accept viewer connections from non-loopback addresses")
		keepSnaps    = flag.Int("keep_snapshots", 10, "autosave snapshots to keep")
		finalOnClose = flag.Bool("final_snapshot", true, "write a snapshot on shutdown when the world changed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning %s not found, using defaults", *configPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}
	if *worldID != "" {
		tune.WorldID = *worldID
	}

	worldDir := filepath.Join(*dataDir, "worlds", tune.WorldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("mkdir world dir: %v", err)
	}

	cfg := playground.Config{
		Tuning:        tune,
		Logger:        log.New(os.Stdout, "[playground] ", log.LstdFlags|log.Lmicroseconds),
		SnapshotDir:   filepath.Join(worldDir, "snapshots"),
		KeepSnapshots: *keepSnaps,
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "playground.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		_ = idx.SetMeta("world_id", tune.WorldID)
		_ = idx.SetMeta("started_at", time.Now().UTC().Format(time.RFC3339))
		cfg.Indexer = idx
	}

	consoleLog := persistlog.NewConsoleLogger(worldDir)
	defer consoleLog.Close()
	cfg.Console = consoleLog

	pg, err := playground.New(cfg)
	if err != nil {
		logger.Fatalf("playground: %v", err)
	}

	switch {
	case *snapPath != "":
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if err := pg.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s voxels=%d saved_at=%s", *snapPath, len(snap.Voxels), snap.Header.SavedAt.Format(time.RFC3339))
	case *loadLatest:
		path, err := pg.LoadLatest()
		if err != nil {
			logger.Fatalf("load latest snapshot: %v", err)
		}
		if path != "" {
			logger.Printf("resumed from snapshot=%s voxels=%d", path, pg.Store().Len())
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := pg.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("playground stopped: %v", err)
		}
	}()

	vs := viewer.NewServer(pg, log.New(os.Stdout, "[viewer] ", log.LstdFlags|log.Lmicroseconds))
	vs.AllowRemote = *allowRemote

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, tune.WorldID, pg, idx, consoleLog)
	})
	mux.HandleFunc("/admin/v1/runs", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusNotFound)
			return
		}
		runs, err := idx.RecentRuns(r.Context(), 50)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(runs)
	})
	mux.Handle("/v1/", vs.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s listening on %s", tune.WorldID, *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	cancel()
	<-loopDone
	if *finalOnClose && pg.Dirty() {
		if path, err := pg.Autosave(); err != nil {
			logger.Printf("final snapshot: %v", err)
		} else {
			logger.Printf("final snapshot=%s", path)
		}
	}
	if idx != nil {
		ctx3, cancel3 := context.WithTimeout(context.Background(), 5*time.Second)
		if err := idx.Flush(ctx3); err != nil {
			logger.Printf("flush index: %v", err)
		}
		cancel3()
	}
	logger.Printf("shutdown complete")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// Minimal Prometheus exposition format.
func writeMetrics(rw http.ResponseWriter, worldID string, pg *playground.Playground, idx *indexdb.SQLiteIndex, console *persistlog.ConsoleLogger) {
	fmt.Fprintf(rw, "# HELP voxelplay_frame Current playground frame.\n")
	fmt.Fprintf(rw, "# TYPE voxelplay_frame counter\n")
	fmt.Fprintf(rw, "voxelplay_frame{world=%q} %d\n", worldID, pg.Frame())

	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP voxelplay_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE voxelplay_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "voxelplay_index_queue_depth{world=%q} %d\n", worldID, s.QueueDepth)

	fmt.Fprintf(rw, "# HELP voxelplay_index_dropped_total Index records dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE voxelplay_index_dropped_total counter\n")
	fmt.Fprintf(rw, "voxelplay_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "run", s.DropRunTotal)
	fmt.Fprintf(rw, "voxelplay_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "save", s.DropSaveTotal)

	lines, runs := console.Counts()
	fmt.Fprintf(rw, "# HELP voxelplay_console_lines_total Console lines archived.\n")
	fmt.Fprintf(rw, "# TYPE voxelplay_console_lines_total counter\n")
	fmt.Fprintf(rw, "voxelplay_console_lines_total{world=%q} %d\n", worldID, lines)

	fmt.Fprintf(rw, "# HELP voxelplay_script_runs_total Script runs archived.\n")
	fmt.Fprintf(rw, "# TYPE voxelplay_script_runs_total counter\n")
	fmt.Fprintf(rw, "voxelplay_script_runs_total{world=%q} %d\n", worldID, runs)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
