package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"voxelplay.ai/internal/persistence/indexdb"
	persistlog "voxelplay.ai/internal/persistence/log"
	"voxelplay.ai/internal/persistence/snapshot"
	"voxelplay.ai/internal/persistence/voxelfile"
	"voxelplay.ai/internal/script"
	"voxelplay.ai/internal/sim/playground"
	"voxelplay.ai/internal/sim/tuning"
)

const usage = `usage: voxelctl <command> [flags]

commands:
  run      run a script headless against a world file
  info     print a snapshot header
  convert  write a snapshot's voxels as a world file
  console  print archived console output of a world
  runs     list recent script runs from the index db
  examples list or print the bundled example scripts
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(args)
	case "info":
		err = cmdInfo(args)
	case "convert":
		err = cmdConvert(args)
	case "console":
		err = cmdConsole(args)
	case "runs":
		err = cmdRuns(args)
	case "examples":
		err = cmdExamples(args)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, os.Args[1]+":", err)
		os.Exit(1)
	}
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		scriptPath = fs.String("script", "", "script file (Go source)")
		example    = fs.String("example", "", "bundled example to run instead of -script")
		inPath     = fs.String("in", "", "world file to start from (optional)")
		outPath    = fs.String("out", "", "world file to write after the run (optional)")
		configPath = fs.String("config", "", "playground tuning file (optional)")
		timeout    = fs.Duration("timeout", 0, "script budget (defaults to script_timeout_ms)")
		verbose    = fs.Bool("v", false, "log playground diagnostics to stderr")
	)
	_ = fs.Parse(args)

	code, err := loadCode(*scriptPath, *example)
	if err != nil {
		return err
	}

	tune := tuning.Defaults()
	if *configPath != "" {
		if tune, err = tuning.Load(*configPath); err != nil {
			return err
		}
	}
	if *timeout > 0 {
		tune.ScriptTimeoutMs = int(*timeout / time.Millisecond)
	}

	cfg := playground.Config{Tuning: tune}
	if *verbose {
		cfg.Logger = log.New(os.Stderr, "[voxelctl] ", log.LstdFlags|log.Lmicroseconds)
	}
	pg, err := playground.New(cfg)
	if err != nil {
		return err
	}

	if *inPath != "" {
		data, err := os.ReadFile(*inPath)
		if err != nil {
			return err
		}
		n, err := pg.Import(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "loaded %d voxels from %s\n", n, *inPath)
	}

	out := pg.RunScript(context.Background(), code)
	for _, l := range out.Result.Lines {
		fmt.Println(l.String())
	}
	fmt.Fprintf(os.Stderr, "run %s: mutations=%d voxels=%d duration=%s\n",
		out.RunID, out.Result.Mutations, out.Voxels, out.Result.Duration.Round(time.Millisecond))

	if *outPath != "" {
		data, err := pg.Export()
		if err != nil {
			return err
		}
		if err := writeFileAtomic(*outPath, data); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", *outPath)
	}
	return out.Result.Err
}

func loadCode(path, example string) (string, error) {
	switch {
	case path != "" && example != "":
		return "", fmt.Errorf("use either -script or -example")
	case example != "":
		src, ok := script.Examples()[example]
		if !ok {
			return "", fmt.Errorf("no example %q (have %v)", example, script.ExampleNames())
		}
		return src, nil
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("missing -script")
	}
}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	snapPath := fs.String("snapshot", "", "path to .snap.zst")
	full := fs.Bool("full", false, "decode the whole snapshot, not just the header")
	_ = fs.Parse(args)
	if *snapPath == "" {
		return fmt.Errorf("missing -snapshot")
	}

	if !*full {
		h, err := snapshot.ReadHeader(*snapPath)
		if err != nil {
			return err
		}
		fmt.Printf("snapshot v%d world=%s saved_at=%s voxels=%d\n",
			h.Version, h.WorldID, h.SavedAt.Format(time.RFC3339), h.Voxels)
		return nil
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		return err
	}
	fmt.Printf("snapshot v%d world=%s saved_at=%s voxels=%d voxel_size=%g default_color=#%06x camera=(%.2f,%.2f,%.2f) yaw=%.3f pitch=%.3f\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.SavedAt.Format(time.RFC3339), len(snap.Voxels),
		snap.VoxelSize, snap.DefaultColor,
		snap.Camera.Position[0], snap.Camera.Position[1], snap.Camera.Position[2], snap.Camera.Yaw, snap.Camera.Pitch)
	return nil
}

func cmdConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	snapPath := fs.String("snapshot", "", "path to .snap.zst")
	outPath := fs.String("out", voxelfile.DefaultFileName, "world file to write")
	_ = fs.Parse(args)
	if *snapPath == "" {
		return fmt.Errorf("missing -snapshot")
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		return err
	}
	data, err := voxelfile.MarshalRecords(snap.Voxels)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(*outPath, data); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d voxels)\n", *outPath, len(snap.Voxels))
	return nil
}

func cmdConsole(args []string) error {
	fs := flag.NewFlagSet("console", flag.ExitOnError)
	worldDir := fs.String("world_dir", "", "world directory (data/worlds/<id>)")
	runID := fs.String("run", "", "only print lines of this run")
	_ = fs.Parse(args)
	if *worldDir == "" {
		return fmt.Errorf("missing -world_dir")
	}

	files, err := persistlog.ListConsoleFiles(*worldDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no console archives in %s", *worldDir)
	}
	for _, path := range files {
		entries, err := persistlog.ReadConsoleFile(path)
		for _, e := range entries {
			if *runID != "" && e.RunID != *runID {
				continue
			}
			fmt.Printf("%s %s %-5s %s\n", e.Time.Format(time.RFC3339), e.RunID, e.Level, e.Text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func cmdRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to playground.sqlite")
	limit := fs.Int("limit", 20, "number of runs to list")
	saves := fs.Bool("saves", false, "list saves instead of runs")
	_ = fs.Parse(args)
	if *dbPath == "" {
		return fmt.Errorf("missing -db")
	}
	if _, err := os.Stat(*dbPath); err != nil {
		return err
	}

	idx, err := indexdb.OpenSQLite(*dbPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if *saves {
		recs, err := idx.RecentSaves(ctx, "", *limit)
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Printf("%s %-8s voxels=%d %s\n", r.SavedAt.Format(time.RFC3339), r.Kind, r.Voxels, r.Path)
		}
		return nil
	}

	runs, err := idx.RecentRuns(ctx, *limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s %s %-7s %6dms voxels=%d->%d lines=%d code=%.12s",
			r.StartedAt.Format(time.RFC3339), r.ID, r.Status, r.Duration.Milliseconds(),
			r.VoxelsBefore, r.VoxelsAfter, r.Lines, r.CodeDigest)
		if r.Error != "" {
			line += " err=" + r.Error
		}
		fmt.Println(line)
	}
	return nil
}

func cmdExamples(args []string) error {
	fs := flag.NewFlagSet("examples", flag.ExitOnError)
	name := fs.String("name", "", "print this example's source")
	_ = fs.Parse(args)
	if *name == "" {
		for _, n := range script.ExampleNames() {
			fmt.Println(n)
		}
		return nil
	}
	src, ok := script.Examples()[*name]
	if !ok {
		return fmt.Errorf("no example %q", *name)
	}
	fmt.Print(src)
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
