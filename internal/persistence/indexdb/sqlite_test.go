package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqRun}

	s.RecordRun(RunRecord{ID: "R2"})
	s.RecordSave(SaveRecord{Path: "/tmp/a.snap.zst"})
	s.RecordSave(SaveRecord{Path: "/tmp/b.snap.zst"})

	st := s.Stats()
	if st.DropRunTotal != 1 || st.DropSaveTotal != 2 || st.QueueDropTotal != 3 {
		t.Fatalf("drops: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	s.RecordRun(RunRecord{ID: "x"})
	s.RecordSave(SaveRecord{Path: "x"})
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if st := s.Stats(); st != (Stats{}) {
		t.Fatalf("stats: %+v", st)
	}
}

func TestSQLiteIndex_RunsAndSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "playground.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	idx.RecordRun(RunRecord{ID: "R1", StartedAt: base, Duration: 12 * time.Millisecond, CodeDigest: CodeDigest("a"), Status: RunOK, Lines: 2, VoxelsAfter: 100})
	idx.RecordRun(RunRecord{ID: "R2", StartedAt: base.Add(500 * time.Millisecond), Status: RunError, Error: "Error: boom", Lines: 3, VoxelsBefore: 100, VoxelsAfter: 100})
	idx.RecordRun(RunRecord{ID: "R3", StartedAt: base.Add(time.Second), Status: RunTimeout, VoxelsBefore: 100, VoxelsAfter: 140})
	idx.RecordSave(SaveRecord{Path: "a.snap.zst", Kind: SaveSnapshot, Voxels: 100, SavedAt: base})
	idx.RecordSave(SaveRecord{Path: "voxel-data.json", Kind: SaveExport, Voxels: 140, SavedAt: base.Add(time.Minute)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	runs, err := idx.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "R3" || runs[1].ID != "R2" {
		t.Fatalf("runs: %+v", runs)
	}
	if runs[1].Error != "Error: boom" || runs[1].Lines != 3 || !runs[1].StartedAt.Equal(base.Add(500*time.Millisecond)) {
		t.Fatalf("run R2: %+v", runs[1])
	}
	if runs[0].Error != "" || runs[0].VoxelsAfter != 140 {
		t.Fatalf("run R3: %+v", runs[0])
	}

	all, err := idx.RecentRuns(ctx, 0)
	if err != nil || len(all) != 3 || all[2].Duration != 12*time.Millisecond || all[2].CodeDigest != CodeDigest("a") {
		t.Fatalf("all runs: %+v err=%v", all, err)
	}

	saves, err := idx.RecentSaves(ctx, SaveSnapshot, 10)
	if err != nil || len(saves) != 1 || saves[0].Path != "a.snap.zst" {
		t.Fatalf("snapshot saves: %+v err=%v", saves, err)
	}
	saves, err = idx.RecentSaves(ctx, "", 10)
	if err != nil || len(saves) != 2 || saves[0].Kind != SaveExport {
		t.Fatalf("all saves: %+v err=%v", saves, err)
	}

	if err := idx.SetMeta("world_id", "playground"); err != nil {
		t.Fatalf("set meta: %v", err)
	}
	if v, err := idx.Meta("world_id"); err != nil || v != "playground" {
		t.Fatalf("meta: %q %v", v, err)
	}
	if v, _ := idx.Meta("schema_version"); v != "1" {
		t.Fatalf("schema_version: %q", v)
	}
}

func TestSQLiteIndex_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "i.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	idx.RecordRun(RunRecord{ID: "R1", StartedAt: time.Now(), Status: RunOK})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	idx.RecordRun(RunRecord{ID: "late"})

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	runs, err := idx.RecentRuns(context.Background(), 10)
	if err != nil || len(runs) != 1 || runs[0].ID != "R1" {
		t.Fatalf("runs after reopen: %+v err=%v", runs, err)
	}
}
