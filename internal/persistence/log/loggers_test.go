package log

import (
	"path/filepath"
	"testing"
	"time"
)

func readEntries(t *testing.T, path string) []ConsoleEntry {
	t.Helper()
	out, err := ReadConsoleFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return out
}

func TestConsoleLogger_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	l := NewConsoleLogger(dir)
	clock := time.Date(2024, 5, 6, 7, 59, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	if err := l.WriteLine(ConsoleEntry{Time: clock, RunID: "R1", Level: "log", Text: "Running code..."}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.WriteLine(ConsoleEntry{Time: clock, RunID: "R1", Level: "log", Text: "House built!"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := l.WriteLine(ConsoleEntry{Time: clock, RunID: "R2", Level: "error", Text: "Error: boom"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	first := readEntries(t, filepath.Join(dir, "console", "console-2024-05-06-07.jsonl.zst"))
	if len(first) != 2 || first[1].Text != "House built!" || first[0].RunID != "R1" {
		t.Fatalf("first hour: %+v", first)
	}
	second := readEntries(t, filepath.Join(dir, "console", "console-2024-05-06-08.jsonl.zst"))
	if len(second) != 1 || second[0].Level != "error" {
		t.Fatalf("second hour: %+v", second)
	}
}

func TestListConsoleFiles_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	l := NewConsoleLogger(dir)
	clock := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	_ = l.WriteLine(ConsoleEntry{Time: clock, Level: "log", Text: "a"})
	clock = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	_ = l.WriteLine(ConsoleEntry{Time: clock, Level: "log", Text: "b"})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListConsoleFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "console-2024-05-06-08.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}
	if _, err := ListConsoleFiles(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestConsoleLogger_EndRunIsDurableBeforeClose(t *testing.T) {
	dir := t.TempDir()
	l := NewConsoleLogger(dir)
	clock := time.Date(2024, 5, 6, 10, 15, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	defer l.Close()

	_ = l.WriteLine(ConsoleEntry{RunID: "R1", Level: "log", Text: "Running code..."})
	_ = l.WriteLine(ConsoleEntry{RunID: "R1", Level: "log", Text: "Spiral created!"})
	if err := l.EndRun("R1"); err != nil {
		t.Fatalf("end run: %v", err)
	}
	_ = l.WriteLine(ConsoleEntry{RunID: "R2", Level: "log", Text: "still running"})

	// The file is still open and its frame unfinished; the finished run must
	// already be readable.
	path := filepath.Join(dir, "console", "console-2024-05-06-10.jsonl.zst")
	got, _ := ReadConsoleFile(path)
	if len(got) < 2 || got[0].RunID != "R1" || got[1].Text != "Spiral created!" {
		t.Fatalf("entries before close: %+v", got)
	}
	if !got[0].Time.Equal(clock) {
		t.Fatalf("zero time not stamped: %v", got[0].Time)
	}
	if lines, runs := l.Counts(); lines != 3 || runs != 1 {
		t.Fatalf("counts: lines=%d runs=%d", lines, runs)
	}
}
