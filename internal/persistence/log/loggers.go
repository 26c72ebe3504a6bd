package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const hourLayout = "2006-01-02-15"

// ConsoleEntry is one archived console line.
type ConsoleEntry struct {
	Time  time.Time `json:"time"`
	RunID string    `json:"run_id"`
	Level string    `json:"level"`
	Text  string    `json:"text"`
}

// ConsoleLogger archives script console output as zstd-compressed JSONL
// under <world>/console, one file per UTC hour of the line's timestamp.
//
// Lines of a run stay in the compressor until EndRun, which pushes them out
// as a complete zstd block: a crash mid-hour loses at most the run still in
// progress. Lines written outside a run are pushed immediately.
type ConsoleLogger struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	hour    string
	f       *os.File
	enc     *zstd.Encoder
	jw      *json.Encoder
	pending int
	lines   uint64
	runs    uint64
}

func NewConsoleLogger(worldDir string) *ConsoleLogger {
	return &ConsoleLogger{dir: filepath.Join(worldDir, "console"), now: time.Now}
}

func (l *ConsoleLogger) WriteLine(e ConsoleEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = l.now()
	}
	if hour := e.Time.UTC().Format(hourLayout); hour != l.hour {
		if err := l.rotateLocked(hour); err != nil {
			return err
		}
	}
	if err := l.jw.Encode(e); err != nil {
		return err
	}
	l.pending++
	l.lines++
	if e.RunID == "" {
		return l.flushLocked()
	}
	return nil
}

// EndRun makes every line written so far durable.
func (l *ConsoleLogger) EndRun(runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs++
	return l.flushLocked()
}

// Counts reports archived lines and finished runs since open.
func (l *ConsoleLogger) Counts() (lines, runs uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines, l.runs
}

func (l *ConsoleLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *ConsoleLogger) flushLocked() error {
	if l.enc == nil || l.pending == 0 {
		return nil
	}
	if err := l.enc.Flush(); err != nil {
		return err
	}
	l.pending = 0
	return nil
}

// rotateLocked closes the current hour and appends a new zstd frame to the
// file for hour. Files holding several frames decode as one stream.
func (l *ConsoleLogger) rotateLocked(hour string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f, l.enc, l.hour = f, enc, hour
	l.jw = json.NewEncoder(enc)
	l.jw.SetEscapeHTML(false)
	return nil
}

func (l *ConsoleLogger) closeLocked() error {
	var err error
	if l.enc != nil {
		err = l.enc.Close()
		l.enc = nil
	}
	if l.f != nil {
		if cerr := l.f.Close(); err == nil {
			err = cerr
		}
		l.f = nil
	}
	l.jw = nil
	l.hour = ""
	l.pending = 0
	return err
}

func (l *ConsoleLogger) pathForHour(hour string) string {
	return filepath.Join(l.dir, fmt.Sprintf("console-%s.jsonl.zst", hour))
}
