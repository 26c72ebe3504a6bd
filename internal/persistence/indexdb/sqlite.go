package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteIndex is a secondary, queryable index of script runs and saves.
// Writes are queued to a single writer goroutine and dropped when the queue
// is full; the snapshot files and console archive stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRun  atomic.Uint64
	dropSave atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqSave
	reqFlush
)

type req struct {
	kind reqKind

	run  RunRecord
	save SaveRecord
	done chan struct{}
}

// RunRecord describes one finished script execution.
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	Duration     time.Duration
	CodeDigest   string
	Status       string
	Error        string
	Lines        int
	VoxelsBefore int
	VoxelsAfter  int
}

const (
	RunOK      = "ok"
	RunError   = "error"
	RunTimeout = "timeout"
	RunBusy    = "busy"
)

// SaveRecord describes one written snapshot or export.
type SaveRecord struct {
	Path    string
	Kind    string
	Voxels  int
	SavedAt time.Time
}

const (
	SaveSnapshot = "snapshot"
	SaveExport   = "export"
	SaveImport   = "import"
)

type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropRunTotal   uint64
	DropSaveTotal  uint64
	QueueDropTotal uint64
}

// tsLayout keeps a fixed width so stored timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// CodeDigest is the sha256 hex digest stored for a script's source.
func CodeDigest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			code_digest TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			lines INTEGER NOT NULL,
			voxels_before INTEGER NOT NULL,
			voxels_after INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS saves (
			path TEXT NOT NULL,
			kind TEXT NOT NULL,
			voxels INTEGER NOT NULL,
			saved_at TEXT NOT NULL,
			PRIMARY KEY (path, saved_at)
		);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// SetMeta stores a key/value pair synchronously.
func (s *SQLiteIndex) SetMeta(key, value string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, key, value)
	return err
}

func (s *SQLiteIndex) Meta(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	return v, err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) RecordRun(r RunRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRun.Add(1)
	}
}

func (s *SQLiteIndex) RecordSave(r SaveRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSave, save: r}:
	default:
		s.dropSave.Add(1)
	}
}

// Flush blocks until everything queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	st := Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropRunTotal:  s.dropRun.Load(),
		DropSaveTotal: s.dropSave.Load(),
	}
	st.QueueDropTotal = st.DropRunTotal + st.DropSaveTotal
	return st
}

// RecentRuns returns the newest runs first.
func (s *SQLiteIndex) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,started_at,duration_ms,code_digest,status,COALESCE(error,''),lines,voxels_before,voxels_after
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r       RunRecord
			started string
			ms      int64
		)
		if err := rows.Scan(&r.ID, &started, &ms, &r.CodeDigest, &r.Status, &r.Error, &r.Lines, &r.VoxelsBefore, &r.VoxelsAfter); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(tsLayout, started)
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentSaves returns the newest saves first, optionally filtered by kind.
func (s *SQLiteIndex) RecentSaves(ctx context.Context, kind string, limit int) ([]SaveRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT path,kind,voxels,saved_at FROM saves
		WHERE (?='' OR kind=?) ORDER BY saved_at DESC LIMIT ?`, kind, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaveRecord
	for rows.Next() {
		var (
			r     SaveRecord
			saved string
		)
		if err := rows.Scan(&r.Path, &r.Kind, &r.Voxels, &saved); err != nil {
			return nil, err
		}
		r.SavedAt, _ = time.Parse(tsLayout, saved)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(id,started_at,duration_ms,code_digest,status,error,lines,voxels_before,voxels_after) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSave, _ := s.db.Prepare(`INSERT OR REPLACE INTO saves(path,kind,voxels,saved_at) VALUES(?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertSave != nil {
			_ = insertSave.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			rr := r.run
			if insertRun != nil {
				var errText any
				if rr.Error != "" {
					errText = rr.Error
				}
				if _, err := tx.Stmt(insertRun).Exec(
					rr.ID,
					rr.StartedAt.UTC().Format(tsLayout),
					rr.Duration.Milliseconds(),
					rr.CodeDigest,
					rr.Status,
					errText,
					rr.Lines,
					rr.VoxelsBefore,
					rr.VoxelsAfter,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSave:
			sv := r.save
			if insertSave != nil {
				if _, err := tx.Stmt(insertSave).Exec(
					sv.Path,
					sv.Kind,
					sv.Voxels,
					sv.SavedAt.UTC().Format(tsLayout),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
