// Package playground owns one voxel world and drives it from a single
// goroutine: input, script runs, imports and the per-frame camera update all
// happen on the loop, and viewers only talk to it over channels.
package playground

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"voxelplay.ai/internal/persistence/indexdb"
	logpkg "voxelplay.ai/internal/persistence/log"
	"voxelplay.ai/internal/script"
	"voxelplay.ai/internal/sim/camera"
	"voxelplay.ai/internal/sim/scene"
	"voxelplay.ai/internal/sim/tuning"
	"voxelplay.ai/internal/sim/voxel"
)

// Indexer receives run and save records. *indexdb.SQLiteIndex satisfies it.
type Indexer interface {
	RecordRun(indexdb.RunRecord)
	RecordSave(indexdb.SaveRecord)
}

// ConsoleArchive receives every console line, and EndRun once a run's lines
// are complete. *log.ConsoleLogger satisfies it.
type ConsoleArchive interface {
	WriteLine(logpkg.ConsoleEntry) error
	EndRun(runID string) error
}

type Config struct {
	Tuning tuning.Tuning
	Logger *log.Logger

	// Graph is an extra render graph fed alongside the viewer stream.
	Graph scene.Graph
	// Host grants pointer capture. When nil, capture requests are forwarded
	// to connected viewers.
	Host camera.Host

	Indexer Indexer
	Console ConsoleArchive

	// SnapshotDir enables autosave when non-empty.
	SnapshotDir   string
	KeepSnapshots int

	Now func() time.Time
}

type Playground struct {
	cfg    Config
	logger *log.Logger
	now    func() time.Time

	store    *voxel.Store
	sync     *scene.Sync
	rec      *scene.Recorder
	ctrl     *camera.Controller
	input    camera.InputState
	bindings camera.Bindings
	sandbox  *script.Sandbox
	console  *consoleSink

	frame     atomic.Uint64
	runSeq    uint64
	sessSeq   uint64
	dirty     bool
	lastSave  uint64
	lastPose  camera.Pose
	lastState camera.CaptureState

	viewers map[string]*viewerClient

	inputCh     chan InputEvent
	runCh       chan RunRequest
	exportCh    chan ExportRequest
	importCh    chan ImportRequest
	viewerJoin  chan ViewerJoinRequest
	viewerLeave chan string
	stop        chan struct{}
}

func New(cfg Config) (*Playground, error) {
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	bindings, err := cfg.Tuning.KeyBindings()
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.KeepSnapshots <= 0 {
		cfg.KeepSnapshots = 10
	}

	p := &Playground{
		cfg:      cfg,
		logger:   cfg.Logger,
		now:      cfg.Now,
		store:    voxel.NewStore(),
		rec:      &scene.Recorder{},
		bindings: bindings,
		viewers:  map[string]*viewerClient{},

		inputCh:     make(chan InputEvent, 1024),
		runCh:       make(chan RunRequest, 16),
		exportCh:    make(chan ExportRequest, 16),
		importCh:    make(chan ImportRequest, 16),
		viewerJoin:  make(chan ViewerJoinRequest, 16),
		viewerLeave: make(chan string, 16),
		stop:        make(chan struct{}),
	}

	graph := scene.Graph(p.rec)
	if cfg.Graph != nil {
		graph = scene.Fanout{p.rec, cfg.Graph}
	}
	p.sync = scene.NewSync(cfg.Tuning.VoxelSize, graph, nil)
	p.store.Observe(p.sync)

	host := cfg.Host
	if host == nil {
		host = viewerHost{p}
	}
	p.ctrl = camera.NewController(cfg.Tuning.CameraConfig(), host)
	p.lastPose = p.ctrl.Pose()

	p.console = &consoleSink{buf: script.NewBuffer(0), archive: cfg.Console, logger: p.logger}
	p.sandbox = script.New(p.store, p.console, script.Options{
		Timeout:      cfg.Tuning.ScriptTimeout(),
		DefaultColor: cfg.Tuning.Color(),
		Logger:       log.New(p.logger.Writer(), "[script] ", p.logger.Flags()),
		Now:          cfg.Now,
	})
	return p, nil
}

func (p *Playground) Store() *voxel.Store            { return p.store }
func (p *Playground) Scene() *scene.Sync             { return p.sync }
func (p *Playground) Controller() *camera.Controller { return p.ctrl }
func (p *Playground) Input() *camera.InputState      { return &p.input }
func (p *Playground) Console() *script.Buffer        { return p.console.buf }
func (p *Playground) Tuning() tuning.Tuning          { return p.cfg.Tuning }
func (p *Playground) Frame() uint64                  { return p.frame.Load() }
func (p *Playground) Dirty() bool                    { return p.dirty }

func (p *Playground) newRunID() string {
	p.runSeq++
	return fmt.Sprintf("R%06d", p.runSeq)
}

func (p *Playground) newSessionID() string {
	p.sessSeq++
	return fmt.Sprintf("V%06d", p.sessSeq)
}
