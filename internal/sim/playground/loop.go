package playground

import (
	"context"
	"errors"
	"time"

	"voxelplay.ai/internal/persistence/indexdb"
	"voxelplay.ai/internal/persistence/voxelfile"
	"voxelplay.ai/internal/script"
	"voxelplay.ai/internal/sim/camera"
)

type RunRequest struct {
	Code string
	Resp chan RunOutcome
}

type RunOutcome struct {
	RunID  string
	Result script.Result
	Voxels int
}

type ExportRequest struct {
	Resp chan ExportResult
}

type ExportResult struct {
	Data   []byte
	Voxels int
	Err    error
}

type ImportRequest struct {
	Data []byte
	Resp chan ImportResult
}

type ImportResult struct {
	Voxels int
	Err    error
}

func (p *Playground) Inputs() chan<- InputEvent            { return p.inputCh }
func (p *Playground) Runs() chan<- RunRequest              { return p.runCh }
func (p *Playground) Exports() chan<- ExportRequest        { return p.exportCh }
func (p *Playground) Imports() chan<- ImportRequest        { return p.importCh }
func (p *Playground) ViewerJoin() chan<- ViewerJoinRequest { return p.viewerJoin }
func (p *Playground) ViewerLeave() chan<- string           { return p.viewerLeave }

// Run drives the playground until ctx ends or Stop is called. Script runs
// execute inline, so frames stall while a script is running.
func (p *Playground) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(p.cfg.Tuning.FrameRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer p.closeViewers()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stop:
			return nil
		case ev := <-p.inputCh:
			p.ApplyInput(ev)
		case req := <-p.viewerJoin:
			p.handleViewerJoin(req)
		case id := <-p.viewerLeave:
			p.handleViewerLeave(id)
		case req := <-p.runCh:
			out := p.RunScript(ctx, req.Code)
			if req.Resp != nil {
				req.Resp <- out
			}
		case req := <-p.exportCh:
			data, err := p.Export()
			if req.Resp != nil {
				req.Resp <- ExportResult{Data: data, Voxels: p.store.Len(), Err: err}
			}
		case req := <-p.importCh:
			n, err := p.Import(req.Data)
			if req.Resp != nil {
				req.Resp <- ImportResult{Voxels: n, Err: err}
			}
		case <-ticker.C:
			p.StepOnce()
		}
	}
}

func (p *Playground) Stop() { close(p.stop) }

// StepOnce advances one frame: camera movement from the held keys, then the
// scene, pose and console deltas go out to viewers, then autosave.
func (p *Playground) StepOnce() camera.Pose {
	frame := p.frame.Add(1)
	p.ctrl.UpdatePose(&p.input)
	p.flushViewers(frame)
	if every := uint64(p.cfg.Tuning.AutosaveEveryFrames); every > 0 && p.cfg.SnapshotDir != "" && p.dirty && frame-p.lastSave >= every {
		if _, err := p.Autosave(); err != nil {
			p.logger.Printf("autosave: %v", err)
		}
	}
	return p.ctrl.Pose()
}

// RunScript executes code against the world and reports it to the console,
// the index and viewers.
func (p *Playground) RunScript(ctx context.Context, code string) RunOutcome {
	runID := p.newRunID()
	before := p.store.Len()
	p.console.setRun(runID)
	res := p.sandbox.Execute(ctx, code)
	p.console.endRun()
	if res.Mutations > 0 {
		p.dirty = true
	}
	out := RunOutcome{RunID: runID, Result: res, Voxels: p.store.Len()}

	if p.cfg.Indexer != nil {
		rec := indexdb.RunRecord{
			ID:           runID,
			StartedAt:    res.Started,
			Duration:     res.Duration,
			CodeDigest:   indexdb.CodeDigest(code),
			Status:       runStatus(res.Err),
			Lines:        len(res.Lines),
			VoxelsBefore: before,
			VoxelsAfter:  out.Voxels,
		}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		p.cfg.Indexer.RecordRun(rec)
	}
	if res.Err != nil {
		p.logger.Printf("run %s: %v", runID, res.Err)
	}
	p.flushViewers(p.frame.Load())
	p.broadcastRunResult(out)
	return out
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return indexdb.RunOK
	case errors.Is(err, script.ErrTimeout):
		return indexdb.RunTimeout
	case errors.Is(err, script.ErrBusy):
		return indexdb.RunBusy
	default:
		return indexdb.RunError
	}
}

// Export renders the world as the portable JSON file.
func (p *Playground) Export() ([]byte, error) {
	data, err := voxelfile.Marshal(p.store)
	if err != nil {
		return nil, err
	}
	if p.cfg.Indexer != nil {
		p.cfg.Indexer.RecordSave(indexdb.SaveRecord{Path: voxelfile.DefaultFileName, Kind: indexdb.SaveExport, Voxels: p.store.Len(), SavedAt: p.now()})
	}
	return data, nil
}

// Import replaces the world with a portable JSON file. On error the world is
// unchanged.
func (p *Playground) Import(data []byte) (int, error) {
	n, err := voxelfile.Import(p.store, data)
	if err != nil {
		return 0, err
	}
	p.dirty = true
	if p.cfg.Indexer != nil {
		p.cfg.Indexer.RecordSave(indexdb.SaveRecord{Path: voxelfile.DefaultFileName, Kind: indexdb.SaveImport, Voxels: n, SavedAt: p.now()})
	}
	p.logger.Printf("imported %d voxels", n)
	p.flushViewers(p.frame.Load())
	return n, nil
}
