package playground

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"

	"voxelplay.ai/internal/persistence/indexdb"
	"voxelplay.ai/internal/persistence/snapshot"
	"voxelplay.ai/internal/persistence/voxelfile"
	"voxelplay.ai/internal/sim/camera"
)

func (p *Playground) ExportSnapshot() snapshot.SnapshotV1 {
	pose := p.ctrl.Pose()
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: p.cfg.Tuning.WorldID,
			SavedAt: p.now().UTC(),
		},
		VoxelSize:    p.cfg.Tuning.VoxelSize,
		DefaultColor: int(p.cfg.Tuning.Color()),
		Voxels:       voxelfile.Export(p.store),
		Camera: snapshot.CameraV1{
			Position: [3]float64(pose.Position),
			Yaw:      pose.Yaw,
			Pitch:    pose.Pitch,
		},
	}
}

// ImportSnapshot replaces the world and camera pose with the snapshot.
// This must be called only when the loop is stopped or from the loop goroutine.
func (p *Playground) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.WorldID != "" && s.Header.WorldID != p.cfg.Tuning.WorldID {
		return fmt.Errorf("snapshot world %q does not match %q", s.Header.WorldID, p.cfg.Tuning.WorldID)
	}
	if _, err := voxelfile.ImportRecords(p.store, s.Voxels); err != nil {
		return err
	}
	p.ctrl.SetPose(camera.Pose{
		Position: mgl64.Vec3(s.Camera.Position),
		Yaw:      s.Camera.Yaw,
		Pitch:    s.Camera.Pitch,
	})
	p.dirty = false
	p.lastSave = p.frame.Load()
	return nil
}

// SaveSnapshot writes the current state to path.
func (p *Playground) SaveSnapshot(path string) error {
	snap := p.ExportSnapshot()
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return err
	}
	p.dirty = false
	p.lastSave = p.frame.Load()
	if p.cfg.Indexer != nil {
		p.cfg.Indexer.RecordSave(indexdb.SaveRecord{Path: path, Kind: indexdb.SaveSnapshot, Voxels: len(snap.Voxels), SavedAt: snap.Header.SavedAt})
	}
	return nil
}

// Autosave writes a timestamped snapshot into the snapshot dir and prunes
// old ones.
func (p *Playground) Autosave() (string, error) {
	if p.cfg.SnapshotDir == "" {
		return "", fmt.Errorf("no snapshot dir configured")
	}
	path := filepath.Join(p.cfg.SnapshotDir, snapshot.FileName(p.now()))
	if err := p.SaveSnapshot(path); err != nil {
		return "", err
	}
	if _, err := snapshot.Prune(p.cfg.SnapshotDir, p.cfg.KeepSnapshots); err != nil {
		p.logger.Printf("prune snapshots: %v", err)
	}
	p.logger.Printf("snapshot saved: %s (%d voxels)", path, p.store.Len())
	return path, nil
}

// LoadLatest restores the newest snapshot in the snapshot dir. It returns
// "" when there is nothing to load.
func (p *Playground) LoadLatest() (string, error) {
	path, err := snapshot.Latest(p.cfg.SnapshotDir)
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			return "", nil
		}
		return "", err
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if err := p.ImportSnapshot(snap); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return path, nil
}
