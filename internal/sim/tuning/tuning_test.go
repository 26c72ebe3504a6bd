package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"voxelplay.ai/internal/sim/camera"
)

func TestLoad_RepoConfig(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "playground.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.Color() != 0x4caf50 {
		t.Fatalf("default color: %v", tu.Color())
	}
	b, err := tu.KeyBindings()
	if err != nil {
		t.Fatalf("bindings: %v", err)
	}
	if k, ok := b.Lookup(" "); !ok || k != camera.KeyAscend {
		t.Fatalf("space binding: %v %v", k, ok)
	}
	if !b.IsRelease("escape") {
		t.Fatalf("escape should release capture")
	}
	if got := tu.CameraConfig().Start; got.X() != 15 || got.Y() != 10 {
		t.Fatalf("camera start: %v", got)
	}
}

func TestLoad_PartialOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "playground.yaml")
	if err := os.WriteFile(p, []byte("script_timeout_ms: 250\ncamera:\n  move_speed: 0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.ScriptTimeoutMs != 250 || tu.Camera.MoveSpeed != 0.5 {
		t.Fatalf("overrides not applied: %+v", tu)
	}
	if tu.Camera.LookSpeed != Defaults().Camera.LookSpeed || tu.FrameRateHz != 60 {
		t.Fatalf("defaults lost: %+v", tu)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := []string{
		"voxel_size: 0\n",
		"default_color: \"nope\"\n",
		"bindings:\n  q: jump\n",
		"frame_rate_hz: -1\n",
		"voxel_size: [\n",
	}
	for _, body := range cases {
		p := filepath.Join(t.TempDir(), "playground.yaml")
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(p); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
