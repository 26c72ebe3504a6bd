package tuning

import (
	"fmt"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"voxelplay.ai/internal/sim/camera"
	"voxelplay.ai/internal/sim/voxel"
)

type Tuning struct {
	WorldID string `yaml:"world_id"`

	VoxelSize    float64 `yaml:"voxel_size"`
	DefaultColor string  `yaml:"default_color"`

	FrameRateHz         int `yaml:"frame_rate_hz"`
	ScriptTimeoutMs     int `yaml:"script_timeout_ms"`
	AutosaveEveryFrames int `yaml:"autosave_every_frames"`

	Camera   CameraTuning      `yaml:"camera"`
	Bindings map[string]string `yaml:"bindings"`
	Release  []string          `yaml:"release_keys"`
}

type CameraTuning struct {
	MoveSpeed float64    `yaml:"move_speed"`
	LookSpeed float64    `yaml:"look_speed"`
	Start     [3]float64 `yaml:"start"`
}

func Defaults() Tuning {
	return Tuning{
		WorldID:             "playground",
		VoxelSize:           1,
		DefaultColor:        "#4CAF50",
		FrameRateHz:         60,
		ScriptTimeoutMs:     5000,
		AutosaveEveryFrames: 600,
		Camera: CameraTuning{
			MoveSpeed: 0.1,
			LookSpeed: 0.002,
			Start:     [3]float64{15, 10, 15},
		},
		Bindings: map[string]string{
			"w":     "forward",
			"s":     "backward",
			"a":     "left",
			"d":     "right",
			"space": "ascend",
			"shift": "descend",
		},
		Release: []string{"escape", "enter"},
	}
}

// Load reads a tuning file on top of Defaults, so a partial file only
// overrides what it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("playground.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("playground.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.VoxelSize <= 0 {
		return fmt.Errorf("voxel_size must be > 0 (got %v)", t.VoxelSize)
	}
	if _, err := voxel.ParseColor(t.DefaultColor); err != nil {
		return fmt.Errorf("default_color: %w", err)
	}
	if t.FrameRateHz <= 0 || t.FrameRateHz > 1000 {
		return fmt.Errorf("frame_rate_hz out of range (got %d)", t.FrameRateHz)
	}
	if t.ScriptTimeoutMs <= 0 {
		return fmt.Errorf("script_timeout_ms must be > 0 (got %d)", t.ScriptTimeoutMs)
	}
	if t.AutosaveEveryFrames < 0 {
		return fmt.Errorf("autosave_every_frames must be >= 0 (got %d)", t.AutosaveEveryFrames)
	}
	if t.Camera.MoveSpeed <= 0 || t.Camera.LookSpeed <= 0 {
		return fmt.Errorf("camera speeds must be > 0")
	}
	if _, err := t.KeyBindings(); err != nil {
		return err
	}
	return nil
}

func (t Tuning) Color() voxel.Color {
	c, err := voxel.ParseColor(t.DefaultColor)
	if err != nil {
		c, _ = voxel.ParseColor(Defaults().DefaultColor)
	}
	return c
}

func (t Tuning) ScriptTimeout() time.Duration {
	return time.Duration(t.ScriptTimeoutMs) * time.Millisecond
}

func (t Tuning) CameraConfig() camera.Config {
	return camera.Config{
		MoveSpeed: t.Camera.MoveSpeed,
		LookSpeed: t.Camera.LookSpeed,
		Start:     mgl64.Vec3(t.Camera.Start),
	}
}

// KeyBindings resolves the physical→logical key table. "space" also binds
// the literal " " key name browsers report.
func (t Tuning) KeyBindings() (camera.Bindings, error) {
	b := camera.Bindings{Keys: map[string]camera.Key{}, Release: map[string]bool{}}
	for phys, logical := range t.Bindings {
		k, err := camera.ParseKey(logical)
		if err != nil {
			return b, fmt.Errorf("bindings[%q]: %w", phys, err)
		}
		b.Keys[phys] = k
		if phys == "space" {
			b.Keys[" "] = k
		}
	}
	for _, name := range t.Release {
		b.Release[name] = true
	}
	return b, nil
}
