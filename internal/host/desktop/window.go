// Package desktop hosts a playground in a native window. The window owns the
// real pointer, so it is the playground's capture host, and it renders the
// scene graph in software.
package desktop

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"voxelplay.ai/internal/host/desktop/render"
	"voxelplay.ai/internal/persistence/voxelfile"
	"voxelplay.ai/internal/script"
	"voxelplay.ai/internal/sim/camera"
	"voxelplay.ai/internal/sim/playground"
	"voxelplay.ai/internal/viewerproto"
)

type Options struct {
	// ScriptPath is run on F5. Empty runs the built-in house example.
	ScriptPath string
	// ExportPath receives the world on F9.
	ExportPath string
	// ConsoleLines is how many console lines are overlaid.
	ConsoleLines int
}

type Window struct {
	pg     *playground.Playground
	graph  *render.Graph
	opts   Options
	logger *log.Logger

	width, height int

	captured     bool
	wantCapture  bool
	wantRelease  bool
	lastX, lastY int
	haveCursor   bool

	white *ebiten.Image
	verts []ebiten.Vertex
}

var keyNames = map[ebiten.Key]string{
	ebiten.KeyW:          "w",
	ebiten.KeyA:          "a",
	ebiten.KeyS:          "s",
	ebiten.KeyD:          "d",
	ebiten.KeySpace:      "space",
	ebiten.KeyShiftLeft:  "shift",
	ebiten.KeyShiftRight: "shift",
	ebiten.KeyEscape:     "escape",
	ebiten.KeyEnter:      "enter",
}

// New builds the window and a playground wired to it. cfg.Graph and
// cfg.Host are set by New.
func New(cfg playground.Config, opts Options) (*Window, error) {
	if opts.ExportPath == "" {
		opts.ExportPath = voxelfile.DefaultFileName
	}
	if opts.ConsoleLines <= 0 {
		opts.ConsoleLines = 8
	}
	w := &Window{graph: render.NewGraph(), opts: opts, logger: cfg.Logger, width: 1280, height: 800}
	if w.logger == nil {
		w.logger = log.New(os.Stdout, "[desktop] ", log.LstdFlags|log.Lmicroseconds)
	}
	cfg.Graph = w.graph
	cfg.Host = w
	pg, err := playground.New(cfg)
	if err != nil {
		return nil, err
	}
	w.pg = pg
	return w, nil
}

func (w *Window) Playground() *playground.Playground { return w.pg }

// Run opens the window and blocks until it closes.
func (w *Window) Run() error {
	ebiten.SetWindowTitle("voxelplay")
	ebiten.SetWindowSize(w.width, w.height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(w.pg.Tuning().FrameRateHz)
	return ebiten.RunGame(w)
}

// RequestCapture asks for pointer capture; the grant is observed in Update.
func (w *Window) RequestCapture() { w.wantCapture = true }

func (w *Window) ReleaseCapture() { w.wantRelease = true }

func (w *Window) Update() error {
	w.applyCaptureRequests()
	w.pollCapture()
	w.pollKeys()
	w.pollMouse()
	w.pollCommands()
	w.pg.StepOnce()
	return nil
}

func (w *Window) applyCaptureRequests() {
	if w.wantCapture {
		w.wantCapture = false
		ebiten.SetCursorMode(ebiten.CursorModeCaptured)
	}
	if w.wantRelease {
		w.wantRelease = false
		ebiten.SetCursorMode(ebiten.CursorModeVisible)
	}
}

// pollCapture reports capture changes, including loss the player did not ask
// for such as the window losing focus.
func (w *Window) pollCapture() {
	captured := ebiten.CursorMode() == ebiten.CursorModeCaptured && ebiten.IsFocused()
	if captured == w.captured {
		return
	}
	w.captured = captured
	w.haveCursor = false
	if !captured && ebiten.CursorMode() == ebiten.CursorModeCaptured {
		ebiten.SetCursorMode(ebiten.CursorModeVisible)
	}
	w.pg.ApplyInput(playground.InputEvent{Kind: viewerproto.InputCaptureChange, Granted: captured})
}

func (w *Window) pollKeys() {
	for k, name := range keyNames {
		if inpututil.IsKeyJustPressed(k) {
			w.pg.ApplyInput(playground.InputEvent{Kind: viewerproto.InputKeyDown, Key: name})
		}
		if inpututil.IsKeyJustReleased(k) {
			w.pg.ApplyInput(playground.InputEvent{Kind: viewerproto.InputKeyUp, Key: name})
		}
	}
}

func (w *Window) pollMouse() {
	if !w.captured {
		if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
			w.pg.ApplyInput(playground.InputEvent{Kind: viewerproto.InputCaptureRequest})
		}
		return
	}
	x, y := ebiten.CursorPosition()
	if w.haveCursor && (x != w.lastX || y != w.lastY) {
		w.pg.ApplyInput(playground.InputEvent{Kind: viewerproto.InputMouseMove, DX: float64(x - w.lastX), DY: float64(y - w.lastY)})
	}
	w.lastX, w.lastY, w.haveCursor = x, y, true
}

func (w *Window) pollCommands() {
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		code, err := w.loadScript()
		if err != nil {
			w.logger.Printf("load script: %v", err)
			return
		}
		w.pg.RunScript(context.Background(), code)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		data, err := w.pg.Export()
		if err == nil {
			err = os.WriteFile(w.opts.ExportPath, data, 0o644)
		}
		if err != nil {
			w.logger.Printf("export: %v", err)
			return
		}
		w.logger.Printf("exported %d voxels to %s", w.pg.Store().Len(), w.opts.ExportPath)
	}
}

func (w *Window) loadScript() (string, error) {
	if w.opts.ScriptPath == "" {
		return script.DefaultScript(), nil
	}
	b, err := os.ReadFile(w.opts.ScriptPath)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	screen.Fill(rgba(render.SkyColor))
	if w.white == nil {
		img := ebiten.NewImage(3, 3)
		img.Fill(color.White)
		w.white = img.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
	}

	b := screen.Bounds()
	f := render.NewFrame(w.pg.Controller().Pose(), render.Viewport{Width: float64(b.Dx()), Height: float64(b.Dy())})
	f.AddGround(12, 8)
	f.AddPrimitives(w.graph.Primitives())
	for _, batch := range f.Batches() {
		w.verts = w.verts[:0]
		for _, v := range batch.Vertices {
			w.verts = append(w.verts, ebiten.Vertex{
				DstX: v.X, DstY: v.Y,
				SrcX: 1, SrcY: 1,
				ColorR: v.R, ColorG: v.G, ColorB: v.B, ColorA: v.A,
			})
		}
		screen.DrawTriangles(w.verts, batch.Indices, w.white, nil)
	}
	w.drawOverlay(screen)
}

func (w *Window) drawOverlay(screen *ebiten.Image) {
	ctrl := w.pg.Controller()
	pose := ctrl.Pose()
	hint := "click to look around, WASD/space/shift to move, esc to release, F5 run, F9 export"
	if ctrl.State() == camera.Locked {
		hint = "esc or enter to release"
	}
	status := fmt.Sprintf("voxels %d  pos %.1f %.1f %.1f  %s", w.pg.Store().Len(), pose.Position.X(), pose.Position.Y(), pose.Position.Z(), hint)
	ebitenutil.DebugPrintAt(screen, status, 8, 8)

	lines := w.pg.Console().Lines()
	if n := w.opts.ConsoleLines; len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	ebitenutil.DebugPrintAt(screen, sb.String(), 8, screen.Bounds().Dy()-16*len(lines)-8)
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

func rgba(c interface{ RGB() (uint8, uint8, uint8) }) color.RGBA {
	r, g, b := c.RGB()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
