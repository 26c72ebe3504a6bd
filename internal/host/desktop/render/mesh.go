// Package render turns scene primitives into screen-space triangles for a
// software painter's-order renderer.
package render

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"voxelplay.ai/internal/sim/camera"
	"voxelplay.ai/internal/sim/scene"
	"voxelplay.ai/internal/sim/voxel"
)

const (
	FovY = 75.0
	Near = 0.1
	Far  = 1000.0

	ambient     = 0.9
	directional = 0.4

	// A batch must stay addressable by uint16 indices.
	maxBatchVertices = 65532
)

var (
	SkyColor    = voxel.Color(0x87ceeb)
	GroundColor = voxel.Color(0x808080)

	lightDir = mgl64.Vec3{10, 10, 5}.Normalize()
)

// Vertex is a screen-space vertex with a linear RGBA color in [0, 1].
type Vertex struct {
	X, Y       float32
	R, G, B, A float32
}

// Batch is a triangle list addressable by uint16 indices.
type Batch struct {
	Vertices []Vertex
	Indices  []uint16
}

type Viewport struct {
	Width, Height float64
}

// Projection is the perspective matrix the window renders with.
func (vp Viewport) Projection() mgl64.Mat4 {
	aspect := 1.0
	if vp.Height > 0 {
		aspect = vp.Width / vp.Height
	}
	return mgl64.Perspective(mgl64.DegToRad(FovY), aspect, Near, Far)
}

type face struct {
	normal  mgl64.Vec3
	corners [4]mgl64.Vec3
}

// unit cube faces centred on the origin, corners wound counter-clockwise
// seen from outside.
var cubeFaces = [6]face{
	{mgl64.Vec3{0, 1, 0}, [4]mgl64.Vec3{{-.5, .5, -.5}, {-.5, .5, .5}, {.5, .5, .5}, {.5, .5, -.5}}},
	{mgl64.Vec3{0, -1, 0}, [4]mgl64.Vec3{{-.5, -.5, -.5}, {.5, -.5, -.5}, {.5, -.5, .5}, {-.5, -.5, .5}}},
	{mgl64.Vec3{1, 0, 0}, [4]mgl64.Vec3{{.5, -.5, -.5}, {.5, .5, -.5}, {.5, .5, .5}, {.5, -.5, .5}}},
	{mgl64.Vec3{-1, 0, 0}, [4]mgl64.Vec3{{-.5, -.5, -.5}, {-.5, -.5, .5}, {-.5, .5, .5}, {-.5, .5, -.5}}},
	{mgl64.Vec3{0, 0, 1}, [4]mgl64.Vec3{{-.5, -.5, .5}, {.5, -.5, .5}, {.5, .5, .5}, {-.5, .5, .5}}},
	{mgl64.Vec3{0, 0, -1}, [4]mgl64.Vec3{{-.5, -.5, -.5}, {-.5, .5, -.5}, {.5, .5, -.5}, {.5, -.5, -.5}}},
}

// Shade is the lit intensity of a surface with normal n.
func Shade(n mgl64.Vec3) float64 {
	return math.Min(1, ambient+directional*math.Max(0, n.Dot(lightDir)))
}

type quad struct {
	pts   [4][2]float64
	depth float64
	color [3]float64
}

// Frame projects everything visible from pose: ground tiles first, then
// voxel faces, each sorted back to front.
type Frame struct {
	vp   Viewport
	eye  mgl64.Vec3
	mvp  mgl64.Mat4
	view mgl64.Mat4

	quads  []quad
	Faces  int
	Culled int
}

func NewFrame(pose camera.Pose, vp Viewport) *Frame {
	view := pose.ViewMatrix()
	return &Frame{
		vp:   vp,
		eye:  pose.Position,
		view: view,
		mvp:  vp.Projection().Mul4(view),
	}
}

// Project maps a world point to screen coordinates. ok is false for points
// at or behind the near plane.
func (f *Frame) Project(p mgl64.Vec3) (x, y, depth float64, ok bool) {
	c := f.mvp.Mul4x1(p.Vec4(1))
	if c.W() <= Near {
		return 0, 0, 0, false
	}
	ndc := c.Vec3().Mul(1 / c.W())
	x = (ndc.X() + 1) / 2 * f.vp.Width
	y = (1 - ndc.Y()) / 2 * f.vp.Height
	return x, y, c.W(), true
}

func (f *Frame) addQuad(corners [4]mgl64.Vec3, rgb [3]float64, shade float64) bool {
	var q quad
	for i, c := range corners {
		x, y, d, ok := f.Project(c)
		if !ok {
			return false
		}
		q.pts[i] = [2]float64{x, y}
		q.depth += d / 4
	}
	q.color = [3]float64{rgb[0] * shade, rgb[1] * shade, rgb[2] * shade}
	f.quads = append(f.quads, q)
	return true
}

func colorRGB(c voxel.Color) [3]float64 {
	r, g, b := c.RGB()
	return [3]float64{float64(r) / 255, float64(g) / 255, float64(b) / 255}
}

// AddGround lays ground tiles around the eye at y = -0.01.
func (f *Frame) AddGround(radius int, tile float64) {
	cx := math.Floor(f.eye.X()/tile) * tile
	cz := math.Floor(f.eye.Z()/tile) * tile
	rgb := colorRGB(GroundColor)
	shade := Shade(mgl64.Vec3{0, 1, 0})
	start := len(f.quads)
	for i := -radius; i < radius; i++ {
		for j := -radius; j < radius; j++ {
			x0, z0 := cx+float64(i)*tile, cz+float64(j)*tile
			x1, z1 := x0+tile, z0+tile
			const y = -0.01
			f.addQuad([4]mgl64.Vec3{{x0, y, z0}, {x0, y, z1}, {x1, y, z1}, {x1, y, z0}}, rgb, shade)
		}
	}
	sortBackToFront(f.quads[start:])
}

// AddPrimitives projects every visible face of the primitives' cubes.
func (f *Frame) AddPrimitives(prims []*scene.Primitive) {
	start := len(f.quads)
	for _, p := range prims {
		rgb := colorRGB(p.Material.Color)
		for _, fc := range cubeFaces {
			var corners [4]mgl64.Vec3
			for i, c := range fc.corners {
				corners[i] = p.Position.Add(c.Mul(p.Size))
			}
			center := p.Position.Add(fc.normal.Mul(p.Size / 2))
			if fc.normal.Dot(f.eye.Sub(center)) <= 0 {
				f.Culled++
				continue
			}
			if f.addQuad(corners, rgb, Shade(fc.normal)) {
				f.Faces++
			}
		}
	}
	sortBackToFront(f.quads[start:])
}

func sortBackToFront(qs []quad) {
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].depth > qs[j].depth })
}

// Batches flattens the projected quads into uint16-indexed triangle lists.
func (f *Frame) Batches() []Batch {
	var out []Batch
	var cur Batch
	for _, q := range f.quads {
		if len(cur.Vertices)+4 > maxBatchVertices {
			out = append(out, cur)
			cur = Batch{}
		}
		base := uint16(len(cur.Vertices))
		for _, pt := range q.pts {
			cur.Vertices = append(cur.Vertices, Vertex{
				X: float32(pt[0]), Y: float32(pt[1]),
				R: float32(q.color[0]), G: float32(q.color[1]), B: float32(q.color[2]), A: 1,
			})
		}
		cur.Indices = append(cur.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	if len(cur.Vertices) > 0 {
		out = append(out, cur)
	}
	return out
}
