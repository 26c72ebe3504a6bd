package render

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"voxelplay.ai/internal/sim/camera"
	"voxelplay.ai/internal/sim/scene"
	"voxelplay.ai/internal/sim/voxel"
)

func prim(id uint64, pos mgl64.Vec3, c voxel.Color) *scene.Primitive {
	res := scene.NewResources()
	return &scene.Primitive{ID: id, Position: pos, Size: 1, Geometry: res.NewBox(1), Material: res.NewMaterial(c)}
}

var vp = Viewport{Width: 800, Height: 600}

func TestProject_CenterAndBehind(t *testing.T) {
	f := NewFrame(camera.Pose{Position: mgl64.Vec3{0, 0, 5}}, vp)
	x, y, d, ok := f.Project(mgl64.Vec3{0, 0, 0})
	if !ok || math.Abs(x-400) > 1e-9 || math.Abs(y-300) > 1e-9 || math.Abs(d-5) > 1e-9 {
		t.Fatalf("origin projected to (%v, %v) depth %v ok=%v", x, y, d, ok)
	}
	if _, y, _, _ := f.Project(mgl64.Vec3{0, 1, 0}); y >= 300 {
		t.Fatalf("up should be above centre: %v", y)
	}
	if _, _, _, ok := f.Project(mgl64.Vec3{0, 0, 10}); ok {
		t.Fatalf("point behind the camera should not project")
	}
}

func TestAddPrimitives_BackfaceCulling(t *testing.T) {
	f := NewFrame(camera.Pose{Position: mgl64.Vec3{0, 0, 5}}, vp)
	f.AddPrimitives([]*scene.Primitive{prim(1, mgl64.Vec3{0, 0, 0}, 0xff0000)})
	if f.Faces != 1 || f.Culled != 5 {
		t.Fatalf("faces=%d culled=%d", f.Faces, f.Culled)
	}
	b := f.Batches()
	if len(b) != 1 || len(b[0].Vertices) != 4 || len(b[0].Indices) != 6 {
		t.Fatalf("batches: %+v", b)
	}
	v := b[0].Vertices[0]
	if v.G != 0 || v.B != 0 || v.R <= 0 || v.A != 1 {
		t.Fatalf("vertex color: %+v", v)
	}
}

func TestAddPrimitives_PaintersOrder(t *testing.T) {
	f := NewFrame(camera.Pose{Position: mgl64.Vec3{0, 0, 5}}, vp)
	f.AddPrimitives([]*scene.Primitive{
		prim(1, mgl64.Vec3{0, 0, 0}, 0xff0000),
		prim(2, mgl64.Vec3{0, 0, -3}, 0x0000ff),
	})
	if len(f.quads) != 2 {
		t.Fatalf("quads: %d", len(f.quads))
	}
	if f.quads[0].depth <= f.quads[1].depth {
		t.Fatalf("far quad must be drawn first: %v then %v", f.quads[0].depth, f.quads[1].depth)
	}
	if f.quads[0].color[2] == 0 {
		t.Fatalf("expected the blue cube first")
	}
}

func TestAddGround_BelowEye(t *testing.T) {
	pose := camera.LookAtOrigin(mgl64.Vec3{15, 10, 15})
	f := NewFrame(pose, vp)
	f.AddGround(4, 8)
	if len(f.quads) == 0 {
		t.Fatalf("no ground visible from the start pose")
	}
	for i := 1; i < len(f.quads); i++ {
		if f.quads[i-1].depth < f.quads[i].depth {
			t.Fatalf("ground not sorted back to front at %d", i)
		}
	}
}

func TestShade(t *testing.T) {
	if s := Shade(mgl64.Vec3{0, 1, 0}); s != 1 {
		t.Fatalf("top: %v", s)
	}
	if s := Shade(mgl64.Vec3{0, -1, 0}); math.Abs(s-0.9) > 1e-12 {
		t.Fatalf("bottom: %v", s)
	}
}

func TestBatches_Split(t *testing.T) {
	f := &Frame{}
	for i := 0; i < maxBatchVertices/4+1; i++ {
		f.quads = append(f.quads, quad{})
	}
	b := f.Batches()
	if len(b) != 2 || len(b[1].Vertices) != 4 {
		t.Fatalf("batches: %d", len(b))
	}
}

func TestGraph(t *testing.T) {
	g := NewGraph()
	a, b := prim(2, mgl64.Vec3{}, 1), prim(1, mgl64.Vec3{}, 1)
	g.Attach(a)
	g.Attach(b)
	if ps := g.Primitives(); len(ps) != 2 || ps[0].ID != 1 {
		t.Fatalf("primitives: %+v", ps)
	}
	g.Detach(a)
	if g.Len() != 1 {
		t.Fatalf("len: %d", g.Len())
	}
	g.Reset()
	if g.Len() != 0 {
		t.Fatalf("reset: %d", g.Len())
	}
}
