package scene

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"voxelplay.ai/internal/sim/voxel"
)

// Primitive is the renderable companion of one voxel.
type Primitive struct {
	ID       uint64
	Voxel    voxel.Voxel
	Position mgl64.Vec3
	Size     float64
	Geometry *Geometry
	Material *Material

	CastShadow    bool
	ReceiveShadow bool
}

func (p *Primitive) Released() bool {
	return p.Geometry.Released() && p.Material.Released()
}

// Graph is the render graph primitives are attached to.
type Graph interface {
	Attach(p *Primitive)
	Detach(p *Primitive)
	// Reset is called once after a clear has detached every primitive.
	Reset()
}

// Source is what Sync can be rebuilt from.
type Source interface {
	List() []voxel.Voxel
}

// Sync mirrors store mutations into primitives. It owns every primitive it
// creates and releases their resources in the same call that observed the
// removal.
type Sync struct {
	size  float64
	graph Graph
	res   *Resources

	nextID uint64
	index  map[voxel.Key]*Primitive
}

var _ voxel.Observer = (*Sync)(nil)

func NewSync(size float64, graph Graph, res *Resources) *Sync {
	if size <= 0 {
		size = 1
	}
	if graph == nil {
		graph = Discard{}
	}
	if res == nil {
		res = NewResources()
	}
	return &Sync{
		size:  size,
		graph: graph,
		res:   res,
		index: map[voxel.Key]*Primitive{},
	}
}

func (s *Sync) Len() int              { return len(s.index) }
func (s *Sync) VoxelSize() float64    { return s.size }
func (s *Sync) Resources() *Resources { return s.res }

func (s *Sync) OnInsert(v voxel.Voxel) {
	k := v.Key()
	if old := s.index[k]; old != nil {
		// Store and index disagree; the store wins.
		s.release(old)
	}
	s.nextID++
	p := &Primitive{
		ID:            s.nextID,
		Voxel:         v,
		Position:      mgl64.Vec3{float64(v.X), float64(v.Y) + s.size/2, float64(v.Z)},
		Size:          s.size,
		Geometry:      s.res.NewBox(s.size),
		Material:      s.res.NewMaterial(v.Color),
		CastShadow:    true,
		ReceiveShadow: true,
	}
	s.index[k] = p
	s.graph.Attach(p)
}

func (s *Sync) OnRemove(v voxel.Voxel) {
	k := v.Key()
	p := s.index[k]
	if p == nil {
		return
	}
	delete(s.index, k)
	s.release(p)
}

func (s *Sync) OnClear([]voxel.Voxel) {
	for _, p := range s.Primitives() {
		s.release(p)
	}
	s.index = map[voxel.Key]*Primitive{}
	s.graph.Reset()
}

func (s *Sync) release(p *Primitive) {
	s.graph.Detach(p)
	p.Geometry.Release()
	p.Material.Release()
}

// Rebuild drops every primitive and replays src.
func (s *Sync) Rebuild(src Source) {
	s.OnClear(nil)
	for _, v := range src.List() {
		s.OnInsert(v)
	}
}

func (s *Sync) Primitive(x, y, z int) (*Primitive, bool) {
	k, ok := voxel.KeyOf(x, y, z)
	if !ok {
		return nil, false
	}
	p, ok := s.index[k]
	return p, ok
}

// Primitives returns live primitives in creation order.
func (s *Sync) Primitives() []*Primitive {
	out := make([]*Primitive, 0, len(s.index))
	for _, p := range s.index {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
