package render

import (
	"sort"

	"voxelplay.ai/internal/sim/scene"
)

// Graph is the in-process render graph: the set of primitives currently
// attached, looked up by id.
type Graph struct {
	prims map[uint64]*scene.Primitive
}

func NewGraph() *Graph { return &Graph{prims: map[uint64]*scene.Primitive{}} }

func (g *Graph) Attach(p *scene.Primitive) { g.prims[p.ID] = p }
func (g *Graph) Detach(p *scene.Primitive) { delete(g.prims, p.ID) }
func (g *Graph) Reset()                    { g.prims = map[uint64]*scene.Primitive{} }
func (g *Graph) Len() int                  { return len(g.prims) }

// Primitives returns the attached primitives ordered by id.
func (g *Graph) Primitives() []*scene.Primitive {
	out := make([]*scene.Primitive, 0, len(g.prims))
	for _, p := range g.prims {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
