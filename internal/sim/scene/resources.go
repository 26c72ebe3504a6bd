package scene

import "voxelplay.ai/internal/sim/voxel"

// Resources hands out geometry/material handles and tracks which are still
// held. Release is idempotent.
type Resources struct {
	next      uint64
	allocated int
	released  int
}

func NewResources() *Resources { return &Resources{} }

// Live is the number of handles allocated and not yet released.
func (r *Resources) Live() int { return r.allocated - r.released }

func (r *Resources) Allocated() int { return r.allocated }

func (r *Resources) newID() uint64 {
	r.next++
	r.allocated++
	return r.next
}

type Geometry struct {
	ID   uint64
	Size float64

	pool     *Resources
	released bool
}

func (r *Resources) NewBox(size float64) *Geometry {
	return &Geometry{ID: r.newID(), Size: size, pool: r}
}

func (g *Geometry) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.pool.released++
}

func (g *Geometry) Released() bool { return g == nil || g.released }

type Material struct {
	ID    uint64
	Color voxel.Color

	pool     *Resources
	released bool
}

func (r *Resources) NewMaterial(c voxel.Color) *Material {
	return &Material{ID: r.newID(), Color: c, pool: r}
}

func (m *Material) Release() {
	if m == nil || m.released {
		return
	}
	m.released = true
	m.pool.released++
}

func (m *Material) Released() bool { return m == nil || m.released }
