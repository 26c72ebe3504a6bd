package script

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"

	"github.com/traefik/yaegi/interp"

	"voxelplay.ai/internal/sim/voxel"
)

// World is the store surface scripts may touch.
type World interface {
	Set(x, y, z int, c voxel.Color) (bool, error)
	Remove(x, y, z int) bool
	Get(x, y, z int) (voxel.Voxel, bool)
	Clear()
	List() []voxel.Voxel
	Len() int
}

// Voxel is the record scripts see. Color is 0xRRGGBB.
type Voxel struct {
	X     int
	Y     int
	Z     int
	Color int
}

func (v Voxel) String() string {
	return fmt.Sprintf("{x:%d y:%d z:%d color:%s}", v.X, v.Y, v.Z, voxel.Color(v.Color).Hex())
}

func fromVoxel(v voxel.Voxel) Voxel {
	return Voxel{X: v.X, Y: v.Y, Z: v.Z, Color: int(v.Color)}
}

// binding is the only path from interpreted code to the host. Every call is
// serialized on mu; once revoked, calls return zero values and nothing
// reaches the world or the console.
type binding struct {
	mu      sync.Mutex
	revoked bool

	world        World
	defaultColor voxel.Color
	con          *console
	mutations    int
}

// enter locks the binding. It returns false, unlocked, once revoked.
func (b *binding) enter() bool {
	b.mu.Lock()
	if b.revoked {
		b.mu.Unlock()
		return false
	}
	return true
}

func (b *binding) revoke() {
	b.mu.Lock()
	b.revoked = true
	b.mu.Unlock()
}

func (b *binding) setVoxel(x, y, z int, color ...any) {
	if !b.enter() {
		return
	}
	defer b.mu.Unlock()
	c := b.defaultColor
	switch {
	case len(color) > 1:
		panic(fmt.Errorf("SetVoxel(%d, %d, %d): at most one color argument", x, y, z))
	case len(color) == 1 && color[0] != nil && color[0] != "":
		parsed, err := voxel.ParseColor(color[0])
		if err != nil {
			panic(fmt.Errorf("SetVoxel(%d, %d, %d): %w", x, y, z, err))
		}
		c = parsed
	}
	inserted, err := b.world.Set(x, y, z, c)
	if err != nil {
		panic(fmt.Errorf("SetVoxel(%d, %d, %d): %w", x, y, z, err))
	}
	if inserted {
		b.mutations++
	}
}

func (b *binding) removeVoxel(x, y, z int) {
	if !b.enter() {
		return
	}
	defer b.mu.Unlock()
	if b.world.Remove(x, y, z) {
		b.mutations++
	}
}

func (b *binding) getVoxel(x, y, z int) *Voxel {
	if !b.enter() {
		return nil
	}
	defer b.mu.Unlock()
	v, ok := b.world.Get(x, y, z)
	if !ok {
		return nil
	}
	out := fromVoxel(v)
	return &out
}

func (b *binding) clearAll() {
	if !b.enter() {
		return
	}
	defer b.mu.Unlock()
	if b.world.Len() > 0 {
		b.mutations++
	}
	b.world.Clear()
}

func (b *binding) getVoxels() []Voxel {
	if !b.enter() {
		return nil
	}
	defer b.mu.Unlock()
	vs := b.world.List()
	out := make([]Voxel, len(vs))
	for i, v := range vs {
		out[i] = fromVoxel(v)
	}
	return out
}

func (b *binding) log(args ...any) {
	if !b.enter() {
		return
	}
	defer b.mu.Unlock()
	b.con.emit(LevelLog, formatArgs(args))
}

func (b *binding) error(args ...any) {
	if !b.enter() {
		return
	}
	defer b.mu.Unlock()
	b.con.emit(LevelError, formatArgs(args))
}

func (b *binding) clearConsole() {
	if !b.enter() {
		return
	}
	defer b.mu.Unlock()
	b.con.clear()
}

// lineWriter turns builtin print/println output into console lines.
type lineWriter struct {
	b     *binding
	level Level
	buf   []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	if !w.b.enter() {
		return len(p), nil
	}
	defer w.b.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.b.con.emit(w.level, string(w.buf[:i]))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// flush emits a trailing partial line unless the binding was revoked.
func (w *lineWriter) flush() {
	w.b.mu.Lock()
	defer w.b.mu.Unlock()
	if w.b.revoked || len(w.buf) == 0 {
		return
	}
	w.b.con.emit(w.level, string(w.buf))
	w.buf = nil
}

// exports is the complete symbol table visible to scripts.
func (b *binding) exports() interp.Exports {
	return interp.Exports{
		"voxelplay/api/api": {
			"SetVoxel":    reflect.ValueOf(b.setVoxel),
			"RemoveVoxel": reflect.ValueOf(b.removeVoxel),
			"GetVoxel":    reflect.ValueOf(b.getVoxel),
			"ClearAll":    reflect.ValueOf(b.clearAll),
			"GetVoxels":   reflect.ValueOf(b.getVoxels),
			"Voxel":       reflect.ValueOf((*Voxel)(nil)),
		},
		"voxelplay/console/console": {
			"Log":   reflect.ValueOf(b.log),
			"Error": reflect.ValueOf(b.error),
			"Clear": reflect.ValueOf(b.clearConsole),
		},
	}
}
