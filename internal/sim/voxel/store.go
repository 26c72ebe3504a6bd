package voxel

import (
	"errors"
	"fmt"
)

var ErrOutOfRange = errors.New("coordinate out of range")

type Voxel struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Z     int   `json:"z"`
	Color Color `json:"color"`
}

func (v Voxel) Key() Key {
	k, _ := KeyOf(v.X, v.Y, v.Z)
	return k
}

// Observer is notified synchronously after a mutation has been applied.
type Observer interface {
	OnInsert(v Voxel)
	OnRemove(v Voxel)
	OnClear(removed []Voxel)
}

type slot struct {
	v    Voxel
	live bool
}

// Store is the authoritative sparse voxel map. Enumeration follows insertion
// order. It is not safe for concurrent use; the playground loop owns it.
type Store struct {
	index map[Key]int
	slots []slot
	dead  int

	observers []Observer
}

func NewStore() *Store {
	return &Store{index: map[Key]int{}}
}

func (s *Store) Observe(o Observer) {
	if o == nil {
		return
	}
	s.observers = append(s.observers, o)
}

func (s *Store) Len() int { return len(s.index) }

// Set inserts a voxel when the coordinate is free. An occupied coordinate is
// left untouched and reported as inserted=false.
func (s *Store) Set(x, y, z int, c Color) (inserted bool, err error) {
	k, ok := KeyOf(x, y, z)
	if !ok {
		return false, fmt.Errorf("%w: (%d,%d,%d)", ErrOutOfRange, x, y, z)
	}
	if !c.Valid() {
		return false, fmt.Errorf("%w: %#x", ErrBadColor, uint32(c))
	}
	if _, exists := s.index[k]; exists {
		return false, nil
	}
	v := Voxel{X: x, Y: y, Z: z, Color: c}
	s.index[k] = len(s.slots)
	s.slots = append(s.slots, slot{v: v, live: true})
	for _, o := range s.observers {
		o.OnInsert(v)
	}
	return true, nil
}

func (s *Store) Get(x, y, z int) (Voxel, bool) {
	k, ok := KeyOf(x, y, z)
	if !ok {
		return Voxel{}, false
	}
	i, exists := s.index[k]
	if !exists {
		return Voxel{}, false
	}
	return s.slots[i].v, true
}

func (s *Store) Has(x, y, z int) bool {
	_, ok := s.Get(x, y, z)
	return ok
}

func (s *Store) Remove(x, y, z int) bool {
	k, ok := KeyOf(x, y, z)
	if !ok {
		return false
	}
	i, exists := s.index[k]
	if !exists {
		return false
	}
	v := s.slots[i].v
	delete(s.index, k)
	s.slots[i] = slot{}
	s.dead++
	if s.dead > 64 && s.dead > len(s.slots)/2 {
		s.compact()
	}
	for _, o := range s.observers {
		o.OnRemove(v)
	}
	return true
}

// Clear drops every entry before observers hear about it, so an observer
// reading the store during OnClear sees it empty.
func (s *Store) Clear() {
	removed := s.List()
	s.index = map[Key]int{}
	s.slots = nil
	s.dead = 0
	for _, o := range s.observers {
		o.OnClear(removed)
	}
}

// List returns a fresh copy of all voxels in insertion order.
func (s *Store) List() []Voxel {
	out := make([]Voxel, 0, len(s.index))
	for _, sl := range s.slots {
		if sl.live {
			out = append(out, sl.v)
		}
	}
	return out
}

// Each walks voxels in insertion order until fn returns false. fn must not
// mutate the store.
func (s *Store) Each(fn func(Voxel) bool) {
	for _, sl := range s.slots {
		if sl.live && !fn(sl.v) {
			return
		}
	}
}

func (s *Store) compact() {
	live := s.slots[:0]
	for _, sl := range s.slots {
		if !sl.live {
			continue
		}
		s.index[sl.v.Key()] = len(live)
		live = append(live, sl)
	}
	for i := len(live); i < len(s.slots); i++ {
		s.slots[i] = slot{}
	}
	s.slots = live
	s.dead = 0
}
