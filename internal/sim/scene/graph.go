package scene

type Discard struct{}

func (Discard) Attach(*Primitive) {}
func (Discard) Detach(*Primitive) {}
func (Discard) Reset()            {}

// Fanout forwards to several graphs in order.
type Fanout []Graph

func (f Fanout) Attach(p *Primitive) {
	for _, g := range f {
		g.Attach(p)
	}
}

func (f Fanout) Detach(p *Primitive) {
	for _, g := range f {
		g.Detach(p)
	}
}

func (f Fanout) Reset() {
	for _, g := range f {
		g.Reset()
	}
}

type Op string

const (
	OpAdd    Op = "ADD"
	OpRemove Op = "REMOVE"
	OpClear  Op = "CLEAR"
)

// Event is a primitive lifecycle change in wire-friendly form.
type Event struct {
	Op      Op         `json:"op"`
	ID      uint64     `json:"id,omitempty"`
	Pos     [3]float64 `json:"pos,omitempty"`
	Size    float64    `json:"size,omitempty"`
	Color   string     `json:"color,omitempty"`
	Shadows bool       `json:"shadows,omitempty"`
	Voxel   [3]int     `json:"voxel,omitempty"`
}

func AddEvent(p *Primitive) Event {
	return Event{
		Op:      OpAdd,
		ID:      p.ID,
		Pos:     [3]float64{p.Position.X(), p.Position.Y(), p.Position.Z()},
		Size:    p.Size,
		Color:   p.Material.Color.Hex(),
		Shadows: p.CastShadow && p.ReceiveShadow,
		Voxel:   [3]int{p.Voxel.X, p.Voxel.Y, p.Voxel.Z},
	}
}

// Recorder buffers lifecycle events until drained. A reset supersedes every
// pending event with a single CLEAR.
type Recorder struct {
	pending []Event
}

func (r *Recorder) Attach(p *Primitive) { r.pending = append(r.pending, AddEvent(p)) }

func (r *Recorder) Detach(p *Primitive) {
	r.pending = append(r.pending, Event{Op: OpRemove, ID: p.ID})
}

func (r *Recorder) Reset() { r.pending = append(r.pending[:0], Event{Op: OpClear}) }

func (r *Recorder) Pending() int { return len(r.pending) }

func (r *Recorder) Drain() []Event {
	if len(r.pending) == 0 {
		return nil
	}
	out := r.pending
	r.pending = nil
	return out
}
