package playground

import "voxelplay.ai/internal/viewerproto"

// InputEvent is one host input notification. Kind takes the viewerproto
// input kinds.
type InputEvent struct {
	Kind    string
	Key     string
	DX, DY  float64
	Granted bool
}

// ApplyInput routes one input event to the controller or the key state.
// Must be called from the loop goroutine, or while the loop is not running.
func (p *Playground) ApplyInput(ev InputEvent) {
	switch ev.Kind {
	case viewerproto.InputKeyDown:
		if p.bindings.IsRelease(ev.Key) {
			p.ctrl.PressReleaseKey()
			return
		}
		if k, ok := p.bindings.Lookup(ev.Key); ok {
			p.input.Press(k)
		}
	case viewerproto.InputKeyUp:
		if k, ok := p.bindings.Lookup(ev.Key); ok {
			p.input.Release(k)
		}
	case viewerproto.InputMouseMove:
		p.ctrl.MouseMove(ev.DX, ev.DY)
	case viewerproto.InputCaptureRequest:
		p.ctrl.RequestCapture()
	case viewerproto.InputCaptureChange:
		p.ctrl.OnCaptureChange(ev.Granted)
		if !ev.Granted {
			// Key-up events are not delivered once focus is gone.
			p.input.Reset()
		}
	case viewerproto.InputRelease:
		p.ctrl.PressReleaseKey()
	}
}

// viewerHost forwards capture commands to connected viewers, which own the
// real pointer. The grant comes back as a capture_change input.
type viewerHost struct{ p *Playground }

func (h viewerHost) RequestCapture() { h.p.broadcastCapture(viewerproto.CaptureRequest) }
func (h viewerHost) ReleaseCapture() { h.p.broadcastCapture(viewerproto.CaptureRelease) }
