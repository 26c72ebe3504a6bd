package playground

import (
	"encoding/json"
	"errors"

	"voxelplay.ai/internal/script"
	"voxelplay.ai/internal/sim/scene"
	"voxelplay.ai/internal/viewerproto"
)

// ViewerJoinRequest registers a viewer session. The loop assigns the session
// id and sends WELCOME on Out before any other message.
type ViewerJoinRequest struct {
	Out  chan []byte
	Resp chan string
}

type viewerClient struct {
	id  string
	out chan []byte

	// resync is set when a scene delta could not be delivered; the next
	// frame sends the whole scene instead.
	resync bool
}

func (p *Playground) handleViewerJoin(req ViewerJoinRequest) {
	if req.Out == nil {
		return
	}
	// Pending deltas go to the existing viewers only. The newcomer's WELCOME
	// already reflects them.
	p.flushViewers(p.frame.Load())

	id := p.newSessionID()
	c := &viewerClient{id: id, out: req.Out}
	p.viewers[id] = c
	if req.Resp != nil {
		req.Resp <- id
	}
	if b, err := json.Marshal(p.welcome(id)); err == nil {
		if !trySend(c.out, b) {
			c.resync = true
		}
	}
}

func (p *Playground) handleViewerLeave(id string) {
	c := p.viewers[id]
	if c == nil {
		return
	}
	delete(p.viewers, id)
	close(c.out)
}

func (p *Playground) closeViewers() {
	for id, c := range p.viewers {
		delete(p.viewers, id)
		close(c.out)
	}
}

// Viewers reports the number of connected viewer sessions.
func (p *Playground) Viewers() int { return len(p.viewers) }

func (p *Playground) params() viewerproto.WorldParams {
	t := p.cfg.Tuning
	return viewerproto.WorldParams{
		WorldID:      t.WorldID,
		VoxelSize:    t.VoxelSize,
		DefaultColor: t.Color().Hex(),
		FrameRateHz:  t.FrameRateHz,
		MoveSpeed:    t.Camera.MoveSpeed,
		LookSpeed:    t.Camera.LookSpeed,
		Start:        t.Camera.Start,
	}
}

func (p *Playground) fullScene() []scene.Event {
	prims := p.sync.Primitives()
	out := make([]scene.Event, 0, len(prims))
	for _, pr := range prims {
		out = append(out, scene.AddEvent(pr))
	}
	return out
}

func (p *Playground) poseMsg(frame uint64) viewerproto.PoseMsg {
	pose := p.ctrl.Pose()
	return viewerproto.PoseMsg{
		Type:     viewerproto.TypePose,
		Frame:    frame,
		Position: [3]float64(pose.Position),
		Yaw:      pose.Yaw,
		Pitch:    pose.Pitch,
		Capture:  p.ctrl.State().String(),
	}
}

func (p *Playground) welcome(id string) viewerproto.WelcomeMsg {
	lines := p.console.buf.Lines()
	return viewerproto.WelcomeMsg{
		Type:            viewerproto.TypeWelcome,
		ProtocolVersion: viewerproto.Version,
		SessionID:       id,
		Params:          p.params(),
		Primitives:      p.fullScene(),
		Pose:            p.poseMsg(p.frame.Load()),
		Capture:         p.ctrl.State().String(),
		Lines:           logLines(lines),
	}
}

func logLines(lines []script.Line) []viewerproto.LogLine {
	if len(lines) == 0 {
		return nil
	}
	out := make([]viewerproto.LogLine, len(lines))
	for i, l := range lines {
		out[i] = viewerproto.LogLine{Time: l.Time.Format("15:04:05"), Level: string(l.Level), Text: l.Text}
	}
	return out
}

// flushViewers sends pending scene events, console lines and the pose (when
// it changed) to every viewer. The recorder and console queue are drained
// even with no viewers connected.
func (p *Playground) flushViewers(frame uint64) {
	events := p.rec.Drain()
	lines, cleared := p.console.drain()

	pose := p.ctrl.Pose()
	state := p.ctrl.State()
	poseChanged := pose != p.lastPose || state != p.lastState
	p.lastPose, p.lastState = pose, state

	if len(p.viewers) == 0 {
		return
	}

	var sceneB, resyncB, logB, poseB []byte
	if len(events) > 0 {
		sceneB, _ = json.Marshal(viewerproto.SceneMsg{Type: viewerproto.TypeScene, Frame: frame, Events: events})
	}
	if len(lines) > 0 || cleared {
		logB, _ = json.Marshal(viewerproto.LogMsg{Type: viewerproto.TypeLog, Cleared: cleared, Lines: logLines(lines)})
	}
	if poseChanged {
		poseB, _ = json.Marshal(p.poseMsg(frame))
	}

	for _, c := range p.viewers {
		if c.resync {
			if resyncB == nil {
				evs := append([]scene.Event{{Op: scene.OpClear}}, p.fullScene()...)
				resyncB, _ = json.Marshal(viewerproto.SceneMsg{Type: viewerproto.TypeScene, Frame: frame, Events: evs})
			}
			c.resync = !trySend(c.out, resyncB)
		} else if sceneB != nil && !trySend(c.out, sceneB) {
			c.resync = true
		}
		if logB != nil {
			trySend(c.out, logB)
		}
		if poseB != nil {
			trySend(c.out, poseB)
		}
	}
}

func (p *Playground) broadcastRunResult(out RunOutcome) {
	msg := viewerproto.RunResultMsg{
		Type:       viewerproto.TypeResult,
		RunID:      out.RunID,
		OK:         out.Result.Err == nil,
		DurationMs: out.Result.Duration.Milliseconds(),
		Mutations:  out.Result.Mutations,
		Voxels:     out.Voxels,
	}
	if out.Result.Err != nil {
		msg.Code = viewerproto.ErrScript
		if errors.Is(out.Result.Err, script.ErrBusy) {
			msg.Code = viewerproto.ErrBusy
		}
		msg.Error = out.Result.Err.Error()
	}
	p.broadcast(msg)
}

func (p *Playground) broadcastCapture(action string) {
	p.broadcast(viewerproto.CaptureMsg{Type: viewerproto.TypeCapture, Action: action})
}

func (p *Playground) broadcast(v any) {
	if len(p.viewers) == 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	for _, c := range p.viewers {
		trySend(c.out, b)
	}
}

func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}
