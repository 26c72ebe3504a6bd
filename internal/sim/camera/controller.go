package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// CaptureState is the pointer-capture state.
type CaptureState uint8

const (
	Unlocked CaptureState = iota
	Locked
)

func (s CaptureState) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// Host is the surface that grants and revokes pointer capture. Grants and
// revocations come back through Controller.OnCaptureChange.
type Host interface {
	RequestCapture()
	ReleaseCapture()
}

type Config struct {
	MoveSpeed float64
	LookSpeed float64
	Start     mgl64.Vec3
}

func DefaultConfig() Config {
	return Config{
		MoveSpeed: 0.1,
		LookSpeed: 0.002,
		Start:     mgl64.Vec3{15, 10, 15},
	}
}

type Pose struct {
	Position mgl64.Vec3
	Yaw      float64
	Pitch    float64
}

var worldUp = mgl64.Vec3{0, 1, 0}

type Controller struct {
	cfg   Config
	host  Host
	state CaptureState
	pose  Pose
}

// NewController places the camera at cfg.Start facing the world origin.
func NewController(cfg Config, host Host) *Controller {
	c := &Controller{cfg: cfg, host: host}
	c.pose = LookAtOrigin(cfg.Start)
	return c
}

// LookAtOrigin solves yaw and pitch so a camera at pos faces (0,0,0).
func LookAtOrigin(pos mgl64.Vec3) Pose {
	p := Pose{Position: pos}
	if pos.LenSqr() == 0 {
		return p
	}
	dir := pos.Normalize()
	p.Yaw = math.Atan2(dir.X(), dir.Z())
	p.Pitch = clampPitch(math.Asin(mgl64.Clamp(-dir.Y(), -1, 1)))
	return p
}

func (c *Controller) State() CaptureState { return c.state }
func (c *Controller) Pose() Pose          { return c.pose }
func (c *Controller) Config() Config      { return c.cfg }

// SetPose replaces the pose, clamping pitch.
func (c *Controller) SetPose(p Pose) {
	p.Pitch = clampPitch(p.Pitch)
	c.pose = p
}

// RequestCapture asks the host for pointer capture. The state only changes
// once the host reports the grant.
func (c *Controller) RequestCapture() {
	if c.state == Locked || c.host == nil {
		return
	}
	c.host.RequestCapture()
}

// PressReleaseKey asks the host to drop capture.
func (c *Controller) PressReleaseKey() {
	if c.state != Locked || c.host == nil {
		return
	}
	c.host.ReleaseCapture()
}

// OnCaptureChange is the host's capture notification; it is the only way
// the state changes.
func (c *Controller) OnCaptureChange(captured bool) {
	if captured {
		c.state = Locked
		return
	}
	c.state = Unlocked
}

func (c *Controller) MouseMove(dx, dy float64) {
	if c.state != Locked {
		return
	}
	c.pose.Yaw -= dx * c.cfg.LookSpeed
	c.pose.Pitch = clampPitch(c.pose.Pitch - dy*c.cfg.LookSpeed)
}

// UpdatePose applies one frame of movement from in and returns the
// displacement. Pitch never affects the direction of travel.
func (c *Controller) UpdatePose(in *InputState) mgl64.Vec3 {
	if c.state != Locked || in == nil {
		return mgl64.Vec3{}
	}
	sin, cos := math.Sincos(c.pose.Yaw)
	forward := mgl64.Vec3{-sin, 0, -cos}
	right := mgl64.Vec3{cos, 0, -sin}

	var v mgl64.Vec3
	if in.Pressed(KeyForward) {
		v = v.Add(forward)
	}
	if in.Pressed(KeyBackward) {
		v = v.Sub(forward)
	}
	if in.Pressed(KeyLeft) {
		v = v.Sub(right)
	}
	if in.Pressed(KeyRight) {
		v = v.Add(right)
	}
	if in.Pressed(KeyAscend) {
		v = v.Add(worldUp)
	}
	if in.Pressed(KeyDescend) {
		v = v.Sub(worldUp)
	}
	if v.LenSqr() == 0 {
		return mgl64.Vec3{}
	}
	d := v.Normalize().Mul(c.cfg.MoveSpeed)
	c.pose.Position = c.pose.Position.Add(d)
	return d
}

// Orientation is yaw about world Y followed by pitch about local X.
func (p Pose) Orientation() mgl64.Quat {
	return mgl64.QuatRotate(p.Yaw, worldUp).Mul(mgl64.QuatRotate(p.Pitch, mgl64.Vec3{1, 0, 0}))
}

// Forward is the look direction, pitch included.
func (p Pose) Forward() mgl64.Vec3 {
	return p.Orientation().Rotate(mgl64.Vec3{0, 0, -1})
}

// ViewMatrix is the inverse of the camera's world transform.
func (p Pose) ViewMatrix() mgl64.Mat4 {
	rot := p.Orientation().Conjugate().Mat4()
	return rot.Mul4(mgl64.Translate3D(-p.Position.X(), -p.Position.Y(), -p.Position.Z()))
}

func clampPitch(p float64) float64 {
	return mgl64.Clamp(p, -math.Pi/2, math.Pi/2)
}
