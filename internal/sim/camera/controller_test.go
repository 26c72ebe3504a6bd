package camera

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// grantingHost grants and revokes capture immediately.
type grantingHost struct {
	c        *Controller
	requests int
	releases int
	deny     bool
}

func (h *grantingHost) RequestCapture() {
	h.requests++
	if !h.deny {
		h.c.OnCaptureChange(true)
	}
}

func (h *grantingHost) ReleaseCapture() {
	h.releases++
	h.c.OnCaptureChange(false)
}

func newLocked(t *testing.T, cfg Config) (*Controller, *grantingHost) {
	t.Helper()
	h := &grantingHost{}
	c := NewController(cfg, h)
	h.c = c
	c.RequestCapture()
	if c.State() != Locked {
		t.Fatalf("state after granted capture: %v", c.State())
	}
	return c, h
}

const eps = 1e-12

func TestController_InitialPoseFacesOrigin(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	p := c.Pose()
	if c.State() != Unlocked {
		t.Fatalf("initial state: %v", c.State())
	}
	want := p.Position.Mul(-1).Normalize()
	got := p.Forward()
	if !got.ApproxEqualThreshold(want, 1e-9) {
		t.Fatalf("forward: got %v want %v", got, want)
	}
	if p.Pitch >= 0 {
		t.Fatalf("camera above origin should look down, pitch=%v", p.Pitch)
	}
}

func TestLookAtOrigin_ZeroOffset(t *testing.T) {
	p := LookAtOrigin(mgl64.Vec3{})
	if p.Yaw != 0 || p.Pitch != 0 {
		t.Fatalf("pose: %+v", p)
	}
}

func TestController_CaptureStateMachine(t *testing.T) {
	h := &grantingHost{deny: true}
	c := NewController(DefaultConfig(), h)
	h.c = c

	c.RequestCapture()
	if c.State() != Unlocked || h.requests != 1 {
		t.Fatalf("denied capture: state=%v requests=%d", c.State(), h.requests)
	}

	h.deny = false
	c.RequestCapture()
	if c.State() != Locked {
		t.Fatalf("granted capture: state=%v", c.State())
	}
	c.RequestCapture() // already locked: no request
	if h.requests != 2 {
		t.Fatalf("requests while locked: %d", h.requests)
	}

	c.PressReleaseKey()
	if c.State() != Unlocked || h.releases != 1 {
		t.Fatalf("release key: state=%v releases=%d", c.State(), h.releases)
	}
	c.PressReleaseKey() // already unlocked: nothing to release
	if h.releases != 1 {
		t.Fatalf("release while unlocked: %d", h.releases)
	}

	c.RequestCapture()
	c.OnCaptureChange(false) // host revoked
	if c.State() != Unlocked {
		t.Fatalf("revoked capture: state=%v", c.State())
	}
}

func TestController_MouseIgnoredWhenUnlocked(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	before := c.Pose()
	c.MouseMove(100, -50)
	if c.Pose() != before {
		t.Fatalf("pose changed while unlocked")
	}
}

func TestController_MouseLook(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Start = mgl64.Vec3{0, 0, 5}
	c, _ := newLocked(t, cfg)
	yaw0 := c.Pose().Yaw
	c.MouseMove(10, 20)
	p := c.Pose()
	if math.Abs(p.Yaw-(yaw0-10*cfg.LookSpeed)) > eps {
		t.Fatalf("yaw: %v", p.Yaw)
	}
	if math.Abs(p.Pitch-(-20*cfg.LookSpeed)) > eps {
		t.Fatalf("pitch: %v", p.Pitch)
	}
}

func TestController_PitchClamp(t *testing.T) {
	c, _ := newLocked(t, DefaultConfig())
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		c.MouseMove(rng.Float64()*400-200, rng.Float64()*4000-2000)
		p := c.Pose().Pitch
		if p < -math.Pi/2 || p > math.Pi/2 {
			t.Fatalf("step %d: pitch %v out of range", i, p)
		}
	}
	c.MouseMove(0, -1e9)
	if c.Pose().Pitch != math.Pi/2 {
		t.Fatalf("pitch not pinned at +pi/2: %v", c.Pose().Pitch)
	}
	c.MouseMove(0, 1e9)
	if c.Pose().Pitch != -math.Pi/2 {
		t.Fatalf("pitch not pinned at -pi/2: %v", c.Pose().Pitch)
	}
}

func TestController_NoKeysNoMovement(t *testing.T) {
	c, _ := newLocked(t, DefaultConfig())
	before := c.Pose().Position
	d := c.UpdatePose(NewInputState())
	if d != (mgl64.Vec3{}) || c.Pose().Position != before {
		t.Fatalf("moved without input: d=%v", d)
	}

	in := NewInputState()
	in.Press(KeyForward)
	in.Press(KeyBackward)
	if d := c.UpdatePose(in); d != (mgl64.Vec3{}) {
		t.Fatalf("opposing keys should cancel: %v", d)
	}
	if math.IsNaN(c.Pose().Position.X()) {
		t.Fatalf("NaN position")
	}
}

func TestController_UnlockedDoesNotMove(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	in := NewInputState()
	in.Press(KeyForward)
	if d := c.UpdatePose(in); d != (mgl64.Vec3{}) {
		t.Fatalf("moved while unlocked: %v", d)
	}
}

func TestController_SpeedIsNormalized(t *testing.T) {
	cfg := DefaultConfig()
	cases := [][]Key{
		{KeyForward},
		{KeyBackward},
		{KeyLeft},
		{KeyRight},
		{KeyAscend},
		{KeyDescend},
		{KeyForward, KeyRight},
		{KeyBackward, KeyLeft, KeyAscend},
		{KeyForward, KeyRight, KeyDescend},
	}
	for _, keys := range cases {
		c, _ := newLocked(t, cfg)
		c.MouseMove(123, 45)
		in := NewInputState()
		for _, k := range keys {
			in.Press(k)
		}
		d := c.UpdatePose(in)
		if math.Abs(d.Len()-cfg.MoveSpeed) > eps {
			t.Fatalf("keys %v: displacement %v (len %v) want len %v", keys, d, d.Len(), cfg.MoveSpeed)
		}
	}
}

func TestController_PitchDoesNotTiltTravel(t *testing.T) {
	c, _ := newLocked(t, DefaultConfig())
	c.MouseMove(0, -500) // look up steeply
	in := NewInputState()
	in.Press(KeyForward)
	y0 := c.Pose().Position.Y()
	c.UpdatePose(in)
	if c.Pose().Position.Y() != y0 {
		t.Fatalf("forward movement changed height")
	}
}

func TestController_ForwardFollowsYaw(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Start = mgl64.Vec3{0, 0, 10} // yaw 0: forward is -Z
	c, _ := newLocked(t, cfg)
	in := NewInputState()
	in.Press(KeyForward)
	d := c.UpdatePose(in)
	if !d.ApproxEqualThreshold(mgl64.Vec3{0, 0, -cfg.MoveSpeed}, eps) {
		t.Fatalf("forward at yaw 0: %v", d)
	}
	in.Reset()
	in.Press(KeyRight)
	d = c.UpdatePose(in)
	if !d.ApproxEqualThreshold(mgl64.Vec3{cfg.MoveSpeed, 0, 0}, eps) {
		t.Fatalf("right at yaw 0: %v", d)
	}
}

func TestPose_ViewMatrixMapsCameraToOrigin(t *testing.T) {
	p := LookAtOrigin(mgl64.Vec3{15, 10, 15})
	v := p.ViewMatrix()
	eye := v.Mul4x1(p.Position.Vec4(1))
	if !eye.Vec3().ApproxEqualThreshold(mgl64.Vec3{}, 1e-9) {
		t.Fatalf("camera position in view space: %v", eye)
	}
	target := v.Mul4x1(mgl64.Vec4{0, 0, 0, 1}).Vec3()
	if target.X() > 1e-9 || target.X() < -1e-9 || target.Z() >= 0 {
		t.Fatalf("origin should be straight ahead (-Z): %v", target)
	}
}
