package viewerproto

import (
	"encoding/json"

	"voxelplay.ai/internal/sim/scene"
)

// Version is the viewer protocol version.
const Version = "0.1"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeInput   = "INPUT"
	TypeRun     = "RUN"
	TypeExport  = "EXPORT"
	TypeImport  = "IMPORT"
	TypeWelcome = "WELCOME"
	TypeScene   = "SCENE"
	TypePose    = "POSE"
	TypeLog     = "LOG"
	TypeResult  = "RUN_RESULT"
	TypeData    = "EXPORT_DATA"
	TypeError   = "ERROR"
	TypeCapture = "CAPTURE"
)

// Input kinds carried by InputMsg.
const (
	InputKeyDown        = "key_down"
	InputKeyUp          = "key_up"
	InputMouseMove      = "mouse_move"
	InputCaptureRequest = "capture_request"
	InputCaptureChange  = "capture_change"
	InputRelease        = "release"
)

// Envelope is decoded first to route a client message by type.
type Envelope struct {
	Type string `json:"type"`
}

// PeekType returns the type field of a raw message.
func PeekType(b []byte) (string, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return "", err
	}
	return e.Type, nil
}

// Client -> Server. First message on the connection.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

type InputMsg struct {
	Type string `json:"type"`
	Kind string `json:"kind"`

	// Key is the physical key name for key_down / key_up / release.
	Key string `json:"key,omitempty"`

	DX float64 `json:"dx,omitempty"`
	DY float64 `json:"dy,omitempty"`

	// Granted reports the outcome of a pointer-capture change.
	Granted bool `json:"granted,omitempty"`
}

type RunMsg struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type ExportMsg struct {
	Type string `json:"type"`
}

type ImportMsg struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Server -> Client.

type WorldParams struct {
	WorldID      string     `json:"world_id"`
	VoxelSize    float64    `json:"voxel_size"`
	DefaultColor string     `json:"default_color"`
	FrameRateHz  int        `json:"frame_rate_hz"`
	MoveSpeed    float64    `json:"move_speed"`
	LookSpeed    float64    `json:"look_speed"`
	Start        [3]float64 `json:"start"`
}

type WelcomeMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	SessionID       string        `json:"session_id"`
	Params          WorldParams   `json:"params"`
	Primitives      []scene.Event `json:"primitives"`
	Pose            PoseMsg       `json:"pose"`
	Capture         string        `json:"capture"`
	Lines           []LogLine     `json:"lines,omitempty"`
}

type SceneMsg struct {
	Type   string        `json:"type"`
	Frame  uint64        `json:"frame"`
	Events []scene.Event `json:"events"`
}

type PoseMsg struct {
	Type     string     `json:"type,omitempty"`
	Frame    uint64     `json:"frame"`
	Position [3]float64 `json:"position"`
	Yaw      float64    `json:"yaw"`
	Pitch    float64    `json:"pitch"`
	Capture  string     `json:"capture,omitempty"`
}

type LogLine struct {
	Time  string `json:"time"`
	Level string `json:"level"`
	Text  string `json:"text"`
}

type LogMsg struct {
	Type    string    `json:"type"`
	Cleared bool      `json:"cleared,omitempty"`
	Lines   []LogLine `json:"lines"`
}

type RunResultMsg struct {
	Type       string `json:"type"`
	RunID      string `json:"run_id"`
	OK         bool   `json:"ok"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Mutations  int    `json:"mutations"`
	Voxels     int    `json:"voxels"`
}

type ExportDataMsg struct {
	Type     string          `json:"type"`
	FileName string          `json:"file_name"`
	Data     json.RawMessage `json:"data"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Capture actions sent to the client, which owns the pointer.
const (
	CaptureRequest = "request"
	CaptureRelease = "release"
)

type CaptureMsg struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}
