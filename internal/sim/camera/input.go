package camera

import (
	"fmt"
	"strings"
)

// Key is a logical movement key.
type Key uint8

const (
	KeyNone Key = iota
	KeyForward
	KeyBackward
	KeyLeft
	KeyRight
	KeyAscend
	KeyDescend

	keyCount
)

var keyNames = [keyCount]string{
	KeyNone:     "none",
	KeyForward:  "forward",
	KeyBackward: "backward",
	KeyLeft:     "left",
	KeyRight:    "right",
	KeyAscend:   "ascend",
	KeyDescend:  "descend",
}

func (k Key) String() string {
	if k >= keyCount {
		return fmt.Sprintf("key(%d)", uint8(k))
	}
	return keyNames[k]
}

func ParseKey(name string) (Key, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k := KeyForward; k < keyCount; k++ {
		if keyNames[k] == name {
			return k, nil
		}
	}
	return KeyNone, fmt.Errorf("unknown movement key %q", name)
}

// InputState holds the pressed state of logical keys. The host loop owns it
// and writes to it; the controller only reads it.
type InputState struct {
	pressed [keyCount]bool
}

func NewInputState() *InputState { return &InputState{} }

func (s *InputState) Set(k Key, down bool) {
	if k == KeyNone || k >= keyCount {
		return
	}
	s.pressed[k] = down
}

func (s *InputState) Press(k Key)   { s.Set(k, true) }
func (s *InputState) Release(k Key) { s.Set(k, false) }

func (s *InputState) Pressed(k Key) bool {
	if s == nil || k >= keyCount {
		return false
	}
	return s.pressed[k]
}

func (s *InputState) Reset() { s.pressed = [keyCount]bool{} }

// Bindings maps physical key names (as reported by the host, lowercased) to
// logical keys, plus the set of keys that release pointer capture.
type Bindings struct {
	Keys    map[string]Key
	Release map[string]bool
}

func DefaultBindings() Bindings {
	return Bindings{
		Keys: map[string]Key{
			"w":     KeyForward,
			"s":     KeyBackward,
			"a":     KeyLeft,
			"d":     KeyRight,
			" ":     KeyAscend,
			"space": KeyAscend,
			"shift": KeyDescend,
		},
		Release: map[string]bool{
			"escape": true,
			"enter":  true,
		},
	}
}

func (b Bindings) Lookup(name string) (Key, bool) {
	k, ok := b.Keys[normalizeKeyName(name)]
	return k, ok
}

func (b Bindings) IsRelease(name string) bool {
	return b.Release[normalizeKeyName(name)]
}

func normalizeKeyName(name string) string {
	if name == " " {
		return name
	}
	return strings.ToLower(strings.TrimSpace(name))
}
