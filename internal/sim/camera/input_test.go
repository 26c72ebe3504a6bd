package camera

import "testing"

func TestBindings_Default(t *testing.T) {
	b := DefaultBindings()
	cases := map[string]Key{"W": KeyForward, "s": KeyBackward, "a": KeyLeft, "d": KeyRight, " ": KeyAscend, "Shift": KeyDescend}
	for name, want := range cases {
		got, ok := b.Lookup(name)
		if !ok || got != want {
			t.Fatalf("lookup %q: got %v ok=%v want %v", name, got, ok, want)
		}
	}
	if !b.IsRelease("Escape") || !b.IsRelease("enter") {
		t.Fatalf("release keys missing")
	}
	if b.IsRelease("w") {
		t.Fatalf("w is not a release key")
	}
}

func TestParseKey(t *testing.T) {
	for k := KeyForward; k < keyCount; k++ {
		got, err := ParseKey(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseKey(%q): %v %v", k.String(), got, err)
		}
	}
	if _, err := ParseKey("jump"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestInputState_IgnoresUnknownKeys(t *testing.T) {
	s := NewInputState()
	s.Press(KeyNone)
	s.Press(Key(200))
	if s.Pressed(KeyNone) || s.Pressed(Key(200)) {
		t.Fatalf("unknown keys should never read as pressed")
	}
}
