package voxel

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// Color is a packed 0xRRGGBB value. There is no alpha channel.
type Color uint32

const MaxColor Color = 0xFFFFFF

var ErrBadColor = errors.New("bad color")

func RGB(r, g, b uint8) Color {
	return Color(r)<<16 | Color(g)<<8 | Color(b)
}

func (c Color) Valid() bool { return c <= MaxColor }

func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

func (c Color) Hex() string { return fmt.Sprintf("#%06x", uint32(c&MaxColor)) }

func (c Color) String() string { return c.Hex() }

// ParseColor accepts a Color, a non-negative integer, or a string in one of
// the forms "#rgb", "#rrggbb", "0xrrggbb", "rgb(r, g, b)",
// "hsl(h, s%, l%)" or a CSS color name.
func ParseColor(v any) (Color, error) {
	switch t := v.(type) {
	case Color:
		return checkColor(int64(t))
	case int:
		return checkColor(int64(t))
	case int32:
		return checkColor(int64(t))
	case int64:
		return checkColor(t)
	case uint:
		return checkColor(int64(t))
	case uint32:
		return checkColor(int64(t))
	case uint64:
		if t > uint64(MaxColor) {
			return 0, fmt.Errorf("%w: %d out of range", ErrBadColor, t)
		}
		return Color(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrBadColor, t)
		}
		return checkColor(int64(t))
	case string:
		return parseColorString(t)
	case nil:
		return 0, fmt.Errorf("%w: nil", ErrBadColor)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrBadColor, v)
	}
}

func checkColor(v int64) (Color, error) {
	if v < 0 || v > int64(MaxColor) {
		return 0, fmt.Errorf("%w: %d out of range", ErrBadColor, v)
	}
	return Color(v), nil
}

func parseColorString(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return 0, fmt.Errorf("%w: empty string", ErrBadColor)
	case strings.HasPrefix(s, "#"):
		c, err := colorful.Hex(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadColor, s)
		}
		r, g, b := c.RGB255()
		return RGB(r, g, b), nil
	case strings.HasPrefix(s, "0x"):
		n, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadColor, s)
		}
		return checkColor(int64(n))
	case strings.HasPrefix(s, "hsl(") || strings.HasPrefix(s, "rgb("):
		return parseColorFunc(s)
	}
	if rgba, ok := colornames.Map[s]; ok {
		return RGB(rgba.R, rgba.G, rgba.B), nil
	}
	return 0, fmt.Errorf("%w: unknown color %q", ErrBadColor, s)
}

// parseColorFunc handles the rgb() and hsl() CSS notations.
func parseColorFunc(s string) (Color, error) {
	open := strings.IndexByte(s, '(')
	if !strings.HasSuffix(s, ")") {
		return 0, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	parts := strings.Split(s[open+1:len(s)-1], ",")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q needs three components", ErrBadColor, s)
	}
	var n [3]float64
	for i, p := range parts {
		p = strings.TrimSuffix(strings.TrimSpace(p), "%")
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadColor, s)
		}
		n[i] = f
	}
	var c colorful.Color
	if s[:open] == "hsl" {
		h := math.Mod(n[0], 360)
		if h < 0 {
			h += 360
		}
		c = colorful.Hsl(h, clamp01(n[1]/100), clamp01(n[2]/100))
	} else {
		c = colorful.Color{R: clamp01(n[0] / 255), G: clamp01(n[1] / 255), B: clamp01(n[2] / 255)}
	}
	r, g, b := c.Clamped().RGB255()
	return RGB(r, g, b), nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
