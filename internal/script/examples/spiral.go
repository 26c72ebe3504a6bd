//go:build ignore

package main

// A 20-voxel spiral of radius 5, one step of 0.3 rad per layer, hue
// advancing 18 degrees per layer. Scripts have no math package, so the
// rounded cos/sin offsets are tabulated.
var offsets = [20][2]int{
	{5, 0}, {5, 1}, {4, 3}, {3, 4}, {2, 5},
	{0, 5}, {-1, 5}, {-3, 4}, {-4, 3}, {-5, 2},
	{-5, 1}, {-5, -1}, {-4, -2}, {-4, -3}, {-2, -4},
	{-1, -5}, {0, -5}, {2, -5}, {3, -4}, {4, -3},
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	s := ""
	for n > 0 {
		s = string(rune('0'+n%10)) + s
		n /= 10
	}
	return s
}

func main() {
	console.Clear()
	api.ClearAll()

	for y, o := range offsets {
		api.SetVoxel(o[0], y, o[1], "hsl("+itoa(y*18)+", 100%, 50%)")
	}

	console.Log("Spiral created!")
}
