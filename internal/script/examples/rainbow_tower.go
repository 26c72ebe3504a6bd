//go:build ignore

package main

func main() {
	console.Clear()
	api.ClearAll()

	hues := []string{
		"hsl(0, 100%, 50%)", "hsl(36, 100%, 50%)", "hsl(72, 100%, 50%)",
		"hsl(108, 100%, 50%)", "hsl(144, 100%, 50%)", "hsl(180, 100%, 50%)",
		"hsl(216, 100%, 50%)", "hsl(252, 100%, 50%)", "hsl(288, 100%, 50%)",
		"hsl(324, 100%, 50%)",
	}
	for y, c := range hues {
		api.SetVoxel(0, y, 0, c)
	}

	console.Log("Rainbow tower created!")
}
