//go:build ignore

package main

// A 5x5 hollow house with a red roof and a door on the north wall.
func main() {
	console.Clear()
	api.ClearAll()

	for x := -2; x <= 2; x++ {
		for z := -2; z <= 2; z++ {
			for y := 0; y < 4; y++ {
				if x == -2 || x == 2 || z == -2 || z == 2 {
					api.SetVoxel(x, y, z, "#8B4513")
				}
			}
		}
	}

	for x := -2; x <= 2; x++ {
		for z := -2; z <= 2; z++ {
			api.SetVoxel(x, 4, z, "#FF0000")
		}
	}

	api.RemoveVoxel(0, 0, -2)
	api.RemoveVoxel(0, 1, -2)

	console.Log("House built!")
}
