//go:build ignore

package main

func main() {
	console.Clear()
	api.ClearAll()

	size := 8
	for x := 0; x < size; x++ {
		for z := 0; z < size; z++ {
			color := 0x000000
			if (x+z)%2 == 0 {
				color = 0xFFFFFF
			}
			api.SetVoxel(x-size/2, 0, z-size/2, color)
		}
	}

	console.Log("Chessboard created!")
}
