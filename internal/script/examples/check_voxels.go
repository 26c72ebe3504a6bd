//go:build ignore

package main

func main() {
	console.Clear()

	api.SetVoxel(0, 0, 0, "#FF0000")
	api.SetVoxel(1, 0, 0, "#00FF00")
	api.SetVoxel(2, 0, 0, "#0000FF")

	if v := api.GetVoxel(0, 0, 0); v != nil {
		console.Log("Red voxel found:", v)
	}
	if v := api.GetVoxel(1, 0, 0); v != nil {
		console.Log("Green voxel found:", v)
	}
	if v := api.GetVoxel(2, 0, 0); v != nil {
		console.Log("Blue voxel found:", v)
	}
	if api.GetVoxel(5, 5, 5) == nil {
		console.Log("Empty position (5,5,5): Nothing there")
	}
	console.Log("Voxels in world:", len(api.GetVoxels()))
}
