package voxel

// Coordinates are biased into 21-bit unsigned lanes and bit-interleaved
// (x in bit 0, y in bit 1, z in bit 2 of every triple) into one uint64.
const (
	coordBits = 21
	coordBias = 1 << (coordBits - 1)

	MinCoord = -coordBias
	MaxCoord = coordBias - 1
)

type Key uint64

func InRange(x, y, z int) bool {
	return x >= MinCoord && x <= MaxCoord &&
		y >= MinCoord && y <= MaxCoord &&
		z >= MinCoord && z <= MaxCoord
}

// KeyOf packs a coordinate triple. ok is false when any axis falls outside
// [MinCoord, MaxCoord].
func KeyOf(x, y, z int) (k Key, ok bool) {
	if !InRange(x, y, z) {
		return 0, false
	}
	ux := spread3(uint64(x + coordBias))
	uy := spread3(uint64(y + coordBias))
	uz := spread3(uint64(z + coordBias))
	return Key(ux | uy<<1 | uz<<2), true
}

func (k Key) Coords() (x, y, z int) {
	x = int(compact3(uint64(k))) - coordBias
	y = int(compact3(uint64(k)>>1)) - coordBias
	z = int(compact3(uint64(k)>>2)) - coordBias
	return x, y, z
}

func spread3(v uint64) uint64 {
	v &= 0x1fffff
	v = (v | v<<32) & 0x1f00000000ffff
	v = (v | v<<16) & 0x1f0000ff0000ff
	v = (v | v<<8) & 0x100f00f00f00f00f
	v = (v | v<<4) & 0x10c30c30c30c30c3
	v = (v | v<<2) & 0x1249249249249249
	return v
}

func compact3(v uint64) uint64 {
	v &= 0x1249249249249249
	v = (v ^ (v >> 2)) & 0x10c30c30c30c30c3
	v = (v ^ (v >> 4)) & 0x100f00f00f00f00f
	v = (v ^ (v >> 8)) & 0x1f0000ff0000ff
	v = (v ^ (v >> 16)) & 0x1f00000000ffff
	v = (v ^ (v >> 32)) & 0x1fffff
	return v
}
