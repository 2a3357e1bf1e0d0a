// Package volume holds the reconstructed absorption volume and its
// serialisation to NRRD and RAW files.
package volume

// Volume is a dense grid of absorption coefficients. The flat Coefficients
// array uses a fixed index layout with X as the fastest axis, then Z, then Y:
//
//	idx = y*(Nx*Nz) + z*Nz + x
//
// The z stride is Nz, so the mapping is one-to-one, and Coords inverts it,
// only when Nx == Nz. The layout is part of the output file format contract
// and must not change.
type Volume struct {
	// NVoxels is the number of voxels along each axis (X, Y, Z).
	NVoxels [3]int

	// VoxelSize is the edge length of a voxel along each axis.
	VoxelSize [3]float64

	// Coefficients is the flat voxel array, zero-initialised and only ever
	// increased during reconstruction.
	Coefficients []float64
}

// New allocates a zeroed volume with the given dimensions.
func New(nVoxels [3]int, voxelSize [3]float64) *Volume {
	return &Volume{
		NVoxels:      nVoxels,
		VoxelSize:    voxelSize,
		Coefficients: make([]float64, nVoxels[0]*nVoxels[1]*nVoxels[2]),
	}
}

// Index maps voxel coordinates to the flat array index.
func (v *Volume) Index(x, y, z int) int {
	return y*v.NVoxels[0]*v.NVoxels[2] + z*v.NVoxels[2] + x
}

// Coords is the inverse of Index for volumes with Nx == Nz.
func (v *Volume) Coords(index int) (x, y, z int) {
	nx, nz := v.NVoxels[0], v.NVoxels[2]
	y = index / (nx * nz)
	rem := index % (nx * nz)
	z = rem / nz
	x = rem % nz
	return x, y, z
}

// At returns the coefficient at the given voxel coordinates.
func (v *Volume) At(x, y, z int) float64 {
	return v.Coefficients[v.Index(x, y, z)]
}
