package backprojection

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"conebeamct/pkg/geometry"
)

// Accumulator receives voxel contributions from the deposition step. Add must
// be safe for the concurrency model of the accumulator: the shared-grid
// implementation tolerates concurrent callers, the shadow-grid one is owned
// by a single worker.
type Accumulator interface {
	Add(index int, delta float64)
}

// depositAbsorption walks the merged intersection list of a ray and adds the
// contribution of each segment to the voxel containing its midpoint. weight
// is the normalised pixel value in [0, 1]; each segment contributes
// weight * segmentLength/(dos+dod).
func depositAbsorption(g *geometry.Geometry, acc Accumulator, ray Ray, alphas []float64, weight float64) {
	dx := ray.Delta(geometry.X)
	dy := ray.Delta(geometry.Y)
	dz := ray.Delta(geometry.Z)
	rayLength := r3.Norm(r3.Sub(ray.Pixel, ray.Source))
	invPath := 1 / (g.DOS + g.DOD)

	nx := g.NVoxels[geometry.X]
	nz := g.NVoxels[geometry.Z]

	for m := 1; m < len(alphas); m++ {
		// Coincident crossings produce zero-length segments; skip them so
		// that ties between axes never deposit twice.
		if alphas[m] <= alphas[m-1] {
			continue
		}

		segmentLength := rayLength * (alphas[m] - alphas[m-1])
		aMid := (alphas[m] + alphas[m-1]) / 2

		// The midpoint of a non-degenerate segment lies strictly inside a
		// voxel, so flooring its coordinates identifies it. Boundary rounding
		// can still land on a plane; the clamp absorbs that.
		vx := voxelIndex(g, geometry.X, ray.Source.X+aMid*dx)
		vy := voxelIndex(g, geometry.Y, ray.Source.Y+aMid*dy)
		vz := voxelIndex(g, geometry.Z, ray.Source.Z+aMid*dz)

		delta := weight * segmentLength * invPath
		acc.Add(vy*nx*nz+vz*nz+vx, delta)
	}
}

// voxelIndex maps a coordinate along an axis to the index of the containing
// voxel, clamped to [0, NVoxels).
func voxelIndex(g *geometry.Geometry, a geometry.Axis, coord float64) int {
	i := int(math.Floor((coord - g.FirstPlane[a]) / g.VoxelSize[a]))
	if i < 0 {
		return 0
	}
	if i >= g.NVoxels[a] {
		return g.NVoxels[a] - 1
	}
	return i
}
