// Package geometry describes the acquisition geometry of a cone-beam CT scan:
// the voxel grid, the detector, the source orbit, and the precomputed tables
// needed to place rays in space. All lengths are in micrometres and the origin
// of the coordinate system is the volumetric centre of the object.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Axis identifies one of the three coordinate axes.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

// Component returns the coordinate of v along the given axis.
func Component(v r3.Vec, a Axis) float64 {
	switch a {
	case X:
		return v.X
	case Y:
		return v.Y
	default:
		return v.Z
	}
}

// Params holds the physical constants that define a scan geometry.
type Params struct {
	// VoxelSize is the edge length of a voxel along each axis.
	VoxelSize [3]float64

	// NVoxels is the number of voxels along each axis.
	NVoxels [3]int

	// PixelSize is the edge length of a square detector pixel.
	PixelSize float64

	// DOS is the distance from the volumetric centre to the X-ray source.
	DOS float64

	// DOD is the distance from the volumetric centre to the detector.
	DOD float64

	// ApertureDeg is the total angular sweep of the source in degrees.
	ApertureDeg float64

	// StepDeg is the angular spacing between consecutive projections.
	StepDeg float64
}

// Geometry is an immutable scan geometry with its derived tables. Once built
// it is safe for concurrent readers.
type Geometry struct {
	Params

	// NTheta is the number of projections in the sweep.
	NTheta int

	// FirstPlane and LastPlane are the coordinates of the outermost grid
	// planes along each axis.
	FirstPlane [3]float64
	LastPlane  [3]float64

	sinTable []float64
	cosTable []float64
}

// New validates the parameters and precomputes the trigonometric and plane
// tables for the sweep.
func New(p Params) (*Geometry, error) {
	for a := X; a <= Z; a++ {
		if p.VoxelSize[a] <= 0 {
			return nil, fmt.Errorf("geometry: voxel size along axis %d must be positive, got %g", a, p.VoxelSize[a])
		}
		if p.NVoxels[a] < 1 {
			return nil, fmt.Errorf("geometry: voxel count along axis %d must be at least 1, got %d", a, p.NVoxels[a])
		}
	}
	if p.PixelSize <= 0 {
		return nil, fmt.Errorf("geometry: pixel size must be positive, got %g", p.PixelSize)
	}
	if p.DOS <= 0 || p.DOD <= 0 {
		return nil, fmt.Errorf("geometry: source and detector distances must be positive, got dos=%g dod=%g", p.DOS, p.DOD)
	}
	if p.ApertureDeg <= 0 || p.StepDeg <= 0 {
		return nil, fmt.Errorf("geometry: aperture and step must be positive, got aperture=%g step=%g", p.ApertureDeg, p.StepDeg)
	}

	g := &Geometry{
		Params: p,
		NTheta: int(p.ApertureDeg/p.StepDeg) + 1,
	}

	g.sinTable = make([]float64, g.NTheta)
	g.cosTable = make([]float64, g.NTheta)
	for i := 0; i < g.NTheta; i++ {
		angle := p.ApertureDeg/2 + float64(i)*p.StepDeg
		rad := angle * math.Pi / 180
		g.sinTable[i] = math.Sin(rad)
		g.cosTable[i] = math.Cos(rad)
	}

	for a := X; a <= Z; a++ {
		g.FirstPlane[a] = -(p.VoxelSize[a] * float64(p.NVoxels[a])) / 2
		g.LastPlane[a] = -g.FirstPlane[a]
	}

	return g, nil
}

// NPlanes returns the number of grid planes orthogonal to the given axis.
func (g *Geometry) NPlanes(a Axis) int {
	return g.NVoxels[a] + 1
}

// Sin returns the cached sine of the i-th projection angle.
func (g *Geometry) Sin(i int) float64 { return g.sinTable[i] }

// Cos returns the cached cosine of the i-th projection angle.
func (g *Geometry) Cos(i int) float64 { return g.cosTable[i] }

// PlanePosition returns the coordinate of the index-th grid plane orthogonal
// to the given axis.
func (g *Geometry) PlanePosition(a Axis, index int) float64 {
	return g.FirstPlane[a] + float64(index)*g.VoxelSize[a]
}

// SourcePosition returns the position of the X-ray source for the projection
// of the given index. The source orbits in the z = 0 plane, perpendicular to
// the centre of the detector.
func (g *Geometry) SourcePosition(index int) r3.Vec {
	return r3.Vec{
		X: -g.sinTable[index] * g.DOS,
		Y: g.cosTable[index] * g.DOS,
		Z: 0,
	}
}

// PixelPosition returns the centre of the detector pixel at (row, col) for
// the projection of the given index. Rows run along the detector's z axis,
// columns along its in-plane axis. nSidePixels is the side length of the
// square detector in pixels.
func (g *Geometry) PixelPosition(index, row, col, nSidePixels int) r3.Vec {
	// Distance from the centre of the detector to the centre of the first
	// pixel; subsequent pixel centres follow at PixelSize intervals.
	dFirstPixel := float64(nSidePixels)*g.PixelSize/2 - g.PixelSize/2
	sin := g.sinTable[index]
	cos := g.cosTable[index]

	return r3.Vec{
		X: g.DOD*sin + cos*(-dFirstPixel+float64(col)*g.PixelSize),
		Y: -g.DOD*cos + sin*(-dFirstPixel+float64(col)*g.PixelSize),
		Z: -dFirstPixel + float64(row)*g.PixelSize,
	}
}

// ProjectionIndex derives the projection index from the acquisition angle in
// degrees. Angles may wrap; they are normalised modulo 360 before mapping
// onto the [0, NTheta) range.
func (g *Geometry) ProjectionIndex(angleDeg float64) int {
	normalised := math.Mod(angleDeg, 360)
	index := int(math.Floor((normalised+180)/360*float64(g.NTheta))) % g.NTheta
	if index < 0 {
		index += g.NTheta
	}
	return index
}
