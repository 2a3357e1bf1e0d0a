// Package backprojection implements the ray-driven backprojection core: the
// Siddon line/voxel-grid traversal, the absorption deposition step, and the
// parallel scheduler that accumulates contributions from every detector pixel
// of every projection into a shared volume.
package backprojection

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"conebeamct/pkg/geometry"
)

// Ray joins the X-ray source to the centre of one detector pixel. Its
// parametric form is P(α) = Source + α·(Pixel − Source) with α ∈ [0, 1].
type Ray struct {
	Source r3.Vec
	Pixel  r3.Vec
}

// Delta returns the direction component Pixel − Source along the given axis.
func (r Ray) Delta(a geometry.Axis) float64 {
	return geometry.Component(r.Pixel, a) - geometry.Component(r.Source, a)
}

// planeRange is the inclusive range of grid-plane indices crossed by a ray
// along one axis.
type planeRange struct {
	min, max int
}

// scratch holds the per-worker intersection buffers so that traversing a ray
// does not allocate. The per-axis slices are bounded by the plane count of
// their axis; merged is bounded by the sum of the three plus the two
// endpoints.
type scratch struct {
	axis   [3][]float64
	merged []float64
}

func newScratch(g *geometry.Geometry) *scratch {
	s := &scratch{}
	total := 0
	for a := geometry.X; a <= geometry.Z; a++ {
		n := g.NPlanes(a)
		s.axis[a] = make([]float64, 0, n)
		total += n
	}
	s.merged = make([]float64, 0, total+2)
	return s
}

// traverse enumerates, in ascending order, the parametric positions at which
// the ray crosses any grid plane, clipped to the portion of the ray inside
// the voxel bounding box. The first entry is the entry parameter αmin and the
// last is the exit parameter αmax. The returned slice is backed by the
// scratch buffers and only valid until the next call. It returns false when
// the ray misses the volume.
func traverse(g *geometry.Geometry, ray Ray, s *scratch) ([]float64, bool) {
	var d [3]float64
	for a := geometry.X; a <= geometry.Z; a++ {
		d[a] = ray.Delta(a)
	}

	// A ray parallel to an axis crosses no planes along it. If its fixed
	// coordinate lies outside the grid the ray can never enter the volume,
	// whatever the other axes say.
	var parallel [3]bool
	for a := geometry.X; a <= geometry.Z; a++ {
		if d[a] != 0 {
			continue
		}
		parallel[a] = true
		c := geometry.Component(ray.Source, a)
		if c < g.FirstPlane[a] || c > g.LastPlane[a] {
			return nil, false
		}
	}

	// Entry and exit parameters of the ray with the outermost planes of each
	// non-parallel axis; their max/min give the bounding interval.
	aMin, aMax := 0.0, 1.0
	for a := geometry.X; a <= geometry.Z; a++ {
		if parallel[a] {
			continue
		}
		entry := (g.FirstPlane[a] - geometry.Component(ray.Source, a)) / d[a]
		exit := (g.LastPlane[a] - geometry.Component(ray.Source, a)) / d[a]
		aMin = math.Max(aMin, math.Min(entry, exit))
		aMax = math.Min(aMax, math.Max(entry, exit))
	}
	if aMin >= aMax {
		return nil, false
	}

	for a := geometry.X; a <= geometry.Z; a++ {
		s.axis[a] = s.axis[a][:0]
		if parallel[a] {
			continue
		}
		r := planeIndexRange(g, ray.Source, d[a], a, aMin, aMax)
		s.axis[a] = axisIntersections(g, ray.Source, d[a], a, r, aMin, aMax, s.axis[a])
	}

	s.merged = s.merged[:0]
	s.merged = append(s.merged, aMin)
	s.merged = mergeSorted3(s.axis[geometry.X], s.axis[geometry.Y], s.axis[geometry.Z], s.merged)
	s.merged = append(s.merged, aMax)
	return s.merged, true
}

// planeIndexRange computes the inclusive range of plane indices whose
// crossing parameter lies within [aMin, aMax], clamped to [0, NPlanes(a)].
func planeIndexRange(g *geometry.Geometry, source r3.Vec, d float64, a geometry.Axis, aMin, aMax float64) planeRange {
	src := geometry.Component(source, a)
	var min, max int
	if d >= 0 {
		min = g.NPlanes(a) - int(math.Ceil((g.LastPlane[a]-aMin*d-src)/g.VoxelSize[a]))
		max = int(math.Floor((src + aMax*d - g.FirstPlane[a]) / g.VoxelSize[a]))
	} else {
		min = g.NPlanes(a) - int(math.Ceil((g.LastPlane[a]-aMax*d-src)/g.VoxelSize[a]))
		max = int(math.Floor((src + aMin*d - g.FirstPlane[a]) / g.VoxelSize[a]))
	}
	if min < 0 {
		min = 0
	}
	if max > g.NPlanes(a) {
		max = g.NPlanes(a)
	}
	return planeRange{min: min, max: max}
}

// axisIntersections appends the crossing parameters for the planes in r along
// one axis that lie strictly inside (aMin, aMax); planes through the entry or
// exit point are already covered by the endpoints of the merged list. Only
// the first value is computed from a plane position; the rest advance by the
// constant increment VoxelSize/|d|, which keeps the list monotonic and avoids
// a division per plane.
func axisIntersections(g *geometry.Geometry, source r3.Vec, d float64, a geometry.Axis, r planeRange, aMin, aMax float64, dst []float64) []float64 {
	if r.min > r.max {
		return dst
	}
	src := geometry.Component(source, a)
	n := r.max - r.min + 1

	var first, inc float64
	if d > 0 {
		first = (g.PlanePosition(a, r.min) - src) / d
		inc = g.VoxelSize[a] / d
	} else {
		first = (g.PlanePosition(a, r.max) - src) / d
		inc = -g.VoxelSize[a] / d
	}

	alpha := first
	for i := 0; i < n; i++ {
		if alpha > aMin && alpha < aMax {
			dst = append(dst, alpha)
		}
		alpha += inc
	}
	return dst
}

// mergeSorted3 appends the ascending union of three sorted slices to dst.
func mergeSorted3(ax, ay, az, dst []float64) []float64 {
	i, j, k := 0, 0, 0
	for i < len(ax) || j < len(ay) || k < len(az) {
		v := math.Inf(1)
		pick := 0
		if i < len(ax) && ax[i] < v {
			v = ax[i]
			pick = 0
		}
		if j < len(ay) && ay[j] < v {
			v = ay[j]
			pick = 1
		}
		if k < len(az) && az[k] < v {
			v = az[k]
			pick = 2
		}
		switch pick {
		case 0:
			i++
		case 1:
			j++
		default:
			k++
		}
		dst = append(dst, v)
	}
	return dst
}
