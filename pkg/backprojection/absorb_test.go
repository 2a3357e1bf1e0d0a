package backprojection

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"conebeamct/pkg/geometry"
)

// mapAccumulator records every deposited contribution for inspection.
type mapAccumulator map[int]float64

func (m mapAccumulator) Add(index int, delta float64) { m[index] += delta }

func (m mapAccumulator) total() float64 {
	sum := 0.0
	for _, v := range m {
		sum += v
	}
	return sum
}

func TestDepositHomogeneousRay(t *testing.T) {
	g := smallGeometry(t)
	s := newScratch(g)

	ray := Ray{
		Source: r3.Vec{X: 0.5, Y: 0.5, Z: -4},
		Pixel:  r3.Vec{X: 0.5, Y: 0.5, Z: 4},
	}
	alphas, ok := traverse(g, ray, s)
	if !ok {
		t.Fatalf("traverse() missed the ray")
	}

	acc := make(mapAccumulator)
	const weight = 0.75
	depositAbsorption(g, acc, ray, alphas, weight)

	// A ray through a homogeneous region deposits weight times the chord
	// length over the source-detector distance in total.
	rayLength := r3.Norm(r3.Sub(ray.Pixel, ray.Source))
	aMin, aMax := alphas[0], alphas[len(alphas)-1]
	want := weight * (aMax - aMin) * rayLength / (g.DOS + g.DOD)
	if got := acc.total(); math.Abs(got-want) > 1e-12 {
		t.Errorf("total deposit = %g, want %g", got, want)
	}

	// The z-aligned ray touches one voxel per z slice, always in the same
	// column.
	if len(acc) != g.NVoxels[geometry.Z] {
		t.Errorf("deposit touched %d voxels, want %d", len(acc), g.NVoxels[geometry.Z])
	}
}

func TestDepositZeroWeight(t *testing.T) {
	g := smallGeometry(t)
	s := newScratch(g)

	ray := Ray{
		Source: r3.Vec{X: 0.5, Y: 0.5, Z: -4},
		Pixel:  r3.Vec{X: 0.5, Y: 0.5, Z: 4},
	}
	alphas, ok := traverse(g, ray, s)
	if !ok {
		t.Fatalf("traverse() missed the ray")
	}

	acc := make(mapAccumulator)
	depositAbsorption(g, acc, ray, alphas, 0)
	if got := acc.total(); got != 0 {
		t.Errorf("total deposit = %g, want 0", got)
	}
}

func TestDepositIndicesInBounds(t *testing.T) {
	g := smallGeometry(t)
	s := newScratch(g)
	rng := rand.New(rand.NewSource(2))

	nx := g.NVoxels[geometry.X]
	ny := g.NVoxels[geometry.Y]
	nz := g.NVoxels[geometry.Z]

	for i := 0; i < 1000; i++ {
		ray := Ray{
			Source: r3.Vec{
				X: rng.Float64()*20 - 10,
				Y: rng.Float64()*20 - 10,
				Z: rng.Float64()*20 - 10,
			},
			Pixel: r3.Vec{
				X: rng.Float64()*8 - 4,
				Y: rng.Float64()*8 - 4,
				Z: rng.Float64()*8 - 4,
			},
		}
		alphas, ok := traverse(g, ray, s)
		if !ok {
			continue
		}

		acc := make(mapAccumulator)
		depositAbsorption(g, acc, ray, alphas, 1)
		for idx, v := range acc {
			if idx < 0 || idx >= nx*ny*nz {
				t.Fatalf("ray %d: deposit at flat index %d outside [0, %d)", i, idx, nx*ny*nz)
			}
			if v < 0 {
				t.Fatalf("ray %d: negative deposit %g at index %d", i, v, idx)
			}
		}
	}
}

func TestVoxelIndexClamping(t *testing.T) {
	g := smallGeometry(t)

	tests := []struct {
		coord float64
		want  int
	}{
		{-2.5, 0},
		{-2, 0},
		{-1.5, 0},
		{0.5, 2},
		{1.999999, 3},
		{2, 3},
		{2.5, 3},
	}
	for _, tt := range tests {
		if got := voxelIndex(g, geometry.X, tt.coord); got != tt.want {
			t.Errorf("voxelIndex(%g) = %d, want %d", tt.coord, got, tt.want)
		}
	}
}
