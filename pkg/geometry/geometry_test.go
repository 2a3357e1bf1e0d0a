package geometry

import (
	"math"
	"testing"
)

func testParams() Params {
	return Params{
		VoxelSize:   [3]float64{100, 100, 100},
		NVoxels:     [3]int{4, 4, 4},
		PixelSize:   85,
		DOS:         600000,
		DOD:         150000,
		ApertureDeg: 90,
		StepDeg:     15,
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero voxel size", func(p *Params) { p.VoxelSize[1] = 0 }},
		{"negative voxel size", func(p *Params) { p.VoxelSize[0] = -100 }},
		{"zero voxel count", func(p *Params) { p.NVoxels[2] = 0 }},
		{"zero pixel size", func(p *Params) { p.PixelSize = 0 }},
		{"zero source distance", func(p *Params) { p.DOS = 0 }},
		{"zero detector distance", func(p *Params) { p.DOD = 0 }},
		{"zero aperture", func(p *Params) { p.ApertureDeg = 0 }},
		{"zero step", func(p *Params) { p.StepDeg = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			if _, err := New(p); err == nil {
				t.Errorf("New() accepted invalid parameters")
			}
		})
	}
}

func TestDerivedTables(t *testing.T) {
	g, err := New(testParams())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if g.NTheta != 7 {
		t.Errorf("NTheta = %d, want 7", g.NTheta)
	}
	for a := X; a <= Z; a++ {
		if g.NPlanes(a) != 5 {
			t.Errorf("NPlanes(%d) = %d, want 5", a, g.NPlanes(a))
		}
		if g.FirstPlane[a] != -200 || g.LastPlane[a] != 200 {
			t.Errorf("planes along axis %d = [%g, %g], want [-200, 200]", a, g.FirstPlane[a], g.LastPlane[a])
		}
	}

	// The sweep starts at half the aperture and advances by the step.
	for i := 0; i < g.NTheta; i++ {
		want := (45 + 15*float64(i)) * math.Pi / 180
		if math.Abs(g.Sin(i)-math.Sin(want)) > 1e-15 {
			t.Errorf("Sin(%d) = %g, want %g", i, g.Sin(i), math.Sin(want))
		}
		if math.Abs(g.Cos(i)-math.Cos(want)) > 1e-15 {
			t.Errorf("Cos(%d) = %g, want %g", i, g.Cos(i), math.Cos(want))
		}
	}
}

func TestPlanePosition(t *testing.T) {
	g, err := New(testParams())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	for i := 0; i < g.NPlanes(X); i++ {
		want := -200 + float64(i)*100
		if got := g.PlanePosition(X, i); got != want {
			t.Errorf("PlanePosition(X, %d) = %g, want %g", i, got, want)
		}
	}
}

func TestSourcePosition(t *testing.T) {
	g, err := New(testParams())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	// Index 3 is the 90 degree projection: the source sits on the negative
	// x axis, in the z = 0 plane.
	s := g.SourcePosition(3)
	if math.Abs(s.X+600000) > 1e-6 {
		t.Errorf("source x = %g, want -600000", s.X)
	}
	if math.Abs(s.Y) > 1e-6 {
		t.Errorf("source y = %g, want 0", s.Y)
	}
	if s.Z != 0 {
		t.Errorf("source z = %g, want 0", s.Z)
	}
}

func TestPixelPosition(t *testing.T) {
	g, err := New(testParams())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	// For the 90 degree projection the detector is a y-z plane at
	// x = DOD; columns run along y and rows along z.
	const n = 4
	h := float64(n)*g.PixelSize/2 - g.PixelSize/2
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			p := g.PixelPosition(3, row, col, n)
			if math.Abs(p.X-150000) > 1e-6 {
				t.Errorf("pixel (%d,%d) x = %g, want 150000", row, col, p.X)
			}
			wantY := -h + float64(col)*g.PixelSize
			if math.Abs(p.Y-wantY) > 1e-6 {
				t.Errorf("pixel (%d,%d) y = %g, want %g", row, col, p.Y, wantY)
			}
			wantZ := -h + float64(row)*g.PixelSize
			if p.Z != wantZ {
				t.Errorf("pixel (%d,%d) z = %g, want %g", row, col, p.Z, wantZ)
			}
		}
	}
}

func TestProjectionIndex(t *testing.T) {
	g, err := New(testParams())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	tests := []struct {
		angle float64
		want  int
	}{
		{0, 3},
		{-360, 3},
		{360, 3},
		{-180, 0},
		{-90, 1},
		{90, 5},
		{270, 1},
	}
	for _, tt := range tests {
		if got := g.ProjectionIndex(tt.angle); got != tt.want {
			t.Errorf("ProjectionIndex(%g) = %d, want %d", tt.angle, got, tt.want)
		}
	}

	for angle := -360.0; angle <= 360; angle += 7.3 {
		got := g.ProjectionIndex(angle)
		if got < 0 || got >= g.NTheta {
			t.Fatalf("ProjectionIndex(%g) = %d, outside [0, %d)", angle, got, g.NTheta)
		}
	}
}
