// Package projection models a single cone-beam projection image and reads
// projection streams from PGM and DAT containers.
package projection

import "errors"

// Sentinel errors for the reader failure modes. All of them are fatal to the
// reconstruction; geometric degeneracies are handled inside the core and
// never surface here.
var (
	// ErrMalformed reports a structurally invalid input: wrong magic number,
	// projection count mismatch, or an angle outside [-360, 360].
	ErrMalformed = errors.New("malformed projection input")
)

// Projection is one 2D image taken at a fixed source angle.
type Projection struct {
	// Index is the position of the projection in the angular sweep, derived
	// from its angle. It lies in [0, nTheta).
	Index int

	// Angle is the acquisition angle in degrees.
	Angle float64

	// NSidePixels is the side length of the square detector in pixels.
	NSidePixels int

	// MinVal and MaxVal bound the absorption values of the pixels.
	MinVal float64
	MaxVal float64

	// Pixels holds NSidePixels*NSidePixels samples in row-major order.
	Pixels []float64
}

// Normalized maps the pixel at the given flat index into [0, 1].
func (p *Projection) Normalized(pixelIndex int) float64 {
	return (p.Pixels[pixelIndex] - p.MinVal) / (p.MaxVal - p.MinVal)
}

// Source yields the projections of a stream one at a time. Next returns
// io.EOF after the last projection.
type Source interface {
	Next() (*Projection, error)
}
