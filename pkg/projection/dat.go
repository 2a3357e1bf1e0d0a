package projection

import (
	"encoding/binary"
	"fmt"
	"io"

	"conebeamct/pkg/geometry"
)

// DATReader reads projections from a binary little-endian stream. The header
// carries the projection count, the detector width and the value bounds; each
// projection follows as its angle in degrees and width*width float64 samples
// in row-major order.
type DATReader struct {
	geom        *geometry.Geometry
	r           io.Reader
	nSidePixels int
	minVal      float64
	maxVal      float64
	nProj       int
	read        int
}

// NewDATReader parses the DAT header and validates it against the geometry.
func NewDATReader(r io.Reader, g *geometry.Geometry) (*DATReader, error) {
	var header struct {
		NProjections int32
		Width        int32
		MaxVal       float64
		MinVal       float64
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("reading DAT header: %w", err)
	}

	if header.Width < 1 {
		return nil, fmt.Errorf("%w: DAT detector width %d", ErrMalformed, header.Width)
	}
	if header.MaxVal <= header.MinVal {
		return nil, fmt.Errorf("%w: DAT value bounds [%g, %g]", ErrMalformed, header.MinVal, header.MaxVal)
	}
	if int(header.NProjections) != g.NTheta {
		return nil, fmt.Errorf("%w: input contains %d projections, geometry expects %d", ErrMalformed, header.NProjections, g.NTheta)
	}

	return &DATReader{
		geom:        g,
		r:           r,
		nSidePixels: int(header.Width),
		minVal:      header.MinVal,
		maxVal:      header.MaxVal,
		nProj:       int(header.NProjections),
	}, nil
}

// Next returns the next projection of the stream, or io.EOF when all
// projections have been read.
func (r *DATReader) Next() (*Projection, error) {
	if r.read >= r.nProj {
		return nil, io.EOF
	}

	var angle float64
	if err := binary.Read(r.r, binary.LittleEndian, &angle); err != nil {
		return nil, fmt.Errorf("reading projection %d angle: %w", r.read, err)
	}
	if angle < -360 || angle > 360 {
		return nil, fmt.Errorf("%w: projection angle %g outside [-360, 360]", ErrMalformed, angle)
	}

	pixels := make([]float64, r.nSidePixels*r.nSidePixels)
	if err := binary.Read(r.r, binary.LittleEndian, pixels); err != nil {
		return nil, fmt.Errorf("reading projection %d samples: %w", r.read, err)
	}

	p := &Projection{
		Index:       r.geom.ProjectionIndex(angle),
		Angle:       angle,
		NSidePixels: r.nSidePixels,
		MinVal:      r.minVal,
		MaxVal:      r.maxVal,
		Pixels:      pixels,
	}
	r.read++
	return p, nil
}
