package projection

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"conebeamct/pkg/geometry"
)

// PGMReader reads projections from a text raster stream. The container is a
// single P2 image whose height is the detector width times the number of
// projections; a comment line of the form "# angle: <degrees>" precedes each
// projection's samples.
type PGMReader struct {
	geom        *geometry.Geometry
	scan        *pgmScanner
	nSidePixels int
	maxVal      float64
	nProj       int
	read        int
}

// NewPGMReader parses the PGM header and validates it against the geometry.
func NewPGMReader(r io.Reader, g *geometry.Geometry) (*PGMReader, error) {
	scan := &pgmScanner{r: bufio.NewReader(r)}

	magic, err := scan.nextToken()
	if err != nil {
		return nil, fmt.Errorf("reading PGM magic: %w", err)
	}
	if magic != "P2" {
		return nil, fmt.Errorf("%w: unsupported PGM magic %q, want P2", ErrMalformed, magic)
	}

	width, err := scan.nextInt()
	if err != nil {
		return nil, fmt.Errorf("reading PGM width: %w", err)
	}
	height, err := scan.nextInt()
	if err != nil {
		return nil, fmt.Errorf("reading PGM height: %w", err)
	}
	maxVal, err := scan.nextFloat()
	if err != nil {
		return nil, fmt.Errorf("reading PGM maxVal: %w", err)
	}

	if width < 1 || height < width || height%width != 0 {
		return nil, fmt.Errorf("%w: PGM raster %dx%d does not contain square projections", ErrMalformed, width, height)
	}
	nProj := height / width
	if nProj != g.NTheta {
		return nil, fmt.Errorf("%w: input contains %d projections, geometry expects %d", ErrMalformed, nProj, g.NTheta)
	}

	return &PGMReader{
		geom:        g,
		scan:        scan,
		nSidePixels: width,
		maxVal:      maxVal,
		nProj:       nProj,
	}, nil
}

// Next returns the next projection of the stream, or io.EOF when all
// projections have been read.
func (r *PGMReader) Next() (*Projection, error) {
	if r.read >= r.nProj {
		return nil, io.EOF
	}

	angle, err := r.scan.nextAngle()
	if err != nil {
		return nil, fmt.Errorf("reading projection %d angle: %w", r.read, err)
	}
	if angle < -360 || angle > 360 {
		return nil, fmt.Errorf("%w: projection angle %g outside [-360, 360]", ErrMalformed, angle)
	}

	pixels := make([]float64, r.nSidePixels*r.nSidePixels)
	for i := range pixels {
		v, err := r.scan.nextFloat()
		if err != nil {
			return nil, fmt.Errorf("reading projection %d sample %d: %w", r.read, i, err)
		}
		pixels[i] = v
	}

	p := &Projection{
		Index:       r.geom.ProjectionIndex(angle),
		Angle:       angle,
		NSidePixels: r.nSidePixels,
		MinVal:      0,
		MaxVal:      r.maxVal,
		Pixels:      pixels,
	}
	r.read++
	return p, nil
}

// pgmScanner tokenises a PGM stream. Comment lines run from '#' to the end of
// the line; the ones carrying "angle:" are queued for nextAngle, all others
// are discarded.
type pgmScanner struct {
	r      *bufio.Reader
	angles []float64
}

// nextAngle consumes whitespace and comment lines until an angle comment has
// been seen, then returns it. Encountering a data token first means the
// stream is missing the per-projection angle comment.
func (s *pgmScanner) nextAngle() (float64, error) {
	if err := s.skipSpaceAndComments(); err != nil {
		return 0, err
	}
	if len(s.angles) == 0 {
		return 0, fmt.Errorf("%w: expected \"# angle:\" comment before projection samples", ErrMalformed)
	}
	angle := s.angles[0]
	s.angles = s.angles[1:]
	return angle, nil
}

func (s *pgmScanner) nextToken() (string, error) {
	if err := s.skipSpaceAndComments(); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		c, err := s.r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if isSpace(c) || c == '#' {
			s.r.UnreadByte()
			break
		}
		b.WriteByte(c)
	}
	if b.Len() == 0 {
		return "", io.ErrUnexpectedEOF
	}
	return b.String(), nil
}

func (s *pgmScanner) nextInt() (int, error) {
	tok, err := s.nextToken()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid integer %q", ErrMalformed, tok)
	}
	return v, nil
}

func (s *pgmScanner) nextFloat() (float64, error) {
	tok, err := s.nextToken()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", ErrMalformed, tok)
	}
	return v, nil
}

// skipSpaceAndComments consumes whitespace and comment lines, queueing any
// angle values found in the comments.
func (s *pgmScanner) skipSpaceAndComments() error {
	for {
		c, err := s.r.ReadByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if isSpace(c) {
			continue
		}
		if c != '#' {
			return s.r.UnreadByte()
		}
		line, err := s.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		if i := strings.Index(line, "angle:"); i >= 0 {
			fields := strings.Fields(line[i+len("angle:"):])
			if len(fields) == 0 {
				return fmt.Errorf("%w: invalid angle comment %q", ErrMalformed, strings.TrimSpace(line))
			}
			angle, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return fmt.Errorf("%w: invalid angle comment %q", ErrMalformed, strings.TrimSpace(line))
			}
			s.angles = append(s.angles, angle)
		}
		if err == io.EOF {
			return nil
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
