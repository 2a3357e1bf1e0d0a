package volume

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// Encoding selects how the NRRD payload is serialised.
type Encoding string

const (
	// EncodingRaw stores the coefficients as little-endian float64 values.
	EncodingRaw Encoding = "raw"

	// EncodingASCII stores the coefficients as whitespace-separated decimals.
	EncodingASCII Encoding = "ascii"
)

// WriteNRRD serialises the volume as an NRRD0005 file. The payload follows
// the volume's fixed index layout, so the declared axis order is X, Z, Y from
// fastest to slowest.
func (v *Volume) WriteNRRD(w io.Writer, enc Encoding) error {
	if enc != EncodingRaw && enc != EncodingASCII {
		return fmt.Errorf("volume: unsupported NRRD encoding %q", enc)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "NRRD0005\n")
	fmt.Fprintf(bw, "type: double\n")
	fmt.Fprintf(bw, "dimension: 3\n")
	fmt.Fprintf(bw, "sizes: %d %d %d\n", v.NVoxels[0], v.NVoxels[2], v.NVoxels[1])
	fmt.Fprintf(bw, "spacings: %g %g %g\n", v.VoxelSize[0], v.VoxelSize[2], v.VoxelSize[1])
	fmt.Fprintf(bw, "axis mins: %g %g %g\n",
		-v.VoxelSize[0]*float64(v.NVoxels[0])/2,
		-v.VoxelSize[2]*float64(v.NVoxels[2])/2,
		-v.VoxelSize[1]*float64(v.NVoxels[1])/2)
	if enc == EncodingRaw {
		fmt.Fprintf(bw, "endian: little\n")
	}
	fmt.Fprintf(bw, "encoding: %s\n", enc)
	fmt.Fprintf(bw, "\n")

	var err error
	switch enc {
	case EncodingRaw:
		err = binary.Write(bw, binary.LittleEndian, v.Coefficients)
	case EncodingASCII:
		err = writeASCII(bw, v.Coefficients)
	}
	if err != nil {
		return fmt.Errorf("writing NRRD payload: %w", err)
	}
	return bw.Flush()
}

// WriteRAW serialises the coefficients as a headerless little-endian dump in
// the fixed index layout. The grid dimensions travel on a side channel.
func (v *Volume) WriteRAW(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, v.Coefficients); err != nil {
		return fmt.Errorf("writing RAW payload: %w", err)
	}
	return bw.Flush()
}

func writeASCII(w *bufio.Writer, coefficients []float64) error {
	buf := make([]byte, 0, 32)
	for i, c := range coefficients {
		if i > 0 {
			if err := w.WriteByte(' '); err != nil {
				return err
			}
		}
		buf = strconv.AppendFloat(buf[:0], c, 'g', -1, 64)
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}
