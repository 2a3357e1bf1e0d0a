package volume

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarises the distribution of the absorption coefficients.
type Stats struct {
	// NVoxels is the total number of voxels in the grid.
	NVoxels int

	// Min and Max bound the coefficient values.
	Min float64
	Max float64

	// Mean and StdDev describe the coefficient distribution.
	Mean   float64
	StdDev float64

	// Total is the sum of all coefficients, the total absorption deposited
	// by the reconstruction.
	Total float64
}

// Summarize computes summary statistics over the coefficient grid.
func (v *Volume) Summarize() Stats {
	mean, std := stat.MeanStdDev(v.Coefficients, nil)
	return Stats{
		NVoxels: len(v.Coefficients),
		Min:     floats.Min(v.Coefficients),
		Max:     floats.Max(v.Coefficients),
		Mean:    mean,
		StdDev:  std,
		Total:   floats.Sum(v.Coefficients),
	}
}
