// Package config provides configuration loading and management for
// conebeamct. It handles loading configuration from YAML files and provides
// default values matching the reference scan geometry.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"conebeamct/pkg/geometry"
)

// Config represents the application configuration loaded from YAML. All
// lengths are in micrometres.
type Config struct {
	// Scan geometry parameters
	Geometry struct {
		// VoxelSize is the edge length of a voxel along X, Y, Z
		VoxelSize [3]float64 `yaml:"voxelSize"`

		// PixelSize is the edge length of a square detector pixel
		PixelSize float64 `yaml:"pixelSize"`

		// ApertureDeg is the total angular sweep of the source in degrees
		ApertureDeg float64 `yaml:"apertureDeg"`

		// StepDeg is the angular spacing between projections in degrees
		StepDeg float64 `yaml:"stepDeg"`

		// VoxelMatrixSize is the side length of the cubic volume
		VoxelMatrixSize float64 `yaml:"voxelMatrixSize"`

		// DOD is the distance from the volume centre to the detector
		DOD float64 `yaml:"dod"`

		// DOS is the distance from the volume centre to the source
		DOS float64 `yaml:"dos"`

		// WorkUnits, when positive, overrides VoxelMatrixSize, DOD and DOS
		// with the scalability-benchmark scaling rule
		WorkUnits int `yaml:"workUnits"`
	} `yaml:"geometry"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// Strategy selects the accumulation strategy: "shadow" or "atomic"
		Strategy string `yaml:"strategy"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Format selects the NRRD payload encoding: "ascii" or "binary"
		Format string `yaml:"format"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values equal to the
// reference geometry: 100 um voxels, 85 um pixels, a 90 degree sweep in
// 15 degree steps and a 100 mm cubic volume.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Geometry.VoxelSize = [3]float64{100, 100, 100}
	cfg.Geometry.PixelSize = 85
	cfg.Geometry.ApertureDeg = 90
	cfg.Geometry.StepDeg = 15
	cfg.Geometry.VoxelMatrixSize = 100000
	cfg.Geometry.DOD = 150000
	cfg.Geometry.DOS = 600000
	cfg.Geometry.WorkUnits = 0

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Strategy = "shadow"

	cfg.Output.Format = "binary"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// GeometryParams resolves the configured scan geometry into the parameters
// of the reconstruction. When WorkUnits is positive the volume and distances
// are rescaled with the benchmark rule: the matrix side becomes
// workUnits*voxelSize*125/294, the detector sits at 1.5x and the source at
// 6x the matrix side.
func (cfg *Config) GeometryParams() (geometry.Params, error) {
	g := cfg.Geometry

	matrix := g.VoxelMatrixSize
	dod := g.DOD
	dos := g.DOS
	if g.WorkUnits > 0 {
		matrix = float64(int(float64(g.WorkUnits) * g.VoxelSize[0] * 125 / 294))
		dod = 1.5 * matrix
		dos = 6 * matrix
	}

	if matrix <= 0 {
		return geometry.Params{}, fmt.Errorf("config: voxel matrix size must be positive, got %g", matrix)
	}

	p := geometry.Params{
		PixelSize:   g.PixelSize,
		DOS:         dos,
		DOD:         dod,
		ApertureDeg: g.ApertureDeg,
		StepDeg:     g.StepDeg,
	}
	for a := 0; a < 3; a++ {
		if g.VoxelSize[a] <= 0 {
			return geometry.Params{}, fmt.Errorf("config: voxel size along axis %d must be positive, got %g", a, g.VoxelSize[a])
		}
		p.VoxelSize[a] = g.VoxelSize[a]
		p.NVoxels[a] = int(matrix / g.VoxelSize[a])
	}
	return p, nil
}
