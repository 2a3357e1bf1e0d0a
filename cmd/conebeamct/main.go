package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"conebeamct/pkg/backprojection"
	"conebeamct/pkg/config"
	"conebeamct/pkg/geometry"
	"conebeamct/pkg/projection"
	"conebeamct/pkg/volume"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "conebeamct.yaml", "Path to the YAML configuration file")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: value from config)")
	strategy := flag.String("strategy", "", "Accumulation strategy: shadow or atomic (default: value from config)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <input.pgm|input.dat> <output.nrrd|output.raw>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	inputPath := flag.Arg(0)
	outputPath := flag.Arg(1)
	if inputPath == outputPath {
		log.Fatalf("Output file can't be the same as the input file")
	}

	inputExt := strings.ToLower(filepath.Ext(inputPath))
	if inputExt != ".pgm" && inputExt != ".dat" {
		log.Fatalf("Invalid input file format %q: supported formats are .pgm and .dat", inputExt)
	}
	outputExt := strings.ToLower(filepath.Ext(outputPath))
	if outputExt != ".nrrd" && outputExt != ".raw" {
		log.Fatalf("Invalid output file format %q: supported formats are .nrrd and .raw", outputExt)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *strategy != "" {
		cfg.Processing.Strategy = *strategy
	}

	params, err := cfg.GeometryParams()
	if err != nil {
		log.Fatalf("Invalid geometry configuration: %v", err)
	}
	geom, err := geometry.New(params)
	if err != nil {
		log.Fatalf("Invalid geometry configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("CONE-BEAM CT BACKPROJECTION")
	fmt.Printf("Volume: %dx%dx%d voxels, %d projections\n",
		params.NVoxels[0], params.NVoxels[1], params.NVoxels[2], geom.NTheta)
	fmt.Println("================================")

	inputFile, err := os.Open(inputPath)
	if err != nil {
		log.Fatalf("Error opening input file: %v", err)
	}
	defer inputFile.Close()

	var source projection.Source
	if inputExt == ".dat" {
		source, err = projection.NewDATReader(inputFile, geom)
	} else {
		source, err = projection.NewPGMReader(inputFile, geom)
	}
	if err != nil {
		log.Fatalf("Error reading input file: %v", err)
	}

	vol := volume.New(params.NVoxels, params.VoxelSize)

	var progress io.Writer
	if cfg.Output.Verbose {
		progress = os.Stderr
	}
	reconstructor, err := backprojection.NewReconstructor(geom, backprojection.Options{
		Workers:  cfg.Processing.NumCores,
		Strategy: backprojection.Strategy(cfg.Processing.Strategy),
		Progress: progress,
	})
	if err != nil {
		log.Fatalf("Failed to set up reconstruction: %v", err)
	}

	fmt.Println("Starting backprojection with parallel processing...")
	startTime := time.Now()
	processed, err := reconstructor.Run(source, vol)
	if err != nil {
		log.Fatalf("Reconstruction failed: %v", err)
	}
	processingTime := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "\nTime taken (%d projections): %.3f seconds\n", processed, processingTime.Seconds())

	outputFile, err := os.Create(outputPath)
	if err != nil {
		log.Fatalf("Error opening output file: %v", err)
	}
	defer outputFile.Close()

	fmt.Fprintf(os.Stderr, "Writing volume to file..\n")
	if outputExt == ".nrrd" {
		enc := volume.EncodingRaw
		if cfg.Output.Format == "ascii" {
			enc = volume.EncodingASCII
		}
		err = vol.WriteNRRD(outputFile, enc)
	} else {
		err = vol.WriteRAW(outputFile)
	}
	if err != nil {
		log.Fatalf("Error writing the volume to the file: %v", err)
	}

	stats := vol.Summarize()
	fmt.Printf("\nReconstruction completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output volume saved to: %s\n\n", outputPath)
	fmt.Printf("Volume statistics:\n")
	fmt.Printf("==================\n")
	fmt.Printf("Voxels: %d\n", stats.NVoxels)
	fmt.Printf("Min/Max: %.6g / %.6g\n", stats.Min, stats.Max)
	fmt.Printf("Mean: %.6g (stddev %.6g)\n", stats.Mean, stats.StdDev)
	fmt.Printf("Total absorption: %.6g\n", stats.Total)
}
