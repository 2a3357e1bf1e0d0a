package backprojection

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"conebeamct/pkg/geometry"
	"conebeamct/pkg/projection"
	"conebeamct/pkg/volume"
)

// Strategy selects how concurrent workers accumulate contributions into the
// shared volume.
type Strategy string

const (
	// StrategyShadow gives each worker a private grid and sums the grids
	// into the volume after all workers finish, in worker order. With one
	// worker the output is byte-reproducible; with several, each projection
	// goes to whichever worker asks first, so the partial sums held by each
	// grid, and the last bits of the output, can vary between runs.
	StrategyShadow Strategy = "shadow"

	// StrategyAtomic shares one grid between all workers and performs every
	// addition as a compare-and-swap loop. Lower memory than shadow grids,
	// but the accumulation order varies between runs, so outputs may differ
	// in the last bits.
	StrategyAtomic Strategy = "atomic"
)

// Options tunes the reconstruction scheduler. The zero value selects one
// worker per CPU and the shadow-grid strategy.
type Options struct {
	// Workers is the number of concurrent workers. Values below 1 select
	// runtime.NumCPU().
	Workers int

	// Strategy selects the accumulation strategy. Empty selects shadow
	// grids.
	Strategy Strategy

	// Progress, when non-nil, receives a processed-projection counter line
	// after each projection.
	Progress io.Writer
}

// Reconstructor drives the backprojection of a projection stream into a
// volume: every (projection, row, column) ray is generated, traversed and
// deposited exactly once.
type Reconstructor struct {
	geom     *geometry.Geometry
	workers  int
	strategy Strategy
	progress io.Writer
}

// NewReconstructor builds a reconstructor for the given geometry.
func NewReconstructor(g *geometry.Geometry, opts Options) (*Reconstructor, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyShadow
	}
	if strategy != StrategyShadow && strategy != StrategyAtomic {
		return nil, fmt.Errorf("backprojection: unknown accumulation strategy %q", strategy)
	}
	return &Reconstructor{
		geom:     g,
		workers:  workers,
		strategy: strategy,
		progress: opts.Progress,
	}, nil
}

// Run reads every projection from src and backprojects it into vol. Reading
// is a single-reader critical section; the compute phase is data-parallel
// across the workers. It returns the number of projections processed. On a
// reader error the workers drain their in-flight projections and the error is
// returned; the volume contents are then unspecified.
func (r *Reconstructor) Run(src projection.Source, vol *volume.Volume) (int, error) {
	g := r.geom
	want := g.NVoxels[geometry.X] * g.NVoxels[geometry.Y] * g.NVoxels[geometry.Z]
	if len(vol.Coefficients) != want {
		return 0, fmt.Errorf("backprojection: volume has %d voxels, geometry expects %d", len(vol.Coefficients), want)
	}

	var shared *atomicGrid
	if r.strategy == StrategyAtomic {
		shared = newAtomicGrid(want)
	}
	shadows := make([]*shadowGrid, r.workers)

	var (
		mu        sync.Mutex
		seen      = make([]bool, g.NTheta)
		readErr   error
		processed int64
		wg        sync.WaitGroup
	)

	// next hands out one projection at a time. The stream is exhausted on
	// io.EOF; any other error stops all workers after their current
	// projection finishes.
	next := func() (*projection.Projection, bool) {
		mu.Lock()
		defer mu.Unlock()
		if readErr != nil {
			return nil, false
		}
		p, err := src.Next()
		if err == io.EOF {
			readErr = io.EOF
			return nil, false
		}
		if err != nil {
			readErr = err
			return nil, false
		}
		if p.Index < 0 || p.Index >= g.NTheta {
			readErr = fmt.Errorf("%w: projection index %d outside [0, %d)", projection.ErrMalformed, p.Index, g.NTheta)
			return nil, false
		}
		if seen[p.Index] {
			readErr = fmt.Errorf("%w: projection at angle %g collides with an earlier one on index %d", projection.ErrMalformed, p.Angle, p.Index)
			return nil, false
		}
		seen[p.Index] = true
		return p, true
	}

	for w := 0; w < r.workers; w++ {
		var acc Accumulator
		if r.strategy == StrategyAtomic {
			acc = shared
		} else {
			shadows[w] = newShadowGrid(want)
			acc = shadows[w]
		}

		wg.Add(1)
		go func(acc Accumulator) {
			defer wg.Done()
			s := newScratch(g)
			for {
				p, ok := next()
				if !ok {
					return
				}
				r.backproject(p, acc, s)
				n := atomic.AddInt64(&processed, 1)
				if r.progress != nil {
					fmt.Fprintf(r.progress, "Processing projection %d/%d\r", n, g.NTheta)
				}
			}
		}(acc)
	}
	wg.Wait()

	if readErr != nil && readErr != io.EOF {
		return int(processed), readErr
	}

	// Reduce into the volume. Shadow grids are summed in worker order.
	if r.strategy == StrategyAtomic {
		shared.addInto(vol.Coefficients)
	} else {
		for _, s := range shadows {
			s.addInto(vol.Coefficients)
		}
	}
	return int(processed), nil
}

// backproject traverses every ray of one projection and deposits its
// contributions.
func (r *Reconstructor) backproject(p *projection.Projection, acc Accumulator, s *scratch) {
	g := r.geom
	source := g.SourcePosition(p.Index)
	for row := 0; row < p.NSidePixels; row++ {
		for col := 0; col < p.NSidePixels; col++ {
			ray := Ray{
				Source: source,
				Pixel:  g.PixelPosition(p.Index, row, col, p.NSidePixels),
			}
			alphas, ok := traverse(g, ray, s)
			if !ok {
				continue
			}
			weight := p.Normalized(row*p.NSidePixels + col)
			depositAbsorption(g, acc, ray, alphas, weight)
		}
	}
}
