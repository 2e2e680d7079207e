package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/talgya/bilayer-epidemic/internal/demography"
	"github.com/talgya/bilayer-epidemic/internal/engine"
	"github.com/talgya/bilayer-epidemic/internal/entropy"
	"github.com/talgya/bilayer-epidemic/internal/metrics"
)

// Reducer names, one per per-cell aggregate.
const (
	FinalDead     = "final_dead"
	PeakInfected  = "peak_infected"
	FinalInfected = "final_infected"
	FinalOpinion  = "final_opinion"
)

// ReducerNames lists the per-cell aggregates in output order.
func ReducerNames() []string {
	return []string{FinalDead, PeakInfected, FinalInfected, FinalOpinion}
}

// requiredMetrics must be sampled for the reducers to work.
var requiredMetrics = []string{metrics.DeadRatio, metrics.InfectedRatio, metrics.MeanOpinion}

// Key identifies a grid cell by its axis values.
type Key struct {
	V1, V2 float64
}

// Cell is the reduced outcome of one grid cell.
type Cell struct {
	Index  int                `json:"index"`
	V1     float64            `json:"v1"`
	V2     float64            `json:"v2"`
	Runs   int                `json:"runs"`
	Values map[string]float64 `json:"values"` // Keyed by reducer name
}

// Key returns the cell's grid key.
func (c Cell) Key() Key { return Key{c.V1, c.V2} }

// Grid is the result of a sweep.
type Grid struct {
	ID    string
	Axis1 Axis
	Axis2 Axis
	Cells map[Key]Cell
}

// Get returns the cell at (v1, v2).
func (g *Grid) Get(v1, v2 float64) (Cell, bool) {
	c, ok := g.Cells[Key{v1, v2}]
	return c, ok
}

// Ordered returns the cells sorted by grid index.
func (g *Grid) Ordered() []Cell {
	out := make([]Cell, 0, len(g.Cells))
	for _, c := range g.Cells {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Cell) int { return a.Index - b.Index })
	return out
}

// RunInfo identifies one realization inside a sweep.
type RunInfo struct {
	Cell int
	Run  int
	Seed uint64
	V1   float64
	V2   float64
}

// Runner executes sweeps on a bounded pool of workers.
type Runner struct {
	Workers      int
	Realizations int
	Seed         uint64 // Base seed; every run derives its own from it
	Ages         demography.AgeTable

	// OnRun, if set, sees every finished realization. It may be called from
	// several goroutines at once.
	OnRun func(info RunInfo, res *engine.Result)

	// simulate replaces runOne when set.
	simulate func(ctx context.Context, p engine.Params, seed uint64) (*engine.Result, error)
}

// Run sweeps the Cartesian product of axis1 and axis2 over base. Cells are
// split into ceil(cells/workers) sized chunks, one goroutine per chunk. A
// failing chunk drops only its own cells: the grid holds every cell that
// finished and the error joins every chunk failure.
func (r *Runner) Run(ctx context.Context, base engine.Params, axis1, axis2 Axis) (*Grid, error) {
	if err := axis1.Validate(); err != nil {
		return nil, err
	}
	if err := axis2.Validate(); err != nil {
		return nil, err
	}
	if r.Realizations < 1 {
		return nil, fmt.Errorf("experiment: realizations must be positive, got %d", r.Realizations)
	}
	workers := max(r.Workers, 1)
	base.Metrics = withRequired(base.Metrics)

	cells := make([]Cell, 0, len(axis1.Values)*len(axis2.Values))
	for _, v1 := range axis1.Values {
		for _, v2 := range axis2.Values {
			cells = append(cells, Cell{Index: len(cells), V1: v1, V2: v2})
		}
	}
	chunks := chunk(cells, workers)

	grid := &Grid{
		ID:    uuid.NewString(),
		Axis1: axis1,
		Axis2: axis2,
		Cells: make(map[Key]Cell, len(cells)),
	}
	slog.Info("sweep started",
		"id", grid.ID,
		"axis1", axis1.Name,
		"axis2", axis2.Name,
		"cells", len(cells),
		"chunks", len(chunks),
		"realizations", r.Realizations,
	)
	start := time.Now()

	var (
		mu   sync.Mutex
		errs = make([]error, len(chunks))
		g    errgroup.Group
	)
	g.SetLimit(workers)
	for i, part := range chunks {
		g.Go(func() error {
			done, err := r.runChunk(ctx, base, axis1.Name, axis2.Name, part)
			if err != nil {
				errs[i] = fmt.Errorf("chunk %d: %w", i, err)
				return errs[i]
			}
			mu.Lock()
			for _, c := range done {
				grid.Cells[c.Key()] = c
			}
			mu.Unlock()
			return nil
		})
	}

	// Wait reports only the first failure; the other chunks keep running
	// and every failure is joined below.
	var err error
	if g.Wait() != nil {
		err = errors.Join(errs...)
	}
	slog.Info("sweep finished",
		"id", grid.ID,
		"cells", len(grid.Cells),
		"elapsed", time.Since(start).Round(time.Millisecond),
		"failed", err != nil,
	)
	return grid, err
}

func (r *Runner) runChunk(ctx context.Context, base engine.Params, name1, name2 string, part []Cell) ([]Cell, error) {
	out := make([]Cell, 0, len(part))
	for _, c := range part {
		cellStart := time.Now()
		slog.Info("cell started", name1, c.V1, name2, c.V2)

		p, err := Apply(base, name1, c.V1)
		if err != nil {
			return nil, err
		}
		if p, err = Apply(p, name2, c.V2); err != nil {
			return nil, err
		}

		reduced, err := r.runCell(ctx, p, c)
		if err != nil {
			return nil, fmt.Errorf("cell (%s=%v, %s=%v): %w", name1, c.V1, name2, c.V2, err)
		}
		out = append(out, reduced)
		slog.Info("cell finished", name1, c.V1, name2, c.V2, "elapsed", time.Since(cellStart).Round(time.Millisecond))
	}
	return out, nil
}

// runCell runs every realization of one cell and reduces them to means.
func (r *Runner) runCell(ctx context.Context, p engine.Params, c Cell) (Cell, error) {
	samples := make(map[string][]float64, len(ReducerNames()))
	simulate := r.runOne
	if r.simulate != nil {
		simulate = r.simulate
	}
	for run := 0; run < r.Realizations; run++ {
		seed := entropy.Derive(r.Seed, uint64(c.Index), uint64(run))
		res, err := simulate(ctx, p, seed)
		if err != nil {
			return Cell{}, err
		}
		values, err := reduce(res)
		if err != nil {
			return Cell{}, err
		}
		for name, v := range values {
			samples[name] = append(samples[name], v)
		}
		if r.OnRun != nil {
			r.OnRun(RunInfo{Cell: c.Index, Run: run, Seed: seed, V1: c.V1, V2: c.V2}, res)
		}
	}

	c.Runs = r.Realizations
	c.Values = make(map[string]float64, len(samples))
	for name, xs := range samples {
		c.Values[name] = stat.Mean(xs, nil)
	}
	return c, nil
}

func (r *Runner) runOne(ctx context.Context, p engine.Params, seed uint64) (*engine.Result, error) {
	rng := entropy.New(seed)
	ages, err := demography.NewSampler(r.Ages, rng)
	if err != nil {
		return nil, err
	}
	sim, err := engine.New(p, ages, rng)
	if err != nil {
		return nil, err
	}
	return sim.Run(ctx)
}

// reduce extracts the per-run aggregates.
func reduce(res *engine.Result) (map[string]float64, error) {
	out := make(map[string]float64, 4)
	var err error
	if out[FinalDead], err = res.Final(metrics.DeadRatio); err != nil {
		return nil, err
	}
	if out[PeakInfected], err = res.Peak(metrics.InfectedRatio); err != nil {
		return nil, err
	}
	if out[FinalInfected], err = res.Final(metrics.InfectedRatio); err != nil {
		return nil, err
	}
	if out[FinalOpinion], err = res.Final(metrics.MeanOpinion); err != nil {
		return nil, err
	}
	return out, nil
}

// chunk splits cells into pieces of ceil(len/workers) cells.
func chunk(cells []Cell, workers int) [][]Cell {
	if len(cells) == 0 {
		return nil
	}
	size := (len(cells) + workers - 1) / workers
	var out [][]Cell
	for start := 0; start < len(cells); start += size {
		out = append(out, cells[start:min(start+size, len(cells))])
	}
	return out
}

func withRequired(names []string) []string {
	if len(names) == 0 {
		names = metrics.DefaultNames()
	}
	out := slices.Clone(names)
	for _, name := range requiredMetrics {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}
