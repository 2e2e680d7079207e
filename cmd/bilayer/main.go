// Command bilayer runs the bilayer epidemic/opinion model: a single
// simulation ("run") or a two-parameter sweep ("sweep").
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/bilayer-epidemic/internal/config"
	"github.com/talgya/bilayer-epidemic/internal/demography"
	"github.com/talgya/bilayer-epidemic/internal/engine"
	"github.com/talgya/bilayer-epidemic/internal/entropy"
	"github.com/talgya/bilayer-epidemic/internal/experiment"
	"github.com/talgya/bilayer-epidemic/internal/network"
	"github.com/talgya/bilayer-epidemic/internal/output"
	"github.com/talgya/bilayer-epidemic/internal/persistence"
)

const usage = `usage: bilayer <command> [flags]

commands:
  run     run one simulation and write its series and final snapshot
  sweep   run a two-parameter sweep and write one grid per reducer
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML configuration file (defaults when empty)")
	noDB := fs.Bool("no-db", false, "skip writing results to SQLite")
	_ = fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "run":
		err = runOne(ctx, cfg, !*noDB)
	case "sweep":
		err = runSweep(ctx, cfg, !*noDB)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
}

func loadAges(cfg *config.Config) (demography.AgeTable, error) {
	if cfg.AgeTable == "" {
		return demography.DefaultAgeTable(), nil
	}
	return demography.LoadAgeTable(cfg.AgeTable)
}

func openDB(cfg *config.Config) (*persistence.DB, error) {
	path := cfg.Database
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.OutputDir, path)
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", path)
	return db, nil
}

func runOne(ctx context.Context, cfg *config.Config, useDB bool) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}
	table, err := loadAges(cfg)
	if err != nil {
		return err
	}

	seed := entropy.Resolve(cfg.Seed)
	params := cfg.Params()
	slog.Info("bilayer simulation",
		"seed", seed,
		"agents", params.Network.Agents,
		"steps", params.Steps,
		"additional_links", params.Network.AdditionalLinks,
	)

	rng := entropy.New(seed)
	ages, err := demography.NewSampler(table, rng)
	if err != nil {
		return err
	}
	start := time.Now()
	sim, err := engine.New(params, ages, rng)
	if err != nil {
		return err
	}
	slog.Info("network built",
		"physical_edges", sim.Physical.EdgeCount(),
		"virtual_edges", sim.Virtual.EdgeCount(),
		"degree_correlation", fmt.Sprintf("%.3f", network.DegreeCorrelation(sim.Physical, sim.Virtual)),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	res, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	slog.Info("simulation finished", "elapsed", time.Since(start).Round(time.Millisecond), "transitions", res.Transitions)

	stem := filepath.Join(cfg.OutputDir, output.FormatParameters(params, 1))
	if err := writeFile(stem+".csv", func(f *os.File) error { return output.WriteSeriesCSV(f, res) }); err != nil {
		return fmt.Errorf("write series csv: %w", err)
	}
	if err := writeFile(stem+".msgpack", func(f *os.File) error { return output.WriteSnapshot(f, res) }); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	sw, err := output.CreateSeriesFile(stem + ".jsonl.zst")
	if err != nil {
		return err
	}
	if err := errors.Join(sw.WriteResult(res), sw.Close()); err != nil {
		return fmt.Errorf("write series stream: %w", err)
	}

	if !useDB {
		return nil
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	expID, err := db.SaveExperiment(persistence.Experiment{
		Kind:         persistence.KindRun,
		Seed:         seed,
		Realizations: 1,
	}, params)
	if err != nil {
		return err
	}
	runID, err := db.SaveRunSeries(persistence.Run{ExperimentID: expID, Seed: seed}, res)
	if err != nil {
		return err
	}
	slog.Info("results stored", "experiment", expID, "run", runID)
	return db.SaveMeta("last_experiment", expID)
}

func runSweep(ctx context.Context, cfg *config.Config, useDB bool) error {
	sw := cfg.Sweep
	if sw.Axis1.Name == "" || sw.Axis2.Name == "" {
		return errors.New("sweep needs sweep.axis1 and sweep.axis2 in the config")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}
	table, err := loadAges(cfg)
	if err != nil {
		return err
	}

	seed := entropy.Resolve(cfg.Seed)
	params := cfg.Params()
	params.Verbose = false
	runner := &experiment.Runner{
		Workers:      cfg.Workers,
		Realizations: sw.Realizations,
		Seed:         seed,
		Ages:         table,
	}
	slog.Info("bilayer sweep", "seed", seed, "workers", cfg.Workers)

	grid, runErr := runner.Run(ctx, params, sw.Axis1, sw.Axis2)
	if grid == nil || ctx.Err() != nil {
		return runErr
	}
	if runErr != nil {
		slog.Warn("sweep finished with failures", "cells", len(grid.Cells), "error", runErr)
	}

	stem := output.FormatParameters(params, sw.Realizations)
	for _, reducer := range experiment.ReducerNames() {
		path := filepath.Join(cfg.OutputDir, reducer+"_"+stem+".csv")
		err := writeFile(path, func(f *os.File) error { return output.WriteGridCSV(f, reducer, grid) })
		if err != nil {
			return fmt.Errorf("write %s grid: %w", reducer, err)
		}
		slog.Info("grid written", "reducer", reducer, "path", path)
	}

	if useDB {
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveGrid(grid, seed, sw.Realizations, params); err != nil {
			return err
		}
		if err := db.SaveMeta("last_experiment", grid.ID); err != nil {
			return err
		}
	}
	return runErr
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
