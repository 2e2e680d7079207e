// Package persistence provides SQLite-based storage for experiment results.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/bilayer-epidemic/internal/engine"
	"github.com/talgya/bilayer-epidemic/internal/experiment"
)

// Experiment kinds.
const (
	KindRun   = "run"
	KindSweep = "sweep"
)

// DB wraps a SQLite connection for result storage.
type DB struct {
	conn *sqlx.DB
}

// Experiment is one invocation: a single run or a sweep.
type Experiment struct {
	ID           string `db:"id"`
	Kind         string `db:"kind"`
	Axis1        string `db:"axis1"`
	Axis2        string `db:"axis2"`
	Seed         uint64 `db:"-"`
	Realizations int    `db:"realizations"`
	Params       string `db:"params_json"` // JSON of the run parameters
	CreatedAt    string `db:"created_at"`
}

// Run identifies one stored realization.
type Run struct {
	ID           string `db:"id"`
	ExperimentID string `db:"experiment_id"`
	Cell         int    `db:"cell_index"`
	Index        int    `db:"run_index"`
	Seed         uint64 `db:"-"`
	Transitions  string `db:"transitions_json"`
}

// NewID returns a fresh identifier for experiments and runs.
func NewID() string {
	return uuid.NewString()
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite has a single writer.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS experiments (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		axis1 TEXT NOT NULL DEFAULT '',
		axis2 TEXT NOT NULL DEFAULT '',
		seed INTEGER NOT NULL,
		realizations INTEGER NOT NULL,
		params_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cells (
		experiment_id TEXT NOT NULL,
		cell_index INTEGER NOT NULL,
		v1 REAL NOT NULL,
		v2 REAL NOT NULL,
		runs INTEGER NOT NULL,
		reducer TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (experiment_id, cell_index, reducer)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		experiment_id TEXT NOT NULL,
		cell_index INTEGER NOT NULL,
		run_index INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		transitions_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_series (
		run_id TEXT NOT NULL,
		metric TEXT NOT NULL,
		step INTEGER NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (run_id, metric, step)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_experiment ON runs(experiment_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveExperiment inserts or replaces an experiment row. An empty ID is
// filled in; the stored ID is returned.
func (db *DB) SaveExperiment(exp Experiment, params any) (string, error) {
	if exp.ID == "" {
		exp.ID = NewID()
	}
	if exp.CreatedAt == "" {
		exp.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}

	_, err = db.conn.Exec(`INSERT OR REPLACE INTO experiments
		(id, kind, axis1, axis2, seed, realizations, params_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.Kind, exp.Axis1, exp.Axis2, int64(exp.Seed), exp.Realizations, string(raw), exp.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert experiment %s: %w", exp.ID, err)
	}
	return exp.ID, nil
}

// GetExperiment loads one experiment row.
func (db *DB) GetExperiment(id string) (Experiment, error) {
	var (
		exp  Experiment
		seed int64
	)
	err := db.conn.QueryRowx(`SELECT id, kind, axis1, axis2, seed, realizations, params_json, created_at
		FROM experiments WHERE id = ?`, id).
		Scan(&exp.ID, &exp.Kind, &exp.Axis1, &exp.Axis2, &seed, &exp.Realizations, &exp.Params, &exp.CreatedAt)
	if err != nil {
		return Experiment{}, err
	}
	exp.Seed = uint64(seed)
	return exp, nil
}

// SaveCells writes every reduced cell of a sweep (full replace for expID).
func (db *DB) SaveCells(expID string, cells []experiment.Cell) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cells WHERE experiment_id = ?", expID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO cells
		(experiment_id, cell_index, v1, v2, runs, reducer, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range cells {
		for reducer, v := range c.Values {
			if _, err := stmt.Exec(expID, c.Index, c.V1, c.V2, c.Runs, reducer, v); err != nil {
				return fmt.Errorf("insert cell %d: %w", c.Index, err)
			}
		}
	}

	return tx.Commit()
}

type cellRow struct {
	Index   int     `db:"cell_index"`
	V1      float64 `db:"v1"`
	V2      float64 `db:"v2"`
	Runs    int     `db:"runs"`
	Reducer string  `db:"reducer"`
	Value   float64 `db:"value"`
}

// Cells returns the stored cells of an experiment ordered by grid index.
func (db *DB) Cells(expID string) ([]experiment.Cell, error) {
	var rows []cellRow
	err := db.conn.Select(&rows, `SELECT cell_index, v1, v2, runs, reducer, value
		FROM cells WHERE experiment_id = ? ORDER BY cell_index, reducer`, expID)
	if err != nil {
		return nil, err
	}

	var out []experiment.Cell
	for _, r := range rows {
		if len(out) == 0 || out[len(out)-1].Index != r.Index {
			out = append(out, experiment.Cell{
				Index:  r.Index,
				V1:     r.V1,
				V2:     r.V2,
				Runs:   r.Runs,
				Values: make(map[string]float64),
			})
		}
		out[len(out)-1].Values[r.Reducer] = r.Value
	}
	return out, nil
}

// SaveRunSeries stores one realization and every metric series of its
// result in a single transaction. An empty run ID is filled in; the stored
// ID is returned.
func (db *DB) SaveRunSeries(run Run, res *engine.Result) (string, error) {
	if run.ID == "" {
		run.ID = NewID()
	}
	transitions, err := json.Marshal(res.Transitions)
	if err != nil {
		return "", fmt.Errorf("encode transitions: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO runs
		(id, experiment_id, cell_index, run_index, seed, transitions_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.ExperimentID, run.Cell, run.Index, int64(run.Seed), string(transitions),
	)
	if err != nil {
		return "", fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.Preparex("INSERT OR REPLACE INTO run_series (run_id, metric, step, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	rows := 0
	for _, name := range res.Names {
		for step, v := range res.Series[name] {
			if _, err := stmt.Exec(run.ID, name, step, v); err != nil {
				return "", fmt.Errorf("insert series %s/%s: %w", run.ID, name, err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	slog.Debug("run series saved", "run", run.ID, "rows", rows)
	return run.ID, nil
}

// Runs lists the stored realizations of an experiment.
func (db *DB) Runs(expID string) ([]Run, error) {
	rows, err := db.conn.Queryx(`SELECT id, experiment_id, cell_index, run_index, seed, transitions_json
		FROM runs WHERE experiment_id = ? ORDER BY cell_index, run_index`, expID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r    Run
			seed int64
		)
		if err := rows.Scan(&r.ID, &r.ExperimentID, &r.Cell, &r.Index, &seed, &r.Transitions); err != nil {
			return nil, err
		}
		r.Seed = uint64(seed)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Series returns one stored metric series in step order.
func (db *DB) Series(runID, metric string) ([]float64, error) {
	var values []float64
	err := db.conn.Select(&values,
		"SELECT value FROM run_series WHERE run_id = ? AND metric = ? ORDER BY step",
		runID, metric,
	)
	return values, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// SaveGrid stores a finished sweep: the experiment row and its cells.
func (db *DB) SaveGrid(grid *experiment.Grid, seed uint64, realizations int, params any) error {
	slog.Info("saving sweep", "id", grid.ID, "cells", len(grid.Cells))

	_, err := db.SaveExperiment(Experiment{
		ID:           grid.ID,
		Kind:         KindSweep,
		Axis1:        grid.Axis1.Name,
		Axis2:        grid.Axis2.Name,
		Seed:         seed,
		Realizations: realizations,
	}, params)
	if err != nil {
		return fmt.Errorf("save experiment: %w", err)
	}
	if err := db.SaveCells(grid.ID, grid.Ordered()); err != nil {
		return fmt.Errorf("save cells: %w", err)
	}
	return nil
}
