package persistence

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bilayer-epidemic/internal/engine"
	"github.com/talgya/bilayer-epidemic/internal/experiment"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestExperimentRoundTrip(t *testing.T) {
	db := openTemp(t)

	id, err := db.SaveExperiment(Experiment{
		Kind:         KindSweep,
		Axis1:        "beta",
		Axis2:        "xi",
		Seed:         1<<63 + 5,
		Realizations: 3,
	}, map[string]float64{"beta": 0.1})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := db.GetExperiment(id)
	require.NoError(t, err)
	assert.Equal(t, KindSweep, got.Kind)
	assert.Equal(t, "beta", got.Axis1)
	assert.Equal(t, uint64(1<<63+5), got.Seed, "seeds above MaxInt64 survive the INTEGER column")
	assert.JSONEq(t, `{"beta":0.1}`, got.Params)
	assert.NotEmpty(t, got.CreatedAt)

	_, err = db.GetExperiment("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCellsRoundTrip(t *testing.T) {
	db := openTemp(t)
	cells := []experiment.Cell{
		{Index: 0, V1: 0.1, V2: 1, Runs: 2, Values: map[string]float64{experiment.FinalDead: 0.05, experiment.PeakInfected: 0.4}},
		{Index: 1, V1: 0.1, V2: 2, Runs: 2, Values: map[string]float64{experiment.FinalDead: 0.07, experiment.PeakInfected: 0.3}},
	}
	require.NoError(t, db.SaveCells("exp", cells))

	got, err := db.Cells("exp")
	require.NoError(t, err)
	assert.Equal(t, cells, got)

	// Saving again replaces rather than duplicates.
	require.NoError(t, db.SaveCells("exp", cells[:1]))
	got, err = db.Cells("exp")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = db.Cells("other")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveRunSeries(t *testing.T) {
	db := openTemp(t)
	res := &engine.Result{
		Names: []string{"infected_ratio", "dead_ratio"},
		Series: map[string][]float64{
			"infected_ratio": {0.1, 0.2, 0.15},
			"dead_ratio":     {0, 0, 0.01},
		},
		Transitions: map[string]int{"S->I": 4, "I->D": 1},
	}

	runID, err := db.SaveRunSeries(Run{ExperimentID: "exp", Cell: 2, Index: 1, Seed: 99}, res)
	require.NoError(t, err)

	s, err := db.Series(runID, "infected_ratio")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.15}, s)

	runs, err := db.Runs("exp")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Cell)
	assert.Equal(t, uint64(99), runs[0].Seed)
	assert.JSONEq(t, `{"S->I":4,"I->D":1}`, runs[0].Transitions)
}

func TestSaveGrid(t *testing.T) {
	db := openTemp(t)
	grid := &experiment.Grid{
		ID:    NewID(),
		Axis1: experiment.Axis{Name: "beta", Values: []float64{0.1}},
		Axis2: experiment.Axis{Name: "p", Values: []float64{0.5}},
		Cells: map[experiment.Key]experiment.Cell{
			{V1: 0.1, V2: 0.5}: {Index: 0, V1: 0.1, V2: 0.5, Runs: 1, Values: map[string]float64{experiment.FinalOpinion: -0.2}},
		},
	}
	require.NoError(t, db.SaveGrid(grid, 7, 1, engine.DefaultParams()))

	exp, err := db.GetExperiment(grid.ID)
	require.NoError(t, err)
	assert.Equal(t, "p", exp.Axis2)

	cells, err := db.Cells(grid.ID)
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, -0.2, cells[0].Values[experiment.FinalOpinion])
}

func TestMeta(t *testing.T) {
	db := openTemp(t)
	require.NoError(t, db.SaveMeta("last_experiment", "abc"))
	require.NoError(t, db.SaveMeta("last_experiment", "def"))
	v, err := db.GetMeta("last_experiment")
	require.NoError(t, err)
	assert.Equal(t, "def", v)
}
