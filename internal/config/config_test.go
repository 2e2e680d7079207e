package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bilayer-epidemic/internal/agents"
	"github.com/talgya/bilayer-epidemic/internal/engine"
)

func TestDefault_MatchesEngineDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	p := cfg.Params()
	want := engine.DefaultParams()
	assert.Equal(t, want.Epidemic, p.Epidemic)
	assert.Equal(t, want.Modifiers, p.Modifiers)
	assert.Equal(t, want.QVoter, p.QVoter)
	assert.Equal(t, want.SocialMedia, p.SocialMedia)
	assert.Equal(t, want.Awareness, p.Awareness)
	assert.Equal(t, want.Init, p.Init)
	assert.Equal(t, want.Network, p.Network)
	assert.Equal(t, 150000, p.Steps)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
seed: 42
log_level: debug
simulation:
  agents: 200
  steps: 1000
  additional_virtual_links: 25
  metrics: [dead_ratio, mean_degree_virtual]
  init:
    gender_mode: even_split
    seeding: bernoulli
  epidemic:
    beta: 0.3
  qvoter:
    q: 2
  social_media:
    n: 10
sweep:
  realizations: 3
  axis1: {name: beta, values: [0.1, 0.2]}
  axis2: {name: xi, values: [0, 0.5, 1]}
`))
	require.NoError(t, err)

	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 3, cfg.Sweep.Realizations)
	assert.Equal(t, []float64{0, 0.5, 1}, cfg.Sweep.Axis2.Values)

	p := cfg.Params()
	assert.Equal(t, 200, p.Network.Agents)
	assert.Equal(t, 25, p.Network.AdditionalLinks)
	assert.Equal(t, 0.3, p.Epidemic.Beta)
	assert.Equal(t, 0.2, p.Epidemic.Gamma, "unset keys keep their defaults")
	assert.Equal(t, 2, p.QVoter.Q)
	assert.Equal(t, 10, p.SocialMedia.Every)
	assert.Equal(t, agents.GenderEvenSplit, p.Init.Genders)
	assert.Equal(t, agents.SeedBernoulli, p.Init.Seeding)
	assert.Equal(t, []string{"dead_ratio", "mean_degree_virtual"}, p.Metrics)
}

func TestParse_FractionOfLinks(t *testing.T) {
	cfg, err := Parse([]byte("simulation:\n  agents: 100\n  frac_additional_virtual_links: 0.1\n"))
	require.NoError(t, err)
	assert.Equal(t, 495, cfg.Params().Network.AdditionalLinks)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"schema: probability out of range", "simulation:\n  epidemic:\n    beta: 1.5\n"},
		{"schema: unknown key", "simulation:\n  agnets: 10\n"},
		{"schema: wrong type", "workers: many\n"},
		{"schema: bad log level", "log_level: loud\n"},
		{"m not below agents", "simulation:\n  agents: 3\n  network:\n    m: 3\n"},
		{"odd even split", "simulation:\n  agents: 101\n  init:\n    gender_mode: even_split\n"},
		{"unknown metric", "simulation:\n  metrics: [happiness]\n"},
		{"unknown axis", "sweep:\n  axis1: {name: zeta, values: [1]}\n  axis2: {name: beta, values: [0.1]}\n"},
		{"fractional q axis", "sweep:\n  axis1: {name: q, values: [1.5]}\n  axis2: {name: beta, values: [0.1]}\n"},
		{"not yaml", "simulation: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Simulation.Agents = 0
	cfg.Simulation.QVoter.Q = 0
	cfg.Simulation.Awareness.Delta = -1

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "agents=0")
	assert.Contains(t, err.Error(), "qvoter.q=0")
	assert.Contains(t, err.Error(), "awareness.delta=-1")
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 1\nworkers: 2\nsimulation:\n  agents: 50\n"), 0o644))

	t.Setenv(EnvSeed, "77")
	t.Setenv(EnvWorkers, "3")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvOutputDir, "/tmp/elsewhere")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), cfg.Seed)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/tmp/elsewhere", cfg.OutputDir)
	assert.Equal(t, 50, cfg.Simulation.Agents)

	t.Setenv(EnvSeed, "-4")
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_DefaultsFillWorkers(t *testing.T) {
	t.Setenv(EnvWorkers, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cfg.Workers, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLogLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestValidateSchema(t *testing.T) {
	require.NoError(t, validateSchema([]byte("seed: 3\nsimulation:\n  agents: 10\n  epidemic:\n    beta: 0.25\n")))

	err := validateSchema([]byte("simulation:\n  qvoter:\n    q: 0\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	err = validateSchema([]byte("sweep:\n  axis1: {name: beta}\n"))
	assert.ErrorIs(t, err, ErrInvalid, "axis values are required")
}
