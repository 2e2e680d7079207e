package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bilayer-epidemic/internal/agents"
	"github.com/talgya/bilayer-epidemic/internal/demography"
	"github.com/talgya/bilayer-epidemic/internal/entropy"
	"github.com/talgya/bilayer-epidemic/internal/epidemic"
	"github.com/talgya/bilayer-epidemic/internal/metrics"
	"github.com/talgya/bilayer-epidemic/internal/network"
	"github.com/talgya/bilayer-epidemic/internal/opinion"
)

func smallParams() Params {
	p := DefaultParams()
	p.Steps = 500
	p.Network = network.BuildConfig{Agents: 100, M: 3, TriangleProb: 0.8, AdditionalLinks: 0}
	p.Epidemic = epidemic.Params{Beta: 0.3, Gamma: 0.2, Mu: 0.9, Kappa: 0.1, MaxInfectedTime: 10}
	p.Init.InfectedFraction = 0.1
	return p
}

func newSim(t *testing.T, p Params, seed uint64) *Simulation {
	t.Helper()
	rng := entropy.New(seed)
	ages, err := demography.NewSampler(demography.DefaultAgeTable(), rng)
	require.NoError(t, err)
	s, err := New(p, ages, rng)
	require.NoError(t, err)
	return s
}

func TestEngine_RunsEveryStep(t *testing.T) {
	e := NewEngine(25)
	var seen []int
	e.OnStep = func(step int) { seen = append(seen, step) }

	var progress []int
	e.Every(10, func(done int) { progress = append(progress, done) })
	e.Every(0, func(int) { t.Fatal("n <= 0 must be ignored") })

	require.NoError(t, e.Run(context.Background()))
	require.Len(t, seen, 25)
	assert.Equal(t, 0, seen[0])
	assert.Equal(t, 24, seen[24])
	assert.Equal(t, []int{10, 20}, progress)
	assert.Equal(t, 25, e.Step)
}

func TestEngine_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewEngine(10)
	e.OnStep = func(int) { t.Fatal("no step should run") }
	assert.ErrorIs(t, e.Run(ctx), context.Canceled)
}

func TestNew_Preconditions(t *testing.T) {
	rng := entropy.New(1)
	ages, err := demography.NewSampler(demography.DefaultAgeTable(), rng)
	require.NoError(t, err)

	p := smallParams()
	p.Network.M = 0
	_, err = New(p, ages, rng)
	assert.ErrorIs(t, err, network.ErrInvalidParams)

	p = smallParams()
	p.Metrics = []string{"nope"}
	_, err = New(p, ages, rng)
	assert.ErrorIs(t, err, metrics.ErrUnknownMetric)

	p = smallParams()
	p.QVoter.Q = 0
	_, err = New(p, ages, rng)
	assert.ErrorIs(t, err, ErrInvalidParams)

	p = smallParams()
	p.Init.Genders = agents.GenderEvenSplit
	p.Network.Agents = 99
	_, err = New(p, ages, rng)
	assert.ErrorIs(t, err, agents.ErrOddPopulation)
}

func TestSimulation_StepInvariants(t *testing.T) {
	p := smallParams()
	s := newSim(t, p, 42)

	assert.Equal(t, 10, s.Tally().Status[agents.Infected])

	prev := s.Agents.Counts()
	dead := map[agents.AgentID]bool{}
	for step := 0; step < p.Steps; step++ {
		s.Step(step)
		c := s.Agents.Counts()

		assert.LessOrEqual(t, c[agents.Susceptible], prev[agents.Susceptible], "step %d", step)
		removed := c[agents.Quarantined] + c[agents.Recovered] + c[agents.Dead]
		prevRemoved := prev[agents.Quarantined] + prev[agents.Recovered] + prev[agents.Dead]
		assert.GreaterOrEqual(t, removed, prevRemoved, "step %d", step)

		for i := range s.Agents {
			a := &s.Agents[i]
			require.True(t, a.Opinion == agents.OpinionPositive || a.Opinion == agents.OpinionNegative)
			if dead[a.ID] {
				require.Equal(t, agents.Dead, a.Status, "agent %d left Dead", a.ID)
			}
			if a.Status == agents.Dead {
				dead[a.ID] = true
			}
			if a.Status == agents.Quarantined && p.Modifiers.IsolateVirtual {
				require.Zero(t, s.Physical.Degree(a.ID))
				require.Zero(t, s.Virtual.Degree(a.ID))
			}
		}
		require.Equal(t, s.Agents.Tally(), s.Tally(), "incremental tally drifted at step %d", step)
		prev = c
	}
}

func TestSimulation_Run(t *testing.T) {
	p := smallParams()
	res, err := newSim(t, p, 7).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, metrics.DefaultNames(), res.Names)
	assert.Equal(t, p.Steps, res.Steps())
	for _, name := range res.Names {
		assert.Len(t, res.Series[name], p.Steps, name)
	}

	for step := 0; step < p.Steps; step++ {
		sum := 0.0
		for _, name := range []string{
			metrics.SusceptibleRatio, metrics.InfectedRatio, metrics.QuarantinedRatio,
			metrics.RecoveredRatio, metrics.DeadRatio,
		} {
			v := res.Series[name][step]
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
		assert.InDelta(t, 1.0, res.Series[metrics.AwareRatio][step]+res.Series[metrics.UnawareRatio][step], 1e-9)
	}

	final, err := res.Final(metrics.DeadRatio)
	require.NoError(t, err)
	assert.Equal(t, float64(res.Agents.Counts()[agents.Dead])/100, final)

	peak, err := res.Peak(metrics.InfectedRatio)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, peak, res.Series[metrics.InfectedRatio][0])

	_, err = res.Final("aware")
	assert.Error(t, err)

	total := 0
	for _, n := range res.Transitions {
		total += n
	}
	assert.LessOrEqual(t, total, p.Steps, "at most one transition per step")
}

func TestSimulation_SameSeedReproduces(t *testing.T) {
	p := smallParams()
	a, err := newSim(t, p, 11).Run(context.Background())
	require.NoError(t, err)
	b, err := newSim(t, p, 11).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.Series, b.Series)
	assert.Equal(t, a.Transitions, b.Transitions)
	assert.Equal(t, a.Physical.Edges(), b.Physical.Edges())
	assert.Equal(t, a.Virtual.Edges(), b.Virtual.Edges())
}

func TestSimulation_ZeroSteps(t *testing.T) {
	p := smallParams()
	p.Steps = 0
	res, err := newSim(t, p, 3).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Steps())
	_, err = res.Final(metrics.DeadRatio)
	assert.Error(t, err)
	assert.Equal(t, 10, res.Agents.Counts()[agents.Infected], "initial state is returned unchanged")
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
	require.NoError(t, smallParams().Validate())

	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"negative steps", func(p *Params) { p.Steps = -1 }},
		{"beta above one", func(p *Params) { p.Epidemic.Beta = 1.2 }},
		{"negative kappa", func(p *Params) { p.Epidemic.Kappa = -0.1 }},
		{"negative clock limit", func(p *Params) { p.Epidemic.MaxInfectedTime = -1 }},
		{"negative modifier", func(p *Params) { p.Modifiers.ComorbidBoth = -3 }},
		{"q zero", func(p *Params) { p.QVoter.Q = 0 }},
		{"q negative", func(p *Params) { p.QVoter.Q = -3 }},
		{"p above one", func(p *Params) { p.QVoter.P = 1.7 }},
		{"epsilon NaN", func(p *Params) { p.QVoter.Epsilon = math.NaN() }},
		{"xi negative", func(p *Params) { p.SocialMedia.Xi = -0.5 }},
		{"negative cadence", func(p *Params) { p.SocialMedia.Every = -10 }},
		{"lambda above one", func(p *Params) { p.Awareness.Lambda = 2 }},
		{"delta negative", func(p *Params) { p.Awareness.Delta = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := smallParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}

	p := smallParams()
	p.QVoter.Q = 0
	p.Awareness.Delta = 3
	err := p.Validate()
	assert.Contains(t, err.Error(), "q=0")
	assert.Contains(t, err.Error(), "delta=3")
}

func TestSimulation_UnanimousPositiveStaysPositive(t *testing.T) {
	p := smallParams()
	p.Init.NegativeOpinionFraction = 0
	p.QVoter = opinion.QVoterParams{Q: 4, P: 0, Epsilon: 0}

	res, err := newSim(t, p, 5).Run(context.Background())
	require.NoError(t, err)

	series := res.Series[metrics.MeanOpinion]
	require.Len(t, series, p.Steps)
	for step, v := range series {
		require.Equal(t, 1.0, v, "step %d", step)
	}
	for i := range res.Agents {
		assert.Equal(t, agents.OpinionPositive, res.Agents[i].Opinion)
	}
}
