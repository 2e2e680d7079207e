// Simulation ties the two layers, the agents and the update rules together
// and runs them one step at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/talgya/bilayer-epidemic/internal/agents"
	"github.com/talgya/bilayer-epidemic/internal/epidemic"
	"github.com/talgya/bilayer-epidemic/internal/metrics"
	"github.com/talgya/bilayer-epidemic/internal/network"
	"github.com/talgya/bilayer-epidemic/internal/opinion"
)

// Params is everything one simulation run needs.
type Params struct {
	Steps       int
	Network     network.BuildConfig
	Init        agents.InitConfig
	Epidemic    epidemic.Params
	Modifiers   epidemic.Modifiers
	QVoter      opinion.QVoterParams
	Awareness   opinion.AwarenessParams
	SocialMedia opinion.SocialMediaParams
	Metrics     []string // Empty selects the default set
	Verbose     bool     // Log progress every tenth of the run
}

// DefaultParams mirrors the reference calibration.
func DefaultParams() Params {
	return Params{
		Steps:       150000,
		Network:     network.DefaultBuildConfig(),
		Init:        agents.DefaultInitConfig(),
		Epidemic:    epidemic.DefaultParams(),
		Modifiers:   epidemic.DefaultModifiers(),
		QVoter:      opinion.DefaultQVoterParams(),
		Awareness:   opinion.DefaultAwarenessParams(),
		SocialMedia: opinion.DefaultSocialMediaParams(),
	}
}

// ErrInvalidParams is returned by New for a parameter outside its domain.
var ErrInvalidParams = errors.New("engine: invalid parameters")

// Validate checks the domains of the step count and the rate bundles. Network
// and initialization settings are checked by their own packages.
func (p Params) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidParams}, args...)...))
	}
	prob := func(name string, v float64) {
		if !(v >= 0 && v <= 1) {
			fail("%s=%v outside [0, 1]", name, v)
		}
	}
	nonNeg := func(name string, v float64) {
		if !(v >= 0) || math.IsInf(v, 1) {
			fail("%s=%v must be finite and not negative", name, v)
		}
	}

	if p.Steps < 0 {
		fail("steps=%d must not be negative", p.Steps)
	}

	prob("beta", p.Epidemic.Beta)
	prob("gamma", p.Epidemic.Gamma)
	prob("mu", p.Epidemic.Mu)
	prob("kappa", p.Epidemic.Kappa)
	nonNeg("max_infected_time", p.Epidemic.MaxInfectedTime)

	m := p.Modifiers
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"positive_opinion_beta", m.PositiveOpinionBeta},
		{"aware_beta", m.AwareBeta},
		{"negative_opinion_gamma", m.NegativeOpinionGamma},
		{"unaware_gamma", m.UnawareGamma},
		{"positive_opinion_clock", m.PositiveOpinionClock},
		{"comorbid_b_clock", m.ComorbidBClock},
		{"comorbid_a", m.ComorbidA},
		{"comorbid_b", m.ComorbidB},
		{"comorbid_both", m.ComorbidBoth},
	} {
		nonNeg(f.name, f.v)
	}

	if p.QVoter.Q < 1 {
		fail("q=%d must be at least 1", p.QVoter.Q)
	}
	prob("p", p.QVoter.P)
	prob("epsilon", p.QVoter.Epsilon)
	prob("xi", p.SocialMedia.Xi)
	if p.SocialMedia.Every < 0 {
		fail("n=%d must not be negative", p.SocialMedia.Every)
	}
	prob("lambda", p.Awareness.Lambda)
	prob("delta", p.Awareness.Delta)

	return errors.Join(errs...)
}

// Simulation holds the complete model state for one run.
type Simulation struct {
	Params   Params
	Physical *network.Layer
	Virtual  *network.Layer
	Agents   agents.Population
	Metrics  *metrics.Registry

	epidemic    *epidemic.Engine
	rng         *rand.Rand
	tally       agents.Tally
	series      [][]float64 // Indexed by metric, then step
	transitions map[string]int
}

// New builds both layers and the initial population. All randomness,
// including construction, is drawn from rng.
func New(p Params, ages agents.AgeSampler, rng *rand.Rand) (*Simulation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	reg, err := metrics.Select(p.Metrics)
	if err != nil {
		return nil, err
	}

	physical, virtual, err := network.Build(p.Network, rng)
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}
	pop, err := agents.Initialize(p.Network.Agents, p.Init, ages, rng)
	if err != nil {
		return nil, fmt.Errorf("initialize agents: %w", err)
	}

	s := &Simulation{
		Params:      p,
		Physical:    physical,
		Virtual:     virtual,
		Agents:      pop,
		Metrics:     reg,
		epidemic:    epidemic.NewEngine(p.Epidemic, p.Modifiers, physical, virtual, pop, rng),
		rng:         rng,
		tally:       pop.Tally(),
		series:      make([][]float64, reg.Len()),
		transitions: make(map[string]int),
	}
	for i := range s.series {
		s.series[i] = make([]float64, 0, p.Steps)
	}
	return s, nil
}

// Step runs one elementary update: pick one agent uniformly, run the
// broadcast if due, then the agent's awareness, opinion and epidemic updates
// in that order, then sample every metric.
func (s *Simulation) Step(step int) {
	id := s.rng.Int64N(int64(len(s.Agents)))

	if opinion.Broadcast(step, s.Agents, s.Params.SocialMedia, s.rng) > 0 {
		s.tally = s.Agents.Tally()
	}

	a := s.Agents.Get(id)
	s.tally.Remove(a)
	opinion.UpdateAwareness(id, s.Agents, s.Virtual, s.Params.Awareness, s.rng)
	opinion.UpdateOpinion(id, s.Agents, s.Virtual, s.Params.QVoter, s.rng)
	if tr, ok := s.epidemic.Step(id); ok {
		s.transitions[tr.Key()]++
	}
	s.tally.Add(a)

	for i, v := range s.Metrics.SampleTally(s.Physical, s.Virtual, s.Agents, s.tally) {
		s.series[i] = append(s.series[i], v)
	}
}

// Run executes every step and returns the collected result.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	eng := NewEngine(s.Params.Steps)
	eng.OnStep = s.Step

	start := time.Now()
	if s.Params.Verbose {
		eng.Every(max(s.Params.Steps/10, 1), func(done int) {
			c := s.tally.Status
			slog.Info("simulation progress",
				"step", done,
				"of", s.Params.Steps,
				"S", c[agents.Susceptible],
				"I", c[agents.Infected],
				"Q", c[agents.Quarantined],
				"R", c[agents.Recovered],
				"D", c[agents.Dead],
				"aware", s.tally.Aware,
				"elapsed", time.Since(start).Round(time.Millisecond),
			)
		})
	}

	if err := eng.Run(ctx); err != nil {
		return nil, err
	}
	return s.Result(), nil
}

// Tally returns the current population aggregates.
func (s *Simulation) Tally() agents.Tally {
	return s.tally
}

// Result snapshots the series and final state collected so far.
func (s *Simulation) Result() *Result {
	names := s.Metrics.Names()
	series := make(map[string][]float64, len(names))
	for i, name := range names {
		series[name] = s.series[i]
	}
	transitions := make(map[string]int, len(s.transitions))
	for k, v := range s.transitions {
		transitions[k] = v
	}
	return &Result{
		Names:       names,
		Series:      series,
		Physical:    s.Physical,
		Virtual:     s.Virtual,
		Agents:      s.Agents,
		Transitions: transitions,
	}
}
