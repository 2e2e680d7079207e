// Package config loads simulation and sweep settings from YAML, validated
// against an embedded JSON schema, with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/bilayer-epidemic/internal/agents"
	"github.com/talgya/bilayer-epidemic/internal/engine"
	"github.com/talgya/bilayer-epidemic/internal/epidemic"
	"github.com/talgya/bilayer-epidemic/internal/experiment"
	"github.com/talgya/bilayer-epidemic/internal/metrics"
	"github.com/talgya/bilayer-epidemic/internal/network"
	"github.com/talgya/bilayer-epidemic/internal/opinion"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds application configuration.
type Config struct {
	Seed      uint64 `yaml:"seed"`       // 0 draws a random seed
	Workers   int    `yaml:"workers"`    // 0 uses the logical CPU count
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	OutputDir string `yaml:"output_dir"` // CSV, series and snapshot files
	Database  string `yaml:"database"`   // SQLite file; relative paths resolve under OutputDir
	AgeTable  string `yaml:"age_table"`  // Empty uses the embedded table

	Simulation Simulation `yaml:"simulation"`
	Sweep      Sweep      `yaml:"sweep"`
}

// Simulation mirrors engine.Params in config form.
type Simulation struct {
	Agents                     int      `yaml:"agents"`
	Steps                      int      `yaml:"steps"`
	FracAdditionalVirtualLinks float64  `yaml:"frac_additional_virtual_links"`
	AdditionalVirtualLinks     *int     `yaml:"additional_virtual_links"` // Overrides the fraction when set
	Verbose                    bool     `yaml:"verbose"`
	Metrics                    []string `yaml:"metrics"`

	Network     Network     `yaml:"network"`
	Init        Init        `yaml:"init"`
	Epidemic    Epidemic    `yaml:"epidemic"`
	Modifiers   Modifiers   `yaml:"modifiers"`
	QVoter      QVoter      `yaml:"qvoter"`
	SocialMedia SocialMedia `yaml:"social_media"`
	Awareness   Awareness   `yaml:"awareness"`
}

type Network struct {
	M            int     `yaml:"m"`
	TriangleProb float64 `yaml:"triangle_prob"`
}

type Init struct {
	InfectedFraction        float64 `yaml:"infected_fraction"`
	AwareFraction           float64 `yaml:"aware_fraction"`
	NegativeOpinionFraction float64 `yaml:"negative_opinion_fraction"`
	ComorbidAFraction       float64 `yaml:"comorbid_a_fraction"`
	ComorbidBFraction       float64 `yaml:"comorbid_b_fraction"`
	GenderMode              string  `yaml:"gender_mode"` // bernoulli, even_split
	Seeding                 string  `yaml:"seeding"`     // fixed_count, bernoulli
}

type Epidemic struct {
	Beta            float64 `yaml:"beta"`
	Gamma           float64 `yaml:"gamma"`
	Mu              float64 `yaml:"mu"`
	Kappa           float64 `yaml:"kappa"`
	MaxInfectedTime float64 `yaml:"max_infected_time"`
}

type Modifiers struct {
	PositiveOpinionBeta  float64 `yaml:"positive_opinion_beta"`
	AwareBeta            float64 `yaml:"aware_beta"`
	NegativeOpinionGamma float64 `yaml:"negative_opinion_gamma"`
	UnawareGamma         float64 `yaml:"unaware_gamma"`
	PositiveOpinionClock float64 `yaml:"positive_opinion_clock"`
	ComorbidBClock       float64 `yaml:"comorbid_b_clock"`
	ComorbidA            float64 `yaml:"comorbid_a"`
	ComorbidB            float64 `yaml:"comorbid_b"`
	ComorbidBoth         float64 `yaml:"comorbid_both"`
	IsolateVirtual       bool    `yaml:"isolate_virtual"`
}

type QVoter struct {
	Q       int     `yaml:"q"`
	P       float64 `yaml:"p"`
	Epsilon float64 `yaml:"epsilon"`
}

type SocialMedia struct {
	Xi float64 `yaml:"xi"`
	N  int     `yaml:"n"`
}

type Awareness struct {
	Lambda float64 `yaml:"lambda"`
	Delta  float64 `yaml:"delta"`
}

// Sweep configures a two-axis parameter sweep.
type Sweep struct {
	Realizations int             `yaml:"realizations"`
	Axis1        experiment.Axis `yaml:"axis1"`
	Axis2        experiment.Axis `yaml:"axis2"`
}

// Default returns the reference configuration.
func Default() *Config {
	p := engine.DefaultParams()
	m := p.Modifiers
	return &Config{
		LogLevel:  "info",
		OutputDir: "out",
		Database:  "results.db",
		Simulation: Simulation{
			Agents:                     p.Network.Agents,
			Steps:                      p.Steps,
			FracAdditionalVirtualLinks: 0.1,
			Network:                    Network{M: p.Network.M, TriangleProb: p.Network.TriangleProb},
			Init: Init{
				InfectedFraction:        p.Init.InfectedFraction,
				AwareFraction:           p.Init.AwareFraction,
				NegativeOpinionFraction: p.Init.NegativeOpinionFraction,
				ComorbidAFraction:       p.Init.ComorbidAFraction,
				ComorbidBFraction:       p.Init.ComorbidBFraction,
				GenderMode:              "bernoulli",
				Seeding:                 "fixed_count",
			},
			Epidemic: Epidemic{
				Beta:            p.Epidemic.Beta,
				Gamma:           p.Epidemic.Gamma,
				Mu:              p.Epidemic.Mu,
				Kappa:           p.Epidemic.Kappa,
				MaxInfectedTime: p.Epidemic.MaxInfectedTime,
			},
			Modifiers: Modifiers{
				PositiveOpinionBeta:  m.PositiveOpinionBeta,
				AwareBeta:            m.AwareBeta,
				NegativeOpinionGamma: m.NegativeOpinionGamma,
				UnawareGamma:         m.UnawareGamma,
				PositiveOpinionClock: m.PositiveOpinionClock,
				ComorbidBClock:       m.ComorbidBClock,
				ComorbidA:            m.ComorbidA,
				ComorbidB:            m.ComorbidB,
				ComorbidBoth:         m.ComorbidBoth,
				IsolateVirtual:       m.IsolateVirtual,
			},
			QVoter:      QVoter{Q: p.QVoter.Q, P: p.QVoter.P, Epsilon: p.QVoter.Epsilon},
			SocialMedia: SocialMedia{Xi: p.SocialMedia.Xi, N: p.SocialMedia.Every},
			Awareness:   Awareness{Lambda: p.Awareness.Lambda, Delta: p.Awareness.Delta},
		},
		Sweep: Sweep{Realizations: 20},
	}
}

// Load reads a YAML file over the defaults, applies environment overrides
// and validates the result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	var raw []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		raw = b
	}
	return load(raw)
}

// Parse is Load for an in-memory document, without reading the environment.
func Parse(raw []byte) (*Config, error) {
	cfg, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(raw []byte) (*Config, error) {
	cfg, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(raw []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, nil
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

// Validate checks every parameter domain.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	prob := func(name string, v float64) {
		if v < 0 || v > 1 {
			fail("%s=%v outside [0, 1]", name, v)
		}
	}

	s := c.Simulation
	if s.Agents <= 0 {
		fail("agents=%d must be positive", s.Agents)
	}
	if s.Steps < 0 {
		fail("steps=%d must not be negative", s.Steps)
	}
	if s.Network.M < 1 || s.Network.M >= s.Agents {
		fail("network.m=%d must satisfy 1 <= m < agents", s.Network.M)
	}
	prob("network.triangle_prob", s.Network.TriangleProb)
	prob("frac_additional_virtual_links", s.FracAdditionalVirtualLinks)
	if s.AdditionalVirtualLinks != nil && *s.AdditionalVirtualLinks < 0 {
		fail("additional_virtual_links=%d must not be negative", *s.AdditionalVirtualLinks)
	}

	prob("init.infected_fraction", s.Init.InfectedFraction)
	prob("init.aware_fraction", s.Init.AwareFraction)
	prob("init.negative_opinion_fraction", s.Init.NegativeOpinionFraction)
	prob("init.comorbid_a_fraction", s.Init.ComorbidAFraction)
	prob("init.comorbid_b_fraction", s.Init.ComorbidBFraction)
	gm, err := agents.ParseGenderMode(s.Init.GenderMode)
	if err != nil {
		fail("%v", err)
	}
	if gm == agents.GenderEvenSplit && s.Agents%2 != 0 {
		fail("even_split gender mode needs an even agent count, got %d", s.Agents)
	}
	if _, err := agents.ParseSeedMode(s.Init.Seeding); err != nil {
		fail("%v", err)
	}

	prob("epidemic.beta", s.Epidemic.Beta)
	prob("epidemic.gamma", s.Epidemic.Gamma)
	prob("epidemic.mu", s.Epidemic.Mu)
	prob("epidemic.kappa", s.Epidemic.Kappa)
	if s.Epidemic.MaxInfectedTime < 0 {
		fail("epidemic.max_infected_time=%v must not be negative", s.Epidemic.MaxInfectedTime)
	}

	if s.QVoter.Q < 1 {
		fail("qvoter.q=%d must be at least 1", s.QVoter.Q)
	}
	prob("qvoter.p", s.QVoter.P)
	prob("qvoter.epsilon", s.QVoter.Epsilon)
	prob("social_media.xi", s.SocialMedia.Xi)
	if s.SocialMedia.N < 0 {
		fail("social_media.n=%d must not be negative", s.SocialMedia.N)
	}
	prob("awareness.lambda", s.Awareness.Lambda)
	prob("awareness.delta", s.Awareness.Delta)

	for _, name := range s.Metrics {
		if !metrics.Known(name) {
			fail("unknown metric %q", name)
		}
	}

	if c.Workers < 0 {
		fail("workers=%d must not be negative", c.Workers)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		fail("%v", err)
	}

	sw := c.Sweep
	if sw.Axis1.Name != "" || sw.Axis2.Name != "" {
		if sw.Realizations < 1 {
			fail("sweep.realizations=%d must be at least 1", sw.Realizations)
		}
		for _, a := range []experiment.Axis{sw.Axis1, sw.Axis2} {
			if err := a.Validate(); err != nil {
				fail("%v", err)
			}
		}
	}

	return errors.Join(errs...)
}

// AdditionalLinks resolves the virtual-layer extra link count.
func (s Simulation) AdditionalLinks() int {
	if s.AdditionalVirtualLinks != nil {
		return *s.AdditionalVirtualLinks
	}
	return network.AdditionalLinksFromFraction(s.Agents, s.FracAdditionalVirtualLinks)
}

// Params converts the simulation section into engine parameters. Call it
// only on a validated config.
func (c *Config) Params() engine.Params {
	s := c.Simulation
	gm, _ := agents.ParseGenderMode(s.Init.GenderMode)
	sm, _ := agents.ParseSeedMode(s.Init.Seeding)
	m := s.Modifiers

	return engine.Params{
		Steps: s.Steps,
		Network: network.BuildConfig{
			Agents:          s.Agents,
			AdditionalLinks: s.AdditionalLinks(),
			M:               s.Network.M,
			TriangleProb:    s.Network.TriangleProb,
		},
		Init: agents.InitConfig{
			InfectedFraction:        s.Init.InfectedFraction,
			AwareFraction:           s.Init.AwareFraction,
			NegativeOpinionFraction: s.Init.NegativeOpinionFraction,
			ComorbidAFraction:       s.Init.ComorbidAFraction,
			ComorbidBFraction:       s.Init.ComorbidBFraction,
			Genders:                 gm,
			Seeding:                 sm,
		},
		Epidemic: epidemic.Params{
			Beta:            s.Epidemic.Beta,
			Gamma:           s.Epidemic.Gamma,
			Mu:              s.Epidemic.Mu,
			Kappa:           s.Epidemic.Kappa,
			MaxInfectedTime: s.Epidemic.MaxInfectedTime,
		},
		Modifiers: epidemic.Modifiers{
			PositiveOpinionBeta:  m.PositiveOpinionBeta,
			AwareBeta:            m.AwareBeta,
			NegativeOpinionGamma: m.NegativeOpinionGamma,
			UnawareGamma:         m.UnawareGamma,
			PositiveOpinionClock: m.PositiveOpinionClock,
			ComorbidBClock:       m.ComorbidBClock,
			ComorbidA:            m.ComorbidA,
			ComorbidB:            m.ComorbidB,
			ComorbidBoth:         m.ComorbidBoth,
			IsolateVirtual:       m.IsolateVirtual,
		},
		QVoter:      opinion.QVoterParams{Q: s.QVoter.Q, P: s.QVoter.P, Epsilon: s.QVoter.Epsilon},
		SocialMedia: opinion.SocialMediaParams{Xi: s.SocialMedia.Xi, Every: s.SocialMedia.N},
		Awareness:   opinion.AwarenessParams{Lambda: s.Awareness.Lambda, Delta: s.Awareness.Delta},
		Metrics:     s.Metrics,
		Verbose:     s.Verbose,
	}
}
