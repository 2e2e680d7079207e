// Population initialization: demographics, comorbidities, opinions,
// awareness and the initially infected set.
package agents

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/talgya/bilayer-epidemic/internal/demography"
	"github.com/talgya/bilayer-epidemic/internal/entropy"
)

var (
	// ErrEmptyPopulation is returned when asked to create zero agents.
	ErrEmptyPopulation = errors.New("agents: population must not be empty")
	// ErrOddPopulation is returned when even-split gender sampling gets an odd count.
	ErrOddPopulation = errors.New("agents: even gender split requires an even agent count")
	// ErrInvalidFraction is returned for an initial fraction outside [0, 1].
	ErrInvalidFraction = errors.New("agents: fraction outside [0, 1]")
)

// GenderMode selects how genders are assigned.
type GenderMode uint8

const (
	GenderBernoulli GenderMode = iota // Each agent 50/50
	GenderEvenSplit                   // Exactly n/2 of each, shuffled
)

// SeedMode selects how the initially infected agents are chosen.
type SeedMode uint8

const (
	SeedFixedCount SeedMode = iota // floor(n*f) distinct agents
	SeedBernoulli                  // each agent independently with probability f
)

// ParseGenderMode maps a config string to a GenderMode.
func ParseGenderMode(s string) (GenderMode, error) {
	switch s {
	case "", "bernoulli":
		return GenderBernoulli, nil
	case "even_split":
		return GenderEvenSplit, nil
	}
	return 0, fmt.Errorf("unknown gender mode %q", s)
}

// ParseSeedMode maps a config string to a SeedMode.
func ParseSeedMode(s string) (SeedMode, error) {
	switch s {
	case "", "fixed_count":
		return SeedFixedCount, nil
	case "bernoulli":
		return SeedBernoulli, nil
	}
	return 0, fmt.Errorf("unknown infection seeding %q", s)
}

// AgeSampler draws an age conditioned on gender.
type AgeSampler interface {
	SampleOne(g demography.Gender) int
}

// InitConfig controls initial population generation.
type InitConfig struct {
	InfectedFraction        float64
	AwareFraction           float64
	NegativeOpinionFraction float64
	ComorbidAFraction       float64
	ComorbidBFraction       float64
	Genders                 GenderMode
	Seeding                 SeedMode
}

// DefaultInitConfig returns the reference starting conditions.
func DefaultInitConfig() InitConfig {
	return InitConfig{
		InfectedFraction:        0.1,
		AwareFraction:           0.0,
		NegativeOpinionFraction: 0.5,
		ComorbidAFraction:       0.0,
		ComorbidBFraction:       0.0,
		Genders:                 GenderBernoulli,
		Seeding:                 SeedFixedCount,
	}
}

func (c InitConfig) validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"infected", c.InfectedFraction},
		{"aware", c.AwareFraction},
		{"negative opinion", c.NegativeOpinionFraction},
		{"comorbidity A", c.ComorbidAFraction},
		{"comorbidity B", c.ComorbidBFraction},
	} {
		if f.v < 0 || f.v > 1 {
			return fmt.Errorf("%w: %s fraction %v", ErrInvalidFraction, f.name, f.v)
		}
	}
	return nil
}

// Initialize creates n agents with ids 0..n-1.
func Initialize(n int, cfg InitConfig, ages AgeSampler, rng *rand.Rand) (Population, error) {
	if n <= 0 {
		return nil, ErrEmptyPopulation
	}
	if cfg.Genders == GenderEvenSplit && n%2 != 0 {
		return nil, fmt.Errorf("%w: n=%d", ErrOddPopulation, n)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	genders := assignGenders(n, cfg.Genders, rng)

	pop := make(Population, n)
	for i := range pop {
		a := &pop[i]
		a.ID = AgentID(i)
		a.Status = Susceptible
		a.Gender = genders[i]
		a.Age = ages.SampleOne(a.Gender)
		a.ComorbidA = entropy.Chance(rng, cfg.ComorbidAFraction)
		a.ComorbidB = entropy.Chance(rng, cfg.ComorbidBFraction)

		a.Opinion = OpinionPositive
		if entropy.Chance(rng, cfg.NegativeOpinionFraction) {
			a.Opinion = OpinionNegative
		}

		a.Awareness = Unaware
		if entropy.Chance(rng, cfg.AwareFraction) {
			a.Awareness = Aware
		}
	}

	for _, id := range seedInfected(n, cfg, rng) {
		a := pop.Get(id)
		a.SetStatus(Infected)
		a.Awareness = Aware
	}

	return pop, nil
}

func assignGenders(n int, mode GenderMode, rng *rand.Rand) []demography.Gender {
	out := make([]demography.Gender, n)
	if mode == GenderEvenSplit {
		for i := n / 2; i < n; i++ {
			out[i] = demography.GenderMale
		}
		rng.Shuffle(n, func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}
	for i := range out {
		if rng.Float64() < 0.5 {
			out[i] = demography.GenderMale
		}
	}
	return out
}

func seedInfected(n int, cfg InitConfig, rng *rand.Rand) []AgentID {
	var ids []AgentID
	switch cfg.Seeding {
	case SeedBernoulli:
		for i := 0; i < n; i++ {
			if entropy.Chance(rng, cfg.InfectedFraction) {
				ids = append(ids, AgentID(i))
			}
		}
	default:
		k := int(math.Floor(float64(n) * cfg.InfectedFraction))
		if k > n {
			k = n
		}
		perm := rng.Perm(n)
		for _, i := range perm[:max(k, 0)] {
			ids = append(ids, AgentID(i))
		}
	}
	return ids
}
