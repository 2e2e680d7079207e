// Package epidemic implements the SIQRD transition rules for a single agent on
// the physical layer.
package epidemic

import (
	"github.com/talgya/bilayer-epidemic/internal/agents"
	"github.com/talgya/bilayer-epidemic/internal/demography"
)

// Params are the calibrated base rates of the epidemic layer.
type Params struct {
	Beta            float64 // S -> I, per infected neighbor
	Gamma           float64 // I -> Q
	Mu              float64 // I/Q -> R
	Kappa           float64 // I/Q -> D
	MaxInfectedTime float64 // Clock value after which an infected agent can leave I
}

// DefaultParams mirrors the reference calibration.
func DefaultParams() Params {
	return Params{Beta: 0.1, Gamma: 0.2, Mu: 0.9, Kappa: 0.05, MaxInfectedTime: 10}
}

// Modifiers scale the base rates by agent context. A factor of 1 disables it.
type Modifiers struct {
	PositiveOpinionBeta  float64 // Infection risk multiplier for opinion +1
	AwareBeta            float64 // Infection risk multiplier for aware agents
	NegativeOpinionGamma float64 // Quarantine multiplier for opinion -1
	UnawareGamma         float64 // Quarantine multiplier for unaware agents
	PositiveOpinionClock float64 // Infection clock rate for opinion +1
	ComorbidBClock       float64 // Infection clock rate multiplier for comorbidity B
	ComorbidA            float64 // Risk multiplier, A only
	ComorbidB            float64 // Risk multiplier, B only
	ComorbidBoth         float64 // Risk multiplier, A and B
	IsolateVirtual       bool    // Quarantine also cuts virtual-layer links
}

// DefaultModifiers returns the reference modifier set.
func DefaultModifiers() Modifiers {
	return Modifiers{
		PositiveOpinionBeta:  0.5,
		AwareBeta:            1,
		NegativeOpinionGamma: 0.5,
		UnawareGamma:         1,
		PositiveOpinionClock: 5,
		ComorbidBClock:       0.5,
		ComorbidA:            1.5,
		ComorbidB:            2,
		ComorbidBoth:         3,
		IsolateVirtual:       true,
	}
}

// Comorbidity returns the risk multiplier for the agent's comorbidities.
func (m Modifiers) Comorbidity(a *agents.Agent) float64 {
	switch {
	case a.ComorbidA && a.ComorbidB:
		return m.ComorbidBoth
	case a.ComorbidA:
		return m.ComorbidA
	case a.ComorbidB:
		return m.ComorbidB
	}
	return 1
}

// ClockRate is how far the infection clock advances in one update.
func (m Modifiers) ClockRate(a *agents.Agent) float64 {
	rate := 1.0
	if a.Opinion == agents.OpinionPositive {
		rate *= m.PositiveOpinionClock
	}
	if a.ComorbidB {
		rate *= m.ComorbidBClock
	}
	return rate
}

// CombinedBeta is the per-contact infection probability.
func CombinedBeta(p Params, m Modifiers, a *agents.Agent) float64 {
	v := p.Beta
	if a.Opinion == agents.OpinionPositive {
		v *= m.PositiveOpinionBeta
	}
	if a.Awareness == agents.Aware {
		v *= m.AwareBeta
	}
	return clamp01(v)
}

// CombinedGamma is the probability an eligible infected agent self-quarantines.
func CombinedGamma(p Params, m Modifiers, a *agents.Agent) float64 {
	v := p.Gamma
	if a.Opinion == agents.OpinionNegative {
		v *= m.NegativeOpinionGamma
	}
	if a.Awareness == agents.Unaware {
		v *= m.UnawareGamma
	}
	return clamp01(v)
}

// CombinedMu is the recovery probability, lowered by age and comorbidity.
func CombinedMu(p Params, m Modifiers, a *agents.Agent) float64 {
	death := demography.DeathRateRatio(a.Age)
	return clamp01(p.Mu * (1 - death) / m.Comorbidity(a))
}

// CombinedKappa is the death probability, raised by age and comorbidity.
func CombinedKappa(p Params, m Modifiers, a *agents.Agent) float64 {
	death := demography.DeathRateRatio(a.Age)
	return clamp01(p.Kappa * death * m.Comorbidity(a))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
