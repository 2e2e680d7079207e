package opinion

import (
	"math/rand/v2"

	"github.com/talgya/bilayer-epidemic/internal/agents"
	"github.com/talgya/bilayer-epidemic/internal/entropy"
	"github.com/talgya/bilayer-epidemic/internal/network"
)

// AwarenessParams configures awareness spreading on the virtual layer.
type AwarenessParams struct {
	Lambda float64 // Unaware -> Aware, given at least one aware neighbor
	Delta  float64 // Aware -> Unaware (forgetting)
}

// DefaultAwarenessParams mirrors the reference calibration.
func DefaultAwarenessParams() AwarenessParams {
	return AwarenessParams{Lambda: 0.4, Delta: 0.1}
}

// SocialMediaParams configures the periodic broadcast.
type SocialMediaParams struct {
	Xi    float64 // Per-node probability of becoming aware on a broadcast step
	Every int     // Broadcast cadence in steps; <= 0 disables it
}

// DefaultSocialMediaParams mirrors the reference calibration.
func DefaultSocialMediaParams() SocialMediaParams {
	return SocialMediaParams{Xi: 0.1, Every: 100}
}

// Due reports whether step is a broadcast step.
func (p SocialMediaParams) Due(step int) bool {
	return p.Every > 0 && step%p.Every == 0
}

// Broadcast exposes every living node to social media when step is due. Each
// node independently becomes aware with probability Xi. Returns the number of
// nodes that turned aware.
func Broadcast(step int, pop agents.Population, p SocialMediaParams, rng *rand.Rand) int {
	if !p.Due(step) {
		return 0
	}
	turned := 0
	for i := range pop {
		a := &pop[i]
		if !a.Alive() {
			continue
		}
		if entropy.Chance(rng, p.Xi) && a.Awareness == agents.Unaware {
			a.Awareness = agents.Aware
			turned++
		}
	}
	return turned
}

// UpdateAwareness applies one awareness update to agent id: an unaware agent
// with an aware virtual neighbor becomes aware with probability Lambda; an
// aware agent forgets with probability Delta. Reports whether it changed.
func UpdateAwareness(id agents.AgentID, pop agents.Population, virtual *network.Layer, p AwarenessParams, rng *rand.Rand) bool {
	a := pop.Get(id)
	if !a.Alive() {
		return false
	}

	switch a.Awareness {
	case agents.Unaware:
		if !hasAwareNeighbor(id, pop, virtual) {
			return false
		}
		if entropy.Chance(rng, p.Lambda) {
			a.Awareness = agents.Aware
			return true
		}
	case agents.Aware:
		if entropy.Chance(rng, p.Delta) {
			a.Awareness = agents.Unaware
			return true
		}
	}
	return false
}

func hasAwareNeighbor(id agents.AgentID, pop agents.Population, virtual *network.Layer) bool {
	for _, nb := range virtual.Neighbors(id) {
		if pop[nb].Awareness == agents.Aware {
			return true
		}
	}
	return false
}
