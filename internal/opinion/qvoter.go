// Package opinion implements the virtual-layer dynamics: the q-voter opinion
// model, awareness spreading and forgetting, and the periodic social-media
// broadcast.
package opinion

import (
	"math/rand/v2"

	"github.com/talgya/bilayer-epidemic/internal/agents"
	"github.com/talgya/bilayer-epidemic/internal/entropy"
	"github.com/talgya/bilayer-epidemic/internal/network"
)

// QVoterParams configures the q-voter model.
type QVoterParams struct {
	Q       int     // Size of the influence group
	P       float64 // Probability of acting independently (non-conformity)
	Epsilon float64 // Flip probability when the group is not unanimous
}

// DefaultQVoterParams mirrors the reference calibration.
func DefaultQVoterParams() QVoterParams {
	return QVoterParams{Q: 4, P: 0.5, Epsilon: 0}
}

// UpdateOpinion applies one q-voter update to agent id. It reports whether
// the agent's opinion changed.
func UpdateOpinion(id agents.AgentID, pop agents.Population, virtual *network.Layer, p QVoterParams, rng *rand.Rand) bool {
	a := pop.Get(id)
	if !a.Alive() {
		return false
	}
	before := a.Opinion

	if entropy.Chance(rng, p.P) {
		if rng.Float64() < 0.5 {
			a.Opinion = a.Opinion.Flip()
		}
		return a.Opinion != before
	}

	group := SampleNeighbors(virtual.Neighbors(id), p.Q, rng)
	if group == nil {
		return false
	}

	sum := 0
	for _, nb := range group {
		sum += int(pop[nb].Opinion)
	}
	switch sum {
	case len(group):
		a.Opinion = agents.OpinionPositive
	case -len(group):
		a.Opinion = agents.OpinionNegative
	default:
		if entropy.Chance(rng, p.Epsilon) {
			a.Opinion = a.Opinion.Flip()
		}
	}
	return a.Opinion != before
}

// SampleNeighbors returns the influence group of size q. With at least q
// neighbors it draws q distinct ones; with fewer it keeps all of them and
// pads by resampling with replacement. An isolated node yields nil.
func SampleNeighbors(neighbors []int64, q int, rng *rand.Rand) []int64 {
	k := len(neighbors)
	if k == 0 || q <= 0 {
		return nil
	}

	if k >= q {
		pool := make([]int64, k)
		copy(pool, neighbors)
		// Partial Fisher-Yates: the first q slots become the sample.
		for i := 0; i < q; i++ {
			j := i + rng.IntN(k-i)
			pool[i], pool[j] = pool[j], pool[i]
		}
		return pool[:q]
	}

	group := make([]int64, k, q)
	copy(group, neighbors)
	for len(group) < q {
		group = append(group, neighbors[rng.IntN(k)])
	}
	return group
}
