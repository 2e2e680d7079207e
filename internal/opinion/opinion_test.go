package opinion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bilayer-epidemic/internal/agents"
	"github.com/talgya/bilayer-epidemic/internal/entropy"
	"github.com/talgya/bilayer-epidemic/internal/network"
)

// hub links node 0 to nodes 1..n-1 on a fresh virtual layer.
func hub(n int, neighbor agents.Opinion) (*network.Layer, agents.Population) {
	l := network.NewLayer(n)
	for i := int64(1); i < int64(n); i++ {
		l.AddEdge(0, i)
	}
	pop := make(agents.Population, n)
	for i := range pop {
		pop[i] = agents.Agent{ID: int64(i), Opinion: neighbor}
	}
	return l, pop
}

func TestSampleNeighbors(t *testing.T) {
	rng := entropy.New(3)

	t.Run("isolated", func(t *testing.T) {
		assert.Nil(t, SampleNeighbors(nil, 4, rng))
	})

	t.Run("distinct when degree at least q", func(t *testing.T) {
		nbs := []int64{1, 2, 3, 4, 5, 6}
		for i := 0; i < 100; i++ {
			got := SampleNeighbors(nbs, 4, rng)
			require.Len(t, got, 4)
			seen := map[int64]bool{}
			for _, id := range got {
				assert.Contains(t, nbs, id)
				assert.False(t, seen[id], "duplicate %d", id)
				seen[id] = true
			}
		}
		assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, nbs, "input is not reordered")
	})

	t.Run("padded to exactly q", func(t *testing.T) {
		nbs := []int64{7, 9}
		for i := 0; i < 50; i++ {
			got := SampleNeighbors(nbs, 4, rng)
			require.Len(t, got, 4)
			assert.Equal(t, []int64{7, 9}, got[:2])
			for _, id := range got {
				assert.Contains(t, nbs, id)
			}
		}
	})
}

func TestUpdateOpinion_UnanimousGroup(t *testing.T) {
	l, pop := hub(6, agents.OpinionPositive)
	pop[0].Opinion = agents.OpinionNegative
	p := QVoterParams{Q: 4, P: 0, Epsilon: 0}

	changed := UpdateOpinion(0, pop, l, p, entropy.New(1))
	assert.True(t, changed)
	assert.Equal(t, agents.OpinionPositive, pop[0].Opinion)

	// Already aligned: repeated updates keep the mean at 1.
	for i := 0; i < 100; i++ {
		for id := range pop {
			UpdateOpinion(int64(id), pop, l, p, entropy.New(uint64(i+1)))
		}
	}
	assert.Equal(t, len(pop), pop.SumOpinion())
}

func TestUpdateOpinion_UnanimousNegative(t *testing.T) {
	l, pop := hub(5, agents.OpinionNegative)
	pop[0].Opinion = agents.OpinionPositive
	UpdateOpinion(0, pop, l, QVoterParams{Q: 4}, entropy.New(1))
	assert.Equal(t, agents.OpinionNegative, pop[0].Opinion)
}

func TestUpdateOpinion_MixedGroup(t *testing.T) {
	l, pop := hub(5, agents.OpinionPositive)
	pop[1].Opinion = agents.OpinionNegative
	pop[0].Opinion = agents.OpinionNegative

	t.Run("epsilon zero keeps opinion", func(t *testing.T) {
		changed := UpdateOpinion(0, pop, l, QVoterParams{Q: 4, Epsilon: 0}, entropy.New(1))
		assert.False(t, changed)
		assert.Equal(t, agents.OpinionNegative, pop[0].Opinion)
	})

	t.Run("epsilon one flips", func(t *testing.T) {
		changed := UpdateOpinion(0, pop, l, QVoterParams{Q: 4, Epsilon: 1}, entropy.New(1))
		assert.True(t, changed)
		assert.Equal(t, agents.OpinionPositive, pop[0].Opinion)
	})
}

func TestUpdateOpinion_IsolatedConformistSkips(t *testing.T) {
	l := network.NewLayer(2)
	pop := agents.Population{{ID: 0, Opinion: agents.OpinionNegative}, {ID: 1, Opinion: agents.OpinionPositive}}
	assert.False(t, UpdateOpinion(0, pop, l, QVoterParams{Q: 4}, entropy.New(1)))
	assert.Equal(t, agents.OpinionNegative, pop[0].Opinion)
}

func TestUpdateOpinion_IndependentFlipsAboutHalf(t *testing.T) {
	l, pop := hub(2, agents.OpinionPositive)
	rng := entropy.New(99)
	flips := 0
	const trials = 10000
	for i := 0; i < trials; i++ {
		if UpdateOpinion(0, pop, l, QVoterParams{Q: 4, P: 1}, rng) {
			flips++
		}
	}
	assert.InDelta(t, 0.5, float64(flips)/trials, 0.03)
}

func TestUpdateOpinion_DeadFrozen(t *testing.T) {
	l, pop := hub(5, agents.OpinionPositive)
	pop[0].Opinion = agents.OpinionNegative
	pop[0].Status = agents.Dead
	assert.False(t, UpdateOpinion(0, pop, l, QVoterParams{Q: 4}, entropy.New(1)))
	assert.Equal(t, agents.OpinionNegative, pop[0].Opinion)
}

func TestUpdateAwareness(t *testing.T) {
	t.Run("needs an aware neighbor", func(t *testing.T) {
		l, pop := hub(3, agents.OpinionPositive)
		assert.False(t, UpdateAwareness(0, pop, l, AwarenessParams{Lambda: 1}, entropy.New(1)))
		assert.Equal(t, agents.Unaware, pop[0].Awareness)

		pop[2].Awareness = agents.Aware
		assert.True(t, UpdateAwareness(0, pop, l, AwarenessParams{Lambda: 1}, entropy.New(1)))
		assert.Equal(t, agents.Aware, pop[0].Awareness)
	})

	t.Run("forgets", func(t *testing.T) {
		l, pop := hub(3, agents.OpinionPositive)
		pop[0].Awareness = agents.Aware
		assert.False(t, UpdateAwareness(0, pop, l, AwarenessParams{Delta: 0}, entropy.New(1)))
		assert.True(t, UpdateAwareness(0, pop, l, AwarenessParams{Delta: 1}, entropy.New(1)))
		assert.Equal(t, agents.Unaware, pop[0].Awareness)
	})

	t.Run("dead frozen", func(t *testing.T) {
		l, pop := hub(3, agents.OpinionPositive)
		pop[0].Awareness = agents.Aware
		pop[0].Status = agents.Dead
		assert.False(t, UpdateAwareness(0, pop, l, AwarenessParams{Delta: 1}, entropy.New(1)))
		assert.Equal(t, agents.Aware, pop[0].Awareness)
	})
}

func TestBroadcast(t *testing.T) {
	p := SocialMediaParams{Xi: 1, Every: 10}

	assert.True(t, p.Due(0))
	assert.True(t, p.Due(20))
	assert.False(t, p.Due(7))
	assert.False(t, SocialMediaParams{Xi: 1, Every: 0}.Due(0))

	_, pop := hub(4, agents.OpinionPositive)
	pop[3].Status = agents.Dead
	pop[1].Awareness = agents.Aware

	assert.Zero(t, Broadcast(5, pop, p, entropy.New(1)))
	assert.Equal(t, 1, pop.CountAware())

	assert.Equal(t, 2, Broadcast(10, pop, p, entropy.New(1)))
	assert.Equal(t, agents.Unaware, pop[3].Awareness, "dead nodes are not reached")
	assert.Equal(t, 3, pop.CountAware())
}
