package network

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/talgya/bilayer-epidemic/internal/entropy"
)

// ErrInvalidParams is returned for builder parameters outside their domain.
var ErrInvalidParams = errors.New("network: invalid parameters")

// rejectionTries bounds rejection sampling of an unconnected peer before
// falling back to enumerating candidates.
const rejectionTries = 32

// BuildConfig holds network construction parameters.
type BuildConfig struct {
	Agents          int     // Nodes per layer
	AdditionalLinks int     // Extra random edges added to the virtual layer
	M               int     // Edges attached by each new node
	TriangleProb    float64 // Triad formation probability after a preferential edge (0 = pure preferential attachment)
}

// DefaultBuildConfig mirrors the reference simulation setup.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Agents:          10000,
		AdditionalLinks: AdditionalLinksFromFraction(10000, 0.1),
		M:               3,
		TriangleProb:    0.8,
	}
}

// Validate checks the builder preconditions.
func (c BuildConfig) Validate() error {
	switch {
	case c.Agents < 1:
		return fmt.Errorf("%w: agents=%d", ErrInvalidParams, c.Agents)
	case c.M < 1 || c.M >= c.Agents:
		return fmt.Errorf("%w: m=%d must satisfy 1 <= m < agents (%d)", ErrInvalidParams, c.M, c.Agents)
	case c.TriangleProb < 0 || c.TriangleProb > 1:
		return fmt.Errorf("%w: triangle probability %v", ErrInvalidParams, c.TriangleProb)
	case c.AdditionalLinks < 0:
		return fmt.Errorf("%w: additional links %d", ErrInvalidParams, c.AdditionalLinks)
	}
	return nil
}

// AdditionalLinksFromFraction converts a fraction of all possible node pairs
// into an absolute link count.
func AdditionalLinksFromFraction(n int, frac float64) int {
	if n < 2 || frac <= 0 {
		return 0
	}
	return int(math.Floor(frac * float64(n) * float64(n-1) / 2))
}

// Build constructs the physical layer and derives the virtual layer from it.
// The two layers never share storage.
func Build(cfg BuildConfig, rng *rand.Rand) (physical, virtual *Layer, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	physical = PowerlawCluster(cfg.Agents, cfg.M, cfg.TriangleProb, rng)
	virtual = physical.Clone()
	added := AddRandomEdges(virtual, cfg.AdditionalLinks, rng)

	slog.Debug("bilayer network built",
		"agents", cfg.Agents,
		"physical_edges", physical.EdgeCount(),
		"virtual_edges", virtual.EdgeCount(),
		"additional_requested", cfg.AdditionalLinks,
		"additional_added", added,
	)
	return physical, virtual, nil
}

// PowerlawCluster grows a scale-free graph with tunable clustering
// (Holme-Kim). Starting from m isolated nodes, every new node links to m
// targets chosen proportionally to degree; after each such link, with
// probability p the next link instead closes a triangle through a random
// neighbor of the last target.
func PowerlawCluster(n, m int, p float64, rng *rand.Rand) *Layer {
	l := NewLayer(n)

	// Each node appears once per incident edge end, plus the seed nodes once.
	repeated := make([]int64, 0, m+2*m*n)
	for i := 0; i < m; i++ {
		repeated = append(repeated, int64(i))
	}

	for source := int64(m); source < int64(n); source++ {
		targets := randomSubset(repeated, m, rng)

		target := targets[len(targets)-1]
		targets = targets[:len(targets)-1]
		l.AddEdge(source, target)
		repeated = append(repeated, target)

		for count := 1; count < m; count++ {
			if entropy.Chance(rng, p) {
				var hood []int64
				for _, nb := range l.Neighbors(target) {
					if nb != source && !l.HasEdge(source, nb) {
						hood = append(hood, nb)
					}
				}
				if len(hood) > 0 {
					nb := hood[rng.IntN(len(hood))]
					l.AddEdge(source, nb)
					repeated = append(repeated, nb)
					continue
				}
			}
			target = targets[len(targets)-1]
			targets = targets[:len(targets)-1]
			l.AddEdge(source, target)
			repeated = append(repeated, target)
		}

		for i := 0; i < m; i++ {
			repeated = append(repeated, source)
		}
	}
	return l
}

// randomSubset draws m distinct values from seq, where duplicates in seq act
// as weights. seq must contain at least m distinct values.
func randomSubset(seq []int64, m int, rng *rand.Rand) []int64 {
	out := make([]int64, 0, m)
	seen := make(map[int64]struct{}, m)
	for len(out) < m {
		x := seq[rng.IntN(len(seq))]
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}

// AddRandomEdges adds up to limit edges. Each pass visits nodes in id order
// and links every node to one uniformly chosen peer it is not yet connected
// to. Passes repeat until limit is reached or a pass adds nothing.
// Returns the number of edges added.
func AddRandomEdges(l *Layer, limit int, rng *rand.Rand) int {
	added := 0
	for added < limit {
		progress := false
		for id := int64(0); id < int64(l.nodes) && added < limit; id++ {
			peer, ok := randomNonNeighbor(l, id, rng)
			if !ok {
				continue
			}
			if l.AddEdge(id, peer) {
				added++
				progress = true
			}
		}
		if !progress {
			break
		}
	}
	return added
}

// randomNonNeighbor picks a node uniformly among those not adjacent to id
// (and not id itself). ok is false when id is connected to everyone.
func randomNonNeighbor(l *Layer, id int64, rng *rand.Rand) (int64, bool) {
	n := l.nodes
	deg := l.Degree(id)
	if deg >= n-1 {
		return 0, false
	}

	if deg < n/2 {
		for i := 0; i < rejectionTries; i++ {
			c := int64(rng.IntN(n))
			if c != id && !l.HasEdge(id, c) {
				return c, true
			}
		}
	}

	candidates := make([]int64, 0, n-1-deg)
	for c := int64(0); c < int64(n); c++ {
		if c != id && !l.HasEdge(id, c) {
			candidates = append(candidates, c)
		}
	}
	return candidates[rng.IntN(len(candidates))], true
}
