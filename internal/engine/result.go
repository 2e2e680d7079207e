package engine

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/talgya/bilayer-epidemic/internal/agents"
	"github.com/talgya/bilayer-epidemic/internal/network"
)

// Result is the outcome of one run: one series per metric, the final layers
// and agents, and transition counts keyed like "I->Q".
type Result struct {
	Names       []string
	Series      map[string][]float64
	Physical    *network.Layer
	Virtual     *network.Layer
	Agents      agents.Population
	Transitions map[string]int
}

// Steps returns the number of recorded steps.
func (r *Result) Steps() int {
	if len(r.Names) == 0 {
		return 0
	}
	return len(r.Series[r.Names[0]])
}

// Final returns the last value of a metric series.
func (r *Result) Final(name string) (float64, error) {
	s, err := r.series(name)
	if err != nil {
		return 0, err
	}
	return s[len(s)-1], nil
}

// Peak returns the maximum value of a metric series.
func (r *Result) Peak(name string) (float64, error) {
	s, err := r.series(name)
	if err != nil {
		return 0, err
	}
	return floats.Max(s), nil
}

func (r *Result) series(name string) ([]float64, error) {
	s, ok := r.Series[name]
	if !ok {
		return nil, fmt.Errorf("engine: metric %q was not sampled", name)
	}
	if len(s) == 0 {
		return nil, fmt.Errorf("engine: metric %q has no samples", name)
	}
	return s, nil
}
