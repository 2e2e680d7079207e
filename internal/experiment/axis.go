// Package experiment runs parameter sweeps: a two-dimensional grid of
// parameter values, several independent realizations per grid cell, reduced
// to per-cell means.
package experiment

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/talgya/bilayer-epidemic/internal/engine"
)

// ErrInvalidAxis is returned for an unknown axis or an inadmissible value.
var ErrInvalidAxis = errors.New("experiment: invalid axis")

// Axis is one swept parameter and the values it takes.
type Axis struct {
	Name   string    `yaml:"name" json:"name"`
	Values []float64 `yaml:"values" json:"values"`
}

// setters maps axis names onto the parameter they override.
var setters = map[string]func(p *engine.Params, v float64){
	"beta":                      func(p *engine.Params, v float64) { p.Epidemic.Beta = v },
	"gamma":                     func(p *engine.Params, v float64) { p.Epidemic.Gamma = v },
	"mu":                        func(p *engine.Params, v float64) { p.Epidemic.Mu = v },
	"kappa":                     func(p *engine.Params, v float64) { p.Epidemic.Kappa = v },
	"max_infected_time":         func(p *engine.Params, v float64) { p.Epidemic.MaxInfectedTime = v },
	"q":                         func(p *engine.Params, v float64) { p.QVoter.Q = int(v) },
	"p":                         func(p *engine.Params, v float64) { p.QVoter.P = v },
	"epsilon":                   func(p *engine.Params, v float64) { p.QVoter.Epsilon = v },
	"xi":                        func(p *engine.Params, v float64) { p.SocialMedia.Xi = v },
	"n":                         func(p *engine.Params, v float64) { p.SocialMedia.Every = int(v) },
	"lambda":                    func(p *engine.Params, v float64) { p.Awareness.Lambda = v },
	"delta":                     func(p *engine.Params, v float64) { p.Awareness.Delta = v },
	"negative_opinion_fraction": func(p *engine.Params, v float64) { p.Init.NegativeOpinionFraction = v },
	"infected_fraction":         func(p *engine.Params, v float64) { p.Init.InfectedFraction = v },
}

// domain is the closed range an axis value must fall in.
type domain struct {
	min, max float64
	whole    bool
}

var (
	unitInterval = domain{min: 0, max: 1}
	nonNegative  = domain{min: 0, max: math.MaxFloat64}
)

// domains lists the admissible values for every axis in setters.
var domains = map[string]domain{
	"beta":                      unitInterval,
	"gamma":                     unitInterval,
	"mu":                        unitInterval,
	"kappa":                     unitInterval,
	"max_infected_time":         nonNegative,
	"q":                         {min: 1, max: math.MaxInt32, whole: true},
	"p":                         unitInterval,
	"epsilon":                   unitInterval,
	"xi":                        unitInterval,
	"n":                         {min: 0, max: math.MaxInt32, whole: true},
	"lambda":                    unitInterval,
	"delta":                     unitInterval,
	"negative_opinion_fraction": unitInterval,
	"infected_fraction":         unitInterval,
}

// AxisNames lists the parameters that can be swept.
func AxisNames() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// KnownAxis reports whether name can be swept.
func KnownAxis(name string) bool {
	_, ok := setters[name]
	return ok
}

// Validate checks the axis name and that every value is distinct and inside
// the parameter's domain.
func (a Axis) Validate() error {
	if !KnownAxis(a.Name) {
		return fmt.Errorf("%w: unknown axis %q", ErrInvalidAxis, a.Name)
	}
	if len(a.Values) == 0 {
		return fmt.Errorf("%w: axis %q has no values", ErrInvalidAxis, a.Name)
	}
	d := domains[a.Name]
	seen := make(map[float64]struct{}, len(a.Values))
	for _, v := range a.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: axis %q has non-finite value %v", ErrInvalidAxis, a.Name, v)
		}
		if v < d.min || v > d.max {
			return fmt.Errorf("%w: axis %q value %v outside [%v, %v]", ErrInvalidAxis, a.Name, v, d.min, d.max)
		}
		if d.whole && v != math.Trunc(v) {
			return fmt.Errorf("%w: axis %q needs whole numbers, got %v", ErrInvalidAxis, a.Name, v)
		}
		if _, dup := seen[v]; dup {
			return fmt.Errorf("%w: axis %q repeats value %v", ErrInvalidAxis, a.Name, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// Apply returns a copy of p with the axis parameter set to v.
func Apply(p engine.Params, name string, v float64) (engine.Params, error) {
	set, ok := setters[name]
	if !ok {
		return p, fmt.Errorf("%w: unknown axis %q", ErrInvalidAxis, name)
	}
	set(&p, v)
	return p, nil
}
