// Package metrics holds the named per-step observables sampled from either
// network layer.
package metrics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/talgya/bilayer-epidemic/internal/agents"
	"github.com/talgya/bilayer-epidemic/internal/network"
)

var (
	// ErrUnknownLayer is returned for a layer kind outside {physical, virtual}.
	ErrUnknownLayer = errors.New("metrics: unknown layer")
	// ErrUnknownMetric is returned when a metric name is not in the catalog.
	ErrUnknownMetric = errors.New("metrics: unknown metric")
)

// LayerKind selects which network layer a metric observes.
type LayerKind uint8

const (
	Physical LayerKind = iota
	Virtual
)

func (k LayerKind) String() string {
	switch k {
	case Physical:
		return "physical"
	case Virtual:
		return "virtual"
	}
	return fmt.Sprintf("LayerKind(%d)", uint8(k))
}

// ParseLayerKind maps a config string to a LayerKind.
func ParseLayerKind(s string) (LayerKind, error) {
	switch strings.ToLower(s) {
	case "physical":
		return Physical, nil
	case "virtual":
		return Virtual, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLayer, s)
}

func (k LayerKind) valid() bool {
	return k == Physical || k == Virtual
}

// View is what a metric function sees: one layer, the shared agents and
// their aggregates at the time of sampling.
type View struct {
	Layer  *network.Layer
	Agents agents.Population
	Tally  agents.Tally
}

// Func computes a scalar from a view. Ratio metrics return a value in [0, 1]
// and mean_opinion one in [-1, 1]. The mean_degree metrics are the exception:
// they report the absolute mean degree of their layer, bounded only by N-1.
type Func func(View) float64

// Metric is a named observable bound to a layer.
type Metric struct {
	Name  string
	Layer LayerKind
	Fn    Func
}

// Registry is an ordered set of metrics. Sampling order equals registration order.
type Registry struct {
	metrics []Metric
	index   map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register appends a metric. Names must be unique.
func (r *Registry) Register(m Metric) error {
	if !m.Layer.valid() {
		return fmt.Errorf("%w: metric %q has layer %d", ErrUnknownLayer, m.Name, uint8(m.Layer))
	}
	if m.Name == "" || m.Fn == nil {
		return fmt.Errorf("metrics: metric needs a name and a function")
	}
	if _, dup := r.index[m.Name]; dup {
		return fmt.Errorf("metrics: duplicate metric %q", m.Name)
	}
	r.index[m.Name] = len(r.metrics)
	r.metrics = append(r.metrics, m)
	return nil
}

// Lookup returns the metric registered under name.
func (r *Registry) Lookup(name string) (Metric, bool) {
	i, ok := r.index[name]
	if !ok {
		return Metric{}, false
	}
	return r.metrics[i], true
}

// Len returns the number of registered metrics.
func (r *Registry) Len() int { return len(r.metrics) }

// Names returns the metric names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.metrics))
	for i, m := range r.metrics {
		out[i] = m.Name
	}
	return out
}

// Sample evaluates every metric against its layer and returns the values in
// registration order.
func (r *Registry) Sample(physical, virtual *network.Layer, pop agents.Population) []float64 {
	return r.SampleTally(physical, virtual, pop, pop.Tally())
}

// SampleTally is Sample with aggregates the caller already maintains.
func (r *Registry) SampleTally(physical, virtual *network.Layer, pop agents.Population, t agents.Tally) []float64 {
	out := make([]float64, len(r.metrics))
	for i, m := range r.metrics {
		v := View{Layer: physical, Agents: pop, Tally: t}
		if m.Layer == Virtual {
			v.Layer = virtual
		}
		out[i] = m.Fn(v)
	}
	return out
}

// Select builds a registry from the built-in catalog. An empty name list
// selects the default set.
func Select(names []string) (*Registry, error) {
	if len(names) == 0 {
		names = DefaultNames()
	}
	r := NewRegistry()
	for _, name := range names {
		m, ok := builtin(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
		}
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Known reports whether name is a built-in metric.
func Known(name string) bool {
	_, ok := builtin(name)
	return ok
}
