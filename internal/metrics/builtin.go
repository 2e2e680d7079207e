package metrics

import (
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/talgya/bilayer-epidemic/internal/agents"
)

// Built-in metric names.
const (
	SusceptibleRatio = "susceptible_ratio"
	InfectedRatio    = "infected_ratio"
	QuarantinedRatio = "quarantined_ratio"
	RecoveredRatio   = "recovered_ratio"
	DeadRatio        = "dead_ratio"
	AwareRatio       = "aware_ratio"
	UnawareRatio     = "unaware_ratio"
	MeanOpinion      = "mean_opinion"

	// mean_degree takes a layer suffix. Values are absolute degrees, not ratios.
	MeanDegreePhysical = "mean_degree_physical"
	MeanDegreeVirtual  = "mean_degree_virtual"
)

// DefaultNames is the metric set sampled when the config selects none.
func DefaultNames() []string {
	return []string{
		SusceptibleRatio, InfectedRatio, QuarantinedRatio, RecoveredRatio, DeadRatio,
		AwareRatio, UnawareRatio, MeanOpinion,
	}
}

// CatalogNames lists every built-in metric.
func CatalogNames() []string {
	return append(DefaultNames(), MeanDegreePhysical, MeanDegreeVirtual)
}

func builtin(name string) (Metric, bool) {
	switch name {
	case SusceptibleRatio:
		return Metric{name, Physical, statusRatio(agents.Susceptible)}, true
	case InfectedRatio:
		return Metric{name, Physical, statusRatio(agents.Infected)}, true
	case QuarantinedRatio:
		return Metric{name, Physical, statusRatio(agents.Quarantined)}, true
	case RecoveredRatio:
		return Metric{name, Physical, statusRatio(agents.Recovered)}, true
	case DeadRatio:
		return Metric{name, Physical, statusRatio(agents.Dead)}, true
	case AwareRatio:
		return Metric{name, Virtual, awareRatio(agents.Aware)}, true
	case UnawareRatio:
		return Metric{name, Virtual, awareRatio(agents.Unaware)}, true
	case MeanOpinion:
		return Metric{name, Virtual, meanOpinion}, true
	}
	if layer, ok := strings.CutPrefix(name, "mean_degree_"); ok {
		if k, err := ParseLayerKind(layer); err == nil {
			return Metric{name, k, meanDegree}, true
		}
	}
	return Metric{}, false
}

func statusRatio(s agents.Status) Func {
	return func(v View) float64 {
		return ratio(v.Tally.Status[s], v.Tally.N)
	}
}

func awareRatio(a agents.Awareness) Func {
	return func(v View) float64 {
		if a == agents.Aware {
			return ratio(v.Tally.Aware, v.Tally.N)
		}
		return ratio(v.Tally.N-v.Tally.Aware, v.Tally.N)
	}
}

func meanOpinion(v View) float64 {
	return ratio(v.Tally.OpinionSum, v.Tally.N)
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func meanDegree(v View) float64 {
	if v.Layer == nil || v.Layer.NodeCount() == 0 {
		return 0
	}
	return stat.Mean(v.Layer.Degrees(), nil)
}
