package epidemic

import (
	"math/rand/v2"

	"github.com/talgya/bilayer-epidemic/internal/agents"
	"github.com/talgya/bilayer-epidemic/internal/entropy"
	"github.com/talgya/bilayer-epidemic/internal/network"
)

// Transition records one status change.
type Transition struct {
	ID   agents.AgentID
	From agents.Status
	To   agents.Status
}

// Key names the transition, e.g. "I->Q".
func (t Transition) Key() string {
	return t.From.String() + "->" + t.To.String()
}

// Engine applies epidemic transitions to one agent at a time.
type Engine struct {
	Params    Params
	Modifiers Modifiers

	physical *network.Layer
	virtual  *network.Layer
	agents   agents.Population
	rng      *rand.Rand
}

// NewEngine binds the engine to the layers and population it mutates.
func NewEngine(p Params, m Modifiers, physical, virtual *network.Layer, pop agents.Population, rng *rand.Rand) *Engine {
	return &Engine{
		Params:    p,
		Modifiers: m,
		physical:  physical,
		virtual:   virtual,
		agents:    pop,
		rng:       rng,
	}
}

// Step evaluates the state machine for agent id. It returns the transition
// that fired, if any. At most one transition fires per call.
func (e *Engine) Step(id agents.AgentID) (Transition, bool) {
	a := e.agents.Get(id)
	switch a.Status {
	case agents.Susceptible:
		return e.stepSusceptible(a)
	case agents.Infected:
		return e.stepInfected(a)
	case agents.Quarantined:
		return e.stepQuarantined(a)
	}
	return Transition{}, false
}

// stepSusceptible draws once per infected physical neighbor, in id order,
// until the first success.
func (e *Engine) stepSusceptible(a *agents.Agent) (Transition, bool) {
	beta := CombinedBeta(e.Params, e.Modifiers, a)
	for _, nb := range e.physical.Neighbors(a.ID) {
		if e.agents[nb].Status != agents.Infected {
			continue
		}
		if entropy.Chance(e.rng, beta) {
			a.SetStatus(agents.Infected)
			a.Awareness = agents.Aware
			return Transition{ID: a.ID, From: agents.Susceptible, To: agents.Infected}, true
		}
	}
	return Transition{}, false
}

func (e *Engine) stepInfected(a *agents.Agent) (Transition, bool) {
	a.InfectedTime += e.Modifiers.ClockRate(a)
	if a.InfectedTime < e.Params.MaxInfectedTime {
		return Transition{}, false
	}

	if entropy.Chance(e.rng, CombinedGamma(e.Params, e.Modifiers, a)) {
		a.SetStatus(agents.Quarantined)
		e.isolate(a.ID)
		return Transition{ID: a.ID, From: agents.Infected, To: agents.Quarantined}, true
	}
	if entropy.Chance(e.rng, CombinedMu(e.Params, e.Modifiers, a)) {
		a.SetStatus(agents.Recovered)
		return Transition{ID: a.ID, From: agents.Infected, To: agents.Recovered}, true
	}
	if entropy.Chance(e.rng, CombinedKappa(e.Params, e.Modifiers, a)) {
		a.SetStatus(agents.Dead)
		return Transition{ID: a.ID, From: agents.Infected, To: agents.Dead}, true
	}
	return Transition{}, false
}

func (e *Engine) stepQuarantined(a *agents.Agent) (Transition, bool) {
	if entropy.Chance(e.rng, CombinedMu(e.Params, e.Modifiers, a)) {
		a.SetStatus(agents.Recovered)
		return Transition{ID: a.ID, From: agents.Quarantined, To: agents.Recovered}, true
	}
	if entropy.Chance(e.rng, CombinedKappa(e.Params, e.Modifiers, a)) {
		a.SetStatus(agents.Dead)
		return Transition{ID: a.ID, From: agents.Quarantined, To: agents.Dead}, true
	}
	return Transition{}, false
}

// isolate cuts the quarantined agent off the physical layer, and the virtual
// layer too when configured.
func (e *Engine) isolate(id agents.AgentID) {
	e.physical.Isolate(id)
	if e.Modifiers.IsolateVirtual && e.virtual != nil {
		e.virtual.Isolate(id)
	}
}
