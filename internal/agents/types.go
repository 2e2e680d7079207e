// Package agents provides the per-node agent record shared by both layers and
// the population initialization.
package agents

import (
	"github.com/talgya/bilayer-epidemic/internal/demography"
)

// AgentID is a node id, identical on the physical and virtual layers.
type AgentID = int64

// Status is the epidemic state of an agent (SIQRD).
type Status uint8

const (
	Susceptible Status = iota
	Infected
	Quarantined
	Recovered
	Dead
)

// NumStatuses is the number of epidemic states.
const NumStatuses = 5

var statusNames = [NumStatuses]string{"S", "I", "Q", "R", "D"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "?"
}

// Opinion is the agent's stance on the epidemic, always +1 or -1.
type Opinion int8

const (
	OpinionNegative Opinion = -1
	OpinionPositive Opinion = 1
)

// Flip returns the opposite opinion.
func (o Opinion) Flip() Opinion {
	if o == OpinionPositive {
		return OpinionNegative
	}
	return OpinionPositive
}

// Awareness marks whether an agent is cognizant of the epidemic.
type Awareness uint8

const (
	Unaware Awareness = iota
	Aware
)

func (a Awareness) String() string {
	if a == Aware {
		return "A"
	}
	return "U"
}

// Agent is the fixed-schema state of one node.
type Agent struct {
	ID AgentID `json:"id" msgpack:"id"`

	// Epidemic layer
	Status       Status  `json:"status" msgpack:"status"`
	InfectedTime float64 `json:"infected_time" msgpack:"infected_time"` // Advances only while Infected

	// Demographics (immutable after initialization)
	Age       int               `json:"age" msgpack:"age"`
	Gender    demography.Gender `json:"gender" msgpack:"gender"`
	ComorbidA bool              `json:"comorbid_a" msgpack:"comorbid_a"`
	ComorbidB bool              `json:"comorbid_b" msgpack:"comorbid_b"`

	// Virtual layer
	Opinion   Opinion   `json:"opinion" msgpack:"opinion"`
	Awareness Awareness `json:"awareness" msgpack:"awareness"`
}

// Alive reports whether the agent has not died.
func (a *Agent) Alive() bool {
	return a.Status != Dead
}

// SetStatus moves the agent to a new epidemic state. Dead is absorbing: once
// dead, the call is a no-op and returns false. Entering Infected resets the
// infection clock.
func (a *Agent) SetStatus(s Status) bool {
	if a.Status == Dead {
		return false
	}
	if s == Infected && a.Status != Infected {
		a.InfectedTime = 0
	}
	a.Status = s
	return true
}

// Population is the flat agent store indexed by node id.
type Population []Agent

// Get returns a pointer to the agent with the given id.
func (p Population) Get(id AgentID) *Agent {
	return &p[id]
}

// Counts tallies agents per epidemic status.
func (p Population) Counts() [NumStatuses]int {
	var c [NumStatuses]int
	for i := range p {
		c[p[i].Status]++
	}
	return c
}

// CountAware returns how many agents are aware.
func (p Population) CountAware() int {
	n := 0
	for i := range p {
		if p[i].Awareness == Aware {
			n++
		}
	}
	return n
}

// SumOpinion returns the sum of all opinions.
func (p Population) SumOpinion() int {
	sum := 0
	for i := range p {
		sum += int(p[i].Opinion)
	}
	return sum
}

// Clone returns an independent copy.
func (p Population) Clone() Population {
	out := make(Population, len(p))
	copy(out, p)
	return out
}

// Tally holds population aggregates that the simulation keeps current
// incrementally instead of rescanning every agent on each step.
type Tally struct {
	N          int
	Status     [NumStatuses]int
	Aware      int
	OpinionSum int
}

// Tally computes the aggregates with a full scan.
func (p Population) Tally() Tally {
	t := Tally{N: len(p)}
	for i := range p {
		t.Add(&p[i])
	}
	return t
}

// Add counts a's current state.
func (t *Tally) Add(a *Agent) {
	t.Status[a.Status]++
	if a.Awareness == Aware {
		t.Aware++
	}
	t.OpinionSum += int(a.Opinion)
}

// Remove uncounts a's current state. Pair it with Add around a mutation.
func (t *Tally) Remove(a *Agent) {
	t.Status[a.Status]--
	if a.Awareness == Aware {
		t.Aware--
	}
	t.OpinionSum -= int(a.Opinion)
}
