// Package engine provides the step-based simulation loop.
package engine

import (
	"context"
	"log/slog"
)

// ctxCheckEvery is how many steps run between cancellation checks.
const ctxCheckEvery = 1024

type periodic struct {
	every int
	fn    func(done int)
}

// Engine drives a fixed number of steps. There is no early exit: a run always
// executes every step unless its context is cancelled.
type Engine struct {
	Step  int // Next step to execute
	Steps int // Total steps

	// OnStep runs once per step with the step index.
	OnStep func(step int)

	periodic []periodic
}

// NewEngine creates an engine that will run steps steps.
func NewEngine(steps int) *Engine {
	return &Engine{Steps: steps}
}

// Every registers fn to run after each n completed steps. fn receives the
// number of steps completed so far. n <= 0 is ignored.
func (e *Engine) Every(n int, fn func(done int)) {
	if n <= 0 || fn == nil {
		return
	}
	e.periodic = append(e.periodic, periodic{every: n, fn: fn})
}

// Run executes the remaining steps. It returns ctx.Err() if the context is
// cancelled before the last step.
func (e *Engine) Run(ctx context.Context) error {
	slog.Debug("simulation engine started", "step", e.Step, "steps", e.Steps)

	for e.Step < e.Steps {
		if e.Step%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				slog.Debug("simulation engine cancelled", "step", e.Step)
				return err
			}
		}
		e.step()
	}

	slog.Debug("simulation engine stopped", "step", e.Step)
	return nil
}

// step advances the simulation by one step.
func (e *Engine) step() {
	if e.OnStep != nil {
		e.OnStep(e.Step)
	}
	e.Step++

	for _, p := range e.periodic {
		if e.Step%p.every == 0 {
			p.fn(e.Step)
		}
	}
}
