// Package workflow implements the small finite-state machines that drive each
// incoming item (news article or report link) through a fixed sequence of
// steps with conditional branches. A machine is built once per pipeline and
// shared; each Run owns its state value exclusively and runs its steps in
// strict sequence, so independent runs interleave freely.
package workflow

import (
	"context"
	"errors"
	"fmt"
)

// State names a step in a machine or a terminal outcome. A step function
// returns the next state; returning a state no step is registered for ends
// the run with that state as the outcome.
type State string

// Terminal outcomes shared by the MineWatch pipelines.
const (
	EndCommitted State = "ended-committed"
	EndDuplicate State = "ended-duplicate"
	EndSkipped   State = "ended-skipped"
	EndError     State = "ended-error"
)

// maxSteps bounds a run so a miswired transition table cannot loop forever.
const maxSteps = 50

// ErrStepLimit is returned when a run exceeds maxSteps transitions.
var ErrStepLimit = errors.New("workflow: step limit exceeded")

// StepFunc executes one step against the run's state and names the next state.
type StepFunc[S any] func(ctx context.Context, s *S) (State, error)

// Result describes how a run ended.
type Result struct {
	Outcome State
	Steps   int
	Path    []State
}

// Machine is an immutable transition table. Build it once with AddStep and
// reuse it across concurrent runs; all mutable data lives in the per-run
// state value.
type Machine[S any] struct {
	name  string
	entry State
	steps map[State]StepFunc[S]
}

// New creates a machine entered at entry.
func New[S any](name string, entry State) *Machine[S] {
	return &Machine[S]{name: name, entry: entry, steps: make(map[State]StepFunc[S])}
}

// Name returns the machine's pipeline name.
func (m *Machine[S]) Name() string { return m.name }

// AddStep registers the function executed when the run reaches state.
func (m *Machine[S]) AddStep(state State, fn StepFunc[S]) *Machine[S] {
	m.steps[state] = fn
	return m
}

// Run drives state through the machine until a terminal outcome. A step error
// ends the run with EndError and the wrapped error; the state value keeps
// whatever the completed steps accumulated.
func (m *Machine[S]) Run(ctx context.Context, s *S) (Result, error) {
	res := Result{Outcome: m.entry}
	cur := m.entry
	for {
		if res.Steps >= maxSteps {
			res.Outcome = EndError
			return res, fmt.Errorf("%s: %w", m.name, ErrStepLimit)
		}
		fn, ok := m.steps[cur]
		if !ok {
			res.Outcome = cur
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			res.Outcome = EndError
			return res, fmt.Errorf("%s: %w", m.name, err)
		}
		res.Path = append(res.Path, cur)
		res.Steps++
		next, err := fn(ctx, s)
		if err != nil {
			res.Outcome = EndError
			return res, fmt.Errorf("%s: step %s: %w", m.name, cur, err)
		}
		cur = next
	}
}
