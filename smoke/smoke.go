// Package smoke drives end-to-end scenarios against a live orchestrator and
// record backend: each scenario pushes one prompt through a full turn, then
// verifies the backend state with its own reads. Scenarios run sequentially
// so every check sees the writes of the scenarios before it.
package smoke

import (
	"context"
	"fmt"
	"time"

	"github.com/lexcodex/fitcoach/agent"
	"github.com/lexcodex/fitcoach/backend"
)

// Scenario is one end-to-end check. A scenario without a Prompt skips the
// turn and only runs its Check, for properties that live below the model.
type Scenario struct {
	Name   string
	Prompt string
	// Check inspects the turn result and the backend state after the
	// turn. A nil Check passes when the turn itself succeeded. For
	// promptless scenarios the result argument is nil.
	Check func(ctx context.Context, store *backend.Client, result *agent.TurnResult) error
}

// Outcome is the result of one scenario run.
type Outcome struct {
	Scenario string
	Err      error
	Skipped  bool
	Duration time.Duration
	Tools    []string
}

// Passed reports whether the scenario ran and succeeded.
func (o Outcome) Passed() bool {
	return o.Err == nil && !o.Skipped
}

// Runner executes scenarios sequentially against one orchestrator.
type Runner struct {
	Orchestrator *agent.Orchestrator
	Backend      *backend.Client
	// Only, when non-empty, restricts the run to the named scenario;
	// everything else is reported as skipped.
	Only string
}

// Run executes the scenarios in order and returns one outcome each.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) []Outcome {
	outcomes := make([]Outcome, 0, len(scenarios))
	for _, scenario := range scenarios {
		if r.Only != "" && scenario.Name != r.Only {
			outcomes = append(outcomes, Outcome{Scenario: scenario.Name, Skipped: true})
			continue
		}
		outcomes = append(outcomes, r.runOne(ctx, scenario))
	}
	return outcomes
}

func (r *Runner) runOne(ctx context.Context, scenario Scenario) Outcome {
	start := time.Now()
	outcome := Outcome{Scenario: scenario.Name}

	var result *agent.TurnResult
	if scenario.Prompt != "" {
		var err error
		result, err = r.Orchestrator.RunTurn(ctx, scenario.Prompt)
		if err != nil {
			outcome.Err = fmt.Errorf("turn: %w", err)
			outcome.Duration = time.Since(start)
			return outcome
		}
		outcome.Tools = result.ToolsInvoked
	}
	if scenario.Check != nil {
		outcome.Err = scenario.Check(ctx, r.Backend, result)
	}
	outcome.Duration = time.Since(start)
	return outcome
}

// Failed reports whether any outcome carries an error.
func Failed(outcomes []Outcome) bool {
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			return true
		}
	}
	return false
}
