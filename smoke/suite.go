package smoke

import (
	"context"
	"fmt"

	"github.com/lexcodex/fitcoach/agent"
	"github.com/lexcodex/fitcoach/backend"
)

// Suite dates are fixed and far in the future so reruns against the same
// store stay deterministic: every set has a matching delete, and plan sets
// replace rather than append.
const (
	suitePlanDate      = "2030-01-07"
	suiteNutritionDate = "2030-01-08"
	suiteMetricsDate   = "2030-01-09"
	suiteLogDate       = "2030-01-10"
)

// DefaultSuite returns the built-in end-to-end scenarios: the write/read/
// delete cycle for plans, metrics, and daily logs, plus the client-level
// read bounds.
func DefaultSuite() []Scenario {
	return []Scenario{
		{
			Name: "training-plan-set",
			Prompt: fmt.Sprintf("Create my training plan for %s: bench press 5x5, barbell rows 3x10, "+
				"then 20 minutes easy cycling. Save it.", suitePlanDate),
			Check: expectRows(backend.ResourceTrainingPlans, suitePlanDate, true),
		},
		{
			Name:   "training-plan-delete",
			Prompt: fmt.Sprintf("Delete my training plan for %s.", suitePlanDate),
			Check:  expectRows(backend.ResourceTrainingPlans, suitePlanDate, false),
		},
		{
			Name: "nutrition-plan-set",
			Prompt: fmt.Sprintf("Set my nutrition plan for %s: high protein, around 2400 kcal, "+
				"no snacks after dinner. Save it.", suiteNutritionDate),
			Check: expectRows(backend.ResourceNutritionPlans, suiteNutritionDate, true),
		},
		{
			Name:   "health-metrics-create",
			Prompt: fmt.Sprintf("Log my weigh-in for %s: 82.5 kg, slept 7 hours.", suiteMetricsDate),
			Check:  expectRows(backend.ResourceHealthMetrics, suiteMetricsDate, true),
		},
		{
			Name:   "daily-log-upsert",
			Prompt: fmt.Sprintf("Save my daily log for %s: felt strong, good mood.", suiteLogDate),
			Check:  expectRows(backend.ResourceDailyLogs, suiteLogDate, true),
		},
		{
			Name:   "daily-log-delete",
			Prompt: fmt.Sprintf("Delete my daily log for %s.", suiteLogDate),
			Check:  expectRows(backend.ResourceDailyLogs, suiteLogDate, false),
		},
		{
			Name:  "read-limit-clamp",
			Check: checkLimitClamp,
		},
		{
			Name:  "unknown-resource-read",
			Check: checkUnknownResource,
		},
	}
}

// expectRows builds a check asserting presence or absence of rows for one
// resource on one date.
func expectRows(resource, date string, want bool) func(context.Context, *backend.Client, *agent.TurnResult) error {
	return func(ctx context.Context, store *backend.Client, _ *agent.TurnResult) error {
		rows, err := store.ListRecords(ctx, resource, backend.ReadOptions{Date: date})
		if err != nil {
			return fmt.Errorf("read %s: %w", resource, err)
		}
		if want && len(rows) == 0 {
			return fmt.Errorf("expected a %s row for %s, found none", resource, date)
		}
		if !want && len(rows) > 0 {
			return fmt.Errorf("expected no %s rows for %s, found %d", resource, date, len(rows))
		}
		return nil
	}
}

func checkLimitClamp(ctx context.Context, store *backend.Client, _ *agent.TurnResult) error {
	rows, err := store.ListRecords(ctx, backend.ResourceDietRecords, backend.ReadOptions{Limit: 500})
	if err != nil {
		return fmt.Errorf("read diet_records: %w", err)
	}
	if len(rows) > backend.MaxReadLimit {
		return fmt.Errorf("limit clamp violated: got %d rows", len(rows))
	}
	return nil
}

func checkUnknownResource(ctx context.Context, store *backend.Client, _ *agent.TurnResult) error {
	if _, err := store.ListRecords(ctx, "passwords", backend.ReadOptions{}); err == nil {
		return fmt.Errorf("expected unknown resource read to fail")
	}
	return nil
}
