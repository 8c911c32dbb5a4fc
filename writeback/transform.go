package writeback

import (
	"fmt"
	"sort"
	"strings"
)

// Result is the outcome of a successful transform: the single-key payload
// the commit endpoint accepts, plus a short human summary used for the
// draft context and logs.
type Result struct {
	Payload map[string]interface{}
	Summary string
}

type transformFunc func(args map[string]interface{}) *Result

// transforms maps each tool name to its argument transform. The table is
// the single source of truth for vocabulary membership.
var transforms = map[string]transformFunc{
	ToolUserPatch:            transformUserPatch,
	ToolProfilePatch:         transformProfilePatch,
	ToolConditionsUpsert:     transformConditionsUpsert,
	ToolConditionsDelete:     deleteByIDs("conditions_delete_ids", "health condition"),
	ToolTrainingGoalsUpsert:  transformTrainingGoalsUpsert,
	ToolTrainingGoalsDelete:  deleteByIDs("training_goals_delete_ids", "training goal"),
	ToolHealthMetricsCreate:  transformHealthMetricsCreate,
	ToolHealthMetricsUpdate:  transformHealthMetricsUpdate,
	ToolHealthMetricsDelete:  deleteByIDs("health_metrics_delete_ids", "health metrics entry"),
	ToolTrainingPlanSet:      planSet("training_plan", "training plan"),
	ToolTrainingPlanDelete:   planDelete("training_plan_delete_date", "training plan"),
	ToolNutritionPlanSet:     planSet("nutrition_plan", "nutrition plan"),
	ToolNutritionPlanDelete:  planDelete("nutrition_plan_delete_date", "nutrition plan"),
	ToolSupplementPlanSet:    planSet("supplement_plan", "supplement plan"),
	ToolSupplementPlanDelete: planDelete("supplement_plan_delete_date", "supplement plan"),
	ToolDietRecordsCreate:    transformDietRecordsCreate,
	ToolDietRecordsDelete:    deleteByIDs("diet_records_delete_ids", "diet record"),
	ToolDailyLogUpsert:       transformDailyLogUpsert,
	ToolDailyLogDelete:       transformDailyLogDelete,
}

// Transform maps a writeback tool call onto its canonical commit payload.
// It picks the fields the tool recognizes, drops everything else, and does
// no value validation beyond required-field presence; bad values are the
// remote store's problem. It returns nil when the name is outside the
// vocabulary or the required fields are missing, and never errors.
func Transform(name string, args map[string]interface{}) *Result {
	fn, ok := transforms[name]
	if !ok {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return fn(args)
}

func transformUserPatch(args map[string]interface{}) *Result {
	patch := pickFields(args, "nickname", "gender", "birthday", "height_cm", "weight_kg")
	if len(patch) == 0 {
		return nil
	}
	return &Result{
		Payload: map[string]interface{}{"user": patch},
		Summary: fmt.Sprintf("update user basics (%s)", joinKeys(patch)),
	}
}

func transformProfilePatch(args map[string]interface{}) *Result {
	patch := pickFields(args,
		"fitness_level", "weekly_training_days", "preferred_sports",
		"dietary_preference", "target_weight_kg", "notes")
	if len(patch) == 0 {
		return nil
	}
	return &Result{
		Payload: map[string]interface{}{"profile": patch},
		Summary: fmt.Sprintf("update coaching profile (%s)", joinKeys(patch)),
	}
}

func transformConditionsUpsert(args map[string]interface{}) *Result {
	items := pickItems(args, "conditions", "id", "name", "severity", "notes")
	if len(items) == 0 {
		return nil
	}
	return &Result{
		Payload: map[string]interface{}{"conditions": items},
		Summary: fmt.Sprintf("save %s", countNoun(len(items), "health condition")),
	}
}

func transformTrainingGoalsUpsert(args map[string]interface{}) *Result {
	items := pickItems(args, "goals", "id", "title", "target_date", "description")
	if len(items) == 0 {
		return nil
	}
	return &Result{
		Payload: map[string]interface{}{"training_goals": items},
		Summary: fmt.Sprintf("save %s", countNoun(len(items), "training goal")),
	}
}

func transformHealthMetricsCreate(args map[string]interface{}) *Result {
	date, ok := stringField(args, "record_date")
	if !ok {
		return nil
	}
	entry := pickFields(args, "weight_kg", "body_fat_pct", "resting_heart_rate", "sleep_hours", "notes")
	entry["record_date"] = date
	return &Result{
		Payload: map[string]interface{}{"health_metrics_create": entry},
		Summary: "record health metrics for " + date,
	}
}

func transformHealthMetricsUpdate(args map[string]interface{}) *Result {
	id, ok := stringField(args, "id")
	if !ok {
		return nil
	}
	entry := pickFields(args, "record_date", "weight_kg", "body_fat_pct", "resting_heart_rate", "sleep_hours", "notes")
	entry["id"] = id
	return &Result{
		Payload: map[string]interface{}{"health_metrics_update": entry},
		Summary: "update health metrics entry " + id,
	}
}

func transformDietRecordsCreate(args map[string]interface{}) *Result {
	items := pickItems(args, "records", "record_date", "meal_type", "description", "calories")
	if len(items) == 0 {
		return nil
	}
	return &Result{
		Payload: map[string]interface{}{"diet_records": items},
		Summary: fmt.Sprintf("log %s", countNoun(len(items), "diet record")),
	}
}

func transformDailyLogUpsert(args map[string]interface{}) *Result {
	date, ok := stringField(args, "log_date")
	if !ok {
		return nil
	}
	entry := pickFields(args, "content", "mood", "energy_level")
	entry["log_date"] = date
	return &Result{
		Payload: map[string]interface{}{"daily_log": entry},
		Summary: "save daily log for " + date,
	}
}

func transformDailyLogDelete(args map[string]interface{}) *Result {
	date, ok := stringField(args, "log_date")
	if !ok {
		return nil
	}
	return &Result{
		Payload: map[string]interface{}{"daily_log_delete_date": date},
		Summary: "clear daily log for " + date,
	}
}

// planSet builds the transform for the three date-keyed plan setters, which
// share one shape: plan_date plus free-form content.
func planSet(payloadKey, noun string) transformFunc {
	return func(args map[string]interface{}) *Result {
		date, ok := stringField(args, "plan_date")
		if !ok {
			return nil
		}
		content, ok := stringField(args, "content")
		if !ok {
			return nil
		}
		return &Result{
			Payload: map[string]interface{}{
				payloadKey: map[string]interface{}{"plan_date": date, "content": content},
			},
			Summary: fmt.Sprintf("set %s for %s", noun, date),
		}
	}
}

func planDelete(payloadKey, noun string) transformFunc {
	return func(args map[string]interface{}) *Result {
		date, ok := stringField(args, "plan_date")
		if !ok {
			return nil
		}
		return &Result{
			Payload: map[string]interface{}{payloadKey: date},
			Summary: fmt.Sprintf("clear %s for %s", noun, date),
		}
	}
}

func deleteByIDs(payloadKey, noun string) transformFunc {
	return func(args map[string]interface{}) *Result {
		ids, ok := listField(args, "ids")
		if !ok {
			return nil
		}
		return &Result{
			Payload: map[string]interface{}{payloadKey: ids},
			Summary: fmt.Sprintf("remove %s", countNoun(len(ids), noun)),
		}
	}
}

// stringField extracts a non-empty string value. Anything else counts as
// absent; the transform never coerces types.
func stringField(args map[string]interface{}, key string) (string, bool) {
	s, ok := args[key].(string)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// listField extracts a non-empty array value.
func listField(args map[string]interface{}, key string) ([]interface{}, bool) {
	list, ok := args[key].([]interface{})
	if !ok || len(list) == 0 {
		return nil, false
	}
	return list, true
}

// pickFields copies the recognized keys that carry a non-nil value.
// Unrecognized keys are dropped silently.
func pickFields(args map[string]interface{}, keys ...string) map[string]interface{} {
	out := map[string]interface{}{}
	for _, key := range keys {
		if v, ok := args[key]; ok && v != nil {
			out[key] = v
		}
	}
	return out
}

// pickItems extracts an array of objects under listKey and filters each
// object down to its recognized keys. Items that are not objects, or that
// retain no recognized field, are dropped.
func pickItems(args map[string]interface{}, listKey string, itemKeys ...string) []interface{} {
	list, ok := listField(args, listKey)
	if !ok {
		return nil
	}
	var out []interface{}
	for _, raw := range list {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		item := pickFields(obj, itemKeys...)
		if len(item) == 0 {
			continue
		}
		out = append(out, item)
	}
	return out
}

func joinKeys(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

func countNoun(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	if strings.HasSuffix(noun, "y") {
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(noun, "y"))
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
