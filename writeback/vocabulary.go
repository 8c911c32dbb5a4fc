// Package writeback defines the closed vocabulary of record-mutating tools
// the model may call and the pure transform that maps raw tool arguments
// onto the canonical commit payload. Nothing in this package performs I/O;
// the backend client owns the wire.
package writeback

// Tool names exposed to the model. The set is closed: a name outside this
// list is not a writeback tool.
const (
	ToolUserPatch            = "user_patch"
	ToolProfilePatch         = "profile_patch"
	ToolConditionsUpsert     = "conditions_upsert"
	ToolConditionsDelete     = "conditions_delete"
	ToolTrainingGoalsUpsert  = "training_goals_upsert"
	ToolTrainingGoalsDelete  = "training_goals_delete"
	ToolHealthMetricsCreate  = "health_metrics_create"
	ToolHealthMetricsUpdate  = "health_metrics_update"
	ToolHealthMetricsDelete  = "health_metrics_delete"
	ToolTrainingPlanSet      = "training_plan_set"
	ToolTrainingPlanDelete   = "training_plan_delete"
	ToolNutritionPlanSet     = "nutrition_plan_set"
	ToolNutritionPlanDelete  = "nutrition_plan_delete"
	ToolSupplementPlanSet    = "supplement_plan_set"
	ToolSupplementPlanDelete = "supplement_plan_delete"
	ToolDietRecordsCreate    = "diet_records_create"
	ToolDietRecordsDelete    = "diet_records_delete"
	ToolDailyLogUpsert       = "daily_log_upsert"
	ToolDailyLogDelete       = "daily_log_delete"
)

// names lists the vocabulary in catalog order. Order matters only for
// stable catalogs and reports.
var names = []string{
	ToolUserPatch,
	ToolProfilePatch,
	ToolConditionsUpsert,
	ToolConditionsDelete,
	ToolTrainingGoalsUpsert,
	ToolTrainingGoalsDelete,
	ToolHealthMetricsCreate,
	ToolHealthMetricsUpdate,
	ToolHealthMetricsDelete,
	ToolTrainingPlanSet,
	ToolTrainingPlanDelete,
	ToolNutritionPlanSet,
	ToolNutritionPlanDelete,
	ToolSupplementPlanSet,
	ToolSupplementPlanDelete,
	ToolDietRecordsCreate,
	ToolDietRecordsDelete,
	ToolDailyLogUpsert,
	ToolDailyLogDelete,
}

var descriptions = map[string]string{
	ToolUserPatch:            "Update the user's basic info: nickname, gender, birthday, height_cm, weight_kg. Pass only the fields that changed.",
	ToolProfilePatch:         "Update the coaching profile: fitness_level, weekly_training_days, preferred_sports, dietary_preference, target_weight_kg, notes.",
	ToolConditionsUpsert:     "Create or update health conditions. Pass a 'conditions' array of objects with name, severity, notes; include id to update an existing one.",
	ToolConditionsDelete:     "Delete health conditions by id. Pass an 'ids' array.",
	ToolTrainingGoalsUpsert:  "Create or update training goals. Pass a 'goals' array of objects with title, target_date, description; include id to update an existing one.",
	ToolTrainingGoalsDelete:  "Delete training goals by id. Pass an 'ids' array.",
	ToolHealthMetricsCreate:  "Record a new health metrics entry. Requires record_date; optional weight_kg, body_fat_pct, resting_heart_rate, sleep_hours, notes.",
	ToolHealthMetricsUpdate:  "Update an existing health metrics entry. Requires id; pass only the fields that changed.",
	ToolHealthMetricsDelete:  "Delete health metrics entries by id. Pass an 'ids' array.",
	ToolTrainingPlanSet:      "Set or replace the training plan for one day. Requires plan_date (YYYY-MM-DD) and content.",
	ToolTrainingPlanDelete:   "Delete the training plan for one day. Requires plan_date.",
	ToolNutritionPlanSet:     "Set or replace the nutrition plan for one day. Requires plan_date (YYYY-MM-DD) and content.",
	ToolNutritionPlanDelete:  "Delete the nutrition plan for one day. Requires plan_date.",
	ToolSupplementPlanSet:    "Set or replace the supplement plan for one day. Requires plan_date (YYYY-MM-DD) and content.",
	ToolSupplementPlanDelete: "Delete the supplement plan for one day. Requires plan_date.",
	ToolDietRecordsCreate:    "Log meals the user ate. Pass a 'records' array of objects with record_date, meal_type, description, calories.",
	ToolDietRecordsDelete:    "Delete diet records by id. Pass an 'ids' array.",
	ToolDailyLogUpsert:       "Save the daily log for one day. Requires log_date; optional content, mood, energy_level.",
	ToolDailyLogDelete:       "Delete the daily log for one day. Requires log_date.",
}

// Names returns the vocabulary in catalog order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// IsWritebackTool reports whether name belongs to the closed vocabulary.
func IsWritebackTool(name string) bool {
	_, ok := transforms[name]
	return ok
}

// Describe returns the model-facing description for a tool, or an empty
// string for names outside the vocabulary.
func Describe(name string) string {
	return descriptions[name]
}
