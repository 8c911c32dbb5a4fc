package writeback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocabularyIsClosed(t *testing.T) {
	assert.Len(t, Names(), 19)
	for _, name := range Names() {
		assert.True(t, IsWritebackTool(name), name)
		assert.NotEmpty(t, Describe(name), name)
	}
	assert.False(t, IsWritebackTool("query_user_data"))
	assert.False(t, IsWritebackTool("delegate_generate"))
	assert.False(t, IsWritebackTool("make_coffee"))
}

func TestTransformUnknownToolReturnsNil(t *testing.T) {
	assert.Nil(t, Transform("make_coffee", map[string]interface{}{"x": 1}))
}

func TestTransformUserPatchPicksRecognizedFields(t *testing.T) {
	res := Transform(ToolUserPatch, map[string]interface{}{
		"nickname":  "Sam",
		"height_cm": 182.5,
		"favorite":  "squats",
	})

	require.NotNil(t, res)
	patch, ok := res.Payload["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Sam", patch["nickname"])
	assert.Equal(t, 182.5, patch["height_cm"])
	assert.NotContains(t, patch, "favorite")
	assert.Equal(t, "update user basics (height_cm, nickname)", res.Summary)
}

func TestTransformUserPatchWithoutRecognizedFieldsFails(t *testing.T) {
	assert.Nil(t, Transform(ToolUserPatch, map[string]interface{}{"favorite": "squats"}))
	assert.Nil(t, Transform(ToolUserPatch, map[string]interface{}{}))
	assert.Nil(t, Transform(ToolUserPatch, nil))
}

func TestTransformProfilePatch(t *testing.T) {
	res := Transform(ToolProfilePatch, map[string]interface{}{
		"fitness_level":        "intermediate",
		"weekly_training_days": float64(4),
	})

	require.NotNil(t, res)
	patch := res.Payload["profile"].(map[string]interface{})
	assert.Equal(t, "intermediate", patch["fitness_level"])
	assert.Equal(t, float64(4), patch["weekly_training_days"])
}

func TestTransformConditionsUpsertFiltersItems(t *testing.T) {
	res := Transform(ToolConditionsUpsert, map[string]interface{}{
		"conditions": []interface{}{
			map[string]interface{}{"name": "knee pain", "severity": "mild", "doctor": "Dr. Wu"},
			"not an object",
			map[string]interface{}{"unrelated": true},
		},
	})

	require.NotNil(t, res)
	items, ok := res.Payload["conditions"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "knee pain", item["name"])
	assert.NotContains(t, item, "doctor")
	assert.Equal(t, "save 1 health condition", res.Summary)
}

func TestTransformConditionsUpsertRequiresUsableItems(t *testing.T) {
	assert.Nil(t, Transform(ToolConditionsUpsert, map[string]interface{}{"conditions": []interface{}{}}))
	assert.Nil(t, Transform(ToolConditionsUpsert, map[string]interface{}{"conditions": "knee"}))
	assert.Nil(t, Transform(ToolConditionsUpsert, map[string]interface{}{
		"conditions": []interface{}{map[string]interface{}{"unrelated": 1}},
	}))
}

func TestTransformDeleteByIDs(t *testing.T) {
	res := Transform(ToolHealthMetricsDelete, map[string]interface{}{
		"ids": []interface{}{"m1", "m2"},
	})

	require.NotNil(t, res)
	assert.Equal(t, []interface{}{"m1", "m2"}, res.Payload["health_metrics_delete_ids"])
	assert.Equal(t, "remove 2 health metrics entries", res.Summary)

	assert.Nil(t, Transform(ToolHealthMetricsDelete, map[string]interface{}{"ids": []interface{}{}}))
	assert.Nil(t, Transform(ToolHealthMetricsDelete, map[string]interface{}{"ids": "m1"}))
	assert.Nil(t, Transform(ToolHealthMetricsDelete, map[string]interface{}{}))
}

func TestTransformHealthMetricsCreateRequiresDate(t *testing.T) {
	res := Transform(ToolHealthMetricsCreate, map[string]interface{}{
		"record_date": "2026-08-25",
		"weight_kg":   81.2,
		"mystery":     "x",
	})

	require.NotNil(t, res)
	entry := res.Payload["health_metrics_create"].(map[string]interface{})
	assert.Equal(t, "2026-08-25", entry["record_date"])
	assert.Equal(t, 81.2, entry["weight_kg"])
	assert.NotContains(t, entry, "mystery")

	assert.Nil(t, Transform(ToolHealthMetricsCreate, map[string]interface{}{"weight_kg": 81.2}))
	// A non-string date is not coerced.
	assert.Nil(t, Transform(ToolHealthMetricsCreate, map[string]interface{}{"record_date": 20260825}))
}

func TestTransformHealthMetricsUpdateRequiresID(t *testing.T) {
	res := Transform(ToolHealthMetricsUpdate, map[string]interface{}{
		"id":          "m-42",
		"sleep_hours": 7.5,
	})

	require.NotNil(t, res)
	entry := res.Payload["health_metrics_update"].(map[string]interface{})
	assert.Equal(t, "m-42", entry["id"])
	assert.Equal(t, 7.5, entry["sleep_hours"])

	assert.Nil(t, Transform(ToolHealthMetricsUpdate, map[string]interface{}{"sleep_hours": 7.5}))
}

func TestTransformPlanSetters(t *testing.T) {
	cases := []struct {
		tool string
		key  string
	}{
		{ToolTrainingPlanSet, "training_plan"},
		{ToolNutritionPlanSet, "nutrition_plan"},
		{ToolSupplementPlanSet, "supplement_plan"},
	}
	for _, tc := range cases {
		res := Transform(tc.tool, map[string]interface{}{
			"plan_date": "2026-08-25",
			"content":   "morning intervals",
		})
		require.NotNil(t, res, tc.tool)
		plan := res.Payload[tc.key].(map[string]interface{})
		assert.Equal(t, "2026-08-25", plan["plan_date"], tc.tool)
		assert.Equal(t, "morning intervals", plan["content"], tc.tool)

		assert.Nil(t, Transform(tc.tool, map[string]interface{}{"plan_date": "2026-08-25"}), tc.tool)
		assert.Nil(t, Transform(tc.tool, map[string]interface{}{"content": "x"}), tc.tool)
	}
}

func TestTransformPlanDeletesYieldBareDate(t *testing.T) {
	cases := []struct {
		tool string
		key  string
	}{
		{ToolTrainingPlanDelete, "training_plan_delete_date"},
		{ToolNutritionPlanDelete, "nutrition_plan_delete_date"},
		{ToolSupplementPlanDelete, "supplement_plan_delete_date"},
	}
	for _, tc := range cases {
		res := Transform(tc.tool, map[string]interface{}{"plan_date": "2026-09-01"})
		require.NotNil(t, res, tc.tool)
		assert.Equal(t, "2026-09-01", res.Payload[tc.key], tc.tool)

		assert.Nil(t, Transform(tc.tool, map[string]interface{}{"plan_date": "  "}), tc.tool)
	}
}

func TestTransformDietRecordsCreate(t *testing.T) {
	res := Transform(ToolDietRecordsCreate, map[string]interface{}{
		"records": []interface{}{
			map[string]interface{}{"record_date": "2026-08-25", "meal_type": "lunch", "calories": float64(650)},
			map[string]interface{}{"record_date": "2026-08-25", "meal_type": "dinner", "description": "salmon bowl"},
		},
	})

	require.NotNil(t, res)
	items := res.Payload["diet_records"].([]interface{})
	assert.Len(t, items, 2)
	assert.Equal(t, "log 2 diet records", res.Summary)
}

func TestTransformDailyLog(t *testing.T) {
	res := Transform(ToolDailyLogUpsert, map[string]interface{}{
		"log_date":     "2026-08-25",
		"mood":         "good",
		"energy_level": float64(8),
	})
	require.NotNil(t, res)
	entry := res.Payload["daily_log"].(map[string]interface{})
	assert.Equal(t, "2026-08-25", entry["log_date"])
	assert.Equal(t, "good", entry["mood"])

	res = Transform(ToolDailyLogDelete, map[string]interface{}{"log_date": "2026-08-25"})
	require.NotNil(t, res)
	assert.Equal(t, "2026-08-25", res.Payload["daily_log_delete_date"])

	assert.Nil(t, Transform(ToolDailyLogUpsert, map[string]interface{}{"mood": "good"}))
	assert.Nil(t, Transform(ToolDailyLogDelete, map[string]interface{}{}))
}

func TestTransformPayloadHasExactlyOneKey(t *testing.T) {
	samples := map[string]map[string]interface{}{
		ToolUserPatch:            {"nickname": "Sam"},
		ToolProfilePatch:         {"notes": "prefers mornings"},
		ToolConditionsUpsert:     {"conditions": []interface{}{map[string]interface{}{"name": "asthma"}}},
		ToolConditionsDelete:     {"ids": []interface{}{"c1"}},
		ToolTrainingGoalsUpsert:  {"goals": []interface{}{map[string]interface{}{"title": "5k under 25m"}}},
		ToolTrainingGoalsDelete:  {"ids": []interface{}{"g1"}},
		ToolHealthMetricsCreate:  {"record_date": "2026-08-25"},
		ToolHealthMetricsUpdate:  {"id": "m1"},
		ToolHealthMetricsDelete:  {"ids": []interface{}{"m1"}},
		ToolTrainingPlanSet:      {"plan_date": "2026-08-25", "content": "legs"},
		ToolTrainingPlanDelete:   {"plan_date": "2026-08-25"},
		ToolNutritionPlanSet:     {"plan_date": "2026-08-25", "content": "high protein"},
		ToolNutritionPlanDelete:  {"plan_date": "2026-08-25"},
		ToolSupplementPlanSet:    {"plan_date": "2026-08-25", "content": "creatine 5g"},
		ToolSupplementPlanDelete: {"plan_date": "2026-08-25"},
		ToolDietRecordsCreate:    {"records": []interface{}{map[string]interface{}{"meal_type": "lunch"}}},
		ToolDietRecordsDelete:    {"ids": []interface{}{"d1"}},
		ToolDailyLogUpsert:       {"log_date": "2026-08-25"},
		ToolDailyLogDelete:       {"log_date": "2026-08-25"},
	}

	for tool, args := range samples {
		res := Transform(tool, args)
		require.NotNil(t, res, tool)
		assert.Len(t, res.Payload, 1, tool)
		assert.NotEmpty(t, res.Summary, tool)
	}
}
