// Package persistence stores the user records behind the stub record
// service: dated plans, itemized records, and the two singleton documents
// (user basics and coaching profile). A Store applies canonical writeback
// payloads and serves the bounded reads; the same payload vocabulary the
// agent emits is the only write surface.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnsupportedResource marks reads of resource names outside the record
// vocabulary.
var ErrUnsupportedResource = errors.New("unsupported resource")

// ListOptions narrows a read. Dates are inclusive YYYY-MM-DD strings.
type ListOptions struct {
	Limit int
	Date  string
	From  string
	To    string
}

// Store is the record backend. Apply consumes one canonical payload and
// returns a human summary of what changed; List returns one bounded page
// of a resource, newest first.
type Store interface {
	Apply(ctx context.Context, payload map[string]interface{}) (string, error)
	List(ctx context.Context, resource string, opts ListOptions) ([]map[string]interface{}, error)
	Close() error
}

// Plan kinds keyed by read resource.
var planKinds = map[string]string{
	"training_plans":   "training",
	"nutrition_plans":  "nutrition",
	"supplement_plans": "supplement",
}

// Itemized record resources.
var itemResources = map[string]bool{
	"conditions":     true,
	"training_goals": true,
	"health_metrics": true,
	"diet_records":   true,
	"daily_logs":     true,
}

// Singleton document resources.
var singletonResources = map[string]bool{
	"profile": true,
	"user":    true,
}

// mutationKind says how a decoded payload mutates the store.
type mutationKind int

const (
	mutateMergeSingleton mutationKind = iota
	mutateUpsertItems
	mutateCreateItem
	mutatePatchItem
	mutateDeleteItems
	mutateUpsertByDate
	mutateDeleteByDate
	mutateSetPlan
	mutateDeletePlan
)

// mutation is one validated write against the store.
type mutation struct {
	kind     mutationKind
	resource string // item resource or singleton name
	planKind string // for plan writes
	object   map[string]interface{}
	items    []map[string]interface{}
	ids      []string
	date     string
	summary  string
}

// payloadRoutes maps each payload key onto its decode rule.
var payloadRoutes = map[string]func(key string, value interface{}) (*mutation, error){
	"user":                        decodeSingleton("user", "user info updated"),
	"profile":                     decodeSingleton("profile", "coaching profile updated"),
	"conditions":                  decodeItems("conditions", "health condition", "saved"),
	"conditions_delete_ids":       decodeIDs("conditions", "health condition", "removed"),
	"training_goals":              decodeItems("training_goals", "training goal", "saved"),
	"training_goals_delete_ids":   decodeIDs("training_goals", "training goal", "removed"),
	"health_metrics_create":       decodeMetricsCreate,
	"health_metrics_update":       decodeMetricsUpdate,
	"health_metrics_delete_ids":   decodeIDs("health_metrics", "health metrics entry", "removed"),
	"training_plan":               decodePlanSet("training"),
	"training_plan_delete_date":   decodePlanDelete("training"),
	"nutrition_plan":              decodePlanSet("nutrition"),
	"nutrition_plan_delete_date":  decodePlanDelete("nutrition"),
	"supplement_plan":             decodePlanSet("supplement"),
	"supplement_plan_delete_date": decodePlanDelete("supplement"),
	"diet_records":                decodeItems("diet_records", "diet record", "logged"),
	"diet_records_delete_ids":     decodeIDs("diet_records", "diet record", "removed"),
	"daily_log":                   decodeDailyLog,
	"daily_log_delete_date":       decodeDailyLogDelete,
}

// decodePayload validates the single-key commit payload and turns it into
// a store mutation. Everything the agent-side transform deferred to
// "remote validation" is enforced here.
func decodePayload(payload map[string]interface{}) (*mutation, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if len(payload) > 1 {
		return nil, fmt.Errorf("payload must carry exactly one domain key, got %d", len(payload))
	}
	for key, value := range payload {
		decode, ok := payloadRoutes[key]
		if !ok {
			return nil, fmt.Errorf("unknown payload key %q", key)
		}
		return decode(key, value)
	}
	return nil, fmt.Errorf("empty payload")
}

func decodeSingleton(name, summary string) func(string, interface{}) (*mutation, error) {
	return func(key string, value interface{}) (*mutation, error) {
		obj, ok := value.(map[string]interface{})
		if !ok || len(obj) == 0 {
			return nil, fmt.Errorf("%s payload must be a non-empty object", key)
		}
		return &mutation{
			kind:     mutateMergeSingleton,
			resource: name,
			object:   obj,
			summary:  summary,
		}, nil
	}
}

func decodeItems(resource, noun, verb string) func(string, interface{}) (*mutation, error) {
	return func(key string, value interface{}) (*mutation, error) {
		items, err := objectList(key, value)
		if err != nil {
			return nil, err
		}
		kind := mutateUpsertItems
		if resource == "diet_records" {
			// Diet records are append-only; there is no upsert-by-id.
			kind = mutateCreateItem
		}
		return &mutation{
			kind:     kind,
			resource: resource,
			items:    items,
			summary:  fmt.Sprintf("%s %s", pluralize(len(items), noun), verb),
		}, nil
	}
}

func decodeIDs(resource, noun, verb string) func(string, interface{}) (*mutation, error) {
	return func(key string, value interface{}) (*mutation, error) {
		raw, ok := value.([]interface{})
		if !ok || len(raw) == 0 {
			return nil, fmt.Errorf("%s payload must be a non-empty array", key)
		}
		ids := make([]string, 0, len(raw))
		for _, v := range raw {
			s, ok := v.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("%s payload must contain string ids", key)
			}
			ids = append(ids, s)
		}
		return &mutation{
			kind:     mutateDeleteItems,
			resource: resource,
			ids:      ids,
			summary:  fmt.Sprintf("%s %s", pluralize(len(ids), noun), verb),
		}, nil
	}
}

func decodeMetricsCreate(key string, value interface{}) (*mutation, error) {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s payload must be an object", key)
	}
	date, ok := obj["record_date"].(string)
	if !ok || date == "" {
		return nil, fmt.Errorf("%s payload requires record_date", key)
	}
	return &mutation{
		kind:     mutateCreateItem,
		resource: "health_metrics",
		items:    []map[string]interface{}{obj},
		date:     date,
		summary:  "health metrics recorded for " + date,
	}, nil
}

func decodeMetricsUpdate(key string, value interface{}) (*mutation, error) {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s payload must be an object", key)
	}
	id, ok := obj["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("%s payload requires id", key)
	}
	return &mutation{
		kind:     mutatePatchItem,
		resource: "health_metrics",
		object:   obj,
		ids:      []string{id},
		summary:  "health metrics entry " + id + " updated",
	}, nil
}

func decodePlanSet(planKind string) func(string, interface{}) (*mutation, error) {
	return func(key string, value interface{}) (*mutation, error) {
		obj, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s payload must be an object", key)
		}
		date, _ := obj["plan_date"].(string)
		content, _ := obj["content"].(string)
		if date == "" || content == "" {
			return nil, fmt.Errorf("%s payload requires plan_date and content", key)
		}
		return &mutation{
			kind:     mutateSetPlan,
			planKind: planKind,
			date:     date,
			object:   obj,
			summary:  fmt.Sprintf("%s plan saved for %s", planKind, date),
		}, nil
	}
}

func decodePlanDelete(planKind string) func(string, interface{}) (*mutation, error) {
	return func(key string, value interface{}) (*mutation, error) {
		date, ok := value.(string)
		if !ok || date == "" {
			return nil, fmt.Errorf("%s payload must be a date string", key)
		}
		return &mutation{
			kind:     mutateDeletePlan,
			planKind: planKind,
			date:     date,
			summary:  fmt.Sprintf("%s plan cleared for %s", planKind, date),
		}, nil
	}
}

func decodeDailyLog(key string, value interface{}) (*mutation, error) {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s payload must be an object", key)
	}
	date, ok := obj["log_date"].(string)
	if !ok || date == "" {
		return nil, fmt.Errorf("%s payload requires log_date", key)
	}
	return &mutation{
		kind:     mutateUpsertByDate,
		resource: "daily_logs",
		object:   obj,
		date:     date,
		summary:  "daily log saved for " + date,
	}, nil
}

func decodeDailyLogDelete(key string, value interface{}) (*mutation, error) {
	date, ok := value.(string)
	if !ok || date == "" {
		return nil, fmt.Errorf("%s payload must be a date string", key)
	}
	return &mutation{
		kind:     mutateDeleteByDate,
		resource: "daily_logs",
		date:     date,
		summary:  "daily log cleared for " + date,
	}, nil
}

func objectList(key string, value interface{}) ([]map[string]interface{}, error) {
	raw, ok := value.([]interface{})
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%s payload must be a non-empty array", key)
	}
	items := make([]map[string]interface{}, 0, len(raw))
	for _, v := range raw {
		obj, ok := v.(map[string]interface{})
		if !ok || len(obj) == 0 {
			return nil, fmt.Errorf("%s payload items must be objects", key)
		}
		items = append(items, obj)
	}
	return items, nil
}

// itemDate picks the date field an itemized record is filtered on.
func itemDate(item map[string]interface{}) string {
	for _, key := range []string{"record_date", "log_date", "target_date"} {
		if s, ok := item[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// matchDate applies the list date filters to one record date. Records
// without a date only match unfiltered reads.
func matchDate(date string, opts ListOptions) bool {
	if opts.Date != "" && date != opts.Date {
		return false
	}
	if opts.From != "" && (date == "" || date < opts.From) {
		return false
	}
	if opts.To != "" && (date == "" || date > opts.To) {
		return false
	}
	return true
}

func normalizeLimit(n int) int {
	switch {
	case n <= 0:
		return 20
	case n > 50:
		return 50
	}
	return n
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	if last := len(noun) - 1; last >= 0 && noun[last] == 'y' {
		return fmt.Sprintf("%d %sies", n, noun[:last])
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// sortRecordsByDate orders rows newest first, using updated_at to break
// ties so undated resources still list deterministically.
func sortRecordsByDate(rows []map[string]interface{}) {
	sort.SliceStable(rows, func(i, j int) bool {
		di := itemDate(rows[i])
		dj := itemDate(rows[j])
		if di != dj {
			return di > dj
		}
		ui, _ := rows[i]["updated_at"].(string)
		uj, _ := rows[j]["updated_at"].(string)
		return ui > uj
	})
}

// ctxGuard is the common early-out for a cancelled request.
func ctxGuard(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
