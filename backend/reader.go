package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Readable record resources. The query tool only reaches these; anything
// else is answered locally as unsupported without touching the wire.
const (
	ResourceTrainingPlans   = "training_plans"
	ResourceNutritionPlans  = "nutrition_plans"
	ResourceSupplementPlans = "supplement_plans"
	ResourceConditions      = "conditions"
	ResourceTrainingGoals   = "training_goals"
	ResourceHealthMetrics   = "health_metrics"
	ResourceDietRecords     = "diet_records"
	ResourceDailyLogs       = "daily_logs"
	ResourceProfile         = "profile"
	ResourceUser            = "user"
)

var resources = []string{
	ResourceTrainingPlans,
	ResourceNutritionPlans,
	ResourceSupplementPlans,
	ResourceConditions,
	ResourceTrainingGoals,
	ResourceHealthMetrics,
	ResourceDietRecords,
	ResourceDailyLogs,
	ResourceProfile,
	ResourceUser,
}

var resourceSet = func() map[string]bool {
	set := make(map[string]bool, len(resources))
	for _, r := range resources {
		set[r] = true
	}
	return set
}()

// Resources returns the readable resource names in catalog order.
func Resources() []string {
	out := make([]string, len(resources))
	copy(out, resources)
	return out
}

// IsResource reports whether name is a readable resource.
func IsResource(name string) bool {
	return resourceSet[name]
}

// Read size bounds. A request outside them is clamped, never refused.
const (
	DefaultReadLimit = 20
	MaxReadLimit     = 50
)

// ReadOptions narrows a record read. Date filters are inclusive
// YYYY-MM-DD strings; the zero value means "latest DefaultReadLimit rows".
type ReadOptions struct {
	Limit int
	Date  string
	From  string
	To    string
}

// ClampLimit folds a requested page size into the allowed window.
func ClampLimit(n int) int {
	switch {
	case n == 0:
		return DefaultReadLimit
	case n < 1:
		return 1
	case n > MaxReadLimit:
		return MaxReadLimit
	}
	return n
}

// ErrUnsupportedResource marks reads of resources outside the whitelist.
var ErrUnsupportedResource = errors.New("unsupported resource")

// ListRecords fetches one bounded page of a resource.
func (c *Client) ListRecords(ctx context.Context, resource string, opts ReadOptions) ([]map[string]interface{}, error) {
	if !IsResource(resource) {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedResource, resource)
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(ClampLimit(opts.Limit)))
	if opts.Date != "" {
		query.Set("date", opts.Date)
	}
	if opts.From != "" {
		query.Set("from", opts.From)
	}
	if opts.To != "" {
		query.Set("to", opts.To)
	}

	endpoint := c.BaseURL + "/api/v1/records/" + url.PathEscape(resource) + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("read %s: malformed response: %w", resource, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		detail := strings.TrimSpace(env.Error)
		if detail == "" {
			detail = resp.Status
		}
		return nil, fmt.Errorf("read %s: %s", resource, detail)
	}
	var rows []map[string]interface{}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			return nil, fmt.Errorf("read %s: malformed rows: %w", resource, err)
		}
	}
	return rows, nil
}
