// Package llm talks to OpenAI-style chat completion endpoints. The Gateway
// walks an ordered list of candidate models, retrying each a fixed number
// of times before falling through to the next, so callers see either one
// usable assistant reply or a single exhaustion error naming every attempt.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lexcodex/fitcoach/chat"
	"github.com/lexcodex/fitcoach/retry"
	"github.com/lexcodex/fitcoach/telemetry"
)

// DefaultAttempts bounds the per-model call loop: three tries with a fixed
// 600ms pause between them.
var DefaultAttempts = retry.Policy{MaxAttempts: 3, Interval: 600 * time.Millisecond}

// Caller is the model surface the orchestrator depends on.
type Caller interface {
	// ChatCompletion runs one tool-aware chat call over the full
	// conversation so far.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResult, error)
	// Generate runs a single-shot completion with no tool catalog.
	Generate(ctx context.Context, prompt string) (*ChatResult, error)
}

// Gateway implements Caller against an OpenAI-compatible endpoint.
type Gateway struct {
	Endpoint    string
	APIKey      string
	Models      []string // priority order: primary first, then fallbacks
	Temperature float64
	Attempts    retry.Policy
	Debug       bool
	Telemetry   telemetry.Telemetry
	client      *http.Client
}

// ChatRequest carries one chat completion call.
type ChatRequest struct {
	Messages   []chat.Message
	Tools      []ToolDef
	ToolChoice string // tool_choice wire value; empty means "auto"
}

// ChatResult is the usable part of one completion.
type ChatResult struct {
	Model        string
	Message      chat.Message
	FinishReason string
	Usage        map[string]int
}

// ToolDef is the function-call schema advertised to the model.
type ToolDef struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type wireMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]int `json:"usage"`
}

// NewGateway builds a gateway for the given endpoint and model candidates.
func NewGateway(endpoint, apiKey string, models ...string) *Gateway {
	if endpoint == "" {
		endpoint = "http://localhost:11434/v1"
	}
	return &Gateway{
		Endpoint:    endpoint,
		APIKey:      apiKey,
		Models:      models,
		Temperature: 0.1,
		Attempts:    DefaultAttempts,
		client: &http.Client{
			Timeout: 3 * time.Minute,
		},
	}
}

// AttemptFailure records one failed call for the exhaustion report.
type AttemptFailure struct {
	Model   string
	Attempt int
	Err     error
}

// ExhaustedError reports that every candidate model failed every attempt.
type ExhaustedError struct {
	Failures []AttemptFailure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s#%d: %v", f.Model, f.Attempt, f.Err))
	}
	return "model candidates exhausted: " + strings.Join(parts, "; ")
}

// ChatCompletion walks the candidate models in priority order. Each model
// gets the full attempt budget before the next is tried; only when every
// candidate is spent does the caller see an ExhaustedError.
func (g *Gateway) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	candidates := g.candidates()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no model candidates configured")
	}
	var failures []AttemptFailure
	for _, model := range candidates {
		var result *ChatResult
		err := g.policy().Do(ctx, func(attempt int) (retry.Verdict, error) {
			res, callErr := g.callOnce(ctx, model, req)
			if callErr != nil {
				failures = append(failures, AttemptFailure{Model: model, Attempt: attempt, Err: callErr})
				g.logf("model %s attempt %d failed: %v", model, attempt, callErr)
				g.emit(telemetry.EventModelRetry, map[string]interface{}{
					"model":   model,
					"attempt": attempt,
					"error":   callErr.Error(),
				})
				return retry.Again, nil
			}
			result = res
			return retry.Done, nil
		})
		if err == nil && result != nil {
			return result, nil
		}
		if err != nil && !errors.Is(err, retry.ErrExhausted) {
			// Context cancellation or a broken policy, not a model failure.
			return nil, err
		}
	}
	return nil, &ExhaustedError{Failures: failures}
}

// Generate runs a single-shot completion. Delegated content generation uses
// this path: no tools, same failover behavior.
func (g *Gateway) Generate(ctx context.Context, prompt string) (*ChatResult, error) {
	return g.ChatCompletion(ctx, ChatRequest{
		Messages: []chat.Message{chat.UserMessage(prompt)},
	})
}

func (g *Gateway) candidates() []string {
	seen := make(map[string]bool, len(g.Models))
	out := make([]string, 0, len(g.Models))
	for _, model := range g.Models {
		model = strings.TrimSpace(model)
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true
		out = append(out, model)
	}
	return out
}

func (g *Gateway) policy() retry.Policy {
	if g.Attempts.MaxAttempts > 0 {
		return g.Attempts
	}
	return DefaultAttempts
}

func (g *Gateway) callOnce(ctx context.Context, model string, req ChatRequest) (*ChatResult, error) {
	payload := map[string]interface{}{
		"model":    model,
		"messages": convertMessages(req.Messages),
		"stream":   false,
	}
	if g.Temperature != 0 {
		payload["temperature"] = g.Temperature
	}
	if len(req.Tools) > 0 {
		payload["tools"] = req.Tools
		choice := req.ToolChoice
		if choice == "" {
			choice = "auto"
		}
		payload["tool_choice"] = choice
	}
	body, err := g.doRequest(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	return decodeChatResponse(model, body)
}

func (g *Gateway) doRequest(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	g.logPayload(path, body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.APIKey)
	}
	resp, err := g.getHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := strings.TrimSpace(string(msg))
		if detail != "" {
			return nil, fmt.Errorf("gateway error: %s: %s", resp.Status, detail)
		}
		return nil, fmt.Errorf("gateway error: %s", resp.Status)
	}
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	g.logResponse(path, responseBody)
	return responseBody, nil
}

func decodeChatResponse(model string, body []byte) (*ChatResult, error) {
	var raw chatResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("malformed completion body: %w", err)
	}
	if len(raw.Choices) == 0 {
		return nil, fmt.Errorf("completion body has no choices")
	}
	choice := raw.Choices[0]
	msg := chat.Message{
		Role:    chat.RoleAssistant,
		Content: choice.Message.Content,
	}
	for _, call := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: parseArguments(call.Function.Arguments),
		})
	}
	if raw.Model != "" {
		model = raw.Model
	}
	return &ChatResult{
		Model:        model,
		Message:      msg,
		FinishReason: choice.FinishReason,
		Usage:        raw.Usage,
	}, nil
}

// parseArguments is deliberately lenient. Providers send arguments as a
// JSON-encoded string, some send the object inline, and small models emit
// garbage; anything that does not yield an object becomes an empty map so
// the turn can keep going.
func parseArguments(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return obj
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		var nested map[string]interface{}
		if err := json.Unmarshal([]byte(str), &nested); err == nil && nested != nil {
			return nested
		}
	}
	return map[string]interface{}{}
}

func convertMessages(messages []chat.Message) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		m := map[string]interface{}{
			"role":    msg.Role,
			"content": msg.Content,
		}
		if msg.Name != "" {
			m["name"] = msg.Name
		}
		if msg.ToolCallID != "" {
			m["tool_call_id"] = msg.ToolCallID
		}
		if len(msg.ToolCalls) > 0 {
			calls := make([]map[string]interface{}, 0, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				args, err := json.Marshal(call.Args)
				if err != nil {
					args = []byte("{}")
				}
				calls = append(calls, map[string]interface{}{
					"id":   call.ID,
					"type": "function",
					"function": map[string]interface{}{
						"name":      call.Name,
						"arguments": string(args),
					},
				})
			}
			m["tool_calls"] = calls
		}
		out = append(out, m)
	}
	return out
}

func (g *Gateway) getHTTPClient() *http.Client {
	if g.client != nil {
		return g.client
	}
	g.client = &http.Client{Timeout: 60 * time.Second}
	return g.client
}

func (g *Gateway) emit(eventType telemetry.EventType, payload map[string]interface{}) {
	if g.Telemetry == nil {
		return
	}
	g.Telemetry.Emit(telemetry.New(eventType, "", payload))
}

func (g *Gateway) logPayload(path string, payload []byte) {
	if !g.Debug {
		return
	}
	g.logf("request %s payload: %s", path, truncate(string(payload), 2048))
}

func (g *Gateway) logResponse(path string, resp []byte) {
	if !g.Debug {
		return
	}
	g.logf("response %s payload: %s", path, truncate(string(resp), 2048))
}

func (g *Gateway) logf(format string, args ...interface{}) {
	if !g.Debug {
		return
	}
	log.Printf("[gateway] "+format, args...)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
