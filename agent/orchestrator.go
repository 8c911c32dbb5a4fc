// Package agent drives one conversational turn. The orchestrator sends the
// running conversation and the tool catalog to the model, dispatches the
// tool calls the model requests, folds every result back into the
// conversation, and repeats until the model answers in plain text or the
// round budget runs out. Dispatch is strictly sequential in emission order;
// each tool call gets exactly one tool message before the next model call.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/lexcodex/fitcoach/backend"
	"github.com/lexcodex/fitcoach/chat"
	"github.com/lexcodex/fitcoach/llm"
	"github.com/lexcodex/fitcoach/telemetry"
	"github.com/lexcodex/fitcoach/writeback"
)

// DefaultMaxToolRounds bounds how many tool-dispatch rounds one turn may
// use before it is declared stuck.
const DefaultMaxToolRounds = 6

// Config carries the turn-level tunables.
type Config struct {
	// MaxToolRounds caps tool-dispatch rounds per turn. Zero means
	// DefaultMaxToolRounds.
	MaxToolRounds int
	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string
}

// Orchestrator runs turns against one model and one record backend. A turn
// is single-threaded; separate turns may run concurrently, isolation comes
// entirely from the record service.
type Orchestrator struct {
	Model     llm.Caller
	Backend   *backend.Client
	Config    Config
	Debug     bool
	Telemetry telemetry.Telemetry
}

// NewOrchestrator wires an orchestrator with the default configuration.
func NewOrchestrator(model llm.Caller, store *backend.Client) *Orchestrator {
	return &Orchestrator{Model: model, Backend: store}
}

// TurnResult is the outcome of one completed turn.
type TurnResult struct {
	TurnID       string
	Answer       string
	ToolsInvoked []string
	Rounds       int
	Model        string
}

// RunTurn executes one complete turn for the given user prompt: model
// calls, tool dispatches, and the final plain-text answer.
func (o *Orchestrator) RunTurn(ctx context.Context, prompt string) (*TurnResult, error) {
	turnID := uuid.NewString()
	conv := chat.NewConversation(o.systemPrompt(), prompt)
	catalog := BuildCatalog()
	maxRounds := o.maxRounds()

	o.emit(telemetry.EventTurnStart, turnID, map[string]interface{}{
		"prompt": truncate(prompt, 512),
	})

	var invoked []string
	rounds := 0
	for {
		result, err := o.Model.ChatCompletion(ctx, llm.ChatRequest{
			Messages: conv.Messages(),
			Tools:    catalog,
		})
		if err != nil {
			return nil, o.fail(turnID, rounds, fmt.Errorf("model call: %w", err))
		}
		conv.Append(result.Message)

		if len(result.Message.ToolCalls) == 0 {
			o.emit(telemetry.EventTurnEnd, turnID, map[string]interface{}{
				"rounds": rounds,
				"tools":  invoked,
				"model":  result.Model,
				"answer": truncate(result.Message.Content, 512),
			})
			return &TurnResult{
				TurnID:       turnID,
				Answer:       result.Message.Content,
				ToolsInvoked: invoked,
				Rounds:       rounds,
				Model:        result.Model,
			}, nil
		}

		if rounds >= maxRounds {
			return nil, o.fail(turnID, rounds, &RoundLimitError{Rounds: maxRounds})
		}
		rounds++
		o.logf("round %d: %d tool call(s)", rounds, len(result.Message.ToolCalls))

		for _, call := range result.Message.ToolCalls {
			invoked = append(invoked, call.Name)
			o.emit(telemetry.EventToolCall, turnID, map[string]interface{}{
				"tool": call.Name,
				"args": previewArgs(call.Args),
			})
			data, err := o.dispatch(ctx, turnID, call)
			if err != nil {
				o.emit(telemetry.EventToolResult, turnID, map[string]interface{}{
					"tool":  call.Name,
					"error": err.Error(),
				})
				return nil, o.fail(turnID, rounds, err)
			}
			o.emit(telemetry.EventToolResult, turnID, map[string]interface{}{
				"tool":    call.Name,
				"success": data["success"],
			})
			conv.Append(chat.ToolMessage(call, encodeResult(data)))
		}
	}
}

// dispatch runs one tool call and returns the data for its tool message.
// A non-nil error aborts the whole turn.
func (o *Orchestrator) dispatch(ctx context.Context, turnID string, call chat.ToolCall) (map[string]interface{}, error) {
	switch {
	case call.Name == ToolQueryUserData:
		return o.queryUserData(ctx, call), nil
	case call.Name == ToolDelegateGenerate:
		return o.delegateGenerate(ctx, call)
	case writeback.IsWritebackTool(call.Name):
		return o.commitWriteback(ctx, turnID, call)
	}
	o.logf("unknown tool %q requested", call.Name)
	return failure("unknown tool"), nil
}

func (o *Orchestrator) queryUserData(ctx context.Context, call chat.ToolCall) map[string]interface{} {
	resource := stringArg(call.Args, "resource")
	if resource == "" {
		return failure("missing resource")
	}
	if !backend.IsResource(resource) {
		return failure("unsupported")
	}
	rows, err := o.Backend.ListRecords(ctx, resource, backend.ReadOptions{
		Limit: intArg(call.Args, "limit"),
		Date:  stringArg(call.Args, "date"),
		From:  stringArg(call.Args, "from"),
		To:    stringArg(call.Args, "to"),
	})
	if err != nil {
		// A failed read goes back to the model as data, not as a turn
		// failure.
		return failure(err.Error())
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	return map[string]interface{}{
		"success":  true,
		"resource": resource,
		"count":    len(rows),
		"records":  rows,
	}
}

func (o *Orchestrator) delegateGenerate(ctx context.Context, call chat.ToolCall) (map[string]interface{}, error) {
	instruction := stringArg(call.Args, "instruction")
	if instruction == "" {
		return failure("missing instruction"), nil
	}
	res, err := o.Model.Generate(ctx, instruction)
	if err != nil {
		return nil, fmt.Errorf("delegate_generate: %w", err)
	}
	return map[string]interface{}{
		"success": true,
		"content": res.Message.Content,
	}, nil
}

func (o *Orchestrator) commitWriteback(ctx context.Context, turnID string, call chat.ToolCall) (map[string]interface{}, error) {
	mapped := writeback.Transform(call.Name, call.Args)
	if mapped == nil {
		return nil, &BadArgumentsError{Tool: call.Name}
	}
	o.logf("committing %s: %s", call.Name, mapped.Summary)
	outcome, err := o.Backend.Commit(ctx, backend.CommitRequest{
		TurnID:      turnID,
		Tool:        call.Name,
		Payload:     mapped.Payload,
		ContextText: mapped.Summary,
	})
	if err != nil {
		return nil, fmt.Errorf("writeback tool %s: %w", call.Name, err)
	}
	return map[string]interface{}{
		"success":  true,
		"state":    outcome.State,
		"summary":  outcome.Summary,
		"draft_id": outcome.DraftID,
	}, nil
}

func (o *Orchestrator) fail(turnID string, rounds int, err error) error {
	o.logf("turn %s failed after %d round(s): %v", turnID, rounds, err)
	o.emit(telemetry.EventTurnError, turnID, map[string]interface{}{
		"rounds": rounds,
		"error":  err.Error(),
	})
	return err
}

func (o *Orchestrator) systemPrompt() string {
	if o.Config.SystemPrompt != "" {
		return o.Config.SystemPrompt
	}
	return DefaultSystemPrompt
}

func (o *Orchestrator) maxRounds() int {
	if o.Config.MaxToolRounds > 0 {
		return o.Config.MaxToolRounds
	}
	return DefaultMaxToolRounds
}

func (o *Orchestrator) emit(eventType telemetry.EventType, turnID string, payload map[string]interface{}) {
	if o.Telemetry == nil {
		return
	}
	o.Telemetry.Emit(telemetry.New(eventType, turnID, payload))
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if !o.Debug {
		return
	}
	log.Printf("[agent] "+format, args...)
}

func failure(detail string) map[string]interface{} {
	return map[string]interface{}{"success": false, "error": detail}
}

func encodeResult(data map[string]interface{}) string {
	body, err := json.Marshal(data)
	if err != nil {
		return `{"success":false,"error":"result encoding failed"}`
	}
	return string(body)
}

func previewArgs(args map[string]interface{}) string {
	body, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return truncate(string(body), 512)
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
