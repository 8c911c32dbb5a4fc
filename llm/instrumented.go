package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/lexcodex/fitcoach/telemetry"
)

// InstrumentedCaller wraps a Caller and emits telemetry for prompts and
// responses. Debug mode includes full message bodies in the events;
// otherwise only clipped previews go out.
type InstrumentedCaller struct {
	Inner     Caller
	Telemetry telemetry.Telemetry
	Debug     bool
}

func NewInstrumentedCaller(inner Caller, sink telemetry.Telemetry, debug bool) *InstrumentedCaller {
	return &InstrumentedCaller{Inner: inner, Telemetry: sink, Debug: debug}
}

func (m *InstrumentedCaller) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	m.emitPrompt("chat", chatMeta(req, m.Debug))
	res, err := m.Inner.ChatCompletion(ctx, req)
	m.emitResponse("chat", res, err)
	return res, err
}

func (m *InstrumentedCaller) Generate(ctx context.Context, prompt string) (*ChatResult, error) {
	meta := map[string]interface{}{
		"prompt_chars":   len(prompt),
		"prompt_preview": clip(prompt, 1024),
	}
	if m.Debug {
		meta["prompt"] = clip(prompt, 8192)
	}
	m.emitPrompt("generate", meta)
	res, err := m.Inner.Generate(ctx, prompt)
	m.emitResponse("generate", res, err)
	return res, err
}

func chatMeta(req ChatRequest, debug bool) map[string]interface{} {
	var roles []string
	preview := make([]map[string]interface{}, 0, min(len(req.Messages), 20))
	for i, msg := range req.Messages {
		roles = append(roles, msg.Role)
		if i >= 20 {
			continue
		}
		preview = append(preview, map[string]interface{}{
			"role":    msg.Role,
			"name":    msg.Name,
			"content": clip(msg.Content, 512),
		})
	}
	toolNames := make([]string, 0, len(req.Tools))
	for _, t := range req.Tools {
		toolNames = append(toolNames, t.Function.Name)
	}
	meta := map[string]interface{}{
		"message_count":    len(req.Messages),
		"roles":            roles,
		"messages_preview": preview,
		"tool_count":       len(req.Tools),
		"tool_names":       toolNames,
	}
	if debug && len(req.Messages) > 0 {
		full := make([]map[string]interface{}, 0, len(req.Messages))
		for _, msg := range req.Messages {
			full = append(full, map[string]interface{}{
				"role":    msg.Role,
				"name":    msg.Name,
				"content": clip(msg.Content, 8192),
			})
		}
		meta["messages"] = full
	}
	return meta
}

func (m *InstrumentedCaller) emitPrompt(kind string, meta map[string]interface{}) {
	if m == nil || m.Telemetry == nil {
		return
	}
	payload := map[string]interface{}{"kind": kind}
	for k, v := range meta {
		payload[k] = v
	}
	m.Telemetry.Emit(telemetry.New(telemetry.EventModelPrompt, "", payload))
}

func (m *InstrumentedCaller) emitResponse(kind string, res *ChatResult, err error) {
	if m == nil || m.Telemetry == nil {
		return
	}
	payload := map[string]interface{}{"kind": kind}
	if res != nil {
		payload["model"] = res.Model
		payload["finish_reason"] = res.FinishReason
		payload["content_preview"] = clip(res.Message.Content, 1024)
		payload["usage"] = res.Usage
		if len(res.Message.ToolCalls) > 0 {
			calls, _ := json.Marshal(res.Message.ToolCalls)
			payload["tool_calls"] = string(calls)
		}
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	m.Telemetry.Emit(telemetry.New(telemetry.EventModelResponse, "", payload))
}

func clip(s string, max int) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
