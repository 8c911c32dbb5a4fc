// Package telemetry records the observable lifecycle of a turn: model
// calls and retries, tool dispatches, and writeback commit progress.
// Sinks are fan-out targets; Emit must never block a turn on sink errors.
package telemetry

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

// EventType tags one lifecycle event.
type EventType string

const (
	EventTurnStart     EventType = "turn_start"
	EventTurnEnd       EventType = "turn_end"
	EventTurnError     EventType = "turn_error"
	EventModelPrompt   EventType = "model_prompt"
	EventModelResponse EventType = "model_response"
	EventModelRetry    EventType = "model_retry"
	EventToolCall      EventType = "tool_call"
	EventToolResult    EventType = "tool_result"
	EventCommitSubmit  EventType = "commit_submit"
	EventCommitPending EventType = "commit_pending"
	EventCommitResult  EventType = "commit_result"
)

// Event is one telemetry record.
type Event struct {
	Type      EventType              `json:"type"`
	TurnID    string                 `json:"turn_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// New stamps an event with the current time.
func New(eventType EventType, turnID string, payload map[string]interface{}) Event {
	return Event{
		Type:      eventType,
		TurnID:    turnID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Telemetry receives lifecycle events.
type Telemetry interface {
	Emit(event Event)
}

// NoopTelemetry drops every event.
type NoopTelemetry struct{}

func (NoopTelemetry) Emit(Event) {}

// LoggerTelemetry writes events to a standard logger.
type LoggerTelemetry struct {
	logger *log.Logger
}

func NewLoggerTelemetry(logger *log.Logger) *LoggerTelemetry {
	return &LoggerTelemetry{logger: logger}
}

func (t *LoggerTelemetry) Emit(event Event) {
	if t.logger == nil {
		return
	}
	if len(event.Payload) == 0 {
		t.logger.Printf("event=%s turn=%s", event.Type, event.TurnID)
		return
	}
	detail, err := json.Marshal(event.Payload)
	if err != nil {
		t.logger.Printf("event=%s turn=%s payload=<unencodable>", event.Type, event.TurnID)
		return
	}
	t.logger.Printf("event=%s turn=%s %s", event.Type, event.TurnID, detail)
}

// MultiplexTelemetry fans one event out to several sinks.
type MultiplexTelemetry struct {
	sinks []Telemetry
}

func NewMultiplexTelemetry(sinks ...Telemetry) *MultiplexTelemetry {
	return &MultiplexTelemetry{sinks: sinks}
}

func (t *MultiplexTelemetry) Emit(event Event) {
	for _, sink := range t.sinks {
		if sink != nil {
			sink.Emit(event)
		}
	}
}

// JSONFileTelemetry appends events to a file as JSON lines.
type JSONFileTelemetry struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

func NewJSONFileTelemetry(path string) (*JSONFileTelemetry, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONFileTelemetry{file: file, enc: json.NewEncoder(file)}, nil
}

func (t *JSONFileTelemetry) Emit(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Encode errors are swallowed; telemetry must not fail a turn.
	_ = t.enc.Encode(event)
}

func (t *JSONFileTelemetry) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}

// CaptureTelemetry buffers events in memory for inspection in tests and
// the smoke report.
type CaptureTelemetry struct {
	mu     sync.Mutex
	events []Event
}

func NewCaptureTelemetry() *CaptureTelemetry {
	return &CaptureTelemetry{}
}

func (t *CaptureTelemetry) Emit(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

// Events returns a copy of everything captured so far.
func (t *CaptureTelemetry) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Types returns just the event types, in emission order.
func (t *CaptureTelemetry) Types() []EventType {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]EventType, len(t.events))
	for i, ev := range t.events {
		out[i] = ev.Type
	}
	return out
}
