// Package chat holds the conversation primitives shared by the model gateway
// and the turn orchestrator. A turn owns exactly one Conversation: messages
// are only ever appended, never rewritten, so the model always sees a
// deterministic, ordered trace of its own requested effects.
package chat

// Message roles. The wire protocol uses the lowercase strings directly.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall encodes a function invocation requested by the model.
type ToolCall struct {
	ID   string                 `json:"id,omitempty"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// Message is a single conversational turn exchanged with the model.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolMessage builds the tool-role response for one tool call. Every tool
// call in an assistant message must receive exactly one of these before the
// next model call.
func ToolMessage(call ToolCall, content string) Message {
	return Message{
		Role:       RoleTool,
		Name:       call.Name,
		ToolCallID: call.ID,
		Content:    content,
	}
}

// Conversation is the append-only message log for one turn. It has a single
// writer (the orchestrator driving the turn) and is discarded when the turn
// ends, so no locking is needed.
type Conversation struct {
	messages []Message
}

// NewConversation seeds a conversation with the system banner and the user
// prompt.
func NewConversation(system, user string) *Conversation {
	return &Conversation{
		messages: []Message{SystemMessage(system), UserMessage(user)},
	}
}

// Append adds one message to the end of the log.
func (c *Conversation) Append(msg Message) {
	c.messages = append(c.messages, msg)
}

// Messages returns a copy of the log so callers cannot mutate history.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len reports the number of messages in the log.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent message, or a zero Message for an empty log.
func (c *Conversation) Last() Message {
	if len(c.messages) == 0 {
		return Message{}
	}
	return c.messages[len(c.messages)-1]
}
