package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConversationSeedsSystemAndUser(t *testing.T) {
	conv := NewConversation("you are a coach", "hi")

	msgs := conv.Messages()
	assert.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "you are a coach", msgs[0].Content)
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.Equal(t, "hi", msgs[1].Content)
}

func TestAppendPreservesOrder(t *testing.T) {
	conv := NewConversation("sys", "first")
	conv.Append(Message{Role: RoleAssistant, Content: "reply"})
	conv.Append(ToolMessage(ToolCall{ID: "call-1", Name: "user_patch"}, `{"success":true}`))

	msgs := conv.Messages()
	assert.Len(t, msgs, 4)
	assert.Equal(t, RoleAssistant, msgs[2].Role)
	assert.Equal(t, RoleTool, msgs[3].Role)
	assert.Equal(t, "call-1", msgs[3].ToolCallID)
	assert.Equal(t, "user_patch", msgs[3].Name)
	assert.Equal(t, msgs[3], conv.Last())
	assert.Equal(t, 4, conv.Len())
}

func TestMessagesReturnsCopy(t *testing.T) {
	conv := NewConversation("sys", "prompt")

	msgs := conv.Messages()
	msgs[0].Content = "tampered"

	assert.Equal(t, "sys", conv.Messages()[0].Content)
}

func TestToolMessageCarriesCallIdentity(t *testing.T) {
	call := ToolCall{ID: "abc", Name: "training_plan_set", Args: map[string]interface{}{"plan_date": "2026-08-25"}}
	msg := ToolMessage(call, `{"success":true,"state":"committed"}`)

	assert.Equal(t, RoleTool, msg.Role)
	assert.Equal(t, "abc", msg.ToolCallID)
	assert.Equal(t, "training_plan_set", msg.Name)
	assert.Empty(t, msg.ToolCalls)
}
