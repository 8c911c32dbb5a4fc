package agent

import (
	"github.com/lexcodex/fitcoach/backend"
	"github.com/lexcodex/fitcoach/llm"
	"github.com/lexcodex/fitcoach/writeback"
)

// Built-in tools that never mutate records.
const (
	ToolQueryUserData    = "query_user_data"
	ToolDelegateGenerate = "delegate_generate"
)

// BuildCatalog returns the tool catalog handed to the model: the query
// tool, the delegated-generation tool, and one entry per writeback name.
// Every schema is open; the orchestrator validates arguments, not the
// schema.
func BuildCatalog() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, 2+len(writeback.Names()))
	defs = append(defs,
		functionDef(ToolQueryUserData,
			"Read the user's stored records, newest first. Use this before updating records that need an id.",
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"resource": map[string]interface{}{
						"type": "string",
						"enum": backend.Resources(),
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "rows to return, 1-50, default 20",
					},
					"date": map[string]interface{}{
						"type":        "string",
						"description": "only rows on this date, YYYY-MM-DD",
					},
					"from": map[string]interface{}{
						"type":        "string",
						"description": "range start, inclusive, YYYY-MM-DD",
					},
					"to": map[string]interface{}{
						"type":        "string",
						"description": "range end, inclusive, YYYY-MM-DD",
					},
				},
				"required":             []string{"resource"},
				"additionalProperties": true,
			}),
		functionDef(ToolDelegateGenerate,
			"Write standalone text such as a plan draft or an explanation without touching any records. Pass the writing task as 'instruction'.",
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"instruction": map[string]interface{}{
						"type":        "string",
						"description": "what to write",
					},
				},
				"required":             []string{"instruction"},
				"additionalProperties": true,
			}),
	)
	for _, name := range writeback.Names() {
		defs = append(defs, functionDef(name, writeback.Describe(name), openSchema()))
	}
	return defs
}

func functionDef(name, description string, parameters map[string]interface{}) llm.ToolDef {
	return llm.ToolDef{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// openSchema is the argument schema shared by all writeback tools. Field
// guidance lives in the descriptions; argument checking happens in the
// transform, not here.
func openSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": true,
	}
}
