package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/fitcoach/backend"
	"github.com/lexcodex/fitcoach/writeback"
)

func TestBuildCatalogCoversVocabulary(t *testing.T) {
	defs := BuildCatalog()
	require.Len(t, defs, 2+len(writeback.Names()))

	names := make([]string, len(defs))
	for i, def := range defs {
		require.Equal(t, "function", def.Type)
		require.NotEmpty(t, def.Function.Description, def.Function.Name)
		names[i] = def.Function.Name
	}
	require.Equal(t, ToolQueryUserData, names[0])
	require.Equal(t, ToolDelegateGenerate, names[1])
	require.Equal(t, writeback.Names(), names[2:])
}

func TestBuildCatalogQuerySchema(t *testing.T) {
	query := BuildCatalog()[0].Function
	require.Equal(t, []string{"resource"}, query.Parameters["required"])
	require.Equal(t, true, query.Parameters["additionalProperties"])

	props, ok := query.Parameters["properties"].(map[string]interface{})
	require.True(t, ok)
	resource, ok := props["resource"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, backend.Resources(), resource["enum"])
}

func TestBuildCatalogWritebackSchemasAreOpen(t *testing.T) {
	for _, def := range BuildCatalog()[2:] {
		require.Equal(t, "object", def.Function.Parameters["type"], def.Function.Name)
		require.Equal(t, true, def.Function.Parameters["additionalProperties"], def.Function.Name)
		require.NotContains(t, def.Function.Parameters, "required", def.Function.Name)
	}
}
