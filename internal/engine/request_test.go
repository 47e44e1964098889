package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaigo-ai/carelog/internal/model"
	"github.com/kaigo-ai/carelog/internal/schema"
)

func TestBuildRequestEmptyText(t *testing.T) {
	t.Parallel()

	_, err := BuildRequest("", schema.Defaults())
	assert.Error(t, err)

	_, err = BuildRequest("   \n", schema.Defaults())
	assert.Error(t, err)
}

func TestBuildRequestPrompt(t *testing.T) {
	t.Parallel()

	req, err := BuildRequest("全粥8割、お茶200ml", schema.Defaults())
	require.NoError(t, err)

	assert.NotEmpty(t, req.System)
	assert.Contains(t, req.Prompt, "全粥8割、お茶200ml")
	assert.Contains(t, req.Prompt, req.Instructions)
	assert.Contains(t, req.Prompt, string(req.StructuralSchema))
}

func TestBuildRequestInstructionsListAllTypes(t *testing.T) {
	t.Parallel()

	req, err := BuildRequest("テスト", schema.Defaults())
	require.NoError(t, err)

	for _, rt := range model.RecordTypes() {
		assert.Contains(t, req.Instructions, string(rt))
	}
	// Labels and descriptions travel with the keys.
	assert.Contains(t, req.Instructions, "main_dish")
	assert.Contains(t, req.Instructions, "主食内容")
	assert.Contains(t, req.Instructions, "数値のみ")
}

func TestBuildRequestIncludesCustomFields(t *testing.T) {
	t.Parallel()

	s := schema.Defaults()
	key := schema.AddField(s, model.RecordMeal, "食欲")

	req, err := BuildRequest("テスト", s)
	require.NoError(t, err)

	assert.Contains(t, req.Instructions, key)
	assert.Contains(t, req.Instructions, "食欲")
	assert.Contains(t, string(req.StructuralSchema), key)
}

func TestBuildRequestHydratesStaleSchema(t *testing.T) {
	t.Parallel()

	// A schema missing whole types still produces instructions for them.
	s := model.Schema{model.RecordMeal: schema.DefaultFields(model.RecordMeal)}

	req, err := BuildRequest("テスト", s)
	require.NoError(t, err)

	assert.Contains(t, req.Instructions, "temperature")
	assert.Contains(t, req.Instructions, "bath_type")
}

func TestBuildStructuralSchema(t *testing.T) {
	t.Parallel()

	req, err := BuildRequest("テスト", schema.Defaults())
	require.NoError(t, err)

	var decoded struct {
		Type       string `json:"type"`
		Properties struct {
			RecordType struct {
				Enum []string `json:"enum"`
			} `json:"record_type"`
			Details struct {
				Properties map[string]any `json:"properties"`
			} `json:"details"`
			SuggestedDate struct {
				Type string `json:"type"`
			} `json:"suggested_date"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	require.NoError(t, json.Unmarshal(req.StructuralSchema, &decoded))

	assert.Equal(t, "object", decoded.Type)
	assert.Equal(t, []string{"meal", "excretion", "vital", "hygiene", "other"}, decoded.Properties.RecordType.Enum)
	assert.Equal(t, []string{"record_type", "details"}, decoded.Required)
	assert.Equal(t, "string", decoded.Properties.SuggestedDate.Type)

	// details accepts the union of every known key across all types.
	for _, key := range []string{"main_dish", "excretion_type", "temperature", "bath_type", "title"} {
		assert.Contains(t, decoded.Properties.Details.Properties, key)
	}
}

func TestSchemaTypesOrdering(t *testing.T) {
	t.Parallel()

	s := schema.Defaults()
	s[model.RecordType("rehab")] = []model.FieldDefinition{{Key: "exercise", Label: "運動"}}
	s[model.RecordType("appointment")] = []model.FieldDefinition{{Key: "place", Label: "場所"}}

	types := schemaTypes(s)

	require.Len(t, types, 7)
	assert.Equal(t, model.RecordTypes(), types[:5])
	// Unknown types follow in sorted order.
	assert.Equal(t, []model.RecordType{"appointment", "rehab"}, types[5:])
}

func TestPromptForbidsExcludedFields(t *testing.T) {
	t.Parallel()

	req, err := BuildRequest("テスト", schema.Defaults())
	require.NoError(t, err)

	// The prompt carries the rule against dumping everything into
	// free-form notes/title fields.
	assert.Contains(t, req.Prompt, "禁止事項")
	assert.Contains(t, req.Prompt, "notes フィールドは使わないでください")
}
