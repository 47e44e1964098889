package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaigo-ai/carelog/internal/model"
)

func TestHydrateNil(t *testing.T) {
	t.Parallel()

	s := Hydrate(nil)
	assert.Equal(t, Defaults(), s)
}

func TestHydrateRestoresMissingType(t *testing.T) {
	t.Parallel()

	persisted := model.Schema{
		model.RecordMeal: DefaultFields(model.RecordMeal),
	}

	s := Hydrate(persisted)

	for _, rt := range model.RecordTypes() {
		assert.NotEmpty(t, s.Fields(rt), string(rt))
	}
	assert.Equal(t, DefaultFields(model.RecordVital), s.Fields(model.RecordVital))
}

func TestHydrateRefreshesDescriptions(t *testing.T) {
	t.Parallel()

	persisted := Defaults()
	persisted[model.RecordMeal][0].Description = "stale hint"

	s := Hydrate(persisted)

	def := DefaultFields(model.RecordMeal)[0]
	assert.Equal(t, def.Description, s.Field(model.RecordMeal, def.Key).Description)
}

func TestHydratePreservesUserEdits(t *testing.T) {
	t.Parallel()

	persisted := Defaults()
	// Renamed label and a custom field must both survive hydration.
	persisted[model.RecordMeal][0].Label = "朝食の主食"
	persisted[model.RecordMeal] = append(persisted[model.RecordMeal],
		model.FieldDefinition{Key: "f_custom_abc12", Label: "食欲"})

	s := Hydrate(persisted)

	assert.Equal(t, "朝食の主食", s[model.RecordMeal][0].Label)
	custom := s.Field(model.RecordMeal, "f_custom_abc12")
	require.NotNil(t, custom)
	assert.Equal(t, "食欲", custom.Label)
}

func TestHydratePassesUnknownTypesThrough(t *testing.T) {
	t.Parallel()

	persisted := Defaults()
	persisted[model.RecordType("rehab")] = []model.FieldDefinition{
		{Key: "exercise", Label: "運動内容"},
	}

	s := Hydrate(persisted)

	require.Contains(t, s, model.RecordType("rehab"))
	assert.Equal(t, "exercise", s[model.RecordType("rehab")][0].Key)
}

func TestHydrateDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	persisted := model.Schema{
		model.RecordMeal: {
			{Key: "main_dish", Label: "主食", Description: "stale"},
		},
	}

	_ = Hydrate(persisted)

	assert.Equal(t, "stale", persisted[model.RecordMeal][0].Description)
	assert.Len(t, persisted, 1)
}
