package engine

import (
	"github.com/kaigo-ai/carelog/internal/model"
)

// Reconcile merges normalized, fallback-recovered values with the full
// ordered field list for the record type. Every schema key ends up in
// the draft, filled (ai_filled) or blank (empty); extracted keys
// outside the schema are appended after the schema keys in first-seen
// order. The ordered slice is rebuilt from scratch, so duplicates
// collapse with schema order winning.
func Reconcile(t model.RecordType, extracted map[string]string, extractedOrder []string, s model.Schema) *model.Draft {
	draft := &model.Draft{RecordType: t}

	seen := make(map[string]bool)
	for _, f := range s.Fields(t) {
		if seen[f.Key] {
			continue
		}
		seen[f.Key] = true

		value, ok := extracted[f.Key]
		if ok && value != "" {
			draft.Fields = append(draft.Fields, model.DraftField{
				Key: f.Key, Value: value, Provenance: model.ProvenanceAI,
			})
		} else {
			draft.Fields = append(draft.Fields, model.DraftField{
				Key: f.Key, Provenance: model.ProvenanceEmpty,
			})
		}
	}

	for _, key := range extractedOrder {
		if seen[key] {
			continue
		}
		value, ok := extracted[key]
		if !ok || value == "" {
			continue
		}
		seen[key] = true
		draft.Fields = append(draft.Fields, model.DraftField{
			Key: key, Value: value, Provenance: model.ProvenanceAI,
		})
	}

	return draft
}

// Retype re-reconciles an existing draft against a new record type's
// schema. Values already entered survive for keys the two schemas
// share, and the new type's remaining keys are added blank; nothing
// the user typed is discarded.
func Retype(draft *model.Draft, newType model.RecordType, s model.Schema) {
	draft.RecordType = newType

	present := make(map[string]bool, len(draft.Fields))
	for _, f := range draft.Fields {
		present[f.Key] = true
	}

	// New schema keys come first; existing entries keep their slot and
	// provenance after them.
	var fields []model.DraftField
	appended := make(map[string]bool)
	for _, def := range s.Fields(newType) {
		if appended[def.Key] {
			continue
		}
		appended[def.Key] = true
		if present[def.Key] {
			for _, f := range draft.Fields {
				if f.Key == def.Key {
					fields = append(fields, f)
					break
				}
			}
		} else {
			fields = append(fields, model.DraftField{Key: def.Key, Provenance: model.ProvenanceEmpty})
		}
	}
	for _, f := range draft.Fields {
		if !appended[f.Key] {
			appended[f.Key] = true
			fields = append(fields, f)
		}
	}

	draft.Fields = fields
}
