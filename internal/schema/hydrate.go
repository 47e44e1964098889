package schema

import "github.com/kaigo-ai/carelog/internal/model"

// Hydrate reconciles a persisted, possibly user-edited schema against
// the built-in defaults so that extraction-hint metadata is never
// silently lost. For each built-in record type missing from persisted,
// the default list is substituted verbatim. For persisted fields whose
// key exists in the defaults, a missing or diverged description is
// overwritten with the default's; user-chosen keys and labels are never
// touched. Record types unknown to the defaults pass through unchanged.
//
// Hydrate is pure: it returns a new schema and never mutates persisted.
// Callers run it once when settings are loaded and again whenever the
// schema is turned into an extraction request, so stale client copies
// cannot weaken the instructions sent to the service.
func Hydrate(persisted model.Schema) model.Schema {
	if persisted == nil {
		return Defaults()
	}

	out := persisted.Clone()

	for t, defaults := range defaultFields {
		fields, ok := out[t]
		if !ok {
			cp := make([]model.FieldDefinition, len(defaults))
			copy(cp, defaults)
			out[t] = cp
			continue
		}

		byKey := make(map[string]model.FieldDefinition, len(defaults))
		for _, def := range defaults {
			byKey[def.Key] = def
		}
		for i := range fields {
			def, found := byKey[fields[i].Key]
			if !found || def.Description == "" {
				continue
			}
			if fields[i].Description != def.Description {
				fields[i].Description = def.Description
			}
		}
	}

	return out
}
