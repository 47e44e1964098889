package model

// FieldDefinition describes one named field of a record type's schema.
// Key is the stable identifier, Label the human display name, and
// Description an optional extraction hint fed verbatim to the service.
type FieldDefinition struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Schema maps each record type to its ordered field definitions. Order
// is significant: it defines display and extraction priority. Keys are
// unique within one type's list.
type Schema map[RecordType][]FieldDefinition

// Fields returns the ordered field definitions for t, or nil when the
// schema has no entry for that type.
func (s Schema) Fields(t RecordType) []FieldDefinition {
	return s[t]
}

// Field looks up a definition by key within type t. Returns nil when
// the key is not part of that type's schema.
func (s Schema) Field(t RecordType, key string) *FieldDefinition {
	for i := range s[t] {
		if s[t][i].Key == key {
			return &s[t][i]
		}
	}
	return nil
}

// Label resolves the display label for a key within type t, falling
// back to the key itself for ad hoc fields outside the schema.
func (s Schema) Label(t RecordType, key string) string {
	if f := s.Field(t, key); f != nil {
		return f.Label
	}
	return key
}

// Keys returns the ordered field keys for type t.
func (s Schema) Keys(t RecordType) []string {
	fields := s[t]
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.Key
	}
	return keys
}

// Clone returns a deep copy of the schema. Hydration and settings edits
// operate on copies so the caller's schema is never mutated in place.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	for t, fields := range s {
		cp := make([]FieldDefinition, len(fields))
		copy(cp, fields)
		out[t] = cp
	}
	return out
}
