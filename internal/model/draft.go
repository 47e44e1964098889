package model

// Provenance tags where a draft field's value came from.
type Provenance string

const (
	// ProvenanceAI marks a value filled by the extraction service or
	// the deterministic fallback extractor.
	ProvenanceAI Provenance = "ai_filled"
	// ProvenanceEmpty marks a schema field the extraction left blank.
	ProvenanceEmpty Provenance = "empty"
	// ProvenanceManual marks a value entered or edited by a human.
	ProvenanceManual Provenance = "manual"
)

// DraftField is one entry of a draft's ordered detail list.
type DraftField struct {
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Provenance Provenance `json:"provenance"`
}

// Draft is the in-progress structured result of one extraction,
// pending human review before persistence. Fields keeps schema-defined
// keys first, in schema order, followed by ad hoc keys in first-seen
// order.
type Draft struct {
	RecordType    RecordType   `json:"record_type"`
	Fields        []DraftField `json:"fields"`
	SuggestedDate string       `json:"suggested_date,omitempty"`
}

// Get returns the value for key and whether the key is present.
func (d *Draft) Get(key string) (string, bool) {
	for i := range d.Fields {
		if d.Fields[i].Key == key {
			return d.Fields[i].Value, true
		}
	}
	return "", false
}

// Set updates the value for key, tagging it manual, or appends a new
// manual entry when the key is not present yet.
func (d *Draft) Set(key, value string) {
	for i := range d.Fields {
		if d.Fields[i].Key == key {
			d.Fields[i].Value = value
			d.Fields[i].Provenance = ProvenanceManual
			return
		}
	}
	d.Fields = append(d.Fields, DraftField{Key: key, Value: value, Provenance: ProvenanceManual})
}

// Remove deletes the entry for key, preserving the order of the rest.
func (d *Draft) Remove(key string) {
	for i := range d.Fields {
		if d.Fields[i].Key == key {
			d.Fields = append(d.Fields[:i], d.Fields[i+1:]...)
			return
		}
	}
}

// Rename changes an entry's key in place, keeping its position and
// value. The entry becomes manual: a renamed key is a human decision.
func (d *Draft) Rename(oldKey, newKey string) {
	if oldKey == newKey {
		return
	}
	for i := range d.Fields {
		if d.Fields[i].Key == oldKey {
			d.Fields[i].Key = newKey
			d.Fields[i].Provenance = ProvenanceManual
			return
		}
	}
}

// Details returns the draft's non-empty values as a plain map, the
// shape handed to the record store on save. Empty fields are dropped:
// partial records are allowed, absent fields are not persisted as
// empty strings.
func (d *Draft) Details() map[string]string {
	out := make(map[string]string, len(d.Fields))
	for _, f := range d.Fields {
		if f.Value != "" {
			out[f.Key] = f.Value
		}
	}
	return out
}
