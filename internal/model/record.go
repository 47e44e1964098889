package model

import (
	"fmt"
	"strings"
	"time"
)

// RecordType is the category of a care observation.
type RecordType string

const (
	RecordMeal      RecordType = "meal"
	RecordExcretion RecordType = "excretion"
	RecordVital     RecordType = "vital"
	RecordHygiene   RecordType = "hygiene"
	RecordOther     RecordType = "other"
)

// recordTypeOrder fixes the display order of the built-in record types.
var recordTypeOrder = []RecordType{
	RecordMeal,
	RecordExcretion,
	RecordVital,
	RecordHygiene,
	RecordOther,
}

// recordTypeLabels maps record types to their Japanese display labels.
var recordTypeLabels = map[RecordType]string{
	RecordMeal:      "食事",
	RecordExcretion: "排泄",
	RecordVital:     "バイタル",
	RecordHygiene:   "衛生・入浴",
	RecordOther:     "その他",
}

// RecordTypes returns the built-in record types in display order.
func RecordTypes() []RecordType {
	out := make([]RecordType, len(recordTypeOrder))
	copy(out, recordTypeOrder)
	return out
}

// Valid reports whether t is one of the built-in record types.
func (t RecordType) Valid() bool {
	_, ok := recordTypeLabels[t]
	return ok
}

// Label returns the Japanese display label for t, or the raw type name
// for types outside the built-in set.
func (t RecordType) Label() string {
	if label, ok := recordTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// CoerceRecordType maps a value returned by the extraction service to a
// record type. Empty or unrecognized values fall back to RecordOther so
// a draft can always be reconciled.
func CoerceRecordType(s string) RecordType {
	t := RecordType(strings.TrimSpace(s))
	if !t.Valid() {
		return RecordOther
	}
	return t
}

// CareRecord is a finished, persisted care observation.
type CareRecord struct {
	ID         string            `json:"id,omitempty"`
	RecordType RecordType        `json:"record_type"`
	Details    map[string]string `json:"details"`
	RecordedAt time.Time         `json:"recorded_at"`
	CreatedAt  time.Time         `json:"created_at,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
}

// Summary produces a one-line display summary of the record, used by
// list views and exports.
func (r CareRecord) Summary() string {
	d := r.Details
	switch r.RecordType {
	case RecordVital:
		var parts []string
		if v := d["temperature"]; v != "" {
			parts = append(parts, v+"℃")
		}
		if v := d["systolic_bp"]; v != "" {
			dia := d["diastolic_bp"]
			if dia == "" {
				dia = "?"
			}
			parts = append(parts, fmt.Sprintf("血圧%s/%s", v, dia))
		}
		if v := d["spo2"]; v != "" {
			parts = append(parts, "SpO2 "+v+"%")
		}
		return strings.Join(parts, ", ")

	case RecordMeal:
		var parts []string
		if v := d["main_dish"]; v != "" {
			parts = append(parts, v)
		}
		if v := d["amount_percent"]; v != "" {
			parts = append(parts, v+"%")
		}
		if v := d["fluid_ml"]; v != "" {
			parts = append(parts, "水分"+v+"ml")
		}
		if len(parts) == 0 {
			return "食事記録"
		}
		return strings.Join(parts, " ")

	case RecordExcretion:
		s := strings.TrimSpace(strings.Join([]string{
			d["excretion_type"], d["amount"], d["characteristics"],
		}, " "))
		return strings.Join(strings.Fields(s), " ")

	case RecordHygiene:
		if v := d["bath_type"]; v != "" {
			return v
		}
		if v := d["notes"]; v != "" {
			return v
		}
		return "衛生ケア"

	default:
		if v := d["title"]; v != "" {
			return v
		}
		if v := d["detail"]; v != "" {
			return v
		}
		var vals []string
		for _, v := range d {
			vals = append(vals, v)
		}
		joined := strings.Join(vals, " ")
		if len([]rune(joined)) > 20 {
			joined = string([]rune(joined)[:20]) + "..."
		}
		return joined
	}
}
