package schema

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kaigo-ai/carelog/internal/model"
)

// Load reads the settings file and returns the hydrated schema. A
// missing file yields the built-in defaults. A file that cannot be
// decoded is recoverable, not fatal: the defaults are returned and a
// warning logged, so a corrupt settings file never blocks extraction.
func Load(path string) (model.Schema, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read settings %s", path)
	}

	var persisted model.Schema
	if err := json.Unmarshal(data, &persisted); err != nil {
		zap.L().Warn("schema: settings file malformed, falling back to defaults",
			zap.String("path", path),
			zap.Error(err),
		)
		return Defaults(), nil
	}

	return Hydrate(persisted), nil
}

// Save writes the schema to the settings file as JSON keyed by record
// type name, each value an ordered field array.
func Save(path string, s model.Schema) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return eris.Wrap(err, "schema: marshal settings")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "schema: write settings %s", path)
	}
	return nil
}

// SetLabel updates the display label of an existing field. The key and
// description are left alone.
func SetLabel(s model.Schema, t model.RecordType, key, label string) error {
	f := s.Field(t, key)
	if f == nil {
		return eris.Errorf("schema: no field %q in type %s", key, t)
	}
	f.Label = label
	return nil
}

// AddField appends a new field with the given label to type t and
// returns its generated key. Keys are system-generated so users only
// ever name fields in their own language; the extraction service maps
// values through the key/label pair.
func AddField(s model.Schema, t model.RecordType, label string) string {
	key := newFieldKey()
	s[t] = append(s[t], model.FieldDefinition{Key: key, Label: label})
	return key
}

// RemoveField deletes the field with the given key from type t,
// preserving the order of the remaining fields.
func RemoveField(s model.Schema, t model.RecordType, key string) error {
	fields := s[t]
	for i := range fields {
		if fields[i].Key == key {
			s[t] = append(fields[:i], fields[i+1:]...)
			return nil
		}
	}
	return eris.Errorf("schema: no field %q in type %s", key, t)
}

// Reset restores type t to its built-in default field list.
func Reset(s model.Schema, t model.RecordType) {
	s[t] = DefaultFields(t)
}

// newFieldKey generates a unique key for a user-added field.
func newFieldKey() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
	return "f_" + ts + "_" + suffix
}
