package engine

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/width"
)

// narrowDigits folds full-width numerals (０-９) to ASCII digits while
// leaving everything else alone. Folding the whole string would also
// narrow katakana (コーヒー → ｺｰﾋｰ), so only decimal digits are mapped.
var narrowDigits = runes.If(runes.In(unicode.Nd), width.Fold, nil)

var (
	// unitPattern matches a bare number followed by a strippable unit:
	// volume (ml, l, cc), percent, temperature degree, counts per
	// minute, and mmHg.
	unitPattern = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(ml|l|cc|%|％|度|℃|回|分|mmhg|bpm)$`)

	// wariPattern matches the tenths-based fraction idiom (8割 = 80%).
	wariPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)割$`)
)

// NormalizeValue canonicalizes a single extracted value. Rules are
// applied in order: full-width digit folding, unit stripping, 割
// conversion (×10). Free-text values that match none of the patterns
// pass through unchanged, so food names and condition descriptions are
// never numerically mangled. The function is idempotent.
func NormalizeValue(value string) string {
	s, _, err := transform.String(narrowDigits, value)
	if err != nil {
		s = value
	}

	if m := unitPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}

	if m := wariPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return strconv.FormatFloat(n*10, 'f', -1, 64)
		}
	}

	return s
}

// NormalizeDetails canonicalizes every value of the service's raw
// details output. Values that are empty, the literal null marker, or
// normalize to empty are dropped entirely: at this stage an empty
// field is represented by absence, the reconciler re-adds schema keys
// with empty strings afterwards.
func NormalizeDetails(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		if isNullMarker(value) {
			continue
		}
		normalized := NormalizeValue(value)
		if isNullMarker(normalized) {
			continue
		}
		out[key] = normalized
	}
	return out
}

func isNullMarker(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "null", "undefined":
		return true
	}
	return false
}
