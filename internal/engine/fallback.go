package engine

import (
	"regexp"
	"strconv"

	"github.com/kaigo-ai/carelog/internal/model"
)

// Deterministic patterns for the hand-picked set of high-value fields
// the extraction service tends to omit.
var (
	fallbackWari  = regexp.MustCompile(`(\d+)\s*割`)
	fallbackFluid = regexp.MustCompile(`(?i)(\d+)\s*(ml|cc|ミリ)`)
	fallbackDrink = regexp.MustCompile(`(お茶|水|牛乳|ジュース|コーヒー|紅茶|味噌汁|スープ)`)
	fallbackTemp  = regexp.MustCompile(`(\d+\.?\d*)\s*度`)
	fallbackBP    = regexp.MustCompile(`(\d+)\s*[/の]\s*(\d+)`)
)

// ApplyFallbacks fills fields still absent after normalization by
// pattern-matching the original input text. It is a safety net against
// extraction-service omissions, not a replacement for the service: a
// value already present is never overwritten, and types other than
// meal and vital pass through untouched.
func ApplyFallbacks(t model.RecordType, text string, details map[string]string) map[string]string {
	if details == nil {
		details = make(map[string]string)
	}

	switch t {
	case model.RecordMeal:
		if _, ok := details["amount_percent"]; !ok {
			if m := fallbackWari.FindStringSubmatch(text); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					details["amount_percent"] = strconv.Itoa(n * 10)
				}
			}
		}
		if _, ok := details["fluid_ml"]; !ok {
			if m := fallbackFluid.FindStringSubmatch(text); m != nil {
				details["fluid_ml"] = m[1]
			}
		}
		// Only name the fluid when a volume was found; a beverage word
		// alone is too weak a signal that fluid intake was recorded.
		if _, ok := details["fluid_type"]; !ok {
			if _, hasML := details["fluid_ml"]; hasML {
				if m := fallbackDrink.FindStringSubmatch(text); m != nil {
					details["fluid_type"] = m[1]
				}
			}
		}

	case model.RecordVital:
		if _, ok := details["temperature"]; !ok {
			if m := fallbackTemp.FindStringSubmatch(text); m != nil {
				details["temperature"] = m[1]
			}
		}
		_, hasSys := details["systolic_bp"]
		_, hasDia := details["diastolic_bp"]
		if !hasSys || !hasDia {
			if m := fallbackBP.FindStringSubmatch(text); m != nil {
				if !hasSys {
					details["systolic_bp"] = m[1]
				}
				if !hasDia {
					details["diastolic_bp"] = m[2]
				}
			}
		}
	}

	return details
}
