// Package engine turns free-form caregiver text into a structured
// draft record: it builds the extraction request from the active field
// schema, normalizes the service's values, recovers critical fields the
// service missed, and reconciles the result against the full field
// list.
package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/kaigo-ai/carelog/internal/model"
	"github.com/kaigo-ai/carelog/internal/schema"
)

// allKnownKeys lists every key referenced by the few-shot guidance.
// The structural schema is the union of these and all schema keys, so
// the service is never constrained to a schema narrower than what its
// own pattern matching might produce. Generic keys the model tends to
// misuse (notes, title) are deliberately absent.
var allKnownKeys = []string{
	"main_dish", "side_dish", "amount_percent", "fluid_type", "fluid_ml",
	"excretion_type", "amount", "characteristics", "incontinence",
	"temperature", "systolic_bp", "diastolic_bp", "pulse", "spo2",
	"bath_type", "skin_condition",
	"detail",
}

// systemText primes the model for care-record extraction.
const systemText = "あなたは介護記録の情報抽出専門AIです。入力テキストから情報を抽出し、指定されたJSONスキーマに厳密に従ったJSONのみを出力してください。"

const promptTemplate = `入力テキストから【必ず】以下のルールに従って情報を抽出してください。

【入力テキスト】
"%s"

%s
【絶対に守るべき抽出ルール】
1. 数値変換ルール:
   - 「8割」→ "80" (割は10倍して数値のみ)
   - 「200ml」→ "200" (単位を除去)
   - 「36.5度」→ "36.5" (単位を除去)
   - 「120/80」または「120の80」→ systolic_bp: "120", diastolic_bp: "80"

2. 食事(meal)の場合、以下を【必ず】抽出:
   - main_dish: 主食の名前（全粥、ご飯、パン等）
   - amount_percent: 摂取率（数値のみ、割は10倍）
   - fluid_type: 水分の名前（お茶、水、牛乳等）
   - fluid_ml: 水分量（数値のみ）

3. 禁止事項:
   - notes フィールドは使わないでください
   - title フィールドは使わないでください
   - 入力テキストをそのまま値にしないでください
   - 値はすべて文字列型にし、該当する情報がないフィールドはJSONに含めないでください

【抽出例】

入力: "お昼ご飯は全粥を8割、お茶を200ml飲みました"
出力:
{
  "record_type": "meal",
  "details": {
    "main_dish": "全粥",
    "amount_percent": "80",
    "fluid_type": "お茶",
    "fluid_ml": "200"
  }
}

入力: "朝食パン1枚と牛乳150cc、主食5割"
出力:
{
  "record_type": "meal",
  "details": {
    "main_dish": "パン",
    "amount_percent": "50",
    "fluid_type": "牛乳",
    "fluid_ml": "150"
  }
}

入力: "体温36.8、血圧124の78、脈72"
出力:
{
  "record_type": "vital",
  "details": {
    "temperature": "36.8",
    "systolic_bp": "124",
    "diastolic_bp": "78",
    "pulse": "72"
  }
}

入力: "14時に排尿多量、失禁あり"
出力:
{
  "record_type": "excretion",
  "details": {
    "excretion_type": "尿",
    "amount": "多量",
    "incontinence": "あり"
  }
}

【出力JSONスキーマ】
%s

上記のルール、例、スキーマに従って、入力テキストから情報を抽出してください。`

// Request is the fully built extraction contract: the user prompt with
// instructions, few-shot examples and the structural schema embedded,
// plus the system prompt.
type Request struct {
	System           string
	Prompt           string
	Instructions     string
	StructuralSchema json.RawMessage
}

// BuildRequest constructs the extraction request for text against the
// given schema. The schema is hydrated first so stale persisted
// settings never weaken the instructions. Empty input fails fast: no
// request is issued for it.
func BuildRequest(text string, s model.Schema) (*Request, error) {
	if strings.TrimSpace(text) == "" {
		return nil, eris.New("engine: empty input text")
	}

	hydrated := schema.Hydrate(s)

	instructions := buildFieldInstructions(hydrated)
	structural, err := buildStructuralSchema(hydrated)
	if err != nil {
		return nil, err
	}

	return &Request{
		System:           systemText,
		Prompt:           fmt.Sprintf(promptTemplate, text, instructions, string(structural)),
		Instructions:     instructions,
		StructuralSchema: structural,
	}, nil
}

// buildFieldInstructions renders the per-type field list: key, label
// and, when present, the extraction rule description.
func buildFieldInstructions(s model.Schema) string {
	var b strings.Builder
	b.WriteString("【抽出対象フィールド一覧】\n")

	for _, t := range schemaTypes(s) {
		fmt.Fprintf(&b, "\n### 記録タイプ: %s\n", t)
		for _, f := range s[t] {
			desc := ""
			if f.Description != "" {
				desc = fmt.Sprintf(" (抽出ルール: %s)", f.Description)
			}
			fmt.Fprintf(&b, "- キー: %q, ラベル: %q%s\n", f.Key, f.Label, desc)
		}
	}

	return b.String()
}

// buildStructuralSchema declares every known key as a string-typed
// property of the details object, union'd across all record types plus
// the few-shot keys.
func buildStructuralSchema(s model.Schema) (json.RawMessage, error) {
	props := make(map[string]any)
	for _, key := range allKnownKeys {
		props[key] = map[string]any{"type": "string"}
	}
	for _, fields := range s {
		for _, f := range fields {
			if f.Key == "record_type" || f.Key == "suggested_date" {
				continue
			}
			props[f.Key] = map[string]any{"type": "string"}
		}
	}

	types := model.RecordTypes()
	enum := make([]string, len(types))
	for i, t := range types {
		enum[i] = string(t)
	}

	structural := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"record_type":    map[string]any{"type": "string", "enum": enum},
			"details":        map[string]any{"type": "object", "properties": props},
			"suggested_date": map[string]any{"type": "string"},
		},
		"required": []string{"record_type", "details"},
	}

	data, err := json.MarshalIndent(structural, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "engine: marshal structural schema")
	}
	return data, nil
}

// schemaTypes returns the schema's record types with the built-in ones
// first in display order, then any unknown persisted types in sorted
// order, so the instruction block is deterministic.
func schemaTypes(s model.Schema) []model.RecordType {
	var out []model.RecordType
	seen := make(map[model.RecordType]bool)
	for _, t := range model.RecordTypes() {
		if _, ok := s[t]; ok {
			out = append(out, t)
			seen[t] = true
		}
	}
	var extra []string
	for t := range s {
		if !seen[t] {
			extra = append(extra, string(t))
		}
	}
	sort.Strings(extra)
	for _, t := range extra {
		out = append(out, model.RecordType(t))
	}
	return out
}
