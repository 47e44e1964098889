package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kaigo-ai/carelog/internal/model"
	"github.com/kaigo-ai/carelog/internal/schema"
	"github.com/kaigo-ai/carelog/pkg/anthropic"
)

// maxBatchConcurrency limits concurrent extraction calls in batch mode.
const maxBatchConcurrency = 4

// excludedKeys are dropped from service responses before
// normalization. The model tends to dump the whole input text into
// these generic fields instead of extracting.
var excludedKeys = map[string]bool{
	"notes": true,
	"title": true,
}

// Engine runs one extraction exchange with the service and turns the
// raw response into a reviewable draft. It holds no state across calls
// beyond the client and model configuration.
type Engine struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New creates an extraction engine.
func New(client anthropic.Client, modelID string, maxTokens int64) *Engine {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Engine{client: client, model: modelID, maxTokens: maxTokens}
}

// Parse extracts a structured draft from free-form text using the
// given field schema. The schema is hydrated by the request builder;
// the response is normalized, gap-filled by the deterministic fallback
// extractor, and reconciled against the full field list. A service or
// decode failure produces no partial draft.
func (e *Engine) Parse(ctx context.Context, text string, s model.Schema) (*model.Draft, error) {
	hydrated := schema.Hydrate(s)

	req, err := BuildRequest(text, hydrated)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System:    req.System,
		Messages: []anthropic.Message{
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "engine: extraction request")
	}
	resp.Usage.LogCost(e.model, "parse")

	parsed, err := decodeResponse(resp.Text())
	if err != nil {
		return nil, err
	}

	recordType := model.CoerceRecordType(parsed.recordType)

	details := NormalizeDetails(parsed.details)
	details = ApplyFallbacks(recordType, text, details)

	// Keys recovered by the fallback extractor were not in the service
	// response; append them to the seen order so ad hoc handling stays
	// deterministic. Schema keys among them sort into place anyway.
	order := parsed.order
	for key := range details {
		if !containsKey(order, key) {
			order = append(order, key)
		}
	}

	draft := Reconcile(recordType, details, order, hydrated)
	draft.SuggestedDate = cleanSuggestedDate(parsed.suggestedDate)

	zap.L().Debug("engine: draft reconciled",
		zap.String("record_type", string(recordType)),
		zap.Int("fields", len(draft.Fields)),
	)
	return draft, nil
}

// ParseAll extracts drafts for multiple input lines concurrently.
// Individual failures are logged and yield a nil slot rather than
// failing the whole batch.
func (e *Engine) ParseAll(ctx context.Context, texts []string, s model.Schema) []*model.Draft {
	drafts := make([]*model.Draft, len(texts))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatchConcurrency)

	for i, text := range texts {
		g.Go(func() error {
			draft, err := e.Parse(gCtx, text, s)
			if err != nil {
				zap.L().Warn("engine: batch item failed",
					zap.Int("line", i+1),
					zap.Error(err),
				)
				return nil
			}
			drafts[i] = draft
			return nil
		})
	}

	_ = g.Wait()
	return drafts
}

// serviceResult is the decoded extraction response: the record type
// selector, the details values with their first-seen key order, and
// the optional suggested timestamp.
type serviceResult struct {
	recordType    string
	details       map[string]string
	order         []string
	suggestedDate string
}

// decodeResponse validates and decodes the raw service output. The
// top-level record_type and details fields are required; unknown keys
// inside details are kept.
func decodeResponse(text string) (*serviceResult, error) {
	cleaned := cleanJSON(text)

	var envelope struct {
		RecordType    *string         `json:"record_type"`
		Details       json.RawMessage `json:"details"`
		SuggestedDate string          `json:"suggested_date"`
	}
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, eris.Wrap(err, "engine: decode extraction response")
	}
	if envelope.RecordType == nil || len(envelope.Details) == 0 {
		return nil, eris.New("engine: extraction response missing record_type or details")
	}

	details, order, err := decodeOrderedDetails(envelope.Details)
	if err != nil {
		return nil, err
	}

	return &serviceResult{
		recordType:    *envelope.RecordType,
		details:       details,
		order:         order,
		suggestedDate: envelope.SuggestedDate,
	}, nil
}

// decodeOrderedDetails decodes the details object preserving key
// order, which encoding/json's map decoding would randomize. Non-string
// values are stringified; the excluded generic keys are dropped here.
func decodeOrderedDetails(raw json.RawMessage) (map[string]string, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, eris.Wrap(err, "engine: decode details")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, eris.New("engine: details is not an object")
	}

	details := make(map[string]string)
	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, eris.Wrap(err, "engine: decode details key")
		}
		key := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, nil, eris.Wrap(err, "engine: decode details value")
		}

		if excludedKeys[key] {
			continue
		}
		s, ok := stringifyValue(value)
		if !ok {
			continue
		}
		if _, seen := details[key]; !seen {
			order = append(order, key)
		}
		details[key] = s
	}

	return details, order, nil
}

// stringifyValue renders a decoded JSON value as the string form the
// normalizer expects. Nulls report not-ok so they are dropped.
func stringifyValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		if val {
			return "true", true
		}
		return "false", true
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
}

// cleanJSON attempts to extract a JSON object from text that may
// contain markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// cleanSuggestedDate drops the null markers the service emits for an
// absent suggested date.
func cleanSuggestedDate(s string) string {
	if isNullMarker(s) {
		return ""
	}
	return s
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
