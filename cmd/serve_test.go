package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kaigo-ai/carelog/internal/chat"
	"github.com/kaigo-ai/carelog/internal/engine"
	"github.com/kaigo-ai/carelog/internal/model"
	"github.com/kaigo-ai/carelog/internal/store"
	"github.com/kaigo-ai/carelog/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func newTestServer(t *testing.T, client anthropic.Client) (*apiServer, store.Store) {
	t.Helper()

	dir := t.TempDir()
	st, err := store.NewSQLite(filepath.Join(dir, "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	api := &apiServer{
		store:        st,
		engine:       engine.New(client, "claude-haiku-4-5-20251001", 2048),
		chat:         chat.New(st, client, "claude-haiku-4-5-20251001", 0, 0),
		settingsPath: filepath.Join(dir, "field_settings.json"),
	}
	return api, st
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServeHealth(t *testing.T) {
	api, _ := newTestServer(t, new(mockAnthropicClient))

	rec := doJSON(t, api.router(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeRecordsCRUD(t *testing.T) {
	api, _ := newTestServer(t, new(mockAnthropicClient))
	router := api.router()

	// Create
	rec := doJSON(t, router, http.MethodPost, "/api/records", map[string]any{
		"record_type": "meal",
		"details":     map[string]string{"main_dish": "全粥", "amount_percent": "80"},
		"recorded_at": "2026-08-31T12:30",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.CareRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	// List
	rec = doJSON(t, router, http.MethodGet, "/api/records?type=meal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []model.CareRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "全粥", listed[0].Details["main_dish"])

	// Update
	rec = doJSON(t, router, http.MethodPut, "/api/records/"+created.ID, map[string]any{
		"record_type": "meal",
		"details":     map[string]string{"main_dish": "パン"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.CareRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "パン", updated.Details["main_dish"])

	// Get
	rec = doJSON(t, router, http.MethodGet, "/api/records/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Delete
	rec = doJSON(t, router, http.MethodDelete, "/api/records/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/records/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeRecordsNotFound(t *testing.T) {
	api, _ := newTestServer(t, new(mockAnthropicClient))
	router := api.router()

	rec := doJSON(t, router, http.MethodDelete, "/api/records/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/api/records/nonexistent", map[string]any{
		"record_type": "other",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeParse(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Model:   "claude-haiku-4-5-20251001",
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"record_type":"vital","details":{"temperature":"36.8度"}}`}},
	}, nil)

	api, _ := newTestServer(t, client)
	router := api.router()

	rec := doJSON(t, router, http.MethodPost, "/api/parse", map[string]any{
		"text": "体温36.8度",
		"save": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Draft  *model.Draft      `json:"draft"`
		Record *model.CareRecord `json:"record"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Draft)
	assert.Equal(t, model.RecordVital, resp.Draft.RecordType)

	v, _ := resp.Draft.Get("temperature")
	assert.Equal(t, "36.8", v)

	require.NotNil(t, resp.Record)
	assert.NotEmpty(t, resp.Record.ID)
	assert.Equal(t, "36.8", resp.Record.Details["temperature"])
}

func TestServeParseRequiresText(t *testing.T) {
	api, _ := newTestServer(t, new(mockAnthropicClient))

	rec := doJSON(t, api.router(), http.MethodPost, "/api/parse", map[string]any{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeChat(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "記録によると36.8℃です。"}},
	}, nil)

	api, _ := newTestServer(t, client)

	rec := doJSON(t, api.router(), http.MethodPost, "/api/chat", map[string]any{"message": "昨日の熱は？"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "36.8")
}

func TestServeSettings(t *testing.T) {
	api, _ := newTestServer(t, new(mockAnthropicClient))
	router := api.router()

	// Defaults come back on first read.
	rec := doJSON(t, router, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var s model.Schema
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	require.NotEmpty(t, s[model.RecordMeal])

	// Edit a label and push it back.
	s[model.RecordMeal][0].Label = "朝食の主食"
	rec = doJSON(t, router, http.MethodPut, "/api/settings", s)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, "朝食の主食", s[model.RecordMeal][0].Label)
}

func TestServeStats(t *testing.T) {
	api, st := newTestServer(t, new(mockAnthropicClient))

	_, err := st.CreateRecord(context.Background(), model.RecordMeal,
		map[string]string{"main_dish": "ご飯"}, time.Now())
	require.NoError(t, err)

	rec := doJSON(t, api.router(), http.MethodGet, "/api/records/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var counts map[model.RecordType]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, 1, counts[model.RecordMeal])
}
