package chat

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

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

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "chat_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestAskInjectsRecentRecords(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateRecord(ctx, model.RecordVital,
		map[string]string{"temperature": "36.8"},
		time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.System, `"36.8"`) &&
			strings.Contains(req.System, "vital") &&
			len(req.Messages) == 1 &&
			strings.Contains(req.Messages[0].Content, "昨日の熱は？")
	})).Return(&anthropic.MessageResponse{
		Model:   "claude-haiku-4-5-20251001",
		Content: []anthropic.ContentBlock{{Type: "text", Text: "記録によると、8月31日の体温は36.8℃です。"}},
	}, nil)

	svc := New(st, client, "claude-haiku-4-5-20251001", 0, 0)
	reply, err := svc.Ask(ctx, "昨日の熱は？")
	require.NoError(t, err)
	assert.Contains(t, reply, "36.8")

	client.AssertExpectations(t)
}

func TestAskEmptyMessage(t *testing.T) {
	svc := New(newTestStore(t), new(mockAnthropicClient), "m", 0, 0)

	_, err := svc.Ask(context.Background(), "")
	assert.Error(t, err)
}

func TestAskEmptyResponse(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{}, nil)

	svc := New(newTestStore(t), client, "m", 0, 0)
	_, err := svc.Ask(context.Background(), "最近どう？")
	assert.Error(t, err)
}

func TestAskWorksWithNoRecords(t *testing.T) {
	client := new(mockAnthropicClient)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "直近の記録には見当たりませんでした。"}},
	}, nil)

	svc := New(newTestStore(t), client, "m", 0, 0)
	reply, err := svc.Ask(context.Background(), "昨日の入浴は？")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}
