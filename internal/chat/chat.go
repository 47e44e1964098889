// Package chat answers free-form questions about stored care records.
//
// Rather than a vector-search RAG setup, it injects the most recent
// records directly into the prompt as JSON. Record volumes per user are
// small enough that the model's context window holds weeks of history.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kaigo-ai/carelog/internal/model"
	"github.com/kaigo-ai/carelog/internal/store"
	"github.com/kaigo-ai/carelog/pkg/anthropic"
)

// DefaultContextRecords is how many recent records are injected into
// the prompt when no override is configured.
const DefaultContextRecords = 50

const systemPromptTemplate = `あなたは介護施設のケア記録データベースにアクセスできるAIアシスタントです。
以下のJSONデータは、直近の利用者様のケア記録（食事、排泄、バイタル、入浴など）です。
このデータを「事実」として参照し、ユーザーからの質問に日本語で答えてください。

【参照データ (直近%d件)】
%s

【回答のルール】
1. 質問に関連するデータが上記にある場合は、その具体的な日時や数値を引用して答えてください。
2. 「昨日の熱は？」「最近ご飯食べてる？」のような曖昧な質問には、データから推測される傾向や具体的な直近の値を答えてください。
3. データに記載されていないことについては「直近の記録には見当たりませんでした」と正直に答えてください。勝手に捏造しないでください。
4. 医療的な診断や助言は避け、「記録によると〜です」という客観的な報告スタイルを維持してください。
5. 回答は簡潔に、読みやすくまとめてください。`

// contextEntry is the trimmed-down record shape sent to the model.
// Create/update timestamps and ids are noise for answering questions.
type contextEntry struct {
	Type string            `json:"type"`
	Time string            `json:"time"`
	Data map[string]string `json:"data"`
}

// Service answers questions grounded in recent care records.
type Service struct {
	store          store.Store
	client         anthropic.Client
	model          string
	maxTokens      int
	contextRecords int
}

// New creates a chat Service. contextRecords <= 0 uses the default.
func New(st store.Store, client anthropic.Client, modelName string, maxTokens, contextRecords int) *Service {
	if contextRecords <= 0 {
		contextRecords = DefaultContextRecords
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Service{
		store:          st,
		client:         client,
		model:          modelName,
		maxTokens:      maxTokens,
		contextRecords: contextRecords,
	}
}

// Ask answers a single question against the most recent records.
func (s *Service) Ask(ctx context.Context, message string) (string, error) {
	if message == "" {
		return "", eris.New("chat: empty message")
	}

	records, err := s.store.ListRecords(ctx, store.RecordFilter{Limit: s.contextRecords})
	if err != nil {
		return "", eris.Wrap(err, "chat: load context records")
	}

	system, err := s.buildSystemPrompt(records)
	if err != nil {
		return "", err
	}

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: int64(s.maxTokens),
		System:    system,
		Messages: []anthropic.Message{
			{Role: "user", Content: "ユーザーの質問: " + message},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "chat: create message")
	}
	resp.Usage.LogCost(s.model, "chat")

	reply := resp.Text()
	if reply == "" {
		return "", eris.New("chat: empty response")
	}

	zap.L().Debug("chat answered",
		zap.Int("context_records", len(records)),
		zap.Int("reply_len", len(reply)))

	return reply, nil
}

func (s *Service) buildSystemPrompt(records []model.CareRecord) (string, error) {
	entries := make([]contextEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, contextEntry{
			Type: string(r.RecordType),
			Time: r.RecordedAt.Format(time.RFC3339),
			Data: r.Details,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "chat: marshal context")
	}

	return fmt.Sprintf(systemPromptTemplate, s.contextRecords, string(data)), nil
}
