package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/kaigo-ai/carelog/internal/chat"
	"github.com/kaigo-ai/carelog/internal/engine"
	"github.com/kaigo-ai/carelog/internal/model"
	"github.com/kaigo-ai/carelog/internal/schema"
	"github.com/kaigo-ai/carelog/internal/store"
	"github.com/kaigo-ai/carelog/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "carelog.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initClient() (anthropic.Client, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (CARELOG_ANTHROPIC_KEY)")
	}
	return anthropic.NewClient(cfg.Anthropic.Key, cfg.Anthropic.RequestsPerSec), nil
}

func initEngine() (*engine.Engine, error) {
	client, err := initClient()
	if err != nil {
		return nil, err
	}
	return engine.New(client, cfg.Anthropic.Model, int64(cfg.Anthropic.MaxTokens)), nil
}

func initChat(st store.Store) (*chat.Service, error) {
	client, err := initClient()
	if err != nil {
		return nil, err
	}
	return chat.New(st, client, cfg.Anthropic.Model, cfg.Chat.MaxTokens, cfg.Chat.ContextRecords), nil
}

func loadSchema() (model.Schema, error) {
	return schema.Load(cfg.Settings.Path)
}

// parseWhen accepts the timestamp formats users and the extraction
// service produce. Zero time means "not given".
func parseWhen(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("unrecognized timestamp: %q", s)
}
