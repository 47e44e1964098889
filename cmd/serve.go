package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kaigo-ai/carelog/internal/chat"
	"github.com/kaigo-ai/carelog/internal/engine"
	"github.com/kaigo-ai/carelog/internal/model"
	"github.com/kaigo-ai/carelog/internal/schema"
	"github.com/kaigo-ai/carelog/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Serves the extraction, records, settings, and chat APIs used by the web frontend.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		eng, err := initEngine()
		if err != nil {
			return err
		}
		chatSvc, err := initChat(st)
		if err != nil {
			return err
		}

		api := &apiServer{
			store:        st,
			engine:       eng,
			chat:         chatSvc,
			settingsPath: cfg.Settings.Path,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type apiServer struct {
	store        store.Store
	engine       *engine.Engine
	chat         *chat.Service
	settingsPath string
}

func (a *apiServer) router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/parse", a.handleParse)
		r.Post("/chat", a.handleChat)

		r.Route("/records", func(r chi.Router) {
			r.Get("/", a.handleListRecords)
			r.Post("/", a.handleCreateRecord)
			r.Get("/stats", a.handleStats)
			r.Put("/{id}", a.handleUpdateRecord)
			r.Delete("/{id}", a.handleDeleteRecord)
			r.Get("/{id}", a.handleGetRecord)
		})

		r.Get("/settings", a.handleGetSettings)
		r.Put("/settings", a.handleUpdateSettings)
	})

	return r
}

func (a *apiServer) handleParse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
		Save bool   `json:"save"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	s, err := schema.Load(a.settingsPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load settings")
		return
	}

	draft, err := a.engine.Parse(r.Context(), req.Text, s)
	if err != nil {
		zap.L().Error("parse failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "extraction failed")
		return
	}

	resp := struct {
		Draft  *model.Draft      `json:"draft"`
		Record *model.CareRecord `json:"record,omitempty"`
	}{Draft: draft}

	if req.Save {
		recordedAt, err := parseWhen(draft.SuggestedDate)
		if err != nil {
			recordedAt = time.Time{}
		}
		rec, err := a.store.CreateRecord(r.Context(), draft.RecordType, draft.Details(), recordedAt)
		if err != nil {
			zap.L().Error("save parsed record failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "save record")
			return
		}
		resp.Record = rec
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *apiServer) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.RecordFilter{
		Type: model.RecordType(q.Get("type")),
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}
	if v := q.Get("since"); v != "" {
		since, err := parseWhen(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		filter.Since = since
	}

	records, err := a.store.ListRecords(r.Context(), filter)
	if err != nil {
		zap.L().Error("list records failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list records")
		return
	}
	if records == nil {
		records = []model.CareRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type recordPayload struct {
	RecordType string            `json:"record_type"`
	Details    map[string]string `json:"details"`
	RecordedAt string            `json:"recorded_at"`
}

func (a *apiServer) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	recordedAt, err := parseWhen(req.RecordedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recorded_at")
		return
	}

	rec, err := a.store.CreateRecord(r.Context(), model.CoerceRecordType(req.RecordType), req.Details, recordedAt)
	if err != nil {
		zap.L().Error("create record failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "create record")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (a *apiServer) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := a.store.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		zap.L().Error("get record failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *apiServer) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req recordPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	recordedAt, err := parseWhen(req.RecordedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recorded_at")
		return
	}
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	if err := a.store.UpdateRecord(r.Context(), id, model.CoerceRecordType(req.RecordType), req.Details, recordedAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		zap.L().Error("update record failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update record")
		return
	}

	rec, err := a.store.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reload record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *apiServer) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteRecord(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		zap.L().Error("delete record failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete record")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := parseWhen(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		since = t
	}

	counts, err := a.store.CountByType(r.Context(), since)
	if err != nil {
		zap.L().Error("stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "count records")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *apiServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := a.chat.Ask(r.Context(), req.Message)
	if err != nil {
		zap.L().Error("chat failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (a *apiServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := schema.Load(a.settingsPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *apiServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var s model.Schema
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hydrated := schema.Hydrate(s)
	if err := schema.Save(a.settingsPath, hydrated); err != nil {
		zap.L().Error("save settings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save settings")
		return
	}
	writeJSON(w, http.StatusOK, hydrated)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
