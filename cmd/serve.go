package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborview-health/intake-cli/internal/model"
	"github.com/harborview-health/intake-cli/internal/pipeline"
	"github.com/harborview-health/intake-cli/internal/questionnaire"
	"github.com/harborview-health/intake-cli/internal/store"
	"github.com/harborview-health/intake-cli/internal/transcript"
	anthropicpkg "github.com/harborview-health/intake-cli/pkg/anthropic"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the intake HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		q, err := loadQuestionnaire()
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var red *transcript.Redactor
		if cfg.Redact.Enabled {
			if cfg.Redact.RulesPath != "" {
				red, err = transcript.NewRedactorFromFile(cfg.Redact.RulesPath)
			} else {
				red, err = transcript.NewRedactor()
			}
			if err != nil {
				return err
			}
		}

		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		api := &apiServer{
			st:       st,
			analyzer: pipeline.NewAnalyzer(q, client, cfg.Anthropic),
			index:    questionnaire.BuildIndex(questionnaire.Flatten(q)),
			redactor: red,
			baseCtx:  ctx,
			model:    cfg.Anthropic.Model,
			qSource:  cfg.Questionnaire.Path,
		}

		router := buildRouter(api, cfg.Server.CORSOrigins)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer carries the shared state behind the HTTP handlers. One
// analysis session per server: a second analyze request while one is in
// flight gets 409.
type apiServer struct {
	st       store.Store
	analyzer *pipeline.Analyzer
	index    questionnaire.Index
	redactor *transcript.Redactor
	baseCtx  context.Context
	model    string
	qSource  string

	mu       sync.Mutex
	inFlight bool
}

// buildRouter assembles the API routes with CORS applied.
func buildRouter(api *apiServer, corsOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", api.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", api.handleAnalyze)
		r.Get("/runs", api.handleListRuns)
		r.Get("/runs/{id}", api.handleGetRun)
		r.Post("/runs/{id}/select", api.handleSelect)
		r.Get("/runs/{id}/export.csv", api.handleExportCSV)
	})
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transcript string `json:"transcript"`
		Source     string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Transcript == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}

	runID, err := s.startAnalysis(r.Context(), req.Source, req.Transcript)
	if err != nil {
		var busy *pipeline.BusyError
		if errors.As(err, &busy) {
			writeError(w, http.StatusConflict, busy.Error())
			return
		}
		zap.L().Error("analyze request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start analysis")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": "accepted",
	})
}

// startAnalysis records the run, launches the extraction in the
// background, and returns the store's run ID. A second call while one
// analysis is in flight fails fast with *pipeline.BusyError.
func (s *apiServer) startAnalysis(ctx context.Context, source, text string) (string, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return "", &pipeline.BusyError{}
	}
	s.inFlight = true
	s.mu.Unlock()

	if s.redactor != nil {
		text = s.redactor.Redact(text)
	}
	if source == "" {
		source = "api"
	}

	run, err := s.st.CreateRun(ctx, model.Run{
		TranscriptSource:    source,
		TranscriptSHA256:    hashText(text),
		QuestionnaireSource: s.qSource,
		Model:               s.model,
	})
	if err != nil {
		s.finish()
		return "", eris.Wrap(err, "record run")
	}

	// Detached from the request context: the run outlives the 202.
	go s.analyze(run.ID, text)

	return run.ID, nil
}

func (s *apiServer) analyze(runID, text string) {
	defer s.finish()

	result, err := s.analyzer.Run(s.baseCtx, text)
	if err != nil {
		zap.L().Error("analysis failed", zap.String("run_id", runID), zap.Error(err))
		// Terminal status writes use a fresh context; the base context
		// may already be canceled during shutdown.
		if fErr := s.st.FailRun(context.Background(), runID, err.Error()); fErr != nil {
			zap.L().Warn("failed to record run failure", zap.Error(fErr))
		}
		return
	}

	if err := s.st.CompleteRun(context.Background(), runID, result.Answers, result.Usage, result.Duration.Milliseconds()); err != nil {
		zap.L().Warn("failed to record answers", zap.String("run_id", runID), zap.Error(err))
		return
	}

	zap.L().Info("analysis complete",
		zap.String("run_id", runID),
		zap.Int("answers", len(result.Answers)),
	)
}

func (s *apiServer) finish() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
		Source: r.URL.Query().Get("source"),
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		filter.Limit = limit
	}

	runs, err := s.st.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *apiServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	var req struct {
		Index int    `json:"index"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rs := &model.ResultSet{Entries: run.Answers}
	if err := rs.Select(req.Index, req.Value); err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusUnprocessableEntity, vErr.Error())
			return
		}
		zap.L().Error("selection failed", zap.String("run_id", run.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "selection failed")
		return
	}

	if err := s.st.UpdateRunAnswers(r.Context(), run.ID, rs.Entries); err != nil {
		zap.L().Error("update answers failed", zap.String("run_id", run.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save selection")
		return
	}

	writeJSON(w, http.StatusOK, rs.Entries)
}

func (s *apiServer) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	csvText, err := pipeline.ToCSV(s.index, &model.ResultSet{Entries: run.Answers})
	if err != nil {
		zap.L().Error("export failed", zap.String("run_id", run.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="run-%s.csv"`, run.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(csvText))
}

// lookupRun fetches the {id} run, writing the error response on failure.
func (s *apiServer) lookupRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := s.st.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		zap.L().Error("get run failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return nil, false
	}
	return run, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
