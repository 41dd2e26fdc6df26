package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server for transcript submissions",
	Long:  "Accepts transcripts from the voice-capture app, processes them asynchronously, and serves report status and project rollups.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		shutdownDone := shutdownOnSignal(ctx, srv)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		<-shutdownDone
		return nil
	},
}

// shutdownOnSignal drains the server once ctx is canceled. The signal context
// is already dead at that point, so Shutdown gets its own deadline to let
// in-flight requests finish. The returned channel closes when the drain is
// complete.
func shutdownOnSignal(ctx context.Context, srv *http.Server) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		zap.L().Info("shutting down server")
		sdCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(sdCtx)
	}()
	return done
}

func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/reports", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ProjectID   string `json:"project_id"`
			SubmitterID string `json:"submitter_id"`
			ReportDate  string `json:"report_date"`
			Transcript  string `json:"transcript"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.ProjectID == "" || body.SubmitterID == "" || body.Transcript == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "project_id, submitter_id and transcript are required"})
			return
		}
		date, err := time.Parse("2006-01-02", body.ReportDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "report_date must be YYYY-MM-DD"})
			return
		}

		report, err := env.Pipeline.Ingest(req.Context(), body.ProjectID, body.SubmitterID, date, body.Transcript)
		if err != nil {
			zap.L().Error("webhook ingest failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ingest failed"})
			return
		}

		// Process asynchronously; the caller polls report status. The
		// request context dies with the response, so detach from it.
		bg := context.WithoutCancel(req.Context())
		go func() {
			result, err := env.Pipeline.ProcessReport(bg, report.ID)
			if err != nil {
				zap.L().Error("webhook processing failed",
					zap.String("report_id", report.ID),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("webhook report processed",
				zap.String("report_id", report.ID),
				zap.String("status", string(result.Status)),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"report_id": report.ID,
			"status":    string(report.Status),
		})
	})

	r.Get("/reports/{reportID}", func(w http.ResponseWriter, req *http.Request) {
		report, err := env.Store.GetReport(req.Context(), chi.URLParam(req, "reportID"))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
			return
		}
		if report == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	r.Post("/reports/{reportID}/process", func(w http.ResponseWriter, req *http.Request) {
		result, err := env.Pipeline.ProcessReport(req.Context(), chi.URLParam(req, "reportID"))
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Get("/projects/{projectID}/rollup", func(w http.ResponseWriter, req *http.Request) {
		window, err := parseMonthWindow(req.URL.Query().Get("month"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "month must be YYYY-MM"})
			return
		}
		rollup, err := env.Store.GetRollup(req.Context(), chi.URLParam(req, "projectID"), window)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
			return
		}
		if rollup == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no rollup for that month"})
			return
		}
		writeJSON(w, http.StatusOK, rollup)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
