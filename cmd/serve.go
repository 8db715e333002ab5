package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funding-harvester/internal/ingest"
	"github.com/sells-group/funding-harvester/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Serves the company registry, funding events, and run history over HTTP, and accepts ingestion triggers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, ingest.Options{
			CaptureRaw: cfg.Ingest.CaptureRaw,
			Parallel:   cfg.Ingest.Parallel,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(chimw.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/api/companies", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			limit := intQuery(q.Get("limit"), 100)

			var companies []model.Company
			var err error
			if search := q.Get("search"); search != "" {
				companies, err = env.Store.SearchCompaniesByName(req.Context(), search, limit)
			} else {
				var country *string
				if c := q.Get("country"); c != "" {
					country = &c
				}
				companies, err = env.Store.ListCompanies(req.Context(), country)
				if err == nil && limit > 0 && len(companies) > limit {
					companies = companies[:limit]
				}
			}
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, companies)
		})

		r.Get("/api/events", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			events, err := env.Store.ListCompanyEvents(req.Context(), model.EventFilter{
				Source:      q.Get("source"),
				FundingType: q.Get("funding_type"),
				NameQuery:   q.Get("name"),
				Limit:       intQuery(q.Get("limit"), 100),
			})
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, events)
		})

		r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
			runs, err := env.Store.ListIngestRuns(req.Context(), intQuery(req.URL.Query().Get("limit"), 50))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Post("/api/runs", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Sources     []string `json:"sources"`
				WindowYears int      `json:"window_years"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}

			sources := selectedSources(body.Sources)
			window := body.WindowYears
			if window == 0 {
				window = cfg.Ingest.WindowYears
			}

			// Ingestion runs asynchronously; the run ledger carries the outcome.
			go func() {
				start, end := ingestWindow(window)
				if _, err := env.Pipeline.RunAll(ctx, sources, start, end); err != nil {
					zap.L().Error("triggered ingestion failed", zap.Error(err))
				}
			}()

			writeJSON(w, http.StatusAccepted, map[string]any{
				"status":  "accepted",
				"sources": sources,
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func intQuery(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
