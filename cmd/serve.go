package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/export"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/quote"
)

// maxQuoteRows bounds a single POST /v1/quotes request.
const maxQuoteRows = 5000

var (
	servePort int
	serveData string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the quotation engine over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEngine(ctx, engineOptions{DataPath: serveData, UseStore: true})
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(e),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// quoteRequest is the POST /v1/quotes body.
type quoteRequest struct {
	Input       string              `json:"input,omitempty"`
	Concurrency int                 `json:"concurrency,omitempty"`
	Rows        []model.ShipmentRow `json:"rows"`
}

type incotermInfo struct {
	Code string         `json:"code"`
	Flow model.FlowType `json:"flow"`
	Legs []model.Leg    `json:"legs"`
}

func newRouter(e *engine) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"lanes":  len(e.Tables.Lanes.Lanes),
		})
	})

	r.Get("/v1/incoterms", func(w http.ResponseWriter, r *http.Request) {
		rules := e.Assembler.Incoterms()
		out := make([]incotermInfo, 0)
		for _, code := range rules.Codes() {
			plan, _ := rules.Lookup(code)
			out = append(out, incotermInfo{Code: code, Flow: plan.Flow, Legs: plan.Legs})
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Post("/v1/quotes", func(w http.ResponseWriter, r *http.Request) {
		var req quoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Rows) == 0 {
			writeError(w, http.StatusBadRequest, "rows is required")
			return
		}
		if len(req.Rows) > maxQuoteRows {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d rows per request", maxQuoteRows))
			return
		}
		for i := range req.Rows {
			if req.Rows[i].Row == 0 {
				req.Rows[i].Row = i + 1
			}
		}
		if req.Input == "" {
			req.Input = "api"
		}
		concurrency := req.Concurrency
		if concurrency <= 0 && cfg != nil {
			concurrency = cfg.Quote.Concurrency
		}

		batch, err := e.Assembler.Run(r.Context(), req.Input, req.Rows, concurrency)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "request cancelled")
			return
		}
		recordRun(r, e, batch)
		writeJSON(w, http.StatusOK, export.NewDocument(export.NewReport(req.Rows, batch)))
	})

	return r
}

func recordRun(r *http.Request, e *engine, b *quote.Batch) {
	if e.Store == nil {
		return
	}
	if err := e.Store.RecordRun(r.Context(), b.Summary); err != nil {
		zap.L().Warn("serve: record run failed",
			zap.String("run_id", b.Summary.ID),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveData, "data", "", "reference workbook")
	_ = serveCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(serveCmd)
}
