// Package httpapi implements the HTTP Surface (C12): the webhook
// endpoint the chat transport delegates to, plus liveness and stats
// endpoints for operators. A plain net/http.ServeMux
// is enough here — the teacher's own gateway server reaches for gorilla
// websocket because it multiplexes live RPC connections, a concern this
// always-on single-operator agent doesn't have.
package httpapi

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/budget"
	"github.com/nextlevelbuilder/goclaw/internal/channels/telegram"
	"github.com/nextlevelbuilder/goclaw/internal/store"
)

const (
	maxWebhookBodyBytes = 2 << 20 // 2MiB, generous for a Telegram update payload
	healthDBTimeout = 3 * time.Second
	shutdownGrace = 5 * time.Second
)

// Server exposes the webhook delegate, a liveness probe, and an
// operator-facing stats summary, all on one ServeMux.
type Server struct {
	telegram *telegram.Channel
	db *sql.DB
	jobs store.JobStore
	ledger store.TokenLedgerStore
	budget *budget.Tracker

	webhookSecret string

	httpServer *http.Server
	mux *http.ServeMux
}

// Deps bundles everything Server needs from the composition root.
type Deps struct {
	Telegram *telegram.Channel
	DB *sql.DB
	Jobs store.JobStore
	Ledger store.TokenLedgerStore
	Budget *budget.Tracker

	Host string
	Port int
	WebhookSecret string
}

func New(d Deps) *Server {
	s := &Server{
		telegram: d.Telegram,
		db: d.DB,
		jobs: d.Jobs,
		ledger: d.Ledger,
		budget: d.Budget,
		webhookSecret: d.WebhookSecret,
	}
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST /webhook/telegram", s.handleTelegramWebhook)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)

	s.httpServer = &http.Server{
		Addr: fmt.Sprintf("%s:%d", d.Host, d.Port),
		Handler: s.mux,
	}
	return s
}

// Run listens until ctx is canceled, then shuts down gracefully (spec
// §5 "Cancellation & timeouts").
func (s *Server) Run(ctx context.Context) error {
	slog.Info("http surface starting", "addr", s.httpServer.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http surface: shutdown failed", "error", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http surface: %w", err)
	}
	return nil
}

// handleTelegramWebhook verifies the optional shared-secret header,
// responds 200 immediately, and hands the raw body to the chat
// transport for async processing — "processing is decoupled
// from the HTTP response" contract.
func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret != "" {
		got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := s.telegram.HandleUpdate(ctx, body); err != nil {
			slog.Error("http surface: webhook handling failed", "error", err)
		}
	}()
}

// handleHealth reports process liveness plus an explicit database probe,
// per original_source/src/health_server.py and its smoke tests' "database"
// field expectation.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthDBTimeout)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			dbStatus = "error"
		}
	}

	status := http.StatusOK
	body := map[string]any{
		"status": "ok",
		"database": dbStatus,
	}
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}

	writeJSON(w, status, body)
}

// handleStats reports today's job counts by status and token usage by
// scope, for operator dashboards.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobCounts, err := s.jobs.CountByStatus(ctx)
	if err != nil {
		slog.Error("http surface: stats job counts failed", "error", err)
		jobCounts = map[store.JobStatus]int{}
	}

	tokenUsage, err := s.ledger.TodayByScope(ctx)
	if err != nil {
		slog.Error("http surface: stats token usage failed", "error", err)
		tokenUsage = map[store.TokenScope]int{}
	}

	proactiveRatio, err := s.budget.UsageRatio(ctx)
	if err != nil {
		proactiveRatio = 0
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobs_today": jobCounts,
		"tokens_today": tokenUsage,
		"proactive_usage_ratio": proactiveRatio,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("http surface: encode response failed", "error", err)
	}
}
