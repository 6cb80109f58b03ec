package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wallet-monitor/internal/balances"
	"wallet-monitor/internal/database"
	"wallet-monitor/internal/events"
	"wallet-monitor/internal/health"
	"wallet-monitor/internal/metrics"
	"wallet-monitor/internal/models"
	"wallet-monitor/internal/risk"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// handlerFunc is an authenticated endpoint; it returns the status it wrote
// so usage logging and metrics see the real outcome.
type handlerFunc func(w http.ResponseWriter, r *http.Request, usage *Usage) int

// Server is the API-key-gated proxy surface over the monitoring components.
type Server struct {
	Auth     *Authenticator
	Analyzer *risk.Analyzer
	Tracker  *balances.Tracker
	Bus      *events.Bus
	Logger   *zerolog.Logger
	Metrics  *metrics.MonitorMetrics

	// Store seams, overridable in tests.
	ListTracked      func(network models.Network) ([]models.TrackedWallet, error)
	TrackWallet      func(address, name string, network models.Network) (*models.TrackedWallet, error)
	UntrackWallet    func(address string, network models.Network) error
	RecentStablecoin func(limit int) ([]models.StablecoinTransfer, error)
	RecentTransfers  func(limit int, whaleOnly bool) ([]models.Transfer, error)

	httpServer *http.Server
}

func NewServer(auth *Authenticator, analyzer *risk.Analyzer, tracker *balances.Tracker, bus *events.Bus, logger *zerolog.Logger, m *metrics.MonitorMetrics) *Server {
	return &Server{
		Auth:             auth,
		Analyzer:         analyzer,
		Tracker:          tracker,
		Bus:              bus,
		Logger:           logger,
		Metrics:          m,
		ListTracked:      database.ListTrackedWallets,
		TrackWallet:      database.AddTrackedWallet,
		UntrackWallet:    database.RemoveTrackedWallet,
		RecentStablecoin: database.RecentStablecoinTransfers,
		RecentTransfers:  database.RecentTransfers,
	}
}

// Routes builds the gateway mux: the gated API endpoints, the whale event
// stream, health, and metrics.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze-wallet", s.gated("analyze-wallet", s.handleAnalyzeWallet))
	mux.HandleFunc("/api/wallet-balances", s.gated("wallet-balances", s.handleWalletBalances))
	mux.HandleFunc("/api/stablecoin-transfers", s.gated("stablecoin-transfers", s.handleStablecoinTransfers))
	mux.HandleFunc("/api/transfers", s.gated("transfers", s.handleTransfers))
	mux.HandleFunc("/api/track-wallet", s.gated("track-wallet", s.handleTrackWallet))
	mux.HandleFunc("/api/untrack-wallet", s.gated("untrack-wallet", s.handleUntrackWallet))
	mux.HandleFunc("/api/whale-feed", s.whaleFeed)
	mux.HandleFunc("/healthz", health.LivenessHandler)
	mux.HandleFunc("/readyz", health.ReadinessHandler)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// gated wraps an endpoint with method enforcement, API-key validation, rate
// limiting, usage logging, and request metrics.
func (s *Server) gated(endpoint string, next handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			status := s.respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
			s.observe(endpoint, status)
			return
		}

		key, usage, status, msg := s.Auth.Authenticate(r.Context(), r)
		if status != http.StatusOK {
			s.respondError(w, status, msg, usage)
			s.logUsage(key, endpoint, status)
			s.observe(endpoint, status)
			return
		}

		status = next(w, r, usage)
		s.logUsage(key, endpoint, status)
		s.observe(endpoint, status)
	}
}

func (s *Server) logUsage(key *database.APIKey, endpoint string, status int) {
	if key == nil {
		return
	}
	if err := s.Auth.LogUsage(key.ID, endpoint, status); err != nil {
		s.Logger.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to log API usage")
	}
}

// whaleFeed streams whale transfer events to dashboard clients as
// server-sent events. The subscription is dropped when the client
// disconnects.
func (s *Server) whaleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		status := s.respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		s.observe("whale-feed", status)
		return
	}

	key, _, status, msg := s.Auth.Authenticate(r.Context(), r)
	if status != http.StatusOK {
		s.respondError(w, status, msg, nil)
		s.logUsage(key, "whale-feed", status)
		s.observe("whale-feed", status)
		return
	}
	if s.Bus == nil {
		status := s.respondError(w, http.StatusServiceUnavailable, "live feed unavailable", nil)
		s.logUsage(key, "whale-feed", status)
		s.observe("whale-feed", status)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		status := s.respondError(w, http.StatusInternalServerError, "streaming unsupported", nil)
		s.logUsage(key, "whale-feed", status)
		s.observe("whale-feed", status)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logUsage(key, "whale-feed", http.StatusOK)
	s.observe("whale-feed", http.StatusOK)

	ch, cancel := s.Bus.Subscribe(16)
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case transfer, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(transfer)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) observe(endpoint string, status int) {
	if s.Metrics != nil {
		s.Metrics.APIRequests.WithLabelValues(endpoint, statusLabel(status)).Inc()
	}
}

// Start serves the gateway until ctx is cancelled, then drains with a short
// shutdown grace period.
func (s *Server) Start(ctx context.Context, addr string) error {
	// No write timeout: the whale feed holds its response open indefinitely.
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.Routes(),
		ReadTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info().Str("addr", addr).Msg("Gateway listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
