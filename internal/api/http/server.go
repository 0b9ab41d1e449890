package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"satsangstream/resolverservice/internal/domain"
	"satsangstream/resolverservice/internal/resolve"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ResolveService interface {
	Resolve(ctx context.Context, request domain.ResolveRequest) (domain.ResolveResponse, error)
	InvalidateCached(ctx context.Context, request domain.ResolveRequest) error
	Providers() []domain.ProviderInfo
	ProviderDiagnostics() []domain.ProviderDiagnostics
	CacheStats() resolve.CacheStats
}

type Server struct {
	resolver ResolveService
	logger   *slog.Logger
}

const maxQueryLength = 500

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(resolver ResolveService, options ...ServerOption) *Server {
	server := &Server{
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/resolve/providers", s.handleProviders)
	mux.HandleFunc("/resolve/providers/diagnostics", s.handleProviderDiagnostics)
	mux.HandleFunc("/resolve/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/resolve/cache/invalidate", s.handleCacheInvalidate)
	mux.HandleFunc("/resolve", s.handleResolve)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "media-resolver",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolve service is not configured")
		return
	}

	request, ok := parseResolveQuery(w, r)
	if !ok {
		return
	}

	response, err := s.resolver.Resolve(r.Context(), request)
	if err != nil {
		s.logger.Warn("resolve request failed",
			slog.String("query", truncate(request.Query, 80)),
			slog.String("mode", string(request.Mode)),
			slog.String("error", err.Error()),
		)
		switch {
		case errors.Is(err, resolve.ErrInvalidQuery):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, resolve.ErrUnknownProvider):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, resolve.ErrNoProviders):
			writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "resolve failed")
		}
		return
	}

	found := response.Result != nil && response.Result.Found
	s.logger.Info("resolve completed",
		slog.String("query", truncate(request.Query, 80)),
		slog.String("mode", string(response.Mode)),
		slog.Bool("found", found || len(response.Items) > 0),
		slog.Bool("cached", response.Cached),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve/providers" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolve service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.resolver.Providers(),
	})
}

func (s *Server) handleProviderDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve/providers/diagnostics" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolve service is not configured")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.resolver.ProviderDiagnostics(),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve/cache/stats" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolve service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.resolver.CacheStats())
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/resolve/cache/invalidate" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.resolver == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "resolve service is not configured")
		return
	}

	var payload struct {
		Query      string `json:"query"`
		Mode       string `json:"mode"`
		MaxResults int    `json:"maxResults"`
		Provider   string `json:"provider"`
	}
	if err := decodeJSONBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(payload.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	err := s.resolver.InvalidateCached(r.Context(), domain.ResolveRequest{
		Query:      payload.Query,
		Mode:       domain.NormalizeMode(payload.Mode),
		MaxResults: payload.MaxResults,
		Provider:   payload.Provider,
	})
	if err != nil {
		switch {
		case errors.Is(err, resolve.ErrInvalidQuery), errors.Is(err, resolve.ErrUnknownProvider):
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", "invalidate failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func parseResolveQuery(w http.ResponseWriter, r *http.Request) (domain.ResolveRequest, bool) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return domain.ResolveRequest{}, false
	}
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return domain.ResolveRequest{}, false
	}

	maxResults, err := parsePositiveInt(r, "maxResults", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid maxResults")
		return domain.ResolveRequest{}, false
	}

	return domain.ResolveRequest{
		Query:      query,
		Mode:       domain.NormalizeMode(strings.TrimSpace(r.URL.Query().Get("mode"))),
		MaxResults: maxResults,
		Provider:   strings.ToLower(strings.TrimSpace(r.URL.Query().Get("provider"))),
		NoCache:    parseOptionalBool(r.URL.Query().Get("nocache")) || parseOptionalBool(r.URL.Query().Get("noCache")),
	}, true
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func parsePositiveInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func parseOptionalBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
