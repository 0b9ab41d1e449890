package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "satsangstream/resolverservice/internal/api/http"
	"satsangstream/resolverservice/internal/app"
	"satsangstream/resolverservice/internal/metrics"
	"satsangstream/resolverservice/internal/providers/archive"
	"satsangstream/resolverservice/internal/providers/localcatalog"
	"satsangstream/resolverservice/internal/providers/streaming"
	"satsangstream/resolverservice/internal/providers/videoplatform"
	"satsangstream/resolverservice/internal/resolve"
	"satsangstream/resolverservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "media-resolver")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "media-resolver"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.Any("providerOrder", cfg.ProviderOrder),
		slog.Bool("hasCatalogPath", strings.TrimSpace(cfg.CatalogPath) != ""),
		slog.Bool("hasStreamingToken", cfg.StreamingToken != ""),
		slog.Bool("hasVideoAPIKey", cfg.VideoAPIKey != ""),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
	)

	providers, err := buildProviders(cfg)
	if err != nil {
		logger.Error("provider setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	resolveService := resolve.NewService(providers, cfg.RequestTimeout, buildServiceOptions(cfg, logger)...)

	handler := apihttp.NewServer(resolveService, apihttp.WithLogger(logger)).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	resolveService.StartBackground(rootCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("media resolver service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("media resolver service stopped")
}

// buildProviders constructs the configured adapters in priority order.
// Unknown names in the order are rejected rather than silently skipped.
func buildProviders(cfg app.Config) ([]resolve.Provider, error) {
	newTracedClient := func() *http.Client {
		return &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	constructors := map[string]func() (resolve.Provider, error){
		"local": func() (resolve.Provider, error) {
			return localcatalog.NewProvider(localcatalog.Config{Path: cfg.CatalogPath})
		},
		"archive": func() (resolve.Provider, error) {
			return archive.NewProvider(archive.Config{
				BaseURL:   cfg.ArchiveBaseURL,
				UserAgent: cfg.UserAgent,
				Client:    newTracedClient(),
			}), nil
		},
		"streaming": func() (resolve.Provider, error) {
			return streaming.NewProvider(streaming.Config{
				BaseURL:    cfg.StreamingBaseURL,
				Token:      cfg.StreamingToken,
				Market:     cfg.StreamingMarket,
				Qualifiers: cfg.StreamingQualifiers,
				UserAgent:  cfg.UserAgent,
				Client:     newTracedClient(),
			}), nil
		},
		"video": func() (resolve.Provider, error) {
			return videoplatform.NewProvider(videoplatform.Config{
				BaseURL:        cfg.VideoBaseURL,
				APIKey:         cfg.VideoAPIKey,
				Region:         cfg.VideoRegion,
				Terms:          cfg.VideoTerms,
				DiscourseTerms: cfg.VideoDiscourseTerms,
				UserAgent:      cfg.UserAgent,
				Client:         newTracedClient(),
			}), nil
		},
	}

	providers := make([]resolve.Provider, 0, len(cfg.ProviderOrder))
	for _, name := range cfg.ProviderOrder {
		constructor, ok := constructors[name]
		if !ok {
			return nil, errors.New("unknown provider in RESOLVE_PROVIDER_ORDER: " + name)
		}
		provider, err := constructor()
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}
	return providers, nil
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildServiceOptions(cfg app.Config, logger *slog.Logger) []resolve.ServiceOption {
	var opts []resolve.ServiceOption

	if len(cfg.ExtraStopWords) > 0 {
		opts = append(opts, resolve.WithStopWords(cfg.ExtraStopWords...))
	}
	opts = append(opts, resolve.WithProviderRateLimit(float64(cfg.ProviderRPS), cfg.ProviderBurst))

	if cfg.CacheDisabled {
		opts = append(opts, resolve.WithCacheDisabled(true))
		return opts
	}

	if cfg.CacheTTL > 0 {
		opts = append(opts, resolve.WithCacheTTL(cfg.CacheTTL))
	}

	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
		opts = append(opts, resolve.WithRedisCache(resolve.NewRedisBackend(redisClient)))
	}

	return opts
}
