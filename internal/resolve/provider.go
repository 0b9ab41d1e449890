package resolve

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"satsangstream/resolverservice/internal/domain"
)

var (
	ErrInvalidQuery    = errors.New("query is required")
	ErrNoProviders     = errors.New("no content providers configured")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Provider wraps one external content catalog behind a uniform search
// contract. Implementations encapsulate the catalog's request shape, auth and
// response extraction, and are otherwise interchangeable. Providers never
// cache; caching is centralized in the orchestrator's Cache.
type Provider interface {
	Name() string
	Info() domain.ProviderInfo
	Search(ctx context.Context, query string, limit int) ([]domain.Candidate, error)
}

// ModeSearcher is an optional interface for providers whose upstream query
// shape depends on the resolution mode. The orchestrator prefers SearchMode
// over Search when a provider implements it.
type ModeSearcher interface {
	SearchMode(ctx context.Context, query string, limit int, mode domain.ResolveMode) ([]domain.Candidate, error)
}

// PopularLister is an optional interface for providers that can cheaply list
// popular titles. The orchestrator uses it to build suggestions when every
// provider comes up empty.
type PopularLister interface {
	Popular(ctx context.Context, limit int) ([]string, error)
}

// Service drives resolution end to end: normalize, cache check, the
// priority-ordered provider loop, scoring, and the final cache write. One
// instance lives for the process; the provider list is fixed at construction.
type Service struct {
	providers []Provider
	byName    map[string]Provider
	timeout   time.Duration

	normalizer *Normalizer
	weights    Weights

	cache         *Cache
	cacheDisabled bool
	cacheTTL      time.Duration
	redis         *RedisBackend
	flight        singleflight.Group

	limiters map[string]*rate.Limiter

	healthMu sync.Mutex
	health   map[string]*providerHealth
}

type ServiceOption func(*Service)

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func WithRedisCache(backend *RedisBackend) ServiceOption {
	return func(s *Service) {
		s.redis = backend
	}
}

func WithWeights(weights Weights) ServiceOption {
	return func(s *Service) {
		s.weights = weights
	}
}

func WithStopWords(extra ...string) ServiceOption {
	return func(s *Service) {
		s.normalizer = NewNormalizer(extra...)
	}
}

// WithProviderRateLimit caps outbound calls per provider at rps with the
// given burst.
func WithProviderRateLimit(rps float64, burst int) ServiceOption {
	return func(s *Service) {
		if rps <= 0 || burst <= 0 {
			return
		}
		for name := range s.byName {
			s.limiters[name] = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// NewService builds the orchestrator. The provider slice order is the
// fallback priority order and is immutable afterwards.
func NewService(providers []Provider, timeout time.Duration, opts ...ServiceOption) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	svc := &Service{
		timeout:    timeout,
		normalizer: NewNormalizer(),
		weights:    DefaultWeights(),
		cacheTTL:   defaultCacheTTL,
		byName:     make(map[string]Provider),
		limiters:   make(map[string]*rate.Limiter),
		health:     make(map[string]*providerHealth),
	}

	for _, provider := range providers {
		if provider == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(provider.Name()))
		if name == "" {
			continue
		}
		if _, exists := svc.byName[name]; exists {
			continue
		}
		svc.byName[name] = provider
		svc.providers = append(svc.providers, provider)
	}

	for _, opt := range opts {
		opt(svc)
	}
	svc.cache = NewCache(svc.cacheTTL)
	return svc
}

// StartBackground launches the periodic cache sweep. It stops when ctx is
// cancelled.
func (s *Service) StartBackground(ctx context.Context) {
	s.cache.StartSweeper(ctx, defaultSweepInterval)
}

// Providers lists the configured adapters in priority order.
func (s *Service) Providers() []domain.ProviderInfo {
	items := make([]domain.ProviderInfo, 0, len(s.providers))
	for _, provider := range s.providers {
		info := provider.Info()
		if info.Name == "" {
			info.Name = strings.ToLower(strings.TrimSpace(provider.Name()))
		}
		if info.Label == "" {
			info.Label = info.Name
		}
		items = append(items, info)
	}
	return items
}

// CacheStats exposes the in-memory cache counters.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

func (s *Service) waitProviderRateLimit(ctx context.Context, providerName string) error {
	limiter := s.limiters[providerName]
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
