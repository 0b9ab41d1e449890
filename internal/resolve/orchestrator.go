package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"satsangstream/resolverservice/internal/domain"
	"satsangstream/resolverservice/internal/metrics"
)

const (
	resolveOperation = "resolve"

	defaultMaxResults = 5
	maxMaxResults     = 25

	// How many raw candidates to pull from a provider before scoring. The
	// archive tier does a metadata round-trip per candidate, so this stays
	// small.
	singleBestFetchLimit = 10
)

type preparedResolve struct {
	rawQuery   string
	query      NormalizedQuery
	mode       domain.ResolveMode
	maxResults int
	provider   string
}

func (p preparedResolve) cacheParams() map[string]string {
	params := map[string]string{
		"q":    p.query.Joined,
		"mode": string(p.mode),
		"n":    strconv.Itoa(p.maxResults),
	}
	if p.provider != "" {
		params["p"] = p.provider
	}
	return params
}

// Resolve runs one resolution call: cache check, then the provider pipeline.
// A cache hit short-circuits everything; concurrent identical misses collapse
// into a single provider sweep. Only a call that completes the pipeline
// writes the cache — a cancelled caller never does.
func (s *Service) Resolve(ctx context.Context, request domain.ResolveRequest) (domain.ResolveResponse, error) {
	prepared, err := s.prepareResolve(request)
	if err != nil {
		return domain.ResolveResponse{}, err
	}

	startedAt := time.Now()
	useCache := !s.cacheDisabled && !request.NoCache
	params := prepared.cacheParams()

	if useCache {
		if cached, ok := s.cacheLookup(ctx, params); ok {
			cached.Cached = true
			cached.ElapsedMS = time.Since(startedAt).Milliseconds()
			return cached, nil
		}
	}

	key := CacheKey(resolveOperation, params)
	value, err, _ := s.flight.Do(key, func() (any, error) {
		response, execErr := s.execute(ctx, prepared)
		if execErr != nil {
			return domain.ResolveResponse{}, execErr
		}
		if useCache && ctx.Err() == nil {
			s.cacheStore(params, response)
		}
		return response, nil
	})
	if err != nil {
		return domain.ResolveResponse{}, err
	}

	response, ok := value.(domain.ResolveResponse)
	if !ok {
		return domain.ResolveResponse{}, fmt.Errorf("unexpected resolution result type %T", value)
	}
	response.ElapsedMS = time.Since(startedAt).Milliseconds()
	return response, nil
}

// InvalidateCached drops any cached answer for the request, regardless of
// TTL.
func (s *Service) InvalidateCached(ctx context.Context, request domain.ResolveRequest) error {
	prepared, err := s.prepareResolve(request)
	if err != nil {
		return err
	}
	params := prepared.cacheParams()
	s.cache.Invalidate(resolveOperation, params)
	if s.redis != nil {
		return s.redis.Delete(ctx, CacheKey(resolveOperation, params))
	}
	return nil
}

func (s *Service) prepareResolve(request domain.ResolveRequest) (preparedResolve, error) {
	rawQuery := strings.TrimSpace(request.Query)
	if rawQuery == "" {
		return preparedResolve{}, ErrInvalidQuery
	}
	if len(s.providers) == 0 {
		return preparedResolve{}, ErrNoProviders
	}

	mode := domain.NormalizeMode(string(request.Mode))
	maxResults := request.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxMaxResults {
		maxResults = maxMaxResults
	}

	providerName := ""
	if mode == domain.ModeTopN {
		providerName = strings.ToLower(strings.TrimSpace(request.Provider))
		if providerName != "" {
			if _, ok := s.byName[providerName]; !ok {
				return preparedResolve{}, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
			}
		}
	}

	return preparedResolve{
		rawQuery:   rawQuery,
		query:      s.normalizer.Normalize(rawQuery),
		mode:       mode,
		maxResults: maxResults,
		provider:   providerName,
	}, nil
}

func (s *Service) execute(ctx context.Context, prepared preparedResolve) (domain.ResolveResponse, error) {
	if prepared.mode == domain.ModeTopN {
		return s.executeTopN(ctx, prepared)
	}
	return s.executeSingleBest(ctx, prepared)
}

// executeSingleBest walks the adapters in priority order and stops at the
// first one yielding a playable, positively scored candidate. Lower-priority
// adapters are never queried once an earlier one succeeds.
func (s *Service) executeSingleBest(ctx context.Context, prepared preparedResolve) (domain.ResolveResponse, error) {
	statuses := make([]domain.ProviderStatus, 0, len(s.providers))

	for _, provider := range s.providers {
		name := strings.ToLower(strings.TrimSpace(provider.Name()))

		if blocked, until, lastErr := s.isProviderBlocked(name, time.Now()); blocked {
			statuses = append(statuses, domain.ProviderStatus{
				Name:  name,
				Error: fmt.Sprintf("provider temporarily unhealthy until %s: %s", until.UTC().Format(time.RFC3339), lastErr),
			})
			continue
		}
		if err := s.waitProviderRateLimit(ctx, name); err != nil {
			statuses = append(statuses, domain.ProviderStatus{Name: name, Error: "rate limit wait cancelled"})
			continue
		}

		candidates, err := s.searchProvider(ctx, provider, prepared.query.Joined, singleBestFetchLimit, domain.ModeSingleBest)
		status := domain.ProviderStatus{Name: name, OK: err == nil, Count: len(candidates)}
		if err != nil {
			status.Error = err.Error()
			slog.Warn("provider search failed",
				slog.String("provider", name),
				slog.String("query", prepared.query.Joined),
				slog.String("error", err.Error()),
			)
		}
		statuses = append(statuses, status)
		if err != nil {
			continue
		}

		scored := s.scoreCandidates(name, prepared.query, candidates)
		if len(scored) == 0 {
			continue
		}

		best := scored[0]
		metrics.ResolutionsTotal.WithLabelValues(string(domain.ModeSingleBest), "found").Inc()
		return domain.ResolveResponse{
			Query:      prepared.rawQuery,
			Normalized: prepared.query.Joined,
			Mode:       domain.ModeSingleBest,
			Result: &domain.ResolvedResult{
				Found:    true,
				Title:    best.Title,
				Provider: name,
				Playable: best.Playable,
				Fields:   best.Fields,
			},
			Providers: statuses,
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return domain.ResolveResponse{}, err
	}

	metrics.ResolutionsTotal.WithLabelValues(string(domain.ModeSingleBest), "notfound").Inc()
	return domain.ResolveResponse{
		Query:      prepared.rawQuery,
		Normalized: prepared.query.Joined,
		Mode:       domain.ModeSingleBest,
		Result: &domain.ResolvedResult{
			Found:       false,
			Suggestions: s.popularSuggestions(ctx, defaultMaxResults),
		},
		Providers: statuses,
	}, nil
}

// executeTopN queries a single adapter and returns its candidates ranked by
// score, ties broken by the provider's own ordering.
func (s *Service) executeTopN(ctx context.Context, prepared preparedResolve) (domain.ResolveResponse, error) {
	provider := s.pickTopNProvider(prepared.provider)
	name := strings.ToLower(strings.TrimSpace(provider.Name()))

	if err := s.waitProviderRateLimit(ctx, name); err != nil {
		return domain.ResolveResponse{}, err
	}

	fetchLimit := prepared.maxResults * 3
	if fetchLimit > maxMaxResults {
		fetchLimit = maxMaxResults
	}

	candidates, err := s.searchProvider(ctx, provider, prepared.query.Joined, fetchLimit, domain.ModeTopN)
	status := domain.ProviderStatus{Name: name, OK: err == nil, Count: len(candidates)}
	if err != nil {
		status.Error = err.Error()
		slog.Warn("provider search failed",
			slog.String("provider", name),
			slog.String("query", prepared.query.Joined),
			slog.String("error", err.Error()),
		)
	}

	scored := s.scoreCandidates(name, prepared.query, candidates)
	if len(scored) > prepared.maxResults {
		scored = scored[:prepared.maxResults]
	}

	outcome := "found"
	if len(scored) == 0 {
		outcome = "notfound"
	}
	metrics.ResolutionsTotal.WithLabelValues(string(domain.ModeTopN), outcome).Inc()

	return domain.ResolveResponse{
		Query:      prepared.rawQuery,
		Normalized: prepared.query.Joined,
		Mode:       domain.ModeTopN,
		Items:      scored,
		Providers:  []domain.ProviderStatus{status},
	}, nil
}

// pickTopNProvider resolves the adapter for a ranked query. A name requested
// by the caller wins even when its breaker is open; the default path skips
// blocked adapters and falls back to the priority head only when every one is
// blocked.
func (s *Service) pickTopNProvider(named string) Provider {
	if named != "" {
		return s.byName[named]
	}
	now := time.Now()
	for _, provider := range s.providers {
		name := strings.ToLower(strings.TrimSpace(provider.Name()))
		if blocked, _, _ := s.isProviderBlocked(name, now); !blocked {
			return provider
		}
	}
	return s.providers[0]
}

// searchProvider bounds one adapter call with the per-request timeout and
// retries transient failures. Health accounting feeds the circuit breaker.
func (s *Service) searchProvider(ctx context.Context, provider Provider, query string, limit int, mode domain.ResolveMode) ([]domain.Candidate, error) {
	name := strings.ToLower(strings.TrimSpace(provider.Name()))

	callCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	search := provider.Search
	if modeSearcher, ok := provider.(ModeSearcher); ok {
		search = func(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
			return modeSearcher.SearchMode(ctx, query, limit, mode)
		}
	}

	startedAt := time.Now()
	var candidates []domain.Candidate
	err := retryTransient(callCtx, defaultRetryConfig(), func() error {
		var searchErr error
		candidates, searchErr = search(callCtx, query, limit)
		return searchErr
	})
	s.recordProviderResult(name, query, err, time.Since(startedAt), time.Now())
	return candidates, err
}

// scoreCandidates drops unusable and zero-score candidates and sorts the rest
// by score descending, then ProviderRank ascending, then title.
func (s *Service) scoreCandidates(providerName string, query NormalizedQuery, candidates []domain.Candidate) []domain.ScoredCandidate {
	scored := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		if !candidate.Playable.Usable() {
			continue
		}
		score := s.weights.Score(query, candidate)
		if score <= 0 {
			continue
		}
		scored = append(scored, domain.ScoredCandidate{
			Candidate: candidate,
			Provider:  providerName,
			Score:     score,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].ProviderRank != scored[j].ProviderRank {
			return scored[i].ProviderRank < scored[j].ProviderRank
		}
		return scored[i].Title < scored[j].Title
	})
	return scored
}

// popularSuggestions asks the first adapter that can list popular titles for
// a short hint list. Best effort; an empty list is a valid answer.
func (s *Service) popularSuggestions(ctx context.Context, limit int) []string {
	suggestions := []string{}
	for _, provider := range s.providers {
		lister, ok := provider.(PopularLister)
		if !ok {
			continue
		}

		callCtx := ctx
		if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		titles, err := lister.Popular(callCtx, limit)
		if err != nil {
			slog.Warn("popular lookup failed",
				slog.String("provider", provider.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(titles) > 0 {
			if len(titles) > limit {
				titles = titles[:limit]
			}
			return titles
		}
	}
	return suggestions
}

func (s *Service) cacheLookup(ctx context.Context, params map[string]string) (domain.ResolveResponse, bool) {
	if s.redis != nil {
		response, found, err := s.redis.Get(ctx, CacheKey(resolveOperation, params))
		if err == nil && found {
			// Keep a local copy so later lookups skip the round-trip.
			s.cache.Set(resolveOperation, params, response)
			return response, true
		}
	}

	value, found := s.cache.Get(resolveOperation, params)
	if !found {
		return domain.ResolveResponse{}, false
	}
	response, ok := value.(domain.ResolveResponse)
	if !ok {
		// A foreign value under our key degrades to a miss.
		s.cache.Invalidate(resolveOperation, params)
		return domain.ResolveResponse{}, false
	}
	return response, true
}

func (s *Service) cacheStore(params map[string]string, response domain.ResolveResponse) {
	if s.redis != nil {
		storeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.redis.Set(storeCtx, CacheKey(resolveOperation, params), response, s.cacheTTL)
	}
	s.cache.Set(resolveOperation, params, response)
}
