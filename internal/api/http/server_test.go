package apihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"satsangstream/resolverservice/internal/domain"
	"satsangstream/resolverservice/internal/resolve"
)

type fakeResolveService struct {
	lastRequest  domain.ResolveRequest
	resolveErr   error
	invalidated  []domain.ResolveRequest
	resolveCalls int
}

func (f *fakeResolveService) Resolve(ctx context.Context, request domain.ResolveRequest) (domain.ResolveResponse, error) {
	_ = ctx
	f.resolveCalls++
	f.lastRequest = request
	if f.resolveErr != nil {
		return domain.ResolveResponse{}, f.resolveErr
	}
	return domain.ResolveResponse{
		Query:      request.Query,
		Normalized: strings.ToLower(request.Query),
		Mode:       domain.NormalizeMode(string(request.Mode)),
		Result: &domain.ResolvedResult{
			Found:    true,
			Title:    "Hare Krishna Hare Rama",
			Provider: "local",
			Playable: domain.PlayableRef{Kind: domain.PlayableAsset, Ref: "asset://1"},
		},
		Providers: []domain.ProviderStatus{{Name: "local", OK: true, Count: 1}},
		ElapsedMS: 3,
	}, nil
}

func (f *fakeResolveService) InvalidateCached(ctx context.Context, request domain.ResolveRequest) error {
	_ = ctx
	f.invalidated = append(f.invalidated, request)
	return nil
}

func (f *fakeResolveService) Providers() []domain.ProviderInfo {
	return []domain.ProviderInfo{
		{Name: "local", Label: "Local Catalog", Kind: "catalog", Enabled: true},
		{Name: "archive", Label: "Internet Archive", Kind: "audio-archive", Enabled: true},
	}
}

func (f *fakeResolveService) ProviderDiagnostics() []domain.ProviderDiagnostics {
	return []domain.ProviderDiagnostics{
		{Name: "local", Label: "Local Catalog", Kind: "catalog", Enabled: true, LastLatencyMS: 1},
	}
}

func (f *fakeResolveService) CacheStats() resolve.CacheStats {
	return resolve.CacheStats{Hits: 4, Misses: 2, Size: 3, HitRate: 2.0 / 3.0}
}

func doRequest(t *testing.T, handler http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body != "" {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	} else {
		request = httptest.NewRequest(method, target, nil)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestHandleResolve(t *testing.T) {
	service := &fakeResolveService{}
	handler := NewServer(service).Handler()

	recorder := doRequest(t, handler, http.MethodGet, "/resolve?q=krishna+bhajan&mode=top-n&maxResults=3&provider=archive&nocache=1", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}

	if service.lastRequest.Query != "krishna bhajan" {
		t.Fatalf("unexpected query %q", service.lastRequest.Query)
	}
	if service.lastRequest.Mode != domain.ModeTopN || service.lastRequest.MaxResults != 3 {
		t.Fatalf("unexpected request %#v", service.lastRequest)
	}
	if service.lastRequest.Provider != "archive" || !service.lastRequest.NoCache {
		t.Fatalf("unexpected request %#v", service.lastRequest)
	}

	var payload domain.ResolveResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Result == nil || payload.Result.Title != "Hare Krishna Hare Rama" {
		t.Fatalf("unexpected payload %#v", payload)
	}
}

func TestHandleResolveMissingQuery(t *testing.T) {
	handler := NewServer(&fakeResolveService{}).Handler()
	recorder := doRequest(t, handler, http.MethodGet, "/resolve", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestHandleResolveQueryTooLong(t *testing.T) {
	handler := NewServer(&fakeResolveService{}).Handler()
	recorder := doRequest(t, handler, http.MethodGet, "/resolve?q="+strings.Repeat("a", maxQueryLength+1), "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestHandleResolveErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid query", resolve.ErrInvalidQuery, http.StatusBadRequest},
		{"unknown provider", resolve.ErrUnknownProvider, http.StatusBadRequest},
		{"no providers", resolve.ErrNoProviders, http.StatusServiceUnavailable},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewServer(&fakeResolveService{resolveErr: tc.err}).Handler()
			recorder := doRequest(t, handler, http.MethodGet, "/resolve?q=test", "")
			if recorder.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, recorder.Code)
			}
		})
	}
}

func TestHandleResolveMethodNotAllowed(t *testing.T) {
	handler := NewServer(&fakeResolveService{}).Handler()
	recorder := doRequest(t, handler, http.MethodPost, "/resolve?q=test", "")
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestHandleProviders(t *testing.T) {
	handler := NewServer(&fakeResolveService{}).Handler()
	recorder := doRequest(t, handler, http.MethodGet, "/resolve/providers", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}

	var payload struct {
		Items []domain.ProviderInfo `json:"items"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 2 || payload.Items[0].Name != "local" {
		t.Fatalf("unexpected items %v", payload.Items)
	}
}

func TestHandleProviderDiagnostics(t *testing.T) {
	handler := NewServer(&fakeResolveService{}).Handler()
	recorder := doRequest(t, handler, http.MethodGet, "/resolve/providers/diagnostics", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "checkedAt") {
		t.Fatalf("expected checkedAt in payload: %s", recorder.Body.String())
	}
}

func TestHandleCacheStats(t *testing.T) {
	handler := NewServer(&fakeResolveService{}).Handler()
	recorder := doRequest(t, handler, http.MethodGet, "/resolve/cache/stats", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}

	var stats resolve.CacheStats
	if err := json.Unmarshal(recorder.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Hits != 4 || stats.Misses != 2 {
		t.Fatalf("unexpected stats %#v", stats)
	}
}

func TestHandleCacheInvalidate(t *testing.T) {
	service := &fakeResolveService{}
	handler := NewServer(service).Handler()

	recorder := doRequest(t, handler, http.MethodPost, "/resolve/cache/invalidate", `{"query":"krishna bhajan","mode":"top-n","provider":"archive"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(service.invalidated) != 1 || service.invalidated[0].Query != "krishna bhajan" {
		t.Fatalf("unexpected invalidations %v", service.invalidated)
	}
	if service.invalidated[0].Mode != domain.ModeTopN {
		t.Fatalf("unexpected mode %q", service.invalidated[0].Mode)
	}
}

func TestHandleCacheInvalidateMissingQuery(t *testing.T) {
	handler := NewServer(&fakeResolveService{}).Handler()
	recorder := doRequest(t, handler, http.MethodPost, "/resolve/cache/invalidate", `{}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	handler := NewServer(&fakeResolveService{}).Handler()
	recorder := doRequest(t, handler, http.MethodGet, "/health", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	handler := NewServer(&fakeResolveService{}).Handler()
	recorder := doRequest(t, handler, http.MethodGet, "/resolve/unknown", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}
