package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"satsangstream/resolverservice/internal/domain"
)

func newTestServer(t *testing.T, metadataByID map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/advancedsearch.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if !strings.Contains(q, "mediatype:(audio)") {
			t.Errorf("query missing audio mediatype filter: %q", q)
		}
		if got := r.URL.Query()["sort[]"]; len(got) != 1 || got[0] != "downloads desc" {
			t.Errorf("unexpected sort params %v", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"docs":[
			{"identifier":"bhajan-001","title":"Krishna Bhajan Sangrah","creator":"Various"},
			{"identifier":"bhajan-002","title":"Bhajan Without Audio","creator":["A","B"]}
		]}}`))
	})
	mux.HandleFunc("/metadata/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/metadata/")
		payload, ok := metadataByID[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	})
	return httptest.NewServer(mux)
}

func TestSearchReturnsPlayableItems(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"bhajan-001": `{"files":[{"name":"cover.jpg"},{"name":"track01.mp3"},{"name":"track02.mp3"}]}`,
		"bhajan-002": `{"files":[{"name":"notes.txt"}]}`,
	})
	defer server.Close()

	provider := NewProvider(Config{BaseURL: server.URL, Client: server.Client()})
	candidates, err := provider.Search(context.Background(), "krishna bhajan", 10)
	if err != nil {
		t.Fatalf("search error: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("expected the audio-less item dropped, got %d candidates", len(candidates))
	}
	got := candidates[0]
	if got.Title != "Krishna Bhajan Sangrah" || got.SourceID != "bhajan-001" {
		t.Fatalf("unexpected candidate %#v", got)
	}
	if got.Playable.Kind != domain.PlayableAsset {
		t.Fatalf("expected asset playable, got %q", got.Playable.Kind)
	}
	want := server.URL + "/download/bhajan-001/track01.mp3"
	if got.Playable.Ref != want {
		t.Fatalf("expected first mp3 %q, got %q", want, got.Playable.Ref)
	}
	if got.Fields.Artist != "Various" {
		t.Fatalf("unexpected artist %q", got.Fields.Artist)
	}
}

func TestSearchFallsBackToOgg(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"bhajan-001": `{"files":[{"name":"cover.jpg"},{"name":"track01.ogg"}]}`,
		"bhajan-002": `{"files":[]}`,
	})
	defer server.Close()

	provider := NewProvider(Config{BaseURL: server.URL, Client: server.Client()})
	candidates, err := provider.Search(context.Background(), "krishna", 10)
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(candidates) != 1 || !strings.HasSuffix(candidates[0].Playable.Ref, "track01.ogg") {
		t.Fatalf("expected ogg fallback, got %v", candidates)
	}
}

func TestSearchSkipsDocWithFailingMetadata(t *testing.T) {
	// No entry for bhajan-001, so its metadata lookup returns 404.
	server := newTestServer(t, map[string]string{
		"bhajan-002": `{"files":[{"name":"track01.mp3"}]}`,
	})
	defer server.Close()

	provider := NewProvider(Config{BaseURL: server.URL, Client: server.Client()})
	candidates, err := provider.Search(context.Background(), "krishna bhajan", 10)
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].SourceID != "bhajan-002" {
		t.Fatalf("expected the doc with failing metadata skipped, got %v", candidates)
	}
}

func TestSearchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := NewProvider(Config{BaseURL: server.URL, Client: server.Client()})
	if _, err := provider.Search(context.Background(), "krishna", 10); err == nil {
		t.Fatalf("expected error for upstream failure")
	}
}

func TestPopular(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	provider := NewProvider(Config{BaseURL: server.URL, Client: server.Client()})
	titles, err := provider.Popular(context.Background(), 5)
	if err != nil {
		t.Fatalf("popular error: %v", err)
	}
	if len(titles) != 2 || titles[0] != "Krishna Bhajan Sangrah" {
		t.Fatalf("unexpected titles %v", titles)
	}
}

func TestEscapeFileName(t *testing.T) {
	if got := escapeFileName("disc 1/track 01.mp3"); got != "disc%201/track%2001.mp3" {
		t.Fatalf("unexpected escaped name %q", got)
	}
}
