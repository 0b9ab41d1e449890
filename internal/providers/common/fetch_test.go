package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetJSONDecodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent/1.0" {
			t.Errorf("unexpected user agent %q", got)
		}
		if got := r.Header.Get("X-Custom"); got != "value" {
			t.Errorf("missing custom header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"bhajan"}`))
	}))
	defer server.Close()

	var out struct {
		Name string `json:"name"`
	}
	err := GetJSON(context.Background(), server.Client(), server.URL, "test-agent/1.0", map[string]string{"X-Custom": "value"}, &out)
	if err != nil {
		t.Fatalf("get json: %v", err)
	}
	if out.Name != "bhajan" {
		t.Fatalf("unexpected payload %#v", out)
	}
}

func TestGetJSONNon200CarriesBodyExcerpt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer server.Close()

	var out map[string]any
	err := GetJSON(context.Background(), server.Client(), server.URL, "", nil, &out)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestGetJSONMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	var out map[string]any
	if err := GetJSON(context.Background(), server.Client(), server.URL, "", nil, &out); err == nil {
		t.Fatalf("expected decode error")
	}
}
