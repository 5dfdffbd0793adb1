package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/cinestream/internal/domain"
)

func newFakeTMDB(t *testing.T, hits int, brokenDetail int64) (*httptest.Server, *int32) {
	t.Helper()
	var detailCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/3/search/movie", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("language") != "fr-FR" {
			http.Error(w, "bad language", http.StatusBadRequest)
			return
		}
		results := make([]map[string]any, 0, hits)
		for i := 1; i <= hits; i++ {
			results = append(results, map[string]any{
				"id":            i,
				"title":         fmt.Sprintf("%s %d", r.URL.Query().Get("query"), i),
				"overview":      "",
				"release_date":  "2010-07-16",
				"poster_path":   fmt.Sprintf("/p%d.jpg", i),
				"backdrop_path": fmt.Sprintf("/b%d.jpg", i),
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	})
	mux.HandleFunc("/3/movie/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&detailCalls, 1)
		id := strings.TrimPrefix(r.URL.Path, "/3/movie/")
		if id == fmt.Sprint(brokenDetail) {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"runtime": 148,
			"genres":  []map[string]any{{"id": 28, "name": "Action"}, {"id": 878, "name": "Science Fiction"}, {"id": 1, "name": "Unknown"}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &detailCalls
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(Options{
		BaseURL:   baseURL,
		APIKey:    "key",
		Timeout:   2 * time.Second,
		RateLimit: 1000,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return c
}

func TestSearchExpandsTopResults(t *testing.T) {
	srv, detailCalls := newFakeTMDB(t, 12, 2)
	c := newTestClient(t, srv.URL+"/3")

	got, err := c.Search(context.Background(), "Inception")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != MaxResults {
		t.Fatalf("results = %d, want %d", len(got), MaxResults)
	}
	if n := atomic.LoadInt32(detailCalls); n != MaxResults {
		t.Fatalf("detail calls = %d, want %d", n, MaxResults)
	}

	first := got[0]
	if first.TMDBID != 1 || first.Title != "Inception 1" {
		t.Fatalf("first = %+v", first)
	}
	if first.Year == nil || *first.Year != 2010 {
		t.Fatalf("year = %v", first.Year)
	}
	if first.Description != "Aucune description disponible" {
		t.Fatalf("description = %q", first.Description)
	}
	if first.Poster == nil || *first.Poster != "https://image.tmdb.org/t/p/w500/p1.jpg" {
		t.Fatalf("poster = %v", first.Poster)
	}
	if first.Backdrop == nil || *first.Backdrop != "https://image.tmdb.org/t/p/original/b1.jpg" {
		t.Fatalf("backdrop = %v", first.Backdrop)
	}
	if first.Duration != "02:28:00" {
		t.Fatalf("duration = %q", first.Duration)
	}
	if strings.Join(first.Genres, ",") != "Action,Science-Fiction" {
		t.Fatalf("genres = %v", first.Genres)
	}

	degraded := got[1]
	if degraded.TMDBID != 2 || degraded.Duration != domain.DurationUnknown || len(degraded.Genres) != 0 || degraded.Backdrop != nil {
		t.Fatalf("degraded = %+v", degraded)
	}
}

func TestSearchErrors(t *testing.T) {
	srv, _ := newFakeTMDB(t, 1, 0)

	c := newTestClient(t, srv.URL+"/3")
	if _, err := c.Search(context.Background(), "   "); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}

	bad, err := NewHTTPClient(Options{BaseURL: srv.URL + "/3", APIKey: "wrong", RateLimit: 1000, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	if _, err := bad.Search(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected upstream 401 error, got %v", err)
	}

	unconfigured, err := NewHTTPClient(Options{BaseURL: srv.URL, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	if _, err := unconfigured.Search(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	if _, err := NewHTTPClient(Options{BaseURL: "not a url"}); err == nil {
		t.Fatalf("expected error for relative base url")
	}
}

func TestFormatRuntime(t *testing.T) {
	tests := map[int]string{
		-5:  domain.DurationUnknown,
		0:   domain.DurationUnknown,
		1:   "00:01:00",
		59:  "00:59:00",
		60:  "01:00:00",
		148: "02:28:00",
		600: "10:00:00",
	}
	for in, want := range tests {
		if got := FormatRuntime(in); got != want {
			t.Fatalf("FormatRuntime(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatRuntimeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("positive runtimes round-trip to minutes", prop.ForAll(
		func(minutes int) bool {
			var h, m, s int
			if _, err := fmt.Sscanf(FormatRuntime(minutes), "%d:%d:%d", &h, &m, &s); err != nil {
				return false
			}
			return s == 0 && m < 60 && h*60+m == minutes
		},
		gen.IntRange(1, 99*60+59),
	))

	properties.Property("short runtimes are eight characters", prop.ForAll(
		func(minutes int) bool {
			return len(FormatRuntime(minutes)) == len("00:00:00")
		},
		gen.IntRange(1, 99*60+59),
	))

	properties.TestingRun(t)
}

func TestGenreName(t *testing.T) {
	if name, ok := GenreName(27); !ok || name != "Horreur" {
		t.Fatalf("GenreName(27) = %q, %v", name, ok)
	}
	if _, ok := GenreName(-1); ok {
		t.Fatalf("unexpected mapping for -1")
	}
	if len(genreNames) != 19 {
		t.Fatalf("genre map has %d entries, want 19", len(genreNames))
	}
}

// TestHTTPClientSmoke runs against a live TMDB-compatible service when TMDB_URL is set.
func TestHTTPClientSmoke(t *testing.T) {
	baseURL := os.Getenv("TMDB_URL")
	if baseURL == "" {
		t.Skip("TMDB_URL not provided")
	}
	c, err := NewHTTPClient(Options{BaseURL: baseURL, APIKey: os.Getenv("TMDB_API_KEY"), Timeout: 3 * time.Second, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("create http client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	got, err := c.Search(ctx, "Inception")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("expected at least one suggestion")
	}
}
