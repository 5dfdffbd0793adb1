package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/cinestream/internal/logging"
)

type genreEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type movieEntry struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Overview     string       `json:"overview"`
	ReleaseDate  string       `json:"release_date"`
	PosterPath   string       `json:"poster_path"`
	BackdropPath string       `json:"backdrop_path"`
	Runtime      int          `json:"runtime"`
	Genres       []genreEntry `json:"genres"`
}

type searchHit struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Overview     string `json:"overview"`
	ReleaseDate  string `json:"release_date"`
	PosterPath   string `json:"poster_path"`
	BackdropPath string `json:"backdrop_path"`
}

func main() {
	var (
		port   = flag.String("port", "9098", "port to listen on")
		data   = flag.String("data", "cmd/tmdb-mock/mock-tmdb.json", "path to mock data file")
		apiKey = flag.String("api-key", "", "reject requests whose api_key differs (empty accepts any)")
	)
	flag.Parse()

	logger := logging.New("info", "console", "tmdb-mock")

	file, err := os.ReadFile(*data)
	if err != nil {
		logger.Fatal().Err(err).Msg("read mock data")
	}

	var entries []movieEntry
	if err := json.Unmarshal(file, &entries); err != nil {
		logger.Fatal().Err(err).Msg("parse mock data")
	}
	byID := make(map[int64]movieEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if *apiKey != "" && req.URL.Query().Get("api_key") != *apiKey {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"status_message": "Invalid API key"})
				return
			}
			logger.Debug().Str("path", req.URL.Path).Msg("request")
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/3/search/movie", func(w http.ResponseWriter, req *http.Request) {
		query := strings.ToLower(strings.TrimSpace(req.URL.Query().Get("query")))
		results := make([]searchHit, 0)
		if query != "" {
			for _, e := range entries {
				if strings.Contains(strings.ToLower(e.Title), query) {
					results = append(results, searchHit{
						ID:           e.ID,
						Title:        e.Title,
						Overview:     e.Overview,
						ReleaseDate:  e.ReleaseDate,
						PosterPath:   e.PosterPath,
						BackdropPath: e.BackdropPath,
					})
				}
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"page": 1, "results": results, "total_results": len(results)})
	})

	r.Get("/3/movie/{id}", func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"status_message": "The resource you requested could not be found."})
			return
		}
		entry, ok := byID[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"status_message": "The resource you requested could not be found."})
			return
		}
		writeJSON(w, http.StatusOK, entry)
	})

	addr := ":" + *port
	logger.Info().Str("addr", addr).Int("entries", len(entries)).Msg("mock tmdb listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
