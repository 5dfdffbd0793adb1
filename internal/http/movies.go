package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/cinestream/internal/auth"
	"github.com/Clark-Hu/cinestream/internal/catalog"
	"github.com/Clark-Hu/cinestream/internal/domain"
	"github.com/Clark-Hu/cinestream/internal/videolink"
)

type movieCreateRequest struct {
	Title       string       `json:"title"`
	Genre       string       `json:"genre"`
	Year        flexibleYear `json:"year"`
	Description string       `json:"description"`
	Poster      string       `json:"poster"`
	SourceLink  string       `json:"sourceLink"`
	UqloadLink  string       `json:"uqloadLink"`
	Duration    string       `json:"duration"`
}

type movieListResponse struct {
	Movies []movieResponse `json:"movies"`
	Total  int64           `json:"total"`
}

type movieResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Genre       string    `json:"genre"`
	Year        int       `json:"year"`
	Description string    `json:"description"`
	Poster      string    `json:"poster"`
	SourceLink  string    `json:"sourceLink"`
	EmbedID     string    `json:"embedId"`
	EmbedURL    string    `json:"embedUrl"`
	Duration    string    `json:"duration"`
	Views       int64     `json:"views"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type movieEnvelope struct {
	Movie movieResponse `json:"movie"`
}

type deleteResponse struct {
	Deleted string `json:"deleted"`
}

// flexibleYear accepts both 1999 and "1999", as HTML forms often send strings.
type flexibleYear int

type fieldError struct {
	field string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("invalid value for field %s", e.field)
}

func (y *flexibleYear) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*y = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
		if raw == "" {
			*y = 0
			return nil
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return &fieldError{field: "year"}
	}
	*y = flexibleYear(n)
	return nil
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	filter, err := buildListFilter(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.deps.Catalog.List(r.Context(), filter)
	if err != nil {
		s.respondDomainError(w, r, err, "Failed to list movies")
		return
	}

	movies := make([]movieResponse, 0, len(result.Movies))
	for _, movie := range result.Movies {
		movies = append(movies, toMovieResponse(movie))
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{Movies: movies, Total: result.Total})
}

func buildListFilter(query url.Values) (catalog.ListFilter, error) {
	var filter catalog.ListFilter

	filter.Search = strings.TrimSpace(query.Get("search"))
	filter.Genre = strings.TrimSpace(query.Get("genre"))
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit < 0 {
			return filter, fmt.Errorf("invalid limit value")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := s.deps.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondDomainError(w, r, err, "Failed to load movie")
		return
	}
	s.respondJSON(w, http.StatusOK, movieEnvelope{Movie: toMovieResponse(movie)})
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireSession(w, r); !ok {
		return
	}
	token := auth.TokenFromRequest(r)

	var req movieCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	sourceLink := req.SourceLink
	if strings.TrimSpace(sourceLink) == "" {
		sourceLink = req.UqloadLink
	}

	movie, err := s.deps.Catalog.Create(r.Context(), token, catalog.CreateMovieInput{
		Title:       req.Title,
		Genre:       req.Genre,
		Year:        int(req.Year),
		Description: req.Description,
		Poster:      req.Poster,
		SourceLink:  sourceLink,
		Duration:    req.Duration,
	})
	if err != nil {
		s.respondDomainError(w, r, err, "Failed to create movie")
		return
	}

	w.Header().Set("Location", "/movies/"+movie.ID)
	s.respondJSON(w, http.StatusCreated, movieEnvelope{Movie: toMovieResponse(movie)})
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if err := s.deps.Catalog.Delete(r.Context(), auth.TokenFromRequest(r), id); err != nil {
		s.respondDomainError(w, r, err, "Failed to delete movie")
		return
	}
	s.respondJSON(w, http.StatusOK, deleteResponse{Deleted: id})
}

func toMovieResponse(movie domain.Movie) movieResponse {
	return movieResponse{
		ID:          movie.ID,
		Title:       movie.Title,
		Genre:       movie.Genre,
		Year:        movie.Year,
		Description: movie.Description,
		Poster:      movie.Poster,
		SourceLink:  movie.SourceLink,
		EmbedID:     movie.EmbedID,
		EmbedURL:    videolink.EmbedURL(movie.EmbedID),
		Duration:    movie.Duration,
		Views:       movie.Views,
		CreatedAt:   movie.CreatedAt,
		UpdatedAt:   movie.UpdatedAt,
	}
}

var _ json.Unmarshaler = (*flexibleYear)(nil)
