package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Clark-Hu/cinestream/internal/auth"
	"github.com/Clark-Hu/cinestream/internal/domain"
	"github.com/Clark-Hu/cinestream/internal/tmdb"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Admin     domain.Identity `json:"admin"`
	ExpiresAt string          `json:"expiresAt,omitempty"`
}

type tmdbSearchResponse struct {
	Results []tmdb.Suggestion `json:"results"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	identity, err := s.deps.Auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondDomainError(w, r, err, "Failed to authenticate")
		return
	}

	token, expiresAt, err := s.deps.Sessions.Issue(identity)
	if err != nil {
		s.respondDomainError(w, r, domain.Internal("failed to issue session", err), "Failed to authenticate")
		return
	}
	s.deps.Sessions.SetCookie(w, token, expiresAt)
	s.respondJSON(w, http.StatusOK, sessionResponse{
		Admin:     identity,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, sessionResponse{Admin: identity})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.deps.Sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTMDBSearch(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireSession(w, r); !ok {
		return
	}
	if s.deps.TMDB == nil {
		s.respondError(w, http.StatusServiceUnavailable, "UPSTREAM_ERROR", "Movie lookup is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	results, err := s.deps.TMDB.Search(r.Context(), query)
	if err != nil {
		switch {
		case errors.Is(err, tmdb.ErrInvalidQuery):
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "query is required")
		case errors.Is(err, tmdb.ErrNotConfigured):
			s.respondError(w, http.StatusServiceUnavailable, "UPSTREAM_ERROR", "Movie lookup is not configured")
		default:
			s.logger.Warn().Err(err).Str("query", query).Msg("tmdb search failed")
			s.respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Movie lookup failed")
		}
		return
	}
	if results == nil {
		results = []tmdb.Suggestion{}
	}
	s.respondJSON(w, http.StatusOK, tmdbSearchResponse{Results: results})
}

func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	identity, err := s.deps.Sessions.Validate(auth.TokenFromRequest(r))
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return domain.Identity{}, false
	}
	return identity, true
}
