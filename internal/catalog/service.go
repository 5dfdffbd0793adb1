// Package catalog implements the public movie catalog and its admin mutations.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/cinestream/internal/domain"
	"github.com/Clark-Hu/cinestream/internal/repository"
	"github.com/Clark-Hu/cinestream/internal/videolink"
)

// MovieStore is the persistence the catalog needs. It is satisfied by
// *repository.MoviesRepository.
type MovieStore interface {
	List(ctx context.Context, filters repository.MovieListFilters) (repository.MovieListResult, error)
	IncrementViews(ctx context.Context, id string) (domain.Movie, error)
	Create(ctx context.Context, params repository.MovieCreateParams) (domain.Movie, error)
	Delete(ctx context.Context, id string) error
}

// SessionValidator resolves a session token to the administrator behind it.
type SessionValidator interface {
	Validate(token string) (domain.Identity, error)
}

// Recorder observes catalog activity.
type Recorder interface {
	MovieViewed()
	MovieCreated()
	MovieDeleted()
}

// ListFilter narrows List. Empty Search and Genre (or GenreAll) match everything.
// A zero Limit selects the default page size.
type ListFilter struct {
	Search string
	Genre  string
	Limit  int
}

// ListResult is one page of movies plus the total number of matches.
type ListResult struct {
	Movies []domain.Movie
	Total  int64
}

// Service exposes catalog operations. Mutations require a valid admin session.
type Service struct {
	movies   MovieStore
	sessions SessionValidator
	genres   domain.GenreSet
	parser   *videolink.Parser
	timeout  time.Duration
	logger   zerolog.Logger
	recorder Recorder
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithRecorder reports catalog activity to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithParser replaces the default video link parser.
func WithParser(p *videolink.Parser) Option {
	return func(s *Service) { s.parser = p }
}

// WithClock replaces time.Now, used for year validation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the catalog. timeout bounds every store call.
func NewService(movies MovieStore, sessions SessionValidator, genres domain.GenreSet, timeout time.Duration, logger zerolog.Logger, opts ...Option) (*Service, error) {
	if movies == nil || sessions == nil {
		return nil, errors.New("catalog: movie store and session validator are required")
	}
	if genres.Len() == 0 {
		return nil, errors.New("catalog: genre set is empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &Service{
		movies:   movies,
		sessions: sessions,
		genres:   genres,
		parser:   videolink.Default,
		timeout:  timeout,
		logger:   logger.With().Str("component", "catalog").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List returns movies matching filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	if filter.Limit < 0 || filter.Limit > repository.MaxListLimit {
		return ListResult{}, domain.Errorf(domain.KindInvalidRequest, "limit must be between 0 and %d", repository.MaxListLimit)
	}
	params := repository.MovieListFilters{Limit: filter.Limit}
	if filter.Search != "" {
		search := filter.Search
		params.Search = &search
	}
	if filter.Genre != "" && filter.Genre != domain.GenreAll {
		genre := filter.Genre
		params.Genre = &genre
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.movies.List(ctx, params)
	if err != nil {
		return ListResult{}, s.storeFault("list movies", err)
	}
	movies := result.Items
	if movies == nil {
		movies = []domain.Movie{}
	}
	return ListResult{Movies: movies, Total: result.Total}, nil
}

// Get returns a movie and records one view. The returned record carries the
// incremented view count.
func (s *Service) Get(ctx context.Context, id string) (domain.Movie, error) {
	id, err := parseID(id)
	if err != nil {
		return domain.Movie{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	movie, err := s.movies.IncrementViews(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Movie{}, domain.Errorf(domain.KindNotFound, "movie not found")
		}
		return domain.Movie{}, s.storeFault("get movie", err)
	}
	if s.recorder != nil {
		s.recorder.MovieViewed()
	}
	return movie, nil
}

// Create validates input and stores a new movie on behalf of the session holder.
func (s *Service) Create(ctx context.Context, sessionToken string, input CreateMovieInput) (domain.Movie, error) {
	admin, err := s.authorize(sessionToken)
	if err != nil {
		return domain.Movie{}, err
	}

	params, err := input.validate(s.genres, s.parser, s.now())
	if err != nil {
		return domain.Movie{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	movie, err := s.movies.Create(ctx, params)
	if err != nil {
		return domain.Movie{}, s.storeFault("create movie", err)
	}
	if s.recorder != nil {
		s.recorder.MovieCreated()
	}
	s.logger.Info().Str("movie_id", movie.ID).Str("admin_id", admin.ID).Str("title", movie.Title).Msg("movie created")
	return movie, nil
}

// Delete removes a movie. Deleting an unknown id reports NotFound.
func (s *Service) Delete(ctx context.Context, sessionToken, id string) error {
	admin, err := s.authorize(sessionToken)
	if err != nil {
		return err
	}
	id, err = parseID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.movies.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Errorf(domain.KindNotFound, "movie not found")
		}
		return s.storeFault("delete movie", err)
	}
	if s.recorder != nil {
		s.recorder.MovieDeleted()
	}
	s.logger.Info().Str("movie_id", id).Str("admin_id", admin.ID).Msg("movie deleted")
	return nil
}

// Genres lists the genres a movie may be filed under.
func (s *Service) Genres() []string {
	return s.genres.Names()
}

func (s *Service) authorize(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.Errorf(domain.KindUnauthorized, "authentication required")
	}
	identity, err := s.sessions.Validate(token)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnauthorized {
			return domain.Identity{}, err
		}
		return domain.Identity{}, domain.Errorf(domain.KindUnauthorized, "invalid or expired session")
	}
	return identity, nil
}

func (s *Service) storeFault(op string, err error) error {
	s.logger.Error().Err(err).Str("op", op).Msg("store failure")
	return domain.Internal("failed to "+op, err)
}

func parseID(raw string) (string, error) {
	if raw == "" {
		return "", domain.Errorf(domain.KindInvalidRequest, "movie id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", domain.Errorf(domain.KindInvalidRequest, "invalid movie id")
	}
	return id.String(), nil
}
