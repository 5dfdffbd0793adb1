package catalog

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Clark-Hu/cinestream/internal/domain"
	"github.com/Clark-Hu/cinestream/internal/repository"
	"github.com/Clark-Hu/cinestream/internal/videolink"
)

// FirstFilmYear is the earliest release year accepted.
const FirstFilmYear = 1888

var durationPattern = regexp.MustCompile(`^\d{2}:[0-5]\d:[0-5]\d$`)

// CreateMovieInput is the admin form for a new movie.
type CreateMovieInput struct {
	Title       string
	Genre       string
	Year        int
	Description string
	Poster      string
	SourceLink  string
	Duration    string
}

func (in CreateMovieInput) validate(genres domain.GenreSet, parser *videolink.Parser, now time.Time) (repository.MovieCreateParams, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Description = strings.TrimSpace(in.Description)
	in.Poster = strings.TrimSpace(in.Poster)
	in.SourceLink = strings.TrimSpace(in.SourceLink)
	in.Duration = strings.TrimSpace(in.Duration)

	var missing []string
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if in.Genre == "" {
		missing = append(missing, "genre")
	}
	if in.Year == 0 {
		missing = append(missing, "year")
	}
	if in.Description == "" {
		missing = append(missing, "description")
	}
	if in.Poster == "" {
		missing = append(missing, "poster")
	}
	if in.SourceLink == "" {
		missing = append(missing, "sourceLink")
	}
	if len(missing) > 0 {
		return repository.MovieCreateParams{}, domain.Errorf(domain.KindInvalidRequest, "missing required fields: %s", strings.Join(missing, ", "))
	}

	if !genres.Contains(in.Genre) {
		return repository.MovieCreateParams{}, domain.Errorf(domain.KindInvalidRequest, "unknown genre %q", in.Genre)
	}
	if maxYear := now.Year() + 5; in.Year < FirstFilmYear || in.Year > maxYear {
		return repository.MovieCreateParams{}, domain.Errorf(domain.KindInvalidRequest, "year must be between %d and %d", FirstFilmYear, maxYear)
	}
	if !isHTTPURL(in.Poster) {
		return repository.MovieCreateParams{}, domain.Errorf(domain.KindInvalidRequest, "poster must be an http(s) URL")
	}
	if !isHTTPURL(in.SourceLink) {
		return repository.MovieCreateParams{}, domain.Errorf(domain.KindInvalidRequest, "sourceLink must be an http(s) URL")
	}
	if in.Duration != "" && in.Duration != domain.DurationUnknown && !durationPattern.MatchString(in.Duration) {
		return repository.MovieCreateParams{}, domain.Errorf(domain.KindInvalidRequest, "duration must be HH:MM:SS or %s", domain.DurationUnknown)
	}

	embedID, ok := parser.Parse(in.SourceLink)
	if !ok {
		return repository.MovieCreateParams{}, domain.Errorf(domain.KindInvalidRequest, "unrecognized video link format")
	}

	return repository.MovieCreateParams{
		Title:       in.Title,
		Genre:       in.Genre,
		Year:        in.Year,
		Description: in.Description,
		Poster:      in.Poster,
		SourceLink:  in.SourceLink,
		EmbedID:     embedID,
		Duration:    in.Duration,
	}, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
