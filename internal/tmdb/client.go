// Package tmdb looks movies up on The Movie Database to prefill the admin form.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Clark-Hu/cinestream/internal/domain"
)

const (
	// MaxResults caps how many search hits are expanded with details.
	MaxResults = 10

	posterBase    = "https://image.tmdb.org/t/p/w500"
	backdropBase  = "https://image.tmdb.org/t/p/original"
	noDescription = "Aucune description disponible"
	detailWorkers = 4
)

var (
	// ErrInvalidQuery is returned for an empty search query.
	ErrInvalidQuery = errors.New("tmdb: query is required")
	// ErrNotConfigured is returned when no API key was provided.
	ErrNotConfigured = errors.New("tmdb: api key not configured")
)

// Suggestion is a TMDB hit reshaped into the catalog's movie form.
type Suggestion struct {
	TMDBID      int64    `json:"id"`
	Title       string   `json:"title"`
	Year        *int     `json:"year"`
	Description string   `json:"description"`
	Poster      *string  `json:"poster"`
	Backdrop    *string  `json:"backdrop"`
	Duration    string   `json:"duration"`
	Genres      []string `json:"genres"`
}

// Client defines the contract for searching the upstream catalog.
type Client interface {
	Search(ctx context.Context, query string) ([]Suggestion, error)
}

// Options configures HTTPClient.
type Options struct {
	BaseURL   string
	APIKey    string
	Language  string
	Timeout   time.Duration
	RateLimit float64
	Logger    zerolog.Logger
}

// HTTPClient implements Client over the TMDB v3 REST API.
type HTTPClient struct {
	baseURL  *url.URL
	apiKey   string
	language string
	client   *http.Client
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

// NewHTTPClient constructs a rate-limited TMDB client.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	parsed, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse tmdb url: %q is not absolute", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	limit := opts.RateLimit
	if limit <= 0 {
		limit = 20
	}
	language := opts.Language
	if language == "" {
		language = "fr-FR"
	}
	return &HTTPClient{
		baseURL:  parsed,
		apiKey:   opts.APIKey,
		language: language,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(limit), int(limit)+1),
		logger:  opts.Logger.With().Str("component", "tmdb").Logger(),
	}, nil
}

// Search finds movies matching query and expands the top hits with runtime and
// genres. A failed detail lookup keeps the search-only shape for that hit.
func (c *HTTPClient) Search(ctx context.Context, query string) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	var page searchResponse
	if err := c.get(ctx, []string{"search", "movie"}, url.Values{"query": {query}}, &page); err != nil {
		return nil, err
	}

	hits := page.Results
	if len(hits) > MaxResults {
		hits = hits[:MaxResults]
	}

	out := make([]Suggestion, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailWorkers)
	for i, hit := range hits {
		i, hit := i, hit
		g.Go(func() error {
			var details movieDetails
			if err := c.get(gctx, []string{"movie", strconv.FormatInt(hit.ID, 10)}, nil, &details); err != nil {
				c.logger.Warn().Err(err).Int64("tmdb_id", hit.ID).Msg("detail lookup failed")
				out[i] = convertSearchOnly(hit)
				return nil
			}
			out[i] = convert(hit, details)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) get(ctx context.Context, path []string, params url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL.JoinPath(path...)
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("api_key", c.apiKey)
	q.Set("language", c.language)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Str("path", endpoint.Path).Msg("unexpected upstream status")
		return fmt.Errorf("tmdb: upstream returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}

type searchResponse struct {
	Results []searchHit `json:"results"`
}

type searchHit struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Overview     string `json:"overview"`
	ReleaseDate  string `json:"release_date"`
	PosterPath   string `json:"poster_path"`
	BackdropPath string `json:"backdrop_path"`
}

type movieDetails struct {
	Runtime int         `json:"runtime"`
	Genres  []genreItem `json:"genres"`
}

type genreItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func convert(hit searchHit, details movieDetails) Suggestion {
	s := convertSearchOnly(hit)
	s.Backdrop = imageURL(backdropBase, hit.BackdropPath)
	s.Duration = FormatRuntime(details.Runtime)
	for _, g := range details.Genres {
		if name, ok := GenreName(g.ID); ok {
			s.Genres = append(s.Genres, name)
		}
	}
	return s
}

func convertSearchOnly(hit searchHit) Suggestion {
	description := strings.TrimSpace(hit.Overview)
	if description == "" {
		description = noDescription
	}
	return Suggestion{
		TMDBID:      hit.ID,
		Title:       hit.Title,
		Year:        releaseYear(hit.ReleaseDate),
		Description: description,
		Poster:      imageURL(posterBase, hit.PosterPath),
		Duration:    domain.DurationUnknown,
		Genres:      []string{},
	}
}

// FormatRuntime renders minutes as HH:MM:00, or N/A when unknown.
func FormatRuntime(minutes int) string {
	if minutes <= 0 {
		return domain.DurationUnknown
	}
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}

func releaseYear(date string) *int {
	if len(date) < 4 {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return nil
	}
	return &year
}

func imageURL(base, path string) *string {
	if path == "" {
		return nil
	}
	u := base + path
	return &u
}
