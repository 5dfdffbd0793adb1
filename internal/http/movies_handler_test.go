package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/cinestream/internal/auth"
	"github.com/Clark-Hu/cinestream/internal/catalog"
	"github.com/Clark-Hu/cinestream/internal/config"
	"github.com/Clark-Hu/cinestream/internal/domain"
	"github.com/Clark-Hu/cinestream/internal/metrics"
	"github.com/Clark-Hu/cinestream/internal/pgtest"
	"github.com/Clark-Hu/cinestream/internal/repository"
	"github.com/Clark-Hu/cinestream/internal/tmdb"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testEmail    = "admin@example.com"
	testPassword = "correct horse battery staple"
)

type poolHealth struct{ pool *pgxpool.Pool }

func (p poolHealth) HealthCheck(ctx context.Context) error { return p.pool.Ping(ctx) }

// fakeTMDB returns a canned suggestion for any non-empty query.
type fakeTMDB struct{}

func (fakeTMDB) Search(_ context.Context, query string) ([]tmdb.Suggestion, error) {
	if strings.TrimSpace(query) == "" {
		return nil, tmdb.ErrInvalidQuery
	}
	return []tmdb.Suggestion{{TMDBID: 27205, Title: query, Duration: "02:28:00", Genres: []string{"Action"}}}, nil
}

type testEnv struct {
	srv  *Server
	db   *pgtest.DB
	repo *repository.Repository
}

func buildTestServer(tb testing.TB, mutate func(*config.Config)) *testEnv {
	tb.Helper()
	cfg := config.Config{
		Port:             "0",
		ReadTimeoutSecs:  15,
		WriteTimeoutSecs: 15,
		IdleTimeoutSecs:  60,
		LoginRateLimit:   1000,
		LoginRateBurst:   1000,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	db := pgtest.Start(tb)
	repo := repository.NewWithPool(db.Pool)
	logger := zerolog.Nop()
	m := metrics.New()

	sessions, err := auth.NewSessions(testSecret, time.Hour, false)
	if err != nil {
		tb.Fatalf("sessions: %v", err)
	}
	authn, err := auth.NewAuthenticator(repo.Admins, auth.Config{MaxAttempts: 5, LockDuration: 2 * time.Hour, BcryptCost: bcrypt.MinCost}, logger, auth.WithRecorder(m))
	if err != nil {
		tb.Fatalf("authenticator: %v", err)
	}
	if _, err := authn.Bootstrap(context.Background(), testEmail, testPassword, "Admin", domain.RoleSuperadmin); err != nil {
		tb.Fatalf("bootstrap admin: %v", err)
	}
	svc, err := catalog.NewService(repo.Movies, sessions, domain.NewGenreSet(domain.DefaultGenres), 5*time.Second, logger, catalog.WithRecorder(m))
	if err != nil {
		tb.Fatalf("catalog: %v", err)
	}

	srv := New(cfg, Deps{
		Store:    poolHealth{pool: db.Pool},
		Catalog:  svc,
		Auth:     authn,
		Sessions: sessions,
		TMDB:     fakeTMDB{},
		Metrics:  m,
		Logger:   logger,
	})
	return &testEnv{srv: srv, db: db, repo: repo}
}

func (e *testEnv) do(tb testing.TB, method, target string, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	tb.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(tb testing.TB) *http.Cookie {
	tb.Helper()
	rec := e.do(tb, http.MethodPost, "/admin/session", fmt.Sprintf(`{"email":%q,"password":%q}`, testEmail, testPassword), nil)
	if rec.Code != http.StatusOK {
		tb.Fatalf("login status = %d body=%s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	tb.Fatalf("login did not set %s cookie", auth.CookieName)
	return nil
}

func decodeBody[T any](tb testing.TB, rec *httptest.ResponseRecorder) T {
	tb.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		tb.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func movieJSON(title, genre, link string) string {
	return fmt.Sprintf(`{"title":%q,"genre":%q,"year":2010,"description":"desc","poster":"https://img.example/p.jpg","sourceLink":%q}`, title, genre, link)
}

func TestSessionHandlers(t *testing.T) {
	env := buildTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/admin/session", `{"email":"admin@example.com","password":"nope"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", rec.Code)
	}
	if body := decodeBody[errorResponse](t, rec); body.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("code = %s", body.Code)
	}

	rec = env.do(t, http.MethodPost, "/admin/session", `{"email":"","password":""}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty credentials status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/admin/session", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("session without cookie status = %d", rec.Code)
	}

	cookie := env.login(t)
	if !cookie.HttpOnly {
		t.Fatalf("session cookie must be HttpOnly")
	}
	rec = env.do(t, http.MethodGet, "/admin/session", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("current session status = %d", rec.Code)
	}
	session := decodeBody[sessionResponse](t, rec)
	if session.Admin.Email != testEmail || session.Admin.Role != domain.RoleSuperadmin {
		t.Fatalf("session = %+v", session)
	}

	rec = env.do(t, http.MethodDelete, "/admin/session", "", cookie)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}
	cleared := rec.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Fatalf("logout cookies = %+v", cleared)
	}
}

func TestLoginLockout(t *testing.T) {
	env := buildTestServer(t, nil)

	for i := 0; i < 5; i++ {
		rec := env.do(t, http.MethodPost, "/admin/session", `{"email":"admin@example.com","password":"bad"}`, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i+1, rec.Code)
		}
	}

	rec := env.do(t, http.MethodPost, "/admin/session", fmt.Sprintf(`{"email":%q,"password":%q}`, testEmail, testPassword), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("locked login status = %d", rec.Code)
	}
	if body := decodeBody[errorResponse](t, rec); body.Code != "ACCOUNT_LOCKED" {
		t.Fatalf("code = %s", body.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := buildTestServer(t, func(cfg *config.Config) {
		cfg.LoginRateLimit = 0.001
		cfg.LoginRateBurst = 2
	})

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/admin/session", `{"email":"admin@example.com","password":"bad"}`, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i+1, rec.Code)
		}
	}
	rec := env.do(t, http.MethodPost, "/admin/session", `{"email":"admin@example.com","password":"bad"}`, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestMovieLifecycle(t *testing.T) {
	env := buildTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/admin/movies", movieJSON("Inception", "SF", "https://uqload.bz/48nlkbwky85e.html"), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("create without session status = %d", rec.Code)
	}
	if count, _ := env.repo.Movies.Count(context.Background()); count != 0 {
		t.Fatalf("movie persisted without session")
	}

	cookie := env.login(t)
	rec = env.do(t, http.MethodPost, "/admin/movies", movieJSON("Inception", "SF", "https://uqload.bz/48nlkbwky85e.html"), cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}
	created := decodeBody[movieEnvelope](t, rec).Movie
	if created.EmbedID != "48nlkbwky85e" || created.EmbedURL != "https://uqload.bz/embed-48nlkbwky85e.html" {
		t.Fatalf("created = %+v", created)
	}
	if created.Duration != domain.DurationUnknown || created.Views != 0 {
		t.Fatalf("created = %+v", created)
	}
	if loc := rec.Header().Get("Location"); loc != "/movies/"+created.ID {
		t.Fatalf("location = %q", loc)
	}

	for want := int64(1); want <= 2; want++ {
		rec = env.do(t, http.MethodGet, "/movies/"+created.ID, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("get status = %d", rec.Code)
		}
		if got := decodeBody[movieEnvelope](t, rec).Movie.Views; got != want {
			t.Fatalf("views = %d, want %d", got, want)
		}
	}

	rec = env.do(t, http.MethodGet, "/movies/not-a-uuid", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed id status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/admin/movies?id="+created.ID, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("delete without session status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/admin/movies?id="+created.ID, "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if got := decodeBody[deleteResponse](t, rec).Deleted; got != created.ID {
		t.Fatalf("deleted = %q", got)
	}
	rec = env.do(t, http.MethodDelete, "/admin/movies?id="+created.ID, "", cookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/movies/"+created.ID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/admin/movies", "", cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("delete without id status = %d", rec.Code)
	}
}

func TestCreateMovieValidation(t *testing.T) {
	env := buildTestServer(t, nil)
	cookie := env.login(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown provider", movieJSON("X", "Action", "https://example.com/video"), http.StatusBadRequest},
		{"unknown genre", movieJSON("X", "Western", "https://uqload.bz/abc.html"), http.StatusBadRequest},
		{"missing fields", `{"title":"X"}`, http.StatusBadRequest},
		{"unknown field", `{"title":"X","rating":5}`, http.StatusBadRequest},
		{"bad year", `{"title":"X","year":"soon"}`, http.StatusBadRequest},
		{"malformed json", `{"title":`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/admin/movies", tt.body, cookie)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tt.want, rec.Body.String())
			}
			if body := decodeBody[errorResponse](t, rec); body.Code != "BAD_REQUEST" {
				t.Fatalf("code = %s", body.Code)
			}
		})
	}

	body := `{"title":"Form","genre":"Drame","year":"1999","description":"d","poster":"https://img.example/p.jpg","uqloadLink":"https://uqload.io/embed-k9.html","duration":"01:30:00"}`
	rec := env.do(t, http.MethodPost, "/admin/movies", body, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("string year status = %d body=%s", rec.Code, rec.Body.String())
	}
	movie := decodeBody[movieEnvelope](t, rec).Movie
	if movie.Year != 1999 || movie.EmbedID != "k9" || movie.Duration != "01:30:00" {
		t.Fatalf("movie = %+v", movie)
	}
}

func TestListMovies(t *testing.T) {
	env := buildTestServer(t, nil)
	cookie := env.login(t)

	for i := 0; i < 7; i++ {
		genre := "Horreur"
		if i%2 == 0 {
			genre = "Action"
		}
		rec := env.do(t, http.MethodPost, "/admin/movies", movieJSON(fmt.Sprintf("Film %d", i), genre, fmt.Sprintf("https://uqload.bz/id%d.html", i)), cookie)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rec.Code)
		}
		time.Sleep(2 * time.Millisecond)
	}

	rec := env.do(t, http.MethodGet, "/movies?genre=Horreur&limit=2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decodeBody[movieListResponse](t, rec)
	if len(list.Movies) != 2 || list.Total != 3 {
		t.Fatalf("list = %d movies, total %d", len(list.Movies), list.Total)
	}
	if list.Movies[0].Title != "Film 5" || list.Movies[1].Title != "Film 3" {
		t.Fatalf("order = %s, %s", list.Movies[0].Title, list.Movies[1].Title)
	}

	rec = env.do(t, http.MethodGet, "/movies?search=film%206&genre=all", "", nil)
	list = decodeBody[movieListResponse](t, rec)
	if list.Total != 1 || list.Movies[0].Title != "Film 6" {
		t.Fatalf("search = %+v", list)
	}

	rec = env.do(t, http.MethodGet, "/movies?genre=Romance", "", nil)
	list = decodeBody[movieListResponse](t, rec)
	if list.Movies == nil || len(list.Movies) != 0 {
		t.Fatalf("empty result must be an empty array, got %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/movies?limit=abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/movies?limit=200", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("limit=200 status = %d body=%s", rec.Code, rec.Body.String())
	}
	if list = decodeBody[movieListResponse](t, rec); len(list.Movies) != 7 {
		t.Fatalf("limit=200 returned %d movies, want 7", len(list.Movies))
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/movies?limit=%d", repository.MaxListLimit+1), "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized limit status = %d, want 400", rec.Code)
	}
}

func TestCreateMovieChecksSessionBeforeBody(t *testing.T) {
	env := buildTestServer(t, nil)

	forged := &http.Cookie{Name: auth.CookieName, Value: "not-a-session"}
	bodies := map[string]string{
		"malformed json": `{"title":`,
		"unknown field":  `{"title":"X","rating":5}`,
		"valid body":     movieJSON("Sneaky", "Action", "https://uqload.bz/sneaky.html"),
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/admin/movies", body, forged)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401 body=%s", rec.Code, rec.Body.String())
			}
			if got := decodeBody[errorResponse](t, rec); got.Code != "UNAUTHORIZED" {
				t.Fatalf("code = %s", got.Code)
			}
		})
	}

	count, err := env.repo.Movies.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("movies persisted without a session: %d", count)
	}
}

func TestAuxiliaryEndpoints(t *testing.T) {
	env := buildTestServer(t, nil)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	if health := decodeBody[healthResponse](t, rec); health.Status != "ok" || health.Database != "up" || health.Uptime == "" {
		t.Fatalf("health = %+v", health)
	}

	rec = env.do(t, http.MethodGet, "/genres", "", nil)
	genres := decodeBody[map[string][]string](t, rec)["genres"]
	if len(genres) != len(domain.DefaultGenres) || genres[0] != "Action" {
		t.Fatalf("genres = %v", genres)
	}

	rec = env.do(t, http.MethodGet, "/admin/tmdb/search?query=Inception", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("tmdb without session status = %d", rec.Code)
	}
	cookie := env.login(t)
	rec = env.do(t, http.MethodGet, "/admin/tmdb/search?query=Inception", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("tmdb status = %d", rec.Code)
	}
	if res := decodeBody[tmdbSearchResponse](t, rec); len(res.Results) != 1 || res.Results[0].Title != "Inception" {
		t.Fatalf("tmdb = %+v", res)
	}
	rec = env.do(t, http.MethodGet, "/admin/tmdb/search?query=", "", cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("tmdb empty query status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `cinestream_login_attempts_total{result="success"}`) {
		t.Fatalf("metrics missing login counter: %d", rec.Code)
	}
}
