package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port             string `envconfig:"PORT" default:"8080"`
	ReadTimeoutSecs  int    `envconfig:"SERVER_READ_TIMEOUT" default:"15"`
	WriteTimeoutSecs int    `envconfig:"SERVER_WRITE_TIMEOUT" default:"15"`
	IdleTimeoutSecs  int    `envconfig:"SERVER_IDLE_TIMEOUT" default:"60"`

	DBURL             string        `envconfig:"DB_URL"`
	DBMaxConns        int           `envconfig:"DB_MAX_CONNS" default:"20"`
	DBMinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	DBMaxIdleSecs     int           `envconfig:"DB_MAX_CONN_IDLE_SECS" default:"300"`
	DBMaxLifeSecs     int           `envconfig:"DB_MAX_CONN_LIFETIME_SECS" default:"3600"`
	DBConnTimeoutSecs int           `envconfig:"DB_CONN_TIMEOUT_SECS" default:"10"`
	DBStatementCache  int           `envconfig:"DB_STATEMENT_CACHE_CAPACITY" default:"256"`
	DBAutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	StoreTimeout      time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`

	SessionSecret       string        `envconfig:"SESSION_SECRET"`
	SessionTTL          time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	SessionCookieSecure bool          `envconfig:"SESSION_COOKIE_SECURE" default:"false"`

	AuthMaxLoginAttempts int           `envconfig:"AUTH_MAX_LOGIN_ATTEMPTS" default:"5"`
	AuthLockDuration     time.Duration `envconfig:"AUTH_LOCK_DURATION" default:"2h"`
	AuthBcryptCost       int           `envconfig:"AUTH_BCRYPT_COST" default:"12"`
	LoginRateLimit       float64       `envconfig:"LOGIN_RATE_LIMIT" default:"0.5"`
	LoginRateBurst       int           `envconfig:"LOGIN_RATE_BURST" default:"5"`

	Genres []string `envconfig:"CATALOG_GENRES" default:"Action,Drame,Comédie,SF,Horreur,Animation,Romance,Thriller,Documentaire"`

	TMDBURL       string        `envconfig:"TMDB_URL" default:"https://api.themoviedb.org/3"`
	TMDBAPIKey    string        `envconfig:"TMDB_API_KEY"`
	TMDBLanguage  string        `envconfig:"TMDB_LANGUAGE" default:"fr-FR"`
	TMDBTimeout   time.Duration `envconfig:"TMDB_TIMEOUT" default:"5s"`
	TMDBRateLimit float64       `envconfig:"TMDB_RATE_LIMIT" default:"20"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	LockSweepSchedule      string `envconfig:"LOCK_SWEEP_SCHEDULE" default:"@every 10m"`
	MetricsRefreshSchedule string `envconfig:"METRICS_REFRESH_SCHEDULE" default:"@every 1m"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	AdminName     string `envconfig:"ADMIN_NAME" default:"Super Admin"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads configuration from environment variables (and an optional .env file),
// applying defaults and validation.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants envconfig cannot express.
func (c Config) Validate() error {
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if c.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if c.AuthMaxLoginAttempts < 1 {
		return fmt.Errorf("AUTH_MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	if c.AuthLockDuration <= 0 {
		return fmt.Errorf("AUTH_LOCK_DURATION must be positive")
	}
	if c.AuthBcryptCost < 4 || c.AuthBcryptCost > 31 {
		return fmt.Errorf("AUTH_BCRYPT_COST must be between 4 and 31")
	}
	if c.LoginRateLimit <= 0 || c.LoginRateBurst <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT and LOGIN_RATE_BURST must be positive")
	}
	if len(c.Genres) == 0 {
		return fmt.Errorf("CATALOG_GENRES must list at least one genre")
	}
	if c.TMDBTimeout <= 0 {
		return fmt.Errorf("TMDB_TIMEOUT must be positive")
	}
	if c.TMDBRateLimit <= 0 {
		return fmt.Errorf("TMDB_RATE_LIMIT must be positive")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}
