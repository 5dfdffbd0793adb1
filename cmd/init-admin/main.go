package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/Clark-Hu/cinestream/internal/auth"
	"github.com/Clark-Hu/cinestream/internal/domain"
	"github.com/Clark-Hu/cinestream/internal/logging"
	"github.com/Clark-Hu/cinestream/internal/repository"
	"github.com/Clark-Hu/cinestream/internal/store"
)

// init-admin provisions the first administrator account. It refuses to run
// once any administrator exists.
func main() {
	var (
		dbURL    = flag.String("db", os.Getenv("DB_URL"), "postgres connection string")
		email    = flag.String("email", os.Getenv("ADMIN_EMAIL"), "administrator email")
		password = flag.String("password", os.Getenv("ADMIN_PASSWORD"), "administrator password")
		name     = flag.String("name", envOr("ADMIN_NAME", "Super Admin"), "display name")
		role     = flag.String("role", string(domain.RoleSuperadmin), "admin or superadmin")
		cost     = flag.Int("cost", 12, "bcrypt cost")
		migrate  = flag.Bool("migrate", true, "apply migrations before inserting")
	)
	flag.Parse()

	logger := logging.New(envOr("LOG_LEVEL", "info"), envOr("LOG_FORMAT", "console"), "init-admin")

	if *dbURL == "" || *email == "" || *password == "" {
		logger.Fatal().Msg("db, email and password are required (flags or DB_URL/ADMIN_EMAIL/ADMIN_PASSWORD)")
	}
	if !domain.Role(*role).Valid() {
		logger.Fatal().Str("role", *role).Msg("unknown role")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.New(ctx, *dbURL, store.Options{MaxConns: 2, Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer st.Close()

	if *migrate {
		if err := st.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	repo := repository.New(st)
	cfg := auth.DefaultConfig()
	cfg.BcryptCost = *cost

	authn, err := auth.NewAuthenticator(repo.Admins, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init authenticator")
	}

	identity, err := authn.Bootstrap(ctx, *email, *password, *name, domain.Role(*role))
	if errors.Is(err, auth.ErrAdminExists) {
		logger.Fatal().Msg("an administrator already exists, refusing to create another")
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("create administrator")
	}

	logger.Info().
		Str("admin_id", identity.ID).
		Str("email", identity.Email).
		Str("role", string(identity.Role)).
		Msg("administrator created")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
