// Package auth verifies administrator credentials, enforces the failed-login
// lockout and issues session tokens.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/cinestream/internal/domain"
	"github.com/Clark-Hu/cinestream/internal/repository"
)

// Login results reported to the Recorder.
const (
	ResultSuccess            = "success"
	ResultInvalidCredentials = "invalid_credentials"
	ResultLocked             = "locked"
	ResultError              = "error"
)

// CredentialStore is the persistence the Authenticator needs. It is satisfied by
// *repository.AdminsRepository.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (domain.Admin, error)
	RecordFailedLogin(ctx context.Context, id string, now time.Time, maxAttempts int, lockFor time.Duration) (domain.Admin, error)
	RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) (domain.Admin, error)
	CreateFirst(ctx context.Context, params repository.AdminCreateParams) (domain.Admin, error)
}

// Recorder observes login outcomes.
type Recorder interface {
	LoginAttempt(result string)
}

// Config tunes the lockout policy.
type Config struct {
	MaxAttempts  int
	LockDuration time.Duration
	BcryptCost   int
	StoreTimeout time.Duration
}

// DefaultConfig locks an account for two hours after five consecutive failures.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		LockDuration: 2 * time.Hour,
		BcryptCost:   12,
		StoreTimeout: 5 * time.Second,
	}
}

// ErrAdminExists is returned by Bootstrap when an administrator is already provisioned.
var ErrAdminExists = repository.ErrAdminExists

// Authenticator checks email/password pairs against the credential store.
type Authenticator struct {
	store     CredentialStore
	cfg       Config
	logger    zerolog.Logger
	recorder  Recorder
	now       func() time.Time
	dummyHash []byte
}

// Option customises an Authenticator.
type Option func(*Authenticator)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// WithRecorder reports every login outcome to r.
func WithRecorder(r Recorder) Option {
	return func(a *Authenticator) { a.recorder = r }
}

// NewAuthenticator validates cfg and prepares the timing-equaliser hash.
func NewAuthenticator(store CredentialStore, cfg Config, logger zerolog.Logger, opts ...Option) (*Authenticator, error) {
	if store == nil {
		return nil, errors.New("auth: credential store is required")
	}
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = def.LockDuration
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = def.BcryptCost
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, errors.New("auth: bcrypt cost out of range")
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = def.StoreTimeout
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("cinestream-timing-equaliser"), cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	a := &Authenticator{
		store:     store,
		cfg:       cfg,
		logger:    logger.With().Str("component", "auth").Logger(),
		now:       time.Now,
		dummyHash: dummy,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate verifies credentials and returns the administrator's identity.
//
// A locked account is refused without checking the password. A wrong password
// bumps the failure counter and locks the account once it reaches
// Config.MaxAttempts. A correct password clears the counter.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (domain.Identity, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return domain.Identity{}, domain.Errorf(domain.KindInvalidRequest, "email and password are required")
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
	defer cancel()

	now := a.now()
	admin, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
			a.record(ResultInvalidCredentials)
			return domain.Identity{}, invalidCredentials()
		}
		a.record(ResultError)
		return domain.Identity{}, domain.Internal("failed to load credentials", err)
	}

	if admin.Locked(now) {
		a.record(ResultLocked)
		a.logger.Warn().Str("admin_id", admin.ID).Time("lock_until", *admin.LockUntil).Msg("login refused: account locked")
		return domain.Identity{}, accountLocked(*admin.LockUntil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		updated, ferr := a.store.RecordFailedLogin(ctx, admin.ID, now, a.cfg.MaxAttempts, a.cfg.LockDuration)
		if ferr != nil {
			a.record(ResultError)
			return domain.Identity{}, domain.Internal("failed to record login attempt", ferr)
		}
		a.record(ResultInvalidCredentials)
		if updated.Locked(now) {
			a.logger.Warn().Str("admin_id", admin.ID).Int("attempts", updated.LoginAttempts).
				Time("lock_until", *updated.LockUntil).Msg("account locked after repeated failures")
		}
		return domain.Identity{}, invalidCredentials()
	}

	updated, err := a.store.RecordSuccessfulLogin(ctx, admin.ID, now)
	if err != nil {
		a.record(ResultError)
		return domain.Identity{}, domain.Internal("failed to record login", err)
	}
	a.record(ResultSuccess)
	a.logger.Info().Str("admin_id", updated.ID).Msg("admin logged in")
	return updated.Identity(), nil
}

// Bootstrap provisions the first administrator. It returns ErrAdminExists when
// any administrator is already present.
func (a *Authenticator) Bootstrap(ctx context.Context, email, password, name string, role domain.Role) (domain.Identity, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return domain.Identity{}, domain.Errorf(domain.KindInvalidRequest, "email and password are required")
	}
	if role == "" {
		role = domain.RoleSuperadmin
	}
	if !role.Valid() {
		return domain.Identity{}, domain.Errorf(domain.KindInvalidRequest, "unknown role %q", role)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Super Admin"
	}

	hash, err := HashPassword(password, a.cfg.BcryptCost)
	if err != nil {
		return domain.Identity{}, domain.Internal("failed to hash password", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
	defer cancel()

	admin, err := a.store.CreateFirst(ctx, repository.AdminCreateParams{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, ErrAdminExists) {
			return domain.Identity{}, ErrAdminExists
		}
		return domain.Identity{}, domain.Internal("failed to create administrator", err)
	}
	a.logger.Info().Str("admin_id", admin.ID).Str("email", admin.Email).Msg("administrator provisioned")
	return admin.Identity(), nil
}

// HashPassword bcrypt-hashes password at cost.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (a *Authenticator) record(result string) {
	if a.recorder != nil {
		a.recorder.LoginAttempt(result)
	}
}

func invalidCredentials() error {
	return domain.Errorf(domain.KindInvalidCredentials, "invalid email or password")
}

func accountLocked(until time.Time) error {
	return domain.Errorf(domain.KindAccountLocked, "account locked until %s", until.UTC().Format(time.RFC3339))
}
