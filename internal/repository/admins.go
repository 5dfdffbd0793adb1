package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/cinestream/internal/domain"
)

// ErrAdminExists is returned by CreateFirst when the back office already has an account.
var ErrAdminExists = errors.New("repository: an administrator already exists")

// bootstrapLockKey serialises first-admin provisioning across processes.
const bootstrapLockKey = 727100

// AdminsRepository stores administrator credentials and lockout bookkeeping.
type AdminsRepository struct {
	pool *pgxpool.Pool
}

const adminColumns = `
    id::text,
    email,
    password_hash,
    name,
    role,
    login_attempts,
    lock_until,
    last_login,
    created_at,
    updated_at
`

// AdminCreateParams captures a new administrator. PasswordHash must already be hashed.
type AdminCreateParams struct {
	Email        string
	PasswordHash string
	Name         string
	Role         domain.Role
}

// Create inserts an administrator. A taken email yields ErrDuplicate.
func (r *AdminsRepository) Create(ctx context.Context, params AdminCreateParams) (domain.Admin, error) {
	return createAdmin(ctx, r.pool, params)
}

// CreateFirst inserts params only when no administrator exists yet.
func (r *AdminsRepository) CreateFirst(ctx context.Context, params AdminCreateParams) (domain.Admin, error) {
	var admin domain.Admin
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM admins)`).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrAdminExists
		}
		created, err := createAdmin(ctx, tx, params)
		if err != nil {
			return err
		}
		admin = created
		return nil
	})
	if err != nil {
		return domain.Admin{}, err
	}
	return admin, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func createAdmin(ctx context.Context, q queryRower, params AdminCreateParams) (domain.Admin, error) {
	role := params.Role
	if role == "" {
		role = domain.RoleAdmin
	}
	query := fmt.Sprintf(`
        INSERT INTO admins (email, password_hash, name, role)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, adminColumns)

	admin, err := scanAdmin(q.QueryRow(ctx, query, domain.NormalizeEmail(params.Email), params.PasswordHash, params.Name, string(role)))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Admin{}, ErrDuplicate
		}
		return domain.Admin{}, err
	}
	return admin, nil
}

// FindByEmail looks an administrator up by normalized email.
func (r *AdminsRepository) FindByEmail(ctx context.Context, email string) (domain.Admin, error) {
	query := fmt.Sprintf(`SELECT %s FROM admins WHERE email = $1`, adminColumns)
	admin, err := scanAdmin(r.pool.QueryRow(ctx, query, domain.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Admin{}, ErrNotFound
		}
		return domain.Admin{}, err
	}
	return admin, nil
}

// GetByID fetches an administrator by identifier.
func (r *AdminsRepository) GetByID(ctx context.Context, id string) (domain.Admin, error) {
	query := fmt.Sprintf(`SELECT %s FROM admins WHERE id = $1`, adminColumns)
	admin, err := scanAdmin(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Admin{}, ErrNotFound
		}
		return domain.Admin{}, err
	}
	return admin, nil
}

// Count returns how many administrators exist.
func (r *AdminsRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return total, nil
}

// RecordFailedLogin increments the attempt counter and locks the account once it
// reaches maxAttempts, in one statement so concurrent failures are all counted.
// An expired lock restarts the count at 1.
func (r *AdminsRepository) RecordFailedLogin(ctx context.Context, id string, now time.Time, maxAttempts int, lockFor time.Duration) (domain.Admin, error) {
	query := fmt.Sprintf(`
        UPDATE admins
        SET login_attempts = CASE
                WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN 1
                ELSE login_attempts + 1
            END,
            lock_until = CASE
                WHEN (CASE WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN 1 ELSE login_attempts + 1 END) >= $3 THEN $4::timestamptz
                WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN NULL
                ELSE lock_until
            END,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, adminColumns)

	admin, err := scanAdmin(r.pool.QueryRow(ctx, query, id, now, maxAttempts, now.Add(lockFor)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Admin{}, ErrNotFound
		}
		return domain.Admin{}, err
	}
	return admin, nil
}

// RecordSuccessfulLogin clears lockout state and stamps the login time.
func (r *AdminsRepository) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) (domain.Admin, error) {
	query := fmt.Sprintf(`
        UPDATE admins
        SET login_attempts = 0,
            lock_until = NULL,
            last_login = $2,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, adminColumns)

	admin, err := scanAdmin(r.pool.QueryRow(ctx, query, id, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Admin{}, ErrNotFound
		}
		return domain.Admin{}, err
	}
	return admin, nil
}

// ClearExpiredLocks unlocks every account whose lock ended before now and
// resets its attempt counter. It returns the number of accounts unlocked.
func (r *AdminsRepository) ClearExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
        UPDATE admins
        SET login_attempts = 0,
            lock_until = NULL,
            updated_at = now()
        WHERE lock_until IS NOT NULL AND lock_until <= $1
    `, now)
	if err != nil {
		return 0, fmt.Errorf("clear expired locks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAdmin(row pgx.Row) (domain.Admin, error) {
	var (
		admin domain.Admin
		role  string
	)
	err := row.Scan(
		&admin.ID,
		&admin.Email,
		&admin.PasswordHash,
		&admin.Name,
		&role,
		&admin.LoginAttempts,
		&admin.LockUntil,
		&admin.LastLogin,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	)
	if err != nil {
		return domain.Admin{}, err
	}
	admin.Role = domain.Role(role)
	return admin, nil
}
