package domain

import (
	"strings"
	"time"
)

// Role is an administrator privilege level.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// Admin is a back-office account able to mutate the catalog.
type Admin struct {
	ID            string
	Email         string
	PasswordHash  string
	Name          string
	Role          Role
	LoginAttempts int
	LockUntil     *time.Time
	LastLogin     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Locked reports whether authentication must be refused at now.
func (a Admin) Locked(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}

// Identity returns the minimal assertion handed out after a successful login.
func (a Admin) Identity() Identity {
	return Identity{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role}
}

// Identity is what a session carries about the logged-in administrator.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
