// Package repository is the storage boundary for user records and the
// collections they own. Implementations provide atomic per-record updates;
// callers never read-modify-write.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"accessgate/internal/database"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// UserUpdate lists the fields UpdateUser may change. Nil fields are left
// untouched; ClearExpiryDate removes the expiry date.
type UserUpdate struct {
	Name            *string
	IsActive        *bool
	ExpiryDate      *time.Time
	ClearExpiryDate bool
	PasswordHash    *string
	PhoneNumber     *string
}

// InsertionCounts aggregates a user's cookie insertion log.
type InsertionCounts struct {
	Total      int64
	Successful int64
}

type Repository interface {
	// CreateUser fails with ErrConflict when the email is taken.
	CreateUser(ctx context.Context, user *database.User) error
	// GetUserByID loads the user with all owned collections.
	GetUserByID(ctx context.Context, id uuid.UUID) (*database.User, error)
	GetUserByEmail(ctx context.Context, email string) (*database.User, error)
	// ListUsers returns every user, most recently created first, with
	// website permissions loaded.
	ListUsers(ctx context.Context) ([]database.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, update UserUpdate) (*database.User, error)
	// SetActive updates the users whose flag differs from active and returns
	// how many were modified. Unknown ids are skipped.
	SetActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error)

	GetPermission(ctx context.Context, userID uuid.UUID, website string) (*database.WebsitePermission, error)
	GrantPermission(ctx context.Context, userID uuid.UUID, website string, approvedBy uuid.UUID) error
	RevokePermission(ctx context.Context, userID uuid.UUID, website string) error
	TouchPermission(ctx context.Context, userID uuid.UUID, website string, at time.Time) error
	ReplacePermissions(ctx context.Context, userID uuid.UUID, permissions []database.WebsitePermission) error
	DistinctWebsites(ctx context.Context) ([]string, error)

	// RecordLogin appends entry and bumps the login counter and last login
	// time in one update.
	RecordLogin(ctx context.Context, userID uuid.UUID, entry database.LoginHistory) error
	AppendCookieInsertion(ctx context.Context, userID uuid.UUID, entry database.CookieInsertion) error
	CountCookieInsertions(ctx context.Context, userID uuid.UUID) (InsertionCounts, error)
}
