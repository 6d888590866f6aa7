// Package permission holds the per-user, per-website access matrix. Access is
// default-deny: a website without an entry is not accessible.
package permission

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"accessgate/internal/apperr"
	"accessgate/internal/database"
	"accessgate/internal/platform/audit"
	"accessgate/internal/repository"
	"accessgate/pkg/utils"
)

var ErrInvalidWebsite = apperr.Validation("Invalid website")

type Registry struct {
	repo  repository.Repository
	audit *audit.Log
	now   func() time.Time
}

func NewRegistry(repo repository.Repository, auditLog *audit.Log) *Registry {
	return &Registry{repo: repo, audit: auditLog, now: time.Now}
}

// WithClock returns a copy of the registry reading time from now.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	c := *r
	c.now = now
	return &c
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.ErrUserNotFound
	case errors.Is(err, repository.ErrConflict):
		return apperr.Validation("Duplicate website in permission set")
	default:
		return apperr.Internal(err)
	}
}

func normalize(website string) (string, error) {
	w := utils.NormalizeWebsite(website)
	if w == "" {
		return "", ErrInvalidWebsite
	}
	return w, nil
}

// Grant gives userID access to website on behalf of adminID. Granting resets
// the last accessed time.
func (r *Registry) Grant(ctx context.Context, userID uuid.UUID, website string, adminID uuid.UUID) error {
	w, err := normalize(website)
	if err != nil {
		return err
	}

	if err := r.repo.GrantPermission(ctx, userID, w, adminID); err != nil {
		return translate(err)
	}

	log.Infow("website access granted", "user_id", userID, "website", w, "approved_by", adminID)
	return nil
}

func (r *Registry) Revoke(ctx context.Context, userID uuid.UUID, website string) error {
	w, err := normalize(website)
	if err != nil {
		return err
	}

	if err := r.repo.RevokePermission(ctx, userID, w); err != nil {
		return translate(err)
	}

	log.Infow("website access revoked", "user_id", userID, "website", w)
	return nil
}

// Check reports whether userID may act on website.
func (r *Registry) Check(ctx context.Context, userID uuid.UUID, website string) (bool, error) {
	w, err := normalize(website)
	if err != nil {
		return false, err
	}

	p, err := r.repo.GetPermission(ctx, userID, w)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, apperr.Internal(err)
	}
	return p.HasAccess, nil
}

// Touch stamps the permission as used. Only call it after an authorized
// action succeeded.
func (r *Registry) Touch(ctx context.Context, userID uuid.UUID, website string) error {
	w, err := normalize(website)
	if err != nil {
		return err
	}

	if err := r.repo.TouchPermission(ctx, userID, w, r.now().UTC()); err != nil {
		return translate(err)
	}
	return nil
}

func (r *Registry) ListDistinctWebsites(ctx context.Context) ([]string, error) {
	websites, err := r.repo.DistinctWebsites(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if websites == nil {
		websites = []string{}
	}
	return websites, nil
}

// Replace swaps the full permission set of userID for permissions. Entries
// without an approving admin are attributed to adminID.
func (r *Registry) Replace(ctx context.Context, userID uuid.UUID, adminID uuid.UUID, permissions []database.WebsitePermission) error {
	set := make([]database.WebsitePermission, 0, len(permissions))
	seen := make(map[string]bool, len(permissions))

	for _, p := range permissions {
		w, err := normalize(p.Website)
		if err != nil {
			return err
		}
		if seen[w] {
			return apperr.Validation("Duplicate website in permission set: " + w)
		}
		seen[w] = true

		p.Website = w
		p.UserID = userID
		if p.ApprovedBy == nil {
			admin := adminID
			p.ApprovedBy = &admin
		}
		set = append(set, p)
	}

	if err := r.repo.ReplacePermissions(ctx, userID, set); err != nil {
		return translate(err)
	}

	log.Infow("website permissions replaced", "user_id", userID, "count", len(set), "approved_by", adminID)
	return nil
}

// AuthorizeCookieInsertion decides on a cookie insertion attempt and records
// it in the audit log whatever the outcome. A denied attempt returns
// apperr.ErrForbidden.
func (r *Registry) AuthorizeCookieInsertion(ctx context.Context, userID uuid.UUID, website string) error {
	w, err := normalize(website)
	if err != nil {
		return err
	}

	allowed, err := r.Check(ctx, userID, w)
	if err != nil {
		return err
	}

	if !allowed {
		if err := r.audit.RecordCookieInsertion(ctx, userID, w, false); err != nil {
			return err
		}
		log.Infow("cookie insertion denied", "user_id", userID, "website", w)
		return apperr.ErrForbidden
	}

	// The entry can vanish between Check and Touch when a concurrent
	// replace drops it. The attempt is then recorded as failed.
	if err := r.Touch(ctx, userID, w); err != nil {
		if recErr := r.audit.RecordCookieInsertion(ctx, userID, w, false); recErr != nil {
			log.Warnw("cookie insertion not recorded", "user_id", userID, "website", w, "error", recErr)
		}
		if errors.Is(err, apperr.ErrUserNotFound) {
			return apperr.ErrForbidden
		}
		return err
	}
	return r.audit.RecordCookieInsertion(ctx, userID, w, true)
}
