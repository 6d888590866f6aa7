// Package audit keeps the append-only ledger of logins and cookie insertion
// attempts attached to every user.
package audit

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"accessgate/internal/apperr"
	"accessgate/internal/database"
	"accessgate/internal/repository"
)

// Stats is derived from the ledger on every read.
type Stats struct {
	TotalInsertions      int64      `json:"total_insertions"`
	SuccessfulInsertions int64      `json:"successful_insertions"`
	LoginCount           int        `json:"login_count"`
	LastLogin            *time.Time `json:"last_login"`
}

// History is the ledger of one user, newest entries first.
type History struct {
	UserID           uuid.UUID                  `json:"user_id"`
	Stats            Stats                      `json:"stats"`
	Logins           []database.LoginHistory    `json:"logins"`
	CookieInsertions []database.CookieInsertion `json:"cookie_insertions"`
}

type Log struct {
	repo repository.Repository
	now  func() time.Time
}

func NewLog(repo repository.Repository) *Log {
	return &Log{repo: repo, now: time.Now}
}

// WithClock returns a copy of the log stamping entries with now.
func (l *Log) WithClock(now func() time.Time) *Log {
	c := *l
	c.now = now
	return &c
}

func translate(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.ErrUserNotFound
	}
	return apperr.Internal(err)
}

// RecordLogin appends a login entry and bumps the login counter. It must be
// called once per successful authentication and never for failed attempts.
func (l *Log) RecordLogin(ctx context.Context, userID uuid.UUID, origin, clientSignature string) error {
	entry := database.LoginHistory{
		Timestamp:       l.now().UTC(),
		IPAddress:       origin,
		ClientSignature: clientSignature,
	}

	if err := l.repo.RecordLogin(ctx, userID, entry); err != nil {
		return translate(err)
	}

	log.Debugw("login recorded", "user_id", userID, "ip", origin)
	return nil
}

// RecordCookieInsertion appends an attempt whatever its outcome.
func (l *Log) RecordCookieInsertion(ctx context.Context, userID uuid.UUID, website string, success bool) error {
	entry := database.CookieInsertion{
		Website:   website,
		Timestamp: l.now().UTC(),
		Success:   success,
	}

	if err := l.repo.AppendCookieInsertion(ctx, userID, entry); err != nil {
		return translate(err)
	}

	log.Debugw("cookie insertion recorded", "user_id", userID, "website", website, "success", success)
	return nil
}

func (l *Log) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	user, err := l.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}

	counts, err := l.repo.CountCookieInsertions(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}

	return &Stats{
		TotalInsertions:      counts.Total,
		SuccessfulInsertions: counts.Successful,
		LoginCount:           user.LoginCount,
		LastLogin:            user.LastLogin,
	}, nil
}

func (l *Log) History(ctx context.Context, userID uuid.UUID) (*History, error) {
	user, err := l.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}

	logins := append([]database.LoginHistory{}, user.LoginHistory...)
	sort.SliceStable(logins, func(i, j int) bool {
		return logins[i].Timestamp.After(logins[j].Timestamp)
	})

	insertions := append([]database.CookieInsertion{}, user.CookieInsertions...)
	sort.SliceStable(insertions, func(i, j int) bool {
		return insertions[i].Timestamp.After(insertions[j].Timestamp)
	})

	h := &History{
		UserID:           user.ID,
		Logins:           logins,
		CookieInsertions: insertions,
		Stats: Stats{
			LoginCount: user.LoginCount,
			LastLogin:  user.LastLogin,
		},
	}
	for _, ci := range insertions {
		h.Stats.TotalInsertions++
		if ci.Success {
			h.Stats.SuccessfulInsertions++
		}
	}
	return h, nil
}
