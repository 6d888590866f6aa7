// Package platform wires the services shared by the HTTP handlers.
package platform

import (
	"github.com/gofiber/fiber/v2"

	"accessgate/internal/auth"
	"accessgate/internal/config"
	"accessgate/internal/mail"
	"accessgate/internal/platform/activity"
	"accessgate/internal/platform/audit"
	"accessgate/internal/platform/export"
	"accessgate/internal/platform/permission"
	"accessgate/internal/platform/user"
	"accessgate/internal/repository"
)

type Platform struct {
	Config      *config.Config
	Repo        repository.Repository
	Tokens      *auth.TokenService
	Users       *user.UserService
	Permissions *permission.Registry
	Audit       *audit.Log
	Export      *export.Service
	Tracker     *activity.Tracker
}

// New builds the services on top of repo. Mail and audit export are only
// enabled when configured.
func New(cfg *config.Config, repo repository.Repository) *Platform {
	hasher := auth.NewPasswordHasher(cfg.PasswordMinLength, auth.Argon2Params{
		Memory:  cfg.Argon2Memory,
		Time:    cfg.Argon2Time,
		Threads: cfg.Argon2Threads,
	})
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenLifetime)
	auditLog := audit.NewLog(repo)

	users := user.NewService(repo, hasher, tokens, auditLog, cfg.SessionTimeout)
	if cfg.MailEnabled() {
		users.WithMailer(mail.NewMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase), cfg.MailFrom).
			WithTemplates(user.NoticeTemplates{
				Welcome:     cfg.WelcomeTemplate,
				Deactivated: cfg.DeactivatedTemplate,
			})
	}

	var storage fiber.Storage
	if cfg.StorageEnabled() {
		storage = cfg.Storage()
	}

	return &Platform{
		Config:      cfg,
		Repo:        repo,
		Tokens:      tokens,
		Users:       users,
		Permissions: permission.NewRegistry(repo, auditLog),
		Audit:       auditLog,
		Export:      export.NewService(storage, auditLog),
		Tracker:     activity.NewTracker(cfg.SessionIdleAfter, cfg.SessionTimeout, cfg.ActivityCheckInterval),
	}
}
