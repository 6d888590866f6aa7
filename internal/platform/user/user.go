package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"accessgate/internal/apperr"
	"accessgate/internal/auth"
	"accessgate/internal/database"
	"accessgate/internal/mail"
	"accessgate/internal/platform/audit"
	"accessgate/internal/repository"
	"accessgate/pkg/utils"
)

// AuthResult is handed to a client after a successful sign in.
type AuthResult struct {
	Token     string         `json:"token"`
	TokenType string         `json:"token_type"`
	ExpiresIn int            `json:"expires_in"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *database.User `json:"user"`
}

type CreateUserInput struct {
	Email       string     `json:"email" validate:"required,email"`
	Password    string     `json:"password" validate:"required"`
	Name        string     `json:"name" validate:"max=255"`
	IsAdmin     bool       `json:"is_admin"`
	IsActive    *bool      `json:"is_active"`
	ExpiryDate  *time.Time `json:"expiry_date"`
	PhoneNumber *string    `json:"phone_number" validate:"omitempty,max=32"`
}

// UpdateUserInput lists the fields an administrator may change. Nil fields
// are left untouched.
type UpdateUserInput struct {
	Name            *string    `json:"name" validate:"omitempty,max=255"`
	IsActive        *bool      `json:"is_active"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	ClearExpiryDate bool       `json:"clear_expiry_date"`
	Password        *string    `json:"password"`
	PhoneNumber     *string    `json:"phone_number" validate:"omitempty,max=32"`
}

type UserService struct {
	repo           repository.Repository
	hasher         *auth.PasswordHasher
	tokens         *auth.TokenService
	audit          *audit.Log
	sessionTimeout time.Duration
	mailer         mail.Mailer
	mailFrom       string
	templates      NoticeTemplates
	now            func() time.Time

	// dummyHash is verified for unknown emails so a failed sign in costs
	// the same whether or not the account exists.
	dummyHash string
}

func NewService(repo repository.Repository, hasher *auth.PasswordHasher, tokens *auth.TokenService, auditLog *audit.Log, sessionTimeout time.Duration) *UserService {
	s := &UserService{
		repo:           repo,
		hasher:         hasher,
		tokens:         tokens,
		audit:          auditLog,
		sessionTimeout: sessionTimeout,
		mailer:         mail.Nop{},
		now:            time.Now,
	}

	n := max(hasher.MinLength, 16)
	if h, err := hasher.Hash(utils.GenerateRandomString(n)); err == nil {
		s.dummyHash = h
	}
	return s
}

// WithMailer enables account notifications sent from address from.
func (s *UserService) WithMailer(m mail.Mailer, from string) *UserService {
	s.mailer = m
	s.mailFrom = from
	return s
}

// NoticeTemplates names stored mail templates for account notices. An empty
// name sends the plain text body instead.
type NoticeTemplates struct {
	Welcome     string
	Deactivated string
}

func (s *UserService) WithTemplates(t NoticeTemplates) *UserService {
	s.templates = t
	return s
}

func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

func translate(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.ErrUserNotFound
	case errors.Is(err, repository.ErrConflict):
		return apperr.ErrUserExists
	default:
		return apperr.Internal(err)
	}
}

func (s *UserService) sessionTimeoutMinutes() int {
	return max(int(s.sessionTimeout/time.Minute), 1)
}

// Authenticate verifies email and password and issues a session token.
// Unknown accounts and wrong passwords fail alike with
// apperr.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password, origin, clientSignature string) (*AuthResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, apperr.Internal(err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		log.Debugw("sign in rejected", "user_id", user.ID, "reason", "password")
		return nil, apperr.ErrInvalidCredentials
	}
	if !user.IsActive {
		log.Debugw("sign in rejected", "user_id", user.ID, "reason", "inactive")
		return nil, apperr.ErrAccountInactive
	}
	if user.IsExpired(s.now()) {
		log.Debugw("sign in rejected", "user_id", user.ID, "reason", "expired")
		return nil, apperr.ErrAccountExpired
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, password)
	}

	if err := s.audit.RecordLogin(ctx, user.ID, origin, clientSignature); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.IsAdmin, s.sessionTimeoutMinutes())
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user, err = s.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, translate(err)
	}

	log.Infow("user signed in", "user_id", user.ID, "ip", origin)

	return &AuthResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(s.tokens.Lifetime().Seconds()),
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// rehash upgrades a legacy hash. Failing to do so does not fail the sign in.
func (s *UserService) rehash(ctx context.Context, id uuid.UUID, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Warnw("password rehash skipped", "user_id", id, "error", err)
		return
	}

	if _, err := s.repo.UpdateUser(ctx, id, repository.UserUpdate{PasswordHash: &hash}); err != nil {
		log.Warnw("password rehash failed", "user_id", id, "error", err)
		return
	}
	log.Infow("password hash upgraded", "user_id", id)
}

// Create adds an account. When the email is already taken the existing
// account is returned with created set to false.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (user *database.User, created bool, err error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" {
		return nil, false, apperr.Validation("Email is required")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, false, err
	}

	user = &database.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         input.Name,
		IsAdmin:      input.IsAdmin,
		IsActive:     true,
		ExpiryDate:   input.ExpiryDate,
		PhoneNumber:  input.PhoneNumber,
		CreatedAt:    s.now().UTC(),
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, false, translate(err)
		}

		existing, err := s.repo.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, false, translate(err)
		}
		return existing, false, nil
	}

	log.Infow("user created", "user_id", user.ID, "email", email, "is_admin", user.IsAdmin)

	s.notify(ctx, user, s.templates.Welcome, "Your account is ready",
		fmt.Sprintf("Hello %s,\n\nAn account has been created for %s. Your administrator will share your password with you.\n", displayName(user), user.Email))

	user.WebsitePermissions = []database.WebsitePermission{}
	return user, true, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*database.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return user, nil
}

// List returns every account, most recently created first.
func (s *UserService) List(ctx context.Context) ([]database.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if users == nil {
		users = []database.User{}
	}
	return users, nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*database.User, error) {
	update := repository.UserUpdate{
		Name:            input.Name,
		IsActive:        input.IsActive,
		ExpiryDate:      input.ExpiryDate,
		ClearExpiryDate: input.ClearExpiryDate,
		PhoneNumber:     input.PhoneNumber,
	}

	if input.Password != nil {
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, err
		}
		update.PasswordHash = &hash
	}

	var wasActive bool
	if input.IsActive != nil && !*input.IsActive {
		current, err := s.repo.GetUserByID(ctx, id)
		if err != nil {
			return nil, translate(err)
		}
		wasActive = current.IsActive
	}

	user, err := s.repo.UpdateUser(ctx, id, update)
	if err != nil {
		return nil, translate(err)
	}

	log.Infow("user updated", "user_id", id, "password_changed", input.Password != nil)

	if wasActive && !user.IsActive {
		s.notify(ctx, user, s.templates.Deactivated, "Your account has been deactivated",
			fmt.Sprintf("Hello %s,\n\nYour account %s has been deactivated. Contact your administrator if this is unexpected.\n", displayName(user), user.Email))
	}
	return user, nil
}

// BulkSetActive sets the active flag of every listed account and returns how
// many accounts actually changed. Ids that are malformed or unknown are
// skipped.
func (s *UserService) BulkSetActive(ctx context.Context, ids []string, active bool) (int64, error) {
	parsed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		uid, err := uuid.Parse(id)
		if err != nil {
			log.Debugw("bulk activation skipped id", "id", id)
			continue
		}
		parsed = append(parsed, uid)
	}

	modified, err := s.repo.SetActive(ctx, parsed, active)
	if err != nil {
		return 0, apperr.Internal(err)
	}

	log.Infow("bulk activation", "requested", len(ids), "modified", modified, "is_active", active)
	return modified, nil
}

// EnsureAdmin creates the bootstrap administrator unless the email is taken.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (*database.User, error) {
	user, created, err := s.Create(ctx, CreateUserInput{
		Email:    email,
		Password: password,
		Name:     "Administrator",
		IsAdmin:  true,
	})
	if err != nil {
		return nil, err
	}

	if !created && !user.IsAdmin {
		log.Warnw("bootstrap admin email belongs to a regular account", "user_id", user.ID)
	}
	return user, nil
}

func (s *UserService) notify(ctx context.Context, user *database.User, template, subject, body string) {
	e := &mail.Email{
		Subject: subject,
		Body:    body,
		From:    s.mailFrom,
		To:      []string{user.Email},
	}
	if template != "" {
		e.Template = template
		e.TemplateVars = map[string]any{
			"name":  displayName(user),
			"email": user.Email,
		}
	}

	err := s.mailer.SendMail(ctx, e)
	if err != nil {
		log.Warnw("notification not sent", "user_id", user.ID, "subject", subject, "error", err)
	}
}

func displayName(user *database.User) string {
	if user.Name != "" {
		return user.Name
	}
	return user.Email
}
