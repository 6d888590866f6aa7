package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"accessgate/internal/database"
)

// MemoryRepository keeps every record in process memory. A single lock
// serialises writers, which gives the same per-user atomicity the database
// provides. Records handed out are copies.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*database.User
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users: make(map[uuid.UUID]*database.User),
		now:   time.Now,
	}
}

func cloneUser(u *database.User) *database.User {
	c := *u
	c.LoginHistory = append([]database.LoginHistory(nil), u.LoginHistory...)
	c.WebsitePermissions = append(make([]database.WebsitePermission, 0, len(u.WebsitePermissions)), u.WebsitePermissions...)
	c.CookieInsertions = append([]database.CookieInsertion(nil), u.CookieInsertions...)
	sort.Slice(c.WebsitePermissions, func(i, j int) bool {
		return c.WebsitePermissions[i].Website < c.WebsitePermissions[j].Website
	})
	return &c
}

func (r *MemoryRepository) CreateUser(ctx context.Context, user *database.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return ErrConflict
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, ok := r.users[user.ID]; ok {
		return ErrConflict
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.now()
	}

	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*database.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ListUsers(ctx context.Context) ([]database.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]database.User, 0, len(r.users))
	for _, u := range r.users {
		c := cloneUser(u)
		c.LoginHistory = nil
		c.CookieInsertions = nil
		users = append(users, *c)
	}

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (r *MemoryRepository) UpdateUser(ctx context.Context, id uuid.UUID, update UserUpdate) (*database.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.IsActive != nil {
		u.IsActive = *update.IsActive
	}
	if update.ClearExpiryDate {
		u.ExpiryDate = nil
	} else if update.ExpiryDate != nil {
		expiry := *update.ExpiryDate
		u.ExpiryDate = &expiry
	}
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
	if update.PhoneNumber != nil {
		phone := *update.PhoneNumber
		u.PhoneNumber = &phone
	}

	return cloneUser(u), nil
}

func (r *MemoryRepository) SetActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var modified int64
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		u, ok := r.users[id]
		if !ok || u.IsActive == active {
			continue
		}
		u.IsActive = active
		modified++
	}
	return modified, nil
}

func findPermission(u *database.User, website string) int {
	for i := range u.WebsitePermissions {
		if u.WebsitePermissions[i].Website == website {
			return i
		}
	}
	return -1
}

func (r *MemoryRepository) GetPermission(ctx context.Context, userID uuid.UUID, website string) (*database.WebsitePermission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	i := findPermission(u, website)
	if i < 0 {
		return nil, ErrNotFound
	}
	p := u.WebsitePermissions[i]
	return &p, nil
}

func (r *MemoryRepository) GrantPermission(ctx context.Context, userID uuid.UUID, website string, approvedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}

	admin := approvedBy
	p := database.WebsitePermission{UserID: userID, Website: website, HasAccess: true, ApprovedBy: &admin}
	if i := findPermission(u, website); i >= 0 {
		u.WebsitePermissions[i] = p
	} else {
		u.WebsitePermissions = append(u.WebsitePermissions, p)
	}
	return nil
}

func (r *MemoryRepository) RevokePermission(ctx context.Context, userID uuid.UUID, website string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}

	if i := findPermission(u, website); i >= 0 {
		u.WebsitePermissions[i].HasAccess = false
	} else {
		u.WebsitePermissions = append(u.WebsitePermissions, database.WebsitePermission{UserID: userID, Website: website})
	}
	return nil
}

func (r *MemoryRepository) TouchPermission(ctx context.Context, userID uuid.UUID, website string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	i := findPermission(u, website)
	if i < 0 {
		return ErrNotFound
	}
	u.WebsitePermissions[i].LastAccessed = &at
	return nil
}

func (r *MemoryRepository) ReplacePermissions(ctx context.Context, userID uuid.UUID, permissions []database.WebsitePermission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}

	replaced := make([]database.WebsitePermission, 0, len(permissions))
	for _, p := range permissions {
		if findPermission(&database.User{WebsitePermissions: replaced}, p.Website) >= 0 {
			return ErrConflict
		}
		p.UserID = userID
		replaced = append(replaced, p)
	}
	u.WebsitePermissions = replaced
	return nil
}

func (r *MemoryRepository) DistinctWebsites(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[string]struct{})
	for _, u := range r.users {
		for _, p := range u.WebsitePermissions {
			set[p.Website] = struct{}{}
		}
	}

	websites := make([]string, 0, len(set))
	for w := range set {
		websites = append(websites, w)
	}
	sort.Strings(websites)
	return websites, nil
}

func (r *MemoryRepository) RecordLogin(ctx context.Context, userID uuid.UUID, entry database.LoginHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}

	entry.UserID = userID
	entry.ID = int64(len(u.LoginHistory) + 1)
	u.LoginHistory = append(u.LoginHistory, entry)
	u.LoginCount++
	at := entry.Timestamp
	u.LastLogin = &at
	return nil
}

func (r *MemoryRepository) AppendCookieInsertion(ctx context.Context, userID uuid.UUID, entry database.CookieInsertion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}

	entry.UserID = userID
	entry.ID = int64(len(u.CookieInsertions) + 1)
	u.CookieInsertions = append(u.CookieInsertions, entry)
	return nil
}

func (r *MemoryRepository) CountCookieInsertions(ctx context.Context, userID uuid.UUID) (InsertionCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var counts InsertionCounts
	u, ok := r.users[userID]
	if !ok {
		return counts, ErrNotFound
	}

	for _, ci := range u.CookieInsertions {
		counts.Total++
		if ci.Success {
			counts.Successful++
		}
	}
	return counts, nil
}
