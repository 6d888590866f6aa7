package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"accessgate/internal/database"
)

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func (r *GormRepository) CreateUser(ctx context.Context, user *database.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	// Select makes sure zero values such as IsActive=false are written
	// instead of falling back to column defaults.
	result := r.db.WithContext(ctx).
		Select("ID", "Email", "PasswordHash", "Name", "IsAdmin", "IsActive", "ExpiryDate", "PhoneNumber", "CreatedAt").
		Create(user)
	if result.Error != nil {
		return translate(result.Error)
	}
	return nil
}

func (r *GormRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("LoginHistory", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp ASC, id ASC") }).
		Preload("WebsitePermissions", func(db *gorm.DB) *gorm.DB { return db.Order("website ASC") }).
		Preload("CookieInsertions", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp ASC, id ASC") })
}

func (r *GormRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*database.User, error) {
	var user database.User
	if err := r.preloaded(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormRepository) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	var user database.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormRepository) ListUsers(ctx context.Context) ([]database.User, error) {
	var users []database.User
	result := r.db.WithContext(ctx).
		Preload("WebsitePermissions", func(db *gorm.DB) *gorm.DB { return db.Order("website ASC") }).
		Order("created_at DESC").
		Find(&users)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return users, nil
}

func (r *GormRepository) UpdateUser(ctx context.Context, id uuid.UUID, update UserUpdate) (*database.User, error) {
	values := map[string]any{}
	if update.Name != nil {
		values["name"] = *update.Name
	}
	if update.IsActive != nil {
		values["is_active"] = *update.IsActive
	}
	if update.ClearExpiryDate {
		values["expiry_date"] = nil
	} else if update.ExpiryDate != nil {
		values["expiry_date"] = *update.ExpiryDate
	}
	if update.PasswordHash != nil {
		values["password_hash"] = *update.PasswordHash
	}
	if update.PhoneNumber != nil {
		values["phone_number"] = *update.PhoneNumber
	}

	if len(values) > 0 {
		result := r.db.WithContext(ctx).Model(&database.User{}).Where("id = ?", id).Updates(values)
		if result.Error != nil {
			return nil, translate(result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	return r.GetUserByID(ctx, id)
}

func (r *GormRepository) SetActive(ctx context.Context, ids []uuid.UUID, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Model(&database.User{}).
		Where("id IN ? AND is_active <> ?", ids, active).
		Update("is_active", active)
	if result.Error != nil {
		return 0, translate(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *GormRepository) GetPermission(ctx context.Context, userID uuid.UUID, website string) (*database.WebsitePermission, error) {
	var permission database.WebsitePermission
	result := r.db.WithContext(ctx).First(&permission, "user_id = ? AND website = ?", userID, website)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &permission, nil
}

func (r *GormRepository) GrantPermission(ctx context.Context, userID uuid.UUID, website string, approvedBy uuid.UUID) error {
	permission := database.WebsitePermission{
		UserID:     userID,
		Website:    website,
		HasAccess:  true,
		ApprovedBy: &approvedBy,
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "website"}},
		DoUpdates: clause.AssignmentColumns([]string{"has_access", "last_accessed", "approved_by"}),
	}).Create(&permission)
	if result.Error != nil {
		return translate(result.Error)
	}
	return nil
}

func (r *GormRepository) RevokePermission(ctx context.Context, userID uuid.UUID, website string) error {
	permission := database.WebsitePermission{
		UserID:    userID,
		Website:   website,
		HasAccess: false,
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "website"}},
		DoUpdates: clause.AssignmentColumns([]string{"has_access"}),
	}).Create(&permission)
	if result.Error != nil {
		return translate(result.Error)
	}
	return nil
}

func (r *GormRepository) TouchPermission(ctx context.Context, userID uuid.UUID, website string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&database.WebsitePermission{}).
		Where("user_id = ? AND website = ?", userID, website).
		Update("last_accessed", at)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) ReplacePermissions(ctx context.Context, userID uuid.UUID, permissions []database.WebsitePermission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the owning row so concurrent replacements for the same user
		// are applied one after the other.
		var user database.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&user, "id = ?", userID).Error; err != nil {
			return translate(err)
		}

		if err := tx.Where("user_id = ?", userID).Delete(&database.WebsitePermission{}).Error; err != nil {
			return translate(err)
		}

		if len(permissions) == 0 {
			return nil
		}

		rows := make([]database.WebsitePermission, len(permissions))
		for i, p := range permissions {
			p.UserID = userID
			rows[i] = p
		}

		if err := tx.Create(&rows).Error; err != nil {
			return translate(err)
		}
		return nil
	})
}

func (r *GormRepository) DistinctWebsites(ctx context.Context) ([]string, error) {
	var websites []string
	result := r.db.WithContext(ctx).
		Model(&database.WebsitePermission{}).
		Distinct("website").
		Order("website ASC").
		Pluck("website", &websites)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return websites, nil
}

func (r *GormRepository) RecordLogin(ctx context.Context, userID uuid.UUID, entry database.LoginHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&database.User{}).
			Where("id = ?", userID).
			Updates(map[string]any{
				"login_count": gorm.Expr("login_count + 1"),
				"last_login":  entry.Timestamp,
			})
		if result.Error != nil {
			return translate(result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		entry.ID = 0
		entry.UserID = userID
		if err := tx.Create(&entry).Error; err != nil {
			return translate(err)
		}
		return nil
	})
}

func (r *GormRepository) AppendCookieInsertion(ctx context.Context, userID uuid.UUID, entry database.CookieInsertion) error {
	entry.ID = 0
	entry.UserID = userID
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *GormRepository) CountCookieInsertions(ctx context.Context, userID uuid.UUID) (InsertionCounts, error) {
	var counts InsertionCounts
	result := r.db.WithContext(ctx).
		Model(&database.CookieInsertion{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE success) AS successful").
		Where("user_id = ?", userID).
		Scan(&counts)
	if result.Error != nil {
		return counts, translate(result.Error)
	}
	return counts, nil
}
