package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blogsphere/blogapi/internal/models"
)

// UserRepository provides user-related database operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "username = ?", username)
}

// GetByVerificationToken retrieves the user holding an unexpired email
// verification token
func (r *UserRepository) GetByVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return r.first(ctx, "email_verification_token = ? AND email_verification_expires > ?", tokenHash, now)
}

// GetByResetToken retrieves the user holding an unexpired password reset token
func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return r.first(ctx, "password_reset_token = ? AND password_reset_expires > ?", tokenHash, now)
}

func (r *UserRepository) first(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return r.db.WithContext(ctx).Create(user).Error
}

// Update saves every column of the user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return r.db.WithContext(ctx).Save(user).Error
}

// PurgeExpiredTokens clears verification and reset tokens that have expired
func (r *UserRepository) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	db := r.db.WithContext(ctx).Model(&models.User{})

	verification := db.Where("email_verification_expires < ?", now).
		UpdateColumns(map[string]interface{}{
			"email_verification_token":   nil,
			"email_verification_expires": nil,
		})
	if verification.Error != nil {
		return 0, verification.Error
	}

	reset := r.db.WithContext(ctx).Model(&models.User{}).Where("password_reset_expires < ?", now).
		UpdateColumns(map[string]interface{}{
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		})
	if reset.Error != nil {
		return verification.RowsAffected, reset.Error
	}

	return verification.RowsAffected + reset.RowsAffected, nil
}
