package store

import (
	"context"
	"fmt"

	"github.com/amiaygpt/chat-platform/internal/model"
)

// CreateUser inserts a user together with its default preferences.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.db.Create(user).Error; err != nil {
			return fmt.Errorf("failed to insert user: %w", translate(err))
		}
		prefs := &model.UserPreferences{UserID: user.ID, Theme: "system", Language: "en"}
		if err := tx.db.Create(prefs).Error; err != nil {
			return fmt.Errorf("failed to insert preferences: %w", translate(err))
		}
		return nil
	})
}

// UserExists reports whether a user with the email or username exists.
func (s *Store) UserExists(ctx context.Context, email, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query users: %w", err)
	}
	return count > 0, nil
}

// GetUserByID returns a user by id.
func (s *Store) GetUserByID(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByEmail returns a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id uint64) error {
	now := s.now()
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login", now).Error
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdateProfile overwrites the optional profile fields.
func (s *Store) UpdateProfile(ctx context.Context, id uint64, firstName, lastName, avatarURL *string) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"first_name": firstName,
			"last_name":  lastName,
			"avatar_url": avatarURL,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePasswordHash replaces a user's password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("password_hash", hash)
	if res.Error != nil {
		return fmt.Errorf("failed to update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserActive enables or disables an account.
func (s *Store) SetUserActive(ctx context.Context, id uint64, active bool) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return fmt.Errorf("failed to update user status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPreferences returns a user's preferences.
func (s *Store) GetPreferences(ctx context.Context, userID uint64) (*model.UserPreferences, error) {
	var prefs model.UserPreferences
	if err := s.db.WithContext(ctx).First(&prefs, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &prefs, nil
}

// SavePreferences upserts a user's preferences.
func (s *Store) SavePreferences(ctx context.Context, prefs *model.UserPreferences) error {
	if err := s.db.WithContext(ctx).Save(prefs).Error; err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
