package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/amiaygpt/chat-platform/internal/apperr"
	"github.com/amiaygpt/chat-platform/internal/auth"
	"github.com/amiaygpt/chat-platform/internal/model"
	"github.com/amiaygpt/chat-platform/internal/store"
	"github.com/amiaygpt/chat-platform/pkg/logger"
)

// UserService handles accounts, credentials and preferences.
type UserService struct {
	store      *store.Store
	tokens     *auth.TokenIssuer
	bcryptCost int
	logger     *logger.Logger
}

// NewUserService creates a new user service.
func NewUserService(st *store.Store, tokens *auth.TokenIssuer, bcryptCost int, log *logger.Logger) *UserService {
	return &UserService{
		store:      st,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     log,
	}
}

// Register creates an account and signs the caller in. Input format is
// checked by the HTTP layer; uniqueness is checked here.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)

	exists, err := s.store.UserExists(ctx, email, username)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if exists {
		return nil, userExists()
	}

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    nonEmpty(req.FirstName),
		LastName:     nonEmpty(req.LastName),
		IsActive:     true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, userExists()
		}
		return nil, apperr.Internal(err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s.logger.Info("user registered", zap.Uint64("user_id", user.ID))

	return &model.AuthResponse{
		Message: "account created",
		User:    user,
		Token:   token,
	}, nil
}

// Login verifies credentials. A disabled account is reported before the
// password is checked.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if !user.IsActive {
		return nil, apperr.Unauthenticated(apperr.CodeAccountDisabled, "account disabled")
	}

	ok, err := auth.CheckPassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, invalidCredentials()
	}

	if err := s.store.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, apperr.Internal(err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user, err = s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &model.AuthResponse{
		Message: "login successful",
		User:    user,
		Token:   token,
	}, nil
}

// Profile returns the user's account.
func (s *UserService) Profile(ctx context.Context, userID uint64) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, userNotFoundOr(err)
	}
	return user, nil
}

// UpdateProfile overwrites the optional profile fields. Omitted or empty
// fields are cleared.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint64, req *model.UpdateProfileRequest) (*model.User, error) {
	err := s.store.UpdateProfile(ctx, userID, nonEmpty(req.FirstName), nonEmpty(req.LastName), nonEmpty(req.AvatarURL))
	if err != nil {
		return nil, userNotFoundOr(err)
	}
	return s.Profile(ctx, userID)
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID uint64, req *model.ChangePasswordRequest) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return userNotFoundOr(err)
	}

	ok, err := auth.CheckPassword(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.Unauthenticated(apperr.CodeInvalidPassword, "current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return userNotFoundOr(err)
	}

	s.logger.Info("password changed", zap.Uint64("user_id", userID))
	return nil
}

// Preferences returns the user's display settings.
func (s *UserService) Preferences(ctx context.Context, userID uint64) (*model.UserPreferences, error) {
	prefs, err := s.store.GetPreferences(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &model.UserPreferences{UserID: userID, Theme: "system", Language: "en"}, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return prefs, nil
}

// UpdatePreferences changes the provided settings and keeps the others.
func (s *UserService) UpdatePreferences(ctx context.Context, userID uint64, req *model.UpdatePreferencesRequest) (*model.UserPreferences, error) {
	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Theme != nil {
		prefs.Theme = *req.Theme
	}
	if req.Language != nil {
		prefs.Language = *req.Language
	}
	if err := s.store.SavePreferences(ctx, prefs); err != nil {
		return nil, apperr.Internal(err)
	}
	return prefs, nil
}

// IsActive reports whether the user exists and is enabled.
func (s *UserService) IsActive(ctx context.Context, userID uint64) (bool, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.IsActive, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func userExists() *apperr.Error {
	return apperr.Conflict(apperr.CodeUserExists, "a user with this email or username already exists")
}

func invalidCredentials() *apperr.Error {
	return apperr.Unauthenticated(apperr.CodeInvalidCredentials, "incorrect email or password")
}

func userNotFoundOr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(apperr.CodeUserNotFound, "user not found")
	}
	return apperr.Internal(err)
}
