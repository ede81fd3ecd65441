package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/crypto/bcrypt"

	"imgshare-backend/internal/kvstore"
	"imgshare-backend/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
)

const usersHKey = "auth:users"

// AuthService keeps the account registry in the key-value store and checks
// credentials. Deleted users stay in the store as soft-deleted entries and
// are invisible to every lookup.
type AuthService struct {
	kv kvstore.Store
}

func NewAuthService(kv kvstore.Store) *AuthService {
	return &AuthService{kv: kv}
}

// Authenticate verifies the password and returns the account. Unknown,
// deleted and wrong-password cases are indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.getAny(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Deleted {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser returns a live account or ErrUserNotFound.
func (s *AuthService) GetUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.getAny(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.Deleted {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ListUsers returns all live accounts sorted by username.
func (s *AuthService) ListUsers(ctx context.Context) ([]*models.User, error) {
	all, err := s.kv.GetAll(ctx, usersHKey)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(all))
	for _, raw := range all {
		if raw == "" {
			continue
		}
		var user models.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			continue
		}
		if user.Deleted {
			continue
		}
		users = append(users, &user)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

// CreateUser registers a new account with a bcrypt password hash.
func (s *AuthService) CreateUser(ctx context.Context, username, password string, role models.UserRole, maxImages int) (*models.User, error) {
	existing, err := s.getAny(ctx, username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if existing != nil && !existing.Deleted {
		return nil, ErrUserExists
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(bytes),
		Role:         role,
		MaxImages:    maxImages,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// MarkDeleted soft-deletes the account; it stays in the store but no
// longer authenticates or shows up in listings.
func (s *AuthService) MarkDeleted(ctx context.Context, username string) error {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	user.Deleted = true
	user.DeletedAt = &now
	return s.save(ctx, user)
}

// EnsureAdmin bootstraps the admin account from the configured password.
// An existing admin is left untouched.
func (s *AuthService) EnsureAdmin(ctx context.Context, password string, maxImages int) error {
	_, err := s.getAny(ctx, "admin")
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if password == "" {
		return errors.New("admin account missing and no bootstrap password configured")
	}

	_, err = s.CreateUser(ctx, "admin", password, models.UserRoleAdmin, maxImages)
	return err
}

// getAny returns the account regardless of its deleted flag.
func (s *AuthService) getAny(ctx context.Context, username string) (*models.User, error) {
	raw, err := s.kv.Get(ctx, usersHKey, username)
	if errors.Is(err, kvstore.ErrNotFound) || (err == nil && raw == "") {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode user %q: %w", username, err)
	}
	return &user, nil
}

func (s *AuthService) save(ctx context.Context, user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, usersHKey, user.Username, string(raw))
}
