package services

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"imgshare-backend/internal/blobstore"
	"imgshare-backend/internal/models"
	"imgshare-backend/internal/store"
)

var ErrAdminImmutable = errors.New("cannot delete admin user")

// UserService implements the admin-only account operations: creation with
// a quota grant, and deletion with best-effort cleanup of everything the
// account owned.
type UserService struct {
	auth    *AuthService
	blobs   blobstore.Store
	records *store.RecordStore
	quotas  *store.QuotaLedger

	log *zap.Logger
}

func NewUserService(auth *AuthService, blobs blobstore.Store, records *store.RecordStore, quotas *store.QuotaLedger, log *zap.Logger) *UserService {
	return &UserService{
		auth:    auth,
		blobs:   blobs,
		records: records,
		quotas:  quotas,
		log:     log,
	}
}

// Create registers a non-admin account and grants it a fresh quota.
func (s *UserService) Create(ctx context.Context, username, password string, maxImages int) (*models.User, models.Quota, error) {
	user, err := s.auth.CreateUser(ctx, username, password, models.UserRoleUser, maxImages)
	if err != nil {
		return nil, models.Quota{}, err
	}

	if err := s.quotas.Reset(ctx, username, maxImages); err != nil {
		return nil, models.Quota{}, err
	}
	return user, models.Quota{Max: maxImages, Used: 0}, nil
}

// Delete soft-deletes an account: its file records and events are
// tombstoned, its quota drops to {0, 0} and the account stops
// authenticating. Blob deletion is best effort; failures are logged and
// swallowed so metadata stays consistent even when the blob service
// misbehaves.
func (s *UserService) Delete(ctx context.Context, username string) ([]string, error) {
	if username == "admin" {
		return nil, ErrAdminImmutable
	}

	if _, err := s.auth.GetUser(ctx, username); err != nil {
		return nil, err
	}

	owned, err := s.records.ListByOwner(ctx, username)
	if err != nil {
		return nil, err
	}

	var cleanupErrs *multierror.Error
	removed := make([]string, 0, len(owned))
	for _, rec := range owned {
		if derr := s.blobs.Delete(ctx, rec.CID); derr != nil {
			cleanupErrs = multierror.Append(cleanupErrs, derr)
		}
		if err := s.records.Remove(ctx, rec.CID); err != nil {
			return removed, err
		}
		removed = append(removed, rec.CID)
	}
	if err := cleanupErrs.ErrorOrNil(); err != nil {
		s.log.Warn("blob cleanup incomplete during user deletion",
			zap.String("user", username), zap.Error(err))
	}

	if err := s.records.RemoveEventsForUser(ctx, username); err != nil {
		return removed, err
	}
	if err := s.quotas.Reset(ctx, username, 0); err != nil {
		return removed, err
	}
	if err := s.auth.MarkDeleted(ctx, username); err != nil {
		return removed, err
	}

	return removed, nil
}

// ListWithQuotas returns every live account together with its quota.
func (s *UserService) ListWithQuotas(ctx context.Context) ([]UserWithQuota, error) {
	users, err := s.auth.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]UserWithQuota, 0, len(users))
	for _, user := range users {
		quota, err := s.quotas.Get(ctx, user.Username)
		if err != nil {
			return nil, err
		}
		out = append(out, UserWithQuota{User: user.Public(), Quota: quota})
	}
	return out, nil
}

type UserWithQuota struct {
	User  models.PublicUser `json:"user"`
	Quota models.Quota      `json:"quota"`
}
