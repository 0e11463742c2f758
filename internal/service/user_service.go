package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notebook/internal/model"
)

const (
	defaultUserPageSize = 50
	maxUserPageSize     = 100
)

type ProfilePatch struct {
	Name      *string
	AvatarURL *string
}

type AdminUserPatch struct {
	Name        *string
	IsActive    *bool
	IsSuperuser *bool
}

type UserPage struct {
	Users []model.User `json:"users"`
	Total int          `json:"total"`
	Skip  int          `json:"skip"`
	Limit int          `json:"limit"`
}

type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Get(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, wrapNotFound(err, "User not found")
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*model.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		user.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*patch.AvatarURL)
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, wrapNotFound(err, "User not found")
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, skip, limit int) (*UserPage, error) {
	if skip < 0 {
		skip = 0
	}
	if limit < 1 {
		limit = defaultUserPageSize
	}
	if limit > maxUserPageSize {
		limit = maxUserPageSize
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, skip, limit)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Total: total, Skip: skip, Limit: limit}, nil
}

// AdminUpdate changes another account. An admin cannot drop their own
// superuser flag or deactivate themselves.
func (s *UserService) AdminUpdate(ctx context.Context, actorID, userID string, patch AdminUserPatch) (*model.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ID == actorID && patch.IsSuperuser != nil && !*patch.IsSuperuser {
		return nil, invalid("Cannot remove your own superuser status")
	}
	if user.ID == actorID && patch.IsActive != nil && !*patch.IsActive {
		return nil, invalid("Cannot deactivate your own account")
	}
	if patch.Name != nil {
		user.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}
	if patch.IsSuperuser != nil {
		user.IsSuperuser = *patch.IsSuperuser
	}
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, wrapNotFound(err, "User not found")
	}
	logutil.GetLogger(ctx).Info("user updated by admin", zap.String("user_id", userID), zap.String("admin_id", actorID))
	return user, nil
}

func (s *UserService) AdminDelete(ctx context.Context, actorID, userID string) error {
	if userID == actorID {
		if _, err := s.Get(ctx, userID); err != nil {
			return err
		}
		return invalid("Cannot delete your own account")
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return wrapNotFound(err, "User not found")
	}
	logutil.GetLogger(ctx).Info("user deleted by admin", zap.String("user_id", userID), zap.String("admin_id", actorID))
	return nil
}
