package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notebook/internal/model"
	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
)

func seedUsers(users *fakeUserStore, ids ...string) {
	for _, id := range ids {
		users.users[id] = &model.User{ID: id, Email: id + "@x.io", IsActive: true}
	}
}

func TestUserProfileUpdate(t *testing.T) {
	users := newFakeUserStore()
	seedUsers(users, "u1")
	svc := NewUserService(users)

	name := " New Name "
	got, err := svc.UpdateProfile(context.Background(), "u1", ProfilePatch{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "New Name", got.Name)
	require.Equal(t, "New Name", users.users["u1"].Name)

	_, err = svc.UpdateProfile(context.Background(), "ghost", ProfilePatch{Name: &name})
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.Equal(t, "User not found", err.Error())
}

func TestUserListClampsLimit(t *testing.T) {
	users := newFakeUserStore()
	seedUsers(users, "a", "b")
	svc := NewUserService(users)

	page, err := svc.List(context.Background(), -3, 0)
	require.NoError(t, err)
	require.Equal(t, 0, page.Skip)
	require.Equal(t, 50, page.Limit)
	require.Equal(t, 2, page.Total)

	page, err = svc.List(context.Background(), 0, 1000)
	require.NoError(t, err)
	require.Equal(t, 100, page.Limit)
}

func TestAdminSelfProtection(t *testing.T) {
	users := newFakeUserStore()
	seedUsers(users, "admin", "other")
	users.users["admin"].IsSuperuser = true
	svc := NewUserService(users)
	ctx := context.Background()
	no := false

	_, err := svc.AdminUpdate(ctx, "admin", "admin", AdminUserPatch{IsSuperuser: &no})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Equal(t, "Cannot remove your own superuser status", err.Error())
	_, err = svc.AdminUpdate(ctx, "admin", "admin", AdminUserPatch{IsActive: &no})
	require.Equal(t, "Cannot deactivate your own account", err.Error())
	err = svc.AdminDelete(ctx, "admin", "admin")
	require.Equal(t, "Cannot delete your own account", err.Error())

	updated, err := svc.AdminUpdate(ctx, "admin", "other", AdminUserPatch{IsActive: &no})
	require.NoError(t, err)
	require.False(t, updated.IsActive)

	require.NoError(t, svc.AdminDelete(ctx, "admin", "other"))
	err = svc.AdminDelete(ctx, "admin", "other")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
