package user

import (
	"context"
	"testing"

	"github.com/nao1215/vaultdesk/internal/notification"
	"github.com/nao1215/vaultdesk/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	r := NewRepository(storetest.New(t))
	r.cost = bcrypt.MinCost
	return r
}

func mustCreate(t *testing.T, r *Repository, p CreateParams) User {
	t.Helper()
	if p.Password == "" {
		p.Password = "password123"
	}
	u, err := r.Create(context.Background(), p)
	require.NoError(t, err)
	return u
}

func TestRepositoryCreateAndAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRepo(t)

	u := mustCreate(t, r, CreateParams{Username: "alice", Password: "s3cret-pass", Email: "alice@example.com"})
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)

	_, err := r.Create(ctx, CreateParams{Username: "alice", Password: "other-pass"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	got, err := r.Authenticate(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = r.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = r.Authenticate(ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// 新規ユーザーの通知設定は両方有効
	pref, err := notification.NewPreferences(r.db).Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.DefaultPreference(), pref)
}

func TestRepositoryDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRepo(t)

	admin1 := mustCreate(t, r, CreateParams{Username: "b-admin", Email: "b@example.com", IsAdmin: true})
	admin2 := mustCreate(t, r, CreateParams{Username: "a-admin", IsAdmin: true})
	plain := mustCreate(t, r, CreateParams{Username: "user"})

	rc, err := r.GetRecipient(ctx, admin1.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.Recipient{ID: admin1.ID, Username: "b-admin", Email: "b@example.com", IsAdmin: true}, rc)

	_, err = r.GetRecipient(ctx, "missing")
	assert.ErrorIs(t, err, notification.ErrNotFound)

	admins, err := r.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, admin2.ID, admins[0].ID)
	assert.Equal(t, admin1.ID, admins[1].ID)

	recipients, err := notification.SingleUser(plain.ID).Resolve(ctx, r)
	require.NoError(t, err)
	assert.Len(t, recipients, 1)
}

func TestRepositoryChangePassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRepo(t)
	u := mustCreate(t, r, CreateParams{Username: "alice", Password: "old-password"})

	assert.ErrorIs(t, r.ChangePassword(ctx, u.ID, "wrong", "new-password"), ErrInvalidCredentials)
	assert.ErrorIs(t, r.ChangePassword(ctx, "missing", "old-password", "new-password"), ErrNotFound)
	require.NoError(t, r.ChangePassword(ctx, u.ID, "old-password", "new-password"))

	_, err := r.Authenticate(ctx, "alice", "new-password")
	assert.NoError(t, err)
}

func TestRepositoryLastAdminGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRepo(t)

	admin := mustCreate(t, r, CreateParams{Username: "root", IsAdmin: true})
	plain := mustCreate(t, r, CreateParams{Username: "user"})

	assert.ErrorIs(t, r.Delete(ctx, admin.ID), ErrLastAdmin)
	assert.ErrorIs(t, r.Update(ctx, admin.ID, AdminUpdate{Name: "root"}), ErrLastAdmin)

	// 2人目の管理者がいれば降格できる
	require.NoError(t, r.Update(ctx, plain.ID, AdminUpdate{Name: "user", IsAdmin: true}))
	require.NoError(t, r.Update(ctx, admin.ID, AdminUpdate{Name: "root"}))

	assert.ErrorIs(t, r.Delete(ctx, "missing"), ErrNotFound)
	require.NoError(t, r.Delete(ctx, admin.ID))
	_, err := r.Get(ctx, admin.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryEnsureAdmin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRepo(t)

	u, created, err := r.EnsureAdmin(ctx, CreateParams{Username: "admin", Password: "bootstrap-pass"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, u.IsAdmin)

	_, created, err = r.EnsureAdmin(ctx, CreateParams{Username: "admin2", Password: "bootstrap-pass"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestRepositoryUpdateProfile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRepo(t)
	u := mustCreate(t, r, CreateParams{Username: "alice"})

	require.NoError(t, r.UpdateProfile(ctx, u.ID, Profile{Name: "Alice", Email: "a@example.com", Department: "IT"}))
	got, err := r.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "IT", got.Department)

	assert.ErrorIs(t, r.UpdateProfile(ctx, "missing", Profile{}), ErrNotFound)
}
