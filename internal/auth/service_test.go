package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/conformia/conformia/internal/shared"
	"github.com/conformia/conformia/internal/users"
)

type fakeUsers struct {
	byEmail map[string]users.User
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (users.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return u, nil
}

type fakeSessions struct {
	created []string
	deleted []string
}

func (f *fakeSessions) CreateSession(_ context.Context, id string, _ int64, _ time.Time, _, _ string) error {
	f.created = append(f.created, id)
	return nil
}

func (f *fakeSessions) DeleteSession(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func testUser(t *testing.T, password string, active bool) users.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return users.User{
		ID:           1,
		Email:        "renata@conformia.local",
		Name:         "Renata Prado",
		Role:         "RESPONSAVEL",
		UnitID:       2,
		PasswordHash: string(hash),
		IsActive:     active,
	}
}

func TestAuthenticate(t *testing.T) {
	u := testUser(t, "segredo123", true)
	svc := NewService(&fakeUsers{byEmail: map[string]users.User{u.Email: u}}, &fakeSessions{})

	got, err := svc.Authenticate(context.Background(), u.Email, "segredo123")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, u.Role, got.Role)
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	active := testUser(t, "segredo123", true)
	inactive := testUser(t, "segredo123", false)
	inactive.Email = "saiu@conformia.local"
	svc := NewService(&fakeUsers{byEmail: map[string]users.User{
		active.Email:   active,
		inactive.Email: inactive,
	}}, &fakeSessions{})
	ctx := context.Background()

	// Unknown account, wrong password and deactivated account all report the
	// same error.
	_, err := svc.Authenticate(ctx, "nobody@conformia.local", "segredo123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, active.Email, "errada")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, inactive.Email, "segredo123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestSessionLifecycle(t *testing.T) {
	u := testUser(t, "segredo123", true)
	sessions := &fakeSessions{}
	svc := NewService(&fakeUsers{byEmail: map[string]users.User{u.Email: u}}, sessions)
	ctx := context.Background()

	require.NoError(t, svc.RegisterSession(ctx, "sess-1", u.ID, time.Now().Add(time.Hour), "10.0.0.1", "cli"))
	require.NoError(t, svc.RemoveSession(ctx, "sess-1"))
	require.Equal(t, []string{"sess-1"}, sessions.created)
	require.Equal(t, []string{"sess-1"}, sessions.deleted)
}
