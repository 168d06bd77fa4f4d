package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlaps/apexfantasy/models"
)

func newAuthService(f *fixture) *AuthService {
	return NewAuthService(f.resolver, []byte("test-secret"), time.Hour, 300, testLogger())
}

func TestSignUp(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f)

	manager, err := svc.SignUp(context.Background(), f.season, models.Credentials{
		Username: "alice",
		Password: "correcthorse",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, manager.Role)
	assert.InDelta(t, 300, manager.Budget, 1e-9)
	assert.NotEqual(t, "correcthorse", manager.PasswordHash)
}

func TestSignUpValidation(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f)

	_, err := svc.SignUp(context.Background(), f.season, models.Credentials{Username: "  ", Password: "correcthorse"})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = svc.SignUp(context.Background(), f.season, models.Credentials{Username: "alice", Password: "short"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestSignUpDuplicateUsername(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f)
	creds := models.Credentials{Username: "alice", Password: "correcthorse"}

	_, err := svc.SignUp(context.Background(), f.season, creds)
	require.NoError(t, err)

	_, err = svc.SignUp(context.Background(), f.season, creds)
	assert.ErrorIs(t, err, ErrUsernameConflict)
}

func TestSignInAndParseToken(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f)
	creds := models.Credentials{Username: "alice", Password: "correcthorse"}

	created, err := svc.SignUp(context.Background(), f.season, creds)
	require.NoError(t, err)

	token, manager, err := svc.SignIn(context.Background(), f.season, creds)
	require.NoError(t, err)
	assert.Equal(t, created.ID, manager.ID)
	require.NotEmpty(t, token)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.ManagerID)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.Equal(t, f.season, claims.Season)
}

func TestSignInWrongPassword(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f)

	_, err := svc.SignUp(context.Background(), f.season, models.Credentials{Username: "alice", Password: "correcthorse"})
	require.NoError(t, err)

	_, _, err = svc.SignIn(context.Background(), f.season, models.Credentials{Username: "alice", Password: "battery"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.SignIn(context.Background(), f.season, models.Credentials{Username: "nobody", Password: "correcthorse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseTokenGarbage(t *testing.T) {
	f := newFixture()
	svc := newAuthService(f)

	_, err := svc.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
