package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edulens-auth/config"
	"edulens-auth/repository/memstore"
	"edulens-auth/services/token"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:        "test-access-secret",
		JWTRefreshSecret: "test-refresh-secret",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		StepTokenTTL:     5 * time.Minute,
	}
}

func newService(t *testing.T) (*token.Service, *memstore.SessionStore) {
	t.Helper()
	sessions := memstore.NewSessionStore()
	return token.NewService(sessions, testConfig()), sessions
}

func TestIssuePairAndVerifyAccess(t *testing.T) {
	svc, sessions := newService(t)

	pair, err := svc.IssuePair("user-1", "PARENT")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, 1, sessions.Len())

	claims, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "PARENT", claims.Role)
	assert.False(t, claims.IsStaff)
}

func TestStaffTokensCarryStaffClaim(t *testing.T) {
	svc := token.NewStaffService(memstore.NewSessionStore(), testConfig())

	pair, err := svc.IssuePair("staff-1", "ADMIN")
	require.NoError(t, err)

	claims, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsStaff)
	assert.Equal(t, "ADMIN", claims.Role)
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	svc, _ := newService(t)

	pair, err := svc.IssuePair("user-1", "PARENT")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, token.ErrInvalidAccessToken)
}

func TestVerifyAccessRejectsGarbage(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.VerifyAccess("not.a.token")
	assert.ErrorIs(t, err, token.ErrInvalidAccessToken)
}

func TestRefreshRotatesSession(t *testing.T) {
	svc, sessions := newService(t)

	pair, err := svc.IssuePair("user-1", "PARENT")
	require.NoError(t, err)

	newPair, userID, err := svc.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)
	assert.Equal(t, 1, sessions.Len())

	// Rotation is single-use: the old token is dead.
	_, _, err = svc.Refresh(pair.RefreshToken)
	assert.ErrorIs(t, err, token.ErrInvalidRefreshToken)

	// The replacement still works.
	_, _, err = svc.Refresh(newPair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	svc, _ := newService(t)

	_, _, err := svc.Refresh("garbage")
	assert.ErrorIs(t, err, token.ErrInvalidRefreshToken)
}

func TestRefreshRejectsForeignSignature(t *testing.T) {
	svc, _ := newService(t)

	otherCfg := testConfig()
	otherCfg.JWTRefreshSecret = "some-other-secret"
	other := token.NewService(memstore.NewSessionStore(), otherCfg)

	pair, err := other.IssuePair("user-1", "PARENT")
	require.NoError(t, err)

	_, _, err = svc.Refresh(pair.RefreshToken)
	assert.ErrorIs(t, err, token.ErrInvalidRefreshToken)
}

func TestRefreshRejectsExpiredSessionRow(t *testing.T) {
	svc, sessions := newService(t)

	pair, err := svc.IssuePair("user-1", "PARENT")
	require.NoError(t, err)

	sessions.Expire(pair.RefreshToken)

	_, _, err = svc.Refresh(pair.RefreshToken)
	assert.ErrorIs(t, err, token.ErrInvalidRefreshToken)
}

func TestRevokeIsIdempotent(t *testing.T) {
	svc, sessions := newService(t)

	pair, err := svc.IssuePair("user-1", "PARENT")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(pair.RefreshToken))
	assert.Equal(t, 0, sessions.Len())
	require.NoError(t, svc.Revoke(pair.RefreshToken))
	require.NoError(t, svc.Revoke("never-existed"))

	_, _, err = svc.Refresh(pair.RefreshToken)
	assert.ErrorIs(t, err, token.ErrInvalidRefreshToken)
}

func TestTwoFactorTokenRoundTrip(t *testing.T) {
	svc, _ := newService(t)

	sessionToken, err := svc.IssueTwoFactorToken("staff-1")
	require.NoError(t, err)

	staffID, err := svc.VerifyTwoFactorToken(sessionToken)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", staffID)
}

func TestTwoFactorTokenIsNotAnAccessToken(t *testing.T) {
	svc, _ := newService(t)

	sessionToken, err := svc.IssueTwoFactorToken("staff-1")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(sessionToken)
	assert.ErrorIs(t, err, token.ErrInvalidAccessToken)
}

func TestAccessTokenIsNotATwoFactorToken(t *testing.T) {
	svc, _ := newService(t)

	pair, err := svc.IssuePair("user-1", "PARENT")
	require.NoError(t, err)

	_, err = svc.VerifyTwoFactorToken(pair.AccessToken)
	assert.ErrorIs(t, err, token.ErrInvalidStepToken)
}
