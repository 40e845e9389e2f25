package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:            "test-jwt-secret-that-is-32-chars-long",
		TokenLifetimeMinutes: 60,
	}
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	t.Run("valid_config", func(t *testing.T) {
		svc, err := NewJWTService(testAuthConfig())
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("short_secret_rejected", func(t *testing.T) {
		cfg := testAuthConfig()
		cfg.JWTSecret = "too-short"
		_, err := NewJWTService(cfg)
		assert.Error(t, err)
	})
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	t.Parallel()

	svc, err := NewJWTService(testAuthConfig())
	require.NoError(t, err)

	ctx := context.Background()
	userID := uuid.New()

	token, err := svc.GenerateToken(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
}

func TestJWTService_ValidateToken_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()

	t.Run("malformed_token", func(t *testing.T) {
		svc, err := NewJWTService(testAuthConfig())
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong_signing_key", func(t *testing.T) {
		issuer, err := NewJWTService(testAuthConfig())
		require.NoError(t, err)

		otherCfg := testAuthConfig()
		otherCfg.JWTSecret = "a-completely-different-32-char-secret!!"
		verifier, err := NewJWTService(otherCfg)
		require.NoError(t, err)

		token, err := issuer.GenerateToken(ctx, userID)
		require.NoError(t, err)

		_, err = verifier.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired_token", func(t *testing.T) {
		svc, err := NewJWTService(testAuthConfig())
		require.NoError(t, err)

		impl := svc.(*hmacJWTService)
		issueTime := time.Now().Add(-2 * time.Hour)
		impl.timeFunc = func() time.Time { return issueTime }

		token, err := svc.GenerateToken(ctx, userID)
		require.NoError(t, err)

		// Validate against real time, well past the one hour lifetime plus
		// clock skew.
		impl.timeFunc = time.Now
		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}
