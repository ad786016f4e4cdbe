package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	s := NewTokenService("secret", time.Hour)

	token, err := s.GenerateToken("user-1", "employee")
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "employee", claims.Role)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestValidate_Expired(t *testing.T) {
	s := NewTokenService("secret", time.Hour)
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := s.GenerateToken("user-1", "citizen")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.ValidateToken(token)

	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidate_WrongKey(t *testing.T) {
	token, err := NewTokenService("secret", time.Hour).GenerateToken("user-1", "citizen")
	require.NoError(t, err)

	_, err = NewTokenService("other", time.Hour).ValidateToken(token)

	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidate_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenService("secret", time.Hour).ValidateToken(signed)

	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidate_Garbage(t *testing.T) {
	_, err := NewTokenService("secret", time.Hour).ValidateToken("not-a-token")

	assert.ErrorIs(t, err, ErrTokenInvalid)
}
