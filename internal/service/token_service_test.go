package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService("test-secret", "chainpay")

	token, expiresAt, err := svc.Generate("xion1owner", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "xion1owner", claims.Owner)
}

func TestJWTTokenService_Expired(t *testing.T) {
	svc := NewJWTTokenService("test-secret", "chainpay")

	token, _, err := svc.Generate("xion1owner", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTTokenService_WrongSecret(t *testing.T) {
	token, _, err := NewJWTTokenService("secret-a", "chainpay").Generate("xion1owner", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTTokenService("secret-b", "chainpay").Validate(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	token, _, err := NewJWTTokenService("test-secret", "someone-else").Generate("xion1owner", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTTokenService("test-secret", "chainpay").Validate(token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestJWTTokenService_RejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.MapClaims{"sub": "xion1owner", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTTokenService("test-secret", "").Validate(token)
	assert.Error(t, err)
}

func TestJWTTokenService_MissingSubject(t *testing.T) {
	claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = NewJWTTokenService("test-secret", "").Validate(token)
	assert.EqualError(t, err, "missing subject claim")
}
