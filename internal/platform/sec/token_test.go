// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package sec_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basms/sessiond/internal/platform/sec"
)

/*
TestPeekClaims verifies unverified claim extraction from a well-formed JWT.
*/
func TestPeekClaims(t *testing.T) {
	expiry := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(expiry),
	})
	signed, err := token.SignedString([]byte("any-key"))
	require.NoError(t, err)

	claims, err := sec.PeekClaims(signed)
	require.NoError(t, err)

	assert.Equal(t, "u-1", claims.Subject)
	assert.True(t, expiry.Equal(claims.ExpiresAt))
}

/*
TestPeekExpiry covers the degradation ladder: a valid exp claim, a token
without one, and garbage input all resolve without error.
*/
func TestPeekExpiry(t *testing.T) {
	t.Run("token_without_expiry", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u-1"})
		signed, err := token.SignedString([]byte("any-key"))
		require.NoError(t, err)

		assert.True(t, sec.PeekExpiry(signed).IsZero())
	})

	t.Run("opaque_token", func(t *testing.T) {
		assert.True(t, sec.PeekExpiry("not-a-jwt").IsZero())
	})
}

/*
TestHashToken verifies determinism and that the digest never echoes input.
*/
func TestHashToken(t *testing.T) {
	first := sec.HashToken("access-token-1")
	second := sec.HashToken("access-token-1")
	other := sec.HashToken("access-token-2")

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.Len(t, first, 64) // hex SHA-256
	assert.NotContains(t, first, "access-token")
}
