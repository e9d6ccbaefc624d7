package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	signed, expires, err := tokens.Issue("a1", "reception", "admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "reception", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "a1", claims.Subject)

	_, err = NewTokens("other", time.Hour).Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	base := time.Now()
	tokens.now = func() time.Time { return base }
	signed, _, err := tokens.Issue("a1", "reception", "admin")
	require.NoError(t, err)

	tokens.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = tokens.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestClaimsContext(t *testing.T) {
	assert.Equal(t, "", Username(context.Background()))
	ctx := WithClaims(context.Background(), &Claims{Username: "reception"})
	assert.Equal(t, "reception", Username(ctx))
}
