package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateToken("user-1", "a@b.c", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "a@b.c", claims.Email)
	require.NotEmpty(t, claims.ID)
}

func TestParseToken_RejectsExpiredAndForeign(t *testing.T) {
	secret := []byte("secret")
	expired, err := GenerateToken("user-1", "", secret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired, secret)
	require.Error(t, err)

	token, err := GenerateToken("user-1", "", []byte("other"), time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(token, secret)
	require.Error(t, err)
}
