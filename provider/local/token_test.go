package local_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-signin/provider/local"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	ts := local.NewTokenService([]byte("secret"), time.Hour, "go-signin")
	user := &local.User{ID: uuid.New(), Email: "ada@example.com"}

	token, issued, expires, err := ts.Generate(user)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, expires.Sub(issued))

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "go-signin", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenServiceRejectsForeignKey(t *testing.T) {
	user := &local.User{ID: uuid.New(), Email: "ada@example.com"}

	token, _, _, err := local.NewTokenService([]byte("one"), time.Hour, "").Generate(user)
	require.NoError(t, err)

	_, err = local.NewTokenService([]byte("two"), time.Hour, "").Validate(token)
	require.Error(t, err)
}

func TestTokenServiceDefaultTTL(t *testing.T) {
	ts := local.NewTokenService([]byte("secret"), 0, "")

	_, issued, expires, err := ts.Generate(&local.User{ID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, local.DefaultTokenTTL, expires.Sub(issued))
}

func TestHashPassword(t *testing.T) {
	hash, err := local.HashPassword("securePassword123!")
	require.NoError(t, err)
	assert.NoError(t, local.ComparePasswordAndHash("securePassword123!", hash))
	assert.ErrorIs(t, local.ComparePasswordAndHash("other", hash), local.ErrMismatchedHashAndPassword)

	_, err = local.HashPassword("")
	assert.ErrorIs(t, err, local.ErrEmptyPassword)
}
