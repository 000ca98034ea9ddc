package auth_test

import (
	"context"
	"testing"
	"time"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/auth"
	"astrochat/backend/internal/models"
	"astrochat/backend/internal/storage/memstore"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func setup(t *testing.T) (*auth.Verifier, *clock.Mock) {
	t.Helper()
	store := memstore.New()
	store.PutUser(models.User{ID: "u1", Name: "Olena", Role: models.RoleRequester})

	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return auth.NewVerifier(secret, store, clk), clk
}

func TestVerify_Valid(t *testing.T) {
	v, clk := setup(t)
	token, err := auth.NewToken(secret, "u1", clk.Now(), time.Hour)
	require.NoError(t, err)

	user, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "Olena", user.Name)
}

func TestVerify_SubjectFallback(t *testing.T) {
	v, clk := setup(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	user, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestVerify_Failures(t *testing.T) {
	v, clk := setup(t)
	ctx := context.Background()

	expired, _ := auth.NewToken(secret, "u1", clk.Now().Add(-2*time.Hour), time.Hour)
	wrongKey, _ := auth.NewToken("other-secret", "u1", clk.Now(), time.Hour)
	unknown, _ := auth.NewToken(secret, "ghost", clk.Now(), time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{ID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, token := range map[string]string{
		"empty":         "",
		"garbage":       "not-a-jwt",
		"expired":       expired,
		"bad signature": wrongKey,
		"unknown user":  unknown,
		"alg none":      none,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(ctx, token)
			assert.ErrorIs(t, err, apperr.ErrAuthentication)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", auth.BearerToken("Bearer abc"))
	assert.Equal(t, "abc", auth.BearerToken("bearer  abc "))
	assert.Empty(t, auth.BearerToken("Basic abc"))
	assert.Empty(t, auth.BearerToken(""))
}
