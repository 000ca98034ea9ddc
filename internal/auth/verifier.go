// Package auth resolves bearer credentials into identities.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"astrochat/backend/internal/apperr"
	"astrochat/backend/internal/models"
	"astrochat/backend/internal/storage"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload issued by the account service. It puts the user id in "_id";
// older tokens carry it in "sub" only.
type Claims struct {
	ID string `json:"_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Subject
}

// UserLookup is the part of storage the verifier needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type Verifier struct {
	secret []byte
	users  UserLookup
	clock  clock.Clock
}

func NewVerifier(secret string, users UserLookup, clk clock.Clock) *Verifier {
	if clk == nil {
		clk = clock.New()
	}
	return &Verifier{secret: []byte(secret), users: users, clock: clk}
}

// Verify checks signature and expiry of token and loads the user it names.
// Every failure is an authentication error.
func (v *Verifier) Verify(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.Authentication("Authentication required", nil)
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil {
		return nil, apperr.Authentication("Invalid or expired token", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID() == "" {
		return nil, apperr.Authentication("Invalid or expired token", jwt.ErrTokenInvalidClaims)
	}

	user, err := v.users.GetUserByID(ctx, claims.UserID())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Authentication("User not found", err)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}
	return user, nil
}

// NewToken signs an HS256 token for userID. Real tokens come from the account
// service; this exists for local tooling and tests.
func NewToken(secret, userID string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := &Claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// BearerToken extracts the credential from an "Authorization: Bearer <token>" value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
