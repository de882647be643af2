package local

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const textCodeTokenMalformed = "TOKEN_MALFORMED"

// ErrTokenMalformed is returned when a session token cannot be validated
var ErrTokenMalformed = goerrors.New("malformed session token", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// DefaultTokenTTL is used when TokenService is created with a zero ttl
const DefaultTokenTTL = 24 * time.Hour

// Claims are the JWT claims carried by a session token
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// TokenService signs session tokens with HS256
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	now        func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		now:        time.Now,
	}
}

// Generate signs a token for user and returns it with its issue and expiry times
func (ts *TokenService) Generate(user *User) (string, time.Time, time.Time, error) {
	now := ts.now()
	expires := now.Add(ts.ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", time.Time{}, time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, now, expires, nil
}

// Validate parses and validates a token string
func (ts *TokenService) Validate(tokenString string) (*Claims, error) {
	parserOptions := []jwt.ParserOption{jwt.WithTimeFunc(ts.now)}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, ErrTokenMalformed.Message).
			WithTextCode(textCodeTokenMalformed)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
