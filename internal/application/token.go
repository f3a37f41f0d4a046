package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims carries the identity attributes embedded in a bearer token.
type TokenClaims struct {
	UserID string
	Role   string
}

// TokenIssuer issues and verifies bearer credentials. The rest of the system
// only depends on this contract; the concrete wire format lives behind it.
type TokenIssuer interface {
	Issue(user User, now time.Time) (token string, expiresAt time.Time, err error)
	Verify(token string, now time.Time) (TokenClaims, error)
}

// JWTIssuer implements TokenIssuer with HS256-signed JWTs.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTIssuer constructs a JWT issuer with the shared signing secret and
// token lifetime.
func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl}, nil
}

type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs a token for the user.
func (i *JWTIssuer) Issue(user User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.ttl)
	claims := jwtClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token, returning the embedded claims.
func (i *JWTIssuer) Verify(token string, now time.Time) (TokenClaims, error) {
	var claims jwtClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil || !parsed.Valid {
		return TokenClaims{}, ErrInvalidCredentials
	}
	if claims.Subject == "" {
		return TokenClaims{}, ErrInvalidCredentials
	}
	return TokenClaims{UserID: claims.Subject, Role: claims.Role}, nil
}
