// Package auth resolves callers to principals and decides which lifecycle
// actions a principal may perform.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Principal is an authenticated caller
type Principal struct {
	UserID     uuid.UUID
	Username   string
	Role       models.Role
	IsApproved bool
}

// Claims is the JWT payload issued by the account service
type Claims struct {
	Username   string `json:"username,omitempty"`
	Role       string `json:"role"`
	IsApproved bool   `json:"is_approved"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrInvalidRole  = errors.New("invalid role claim")
)

// ParseToken verifies an HS256 token and returns the principal it names
func ParseToken(tokenStr, secret string) (Principal, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}

	role := models.Role(claims.Role)
	switch role {
	case models.RoleCitizen, models.RoleWorker, models.RoleAdmin, models.RoleSuperuser:
	default:
		return Principal{}, ErrInvalidRole
	}

	return Principal{UserID: id, Username: claims.Username, Role: role, IsApproved: claims.IsApproved}, nil
}

// IssueToken signs a token for p. Token issuance belongs to the account
// service; this is used by tests and local tooling.
func IssueToken(p Principal, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:   p.Username,
		Role:       string(p.Role),
		IsApproved: p.IsApproved,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type ctxKey struct{}

// WithPrincipal stores p in ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by the auth middleware
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
