package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Pranaya-sht/waste-management-system/internal/auth"
	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/Pranaya-sht/waste-management-system/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserDirectory is the account lookup RequireAuth consults
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	SaveUser(ctx context.Context, u *models.User) error
}

// RequireAuth validates the bearer token and attaches the caller's principal
// to the request context. Browsers cannot set headers on websocket
// handshakes, so a ?token= query parameter is accepted as well.
//
// Role and approval are taken from the stored account when one exists, so an
// approval change takes effect without reissuing tokens. Unknown callers are
// recorded from their token claims.
func RequireAuth(secret string, users UserDirectory, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				http.Error(w, `{"error": "Authorization required"}`, http.StatusUnauthorized)
				return
			}

			p, err := auth.ParseToken(tokenStr, secret)
			if err != nil {
				http.Error(w, `{"error": "Invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			u, err := users.GetUser(r.Context(), p.UserID)
			switch {
			case err == nil:
				p.Role = u.Role
				p.IsApproved = u.IsApproved
				if p.Username == "" {
					p.Username = u.Username
				}
			case errors.Is(err, store.ErrNotFound):
				err = users.SaveUser(r.Context(), &models.User{
					ID:         p.UserID,
					Username:   p.Username,
					Role:       p.Role,
					IsApproved: p.IsApproved,
				})
				if err != nil {
					logger.Errorw("Failed to record new user", "user_id", p.UserID, "error", err)
					http.Error(w, `{"error": "Internal server error"}`, http.StatusInternalServerError)
					return
				}
			default:
				logger.Errorw("Failed to resolve user", "user_id", p.UserID, "error", err)
				http.Error(w, `{"error": "Internal server error"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
