package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/auth"
	"github.com/hongminglow/pawmart/internal/http/respond"
	"github.com/hongminglow/pawmart/internal/models"
	"github.com/hongminglow/pawmart/internal/storage"
)

type userKey struct{}

// Authenticator resolves bearer tokens to the stored user. The stored row
// wins over token claims so role changes and deactivation apply at once.
type Authenticator struct {
	tokens *auth.TokenManager
	users  storage.UserStore
	logger *zap.Logger
}

func NewAuthenticator(tokens *auth.TokenManager, users storage.UserStore, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{tokens: tokens, users: users, logger: logger}
}

// Require rejects requests without a valid token for an active user.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respond.Error(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := a.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			respond.Error(w, http.StatusUnauthorized, "invalid token")
			return
		}
		user, err := a.users.FindUserByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				respond.Error(w, http.StatusUnauthorized, "unknown user")
				return
			}
			a.logger.Error("load token user", zap.Int64("user_id", claims.UserID), zap.Error(err))
			respond.Error(w, http.StatusInternalServerError, "failed to load user")
			return
		}
		if !user.Active {
			respond.Error(w, http.StatusUnauthorized, "account disabled")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the user attached by Require.
func UserFrom(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey{}).(models.User)
	return user, ok
}
