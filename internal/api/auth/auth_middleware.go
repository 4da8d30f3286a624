package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-account-service/internal/api"
)

// Typed context keys for authenticated request state.
type contextKey string

const UserIDKey contextKey = "userID"
const UserEmailKey contextKey = "userEmail"

// Authenticate validates the bearer access token, loads the account and
// rejects deactivated users before the handler runs.
func Authenticate(logger *slog.Logger, tokens *TokenIssuer, repo UserRepo) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			headerParts := strings.SplitN(authHeader, " ", 2)
			if authHeader == "" || len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
				l.WarnContext(ctx, "Missing or malformed Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Missing access token")
				return
			}

			claims, err := tokens.Verify(headerParts[1], false)
			if err != nil {
				l.WarnContext(ctx, "Access token validation failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				l.WarnContext(ctx, "Access token subject is not a user id", slog.String("sub", claims.Subject))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			user, err := repo.GetUserByID(ctx, userID)
			if err != nil {
				l.WarnContext(ctx, "Token user lookup failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "User not found")
				return
			}
			if !user.IsActive {
				l.WarnContext(ctx, "Deactivated account attempted access", slog.String("user_id", user.ID.String()))
				api.ErrorResponse(w, r, http.StatusForbidden, "User account is deactivated")
				return
			}

			// Downstream checks key off the token's email claim, not the
			// store record.
			ctx = context.WithValue(ctx, UserIDKey, user.ID)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(UserEmailKey).(string)
	return email, ok
}
