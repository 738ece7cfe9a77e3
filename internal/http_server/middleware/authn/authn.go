package authn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"media_tracker/internal/auth"
	resp "media_tracker/internal/lib/api/response"
	sl "media_tracker/internal/lib/logger/sl"
	"media_tracker/internal/models"
)

type ctxKey struct{}

type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (models.User, error)
}

// New rejects requests without a valid "Authorization: Bearer <token>" header
// and stores the session user in the request context.
func New(log *slog.Logger, resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token, ok := bearerToken(r)
			if !ok {
				resp.Fail(w, r, http.StatusUnauthorized, resp.CodeMissingToken, "Not authenticated")
				return
			}

			user, err := resolver.ResolveSession(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					resp.Fail(w, r, http.StatusUnauthorized, resp.CodeTokenExpired, "Token expired")
				case errors.Is(err, auth.ErrInvalidTokenPayload):
					resp.Fail(w, r, http.StatusUnauthorized, resp.CodeInvalidTokenPayload, "Invalid token payload")
				case errors.Is(err, auth.ErrInvalidToken):
					resp.Fail(w, r, http.StatusUnauthorized, resp.CodeInvalidToken, "Invalid token")
				case errors.Is(err, auth.ErrUserNotFound):
					resp.Fail(w, r, http.StatusUnauthorized, resp.CodeUserNotFound, "User not found")
				default:
					log.Error("failed to resolve session", sl.Err(err))
					resp.Internal(w, r)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
		})
	}
}

func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(models.User)
	return user, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}
