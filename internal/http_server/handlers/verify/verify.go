package verify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"media_tracker/internal/auth"
	resp "media_tracker/internal/lib/api/response"
	sl "media_tracker/internal/lib/logger/sl"
	"media_tracker/internal/models"
)

type Response struct {
	resp.Response
	Message string `json:"message"`
}

type EmailVerifier interface {
	VerifyEmail(ctx context.Context, token string) (models.User, error)
}

func New(log *slog.Logger, verifier EmailVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := r.URL.Query().Get("token")
		if token == "" {
			log.Info("missing verification token")

			resp.Fail(w, r, http.StatusBadRequest, resp.CodeMissingToken, "Token is required")

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := verifier.VerifyEmail(ctx, token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidOrExpiredToken) {
				resp.Fail(w, r, http.StatusBadRequest, resp.CodeInvalidOrExpired, "Invalid or expired token")

				return
			}

			log.Error("failed to verify email", sl.Err(err))

			resp.Internal(w, r)

			return
		}

		log.Info("email verified successfully", slog.String("uid", user.ID))

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Message:  "Email verified successfully!",
		})
	}
}
