package resendEmail

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"media_tracker/internal/auth"
	resp "media_tracker/internal/lib/api/response"
	sl "media_tracker/internal/lib/logger/sl"
)

// Request carries no format check on email: an address that is not on file is a 404 however it is spelled.
type Request struct {
	Email string `json:"email" validate:"required"`
}

type Response struct {
	resp.Response
	Message string `json:"message"`
}

type VerificationResender interface {
	ResendVerification(ctx context.Context, email string) (alreadyVerified bool, err error)
}

// New godoc
// @Summary      Resend the verification email
// @Description  Issues a fresh verification token for an unverified account. Links sent earlier stop working.
// @Description  Verified accounts get a 200 with an "already verified" message and no email.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body Request true "account email"
// @Success      200 {object} Response
// @Failure      400 {object} resp.Response "missing_email or bad_request"
// @Failure      404 {object} resp.Response
// @Failure      429 {object} resp.Response
// @Router       /auth/resend-verification [post]
func New(log *slog.Logger, validate *validator.Validate, resender VerificationResender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resendEmail.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			resp.Fail(w, r, http.StatusBadRequest, resp.CodeBadRequest, "Failed to decode request")

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Info("invalid request", sl.Err(err))

			if missingEmail(validateErr) {
				resp.Fail(w, r, http.StatusBadRequest, resp.CodeMissingEmail, "Email is required")

				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		alreadyVerified, err := resender.ResendVerification(ctx, req.Email)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrNotFound):
				resp.Fail(w, r, http.StatusNotFound, resp.CodeNotFound, "User not found")
			case errors.Is(err, auth.ErrResendTooSoon):
				resp.Fail(w, r, http.StatusTooManyRequests, resp.CodeTooManyRequests, "Verification email was sent recently")
			default:
				log.Error("failed to resend verification email", sl.Err(err))
				resp.Internal(w, r)
			}

			return
		}

		msg := "Verification email resent successfully"
		if alreadyVerified {
			msg = "Email is already verified"
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Message:  msg,
		})
	}
}

func missingEmail(errs validator.ValidationErrors) bool {
	for _, e := range errs {
		if e.Field() == "email" && e.Tag() == "required" {
			return true
		}
	}

	return false
}
