package login

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
	"media_tracker/internal/models"
)

const tokenTypeBearer = "bearer"

type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Response struct {
	resp.Response
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type"`
	User        models.UserResponse `json:"user"`
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
}

func New(log *slog.Logger, validate *validator.Validate, authenticator Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

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

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := authenticator.Login(ctx, req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				resp.Fail(w, r, http.StatusUnauthorized, resp.CodeInvalidCredentials, "Invalid email or password")
			case errors.Is(err, auth.ErrEmailNotVerified):
				resp.Fail(w, r, http.StatusForbidden, resp.CodeEmailNotVerified, "Verify your email first")
			default:
				log.Error("failed to login user", sl.Err(err))
				resp.Internal(w, r)
			}

			return
		}

		ResponseOK(w, r, res)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, res auth.LoginResult) {
	render.JSON(w, r, Response{
		Response:    resp.OK(),
		AccessToken: res.AccessToken,
		TokenType:   tokenTypeBearer,
		User:        res.User.Public(),
	})
}
