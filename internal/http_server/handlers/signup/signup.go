package signup

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
	"media_tracker/internal/lib/password"
	"media_tracker/internal/models"
)

type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
	Name     string `json:"name" validate:"required"`
}

type Response struct {
	resp.Response
	Message string `json:"message"`
	Email   string `json:"email"`
}

type UserRegistrar interface {
	Signup(ctx context.Context, email, password, name string) (models.User, error)
}

// New godoc
// @Summary      Register a new account
// @Description  Creates an unverified account and sends a verification link to the given email.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body Request true "signup data"
// @Success      200 {object} Response
// @Failure      400 {object} resp.Response "duplicate_email or validation_error"
// @Router       /auth/signup [post]
func New(log *slog.Logger, validate *validator.Validate, registrar UserRegistrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.signup.New"

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

		user, err := registrar.Signup(ctx, req.Email, req.Password, req.Name)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrDuplicateEmail):
				resp.Fail(w, r, http.StatusBadRequest, resp.CodeDuplicateEmail, "Email already registered")

				return
			case errors.Is(err, password.ErrEmptyPassword), errors.Is(err, password.ErrPasswordTooLong):
				resp.Fail(w, r, http.StatusBadRequest, resp.CodeValidation, "field password is not valid")

				return
			}

			log.Error("failed to register user", sl.Err(err))

			resp.Internal(w, r)

			return
		}

		log.Info("user registered", slog.String("uid", user.ID))

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Message:  "Registration successful. Check your email!",
			Email:    user.Email,
		})
	}
}
