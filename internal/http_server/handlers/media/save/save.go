package save

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"media_tracker/internal/http_server/middleware/authn"
	resp "media_tracker/internal/lib/api/response"
	sl "media_tracker/internal/lib/logger/sl"
	"media_tracker/internal/media"
	"media_tracker/internal/models"
)

type Request struct {
	Title   string `json:"title" validate:"required"`
	Type    string `json:"type" validate:"required"`
	Status  string `json:"status"`
	Current int    `json:"current" validate:"min=0"`
	Total   int    `json:"total" validate:"min=0"`
}

type Response struct {
	resp.Response
	Item models.MediaItem `json:"item"`
}

type MediaSaver interface {
	Create(ctx context.Context, userID string, in media.CreateInput) (models.MediaItem, error)
}

func New(log *slog.Logger, validate *validator.Validate, saver MediaSaver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.media.save.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, ok := authn.UserFromContext(r.Context())
		if !ok {
			resp.Fail(w, r, http.StatusUnauthorized, resp.CodeMissingToken, "Not authenticated")
			return
		}

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

		item, err := saver.Create(ctx, user.ID, media.CreateInput{
			Title:   req.Title,
			Type:    req.Type,
			Status:  req.Status,
			Current: req.Current,
			Total:   req.Total,
		})
		if err != nil {
			log.Error("failed to create media", sl.Err(err))

			resp.Internal(w, r)

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Item:     item,
		})
	}
}
