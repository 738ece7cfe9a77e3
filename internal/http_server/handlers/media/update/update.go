package update

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"media_tracker/internal/http_server/middleware/authn"
	resp "media_tracker/internal/lib/api/response"
	sl "media_tracker/internal/lib/logger/sl"
	"media_tracker/internal/media"
	"media_tracker/internal/models"
)

// Request carries a partial update. Omitted fields keep their stored values.
type Request struct {
	Title   *string `json:"title" validate:"omitempty,min=1"`
	Type    *string `json:"type" validate:"omitempty,min=1"`
	Status  *string `json:"status" validate:"omitempty,min=1"`
	Current *int    `json:"current" validate:"omitempty,min=0"`
	Total   *int    `json:"total" validate:"omitempty,min=0"`
}

type Response struct {
	resp.Response
	Item models.MediaItem `json:"item"`
}

type MediaUpdater interface {
	Update(ctx context.Context, userID, id string, patch models.MediaPatch) (models.MediaItem, error)
}

func New(log *slog.Logger, validate *validator.Validate, updater MediaUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.media.update.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, ok := authn.UserFromContext(r.Context())
		if !ok {
			resp.Fail(w, r, http.StatusUnauthorized, resp.CodeMissingToken, "Not authenticated")
			return
		}

		id := chi.URLParam(r, "id")

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				resp.Fail(w, r, http.StatusBadRequest, resp.CodeBadRequest, "Request body is empty")
				return
			}

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

		item, err := updater.Update(ctx, user.ID, id, models.MediaPatch{
			Title:   req.Title,
			Type:    req.Type,
			Status:  req.Status,
			Current: req.Current,
			Total:   req.Total,
		})
		if err != nil {
			if errors.Is(err, media.ErrNotFound) {
				resp.Fail(w, r, http.StatusNotFound, resp.CodeNotFound, "Media not found")

				return
			}

			log.Error("failed to update media", sl.Err(err))

			resp.Internal(w, r)

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Item:     item,
		})
	}
}
