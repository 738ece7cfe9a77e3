package remove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"media_tracker/internal/http_server/middleware/authn"
	resp "media_tracker/internal/lib/api/response"
	sl "media_tracker/internal/lib/logger/sl"
	"media_tracker/internal/media"
)

type Response struct {
	resp.Response
	Message string `json:"message"`
}

type MediaRemover interface {
	Delete(ctx context.Context, userID, id string) error
}

func New(log *slog.Logger, remover MediaRemover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.media.remove.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, ok := authn.UserFromContext(r.Context())
		if !ok {
			resp.Fail(w, r, http.StatusUnauthorized, resp.CodeMissingToken, "Not authenticated")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := remover.Delete(ctx, user.ID, chi.URLParam(r, "id")); err != nil {
			if errors.Is(err, media.ErrNotFound) {
				resp.Fail(w, r, http.StatusNotFound, resp.CodeNotFound, "Media not found")

				return
			}

			log.Error("failed to delete media", sl.Err(err))

			resp.Internal(w, r)

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Message:  "Media deleted successfully",
		})
	}
}
