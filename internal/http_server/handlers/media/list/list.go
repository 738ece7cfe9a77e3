package list

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"media_tracker/internal/http_server/middleware/authn"
	resp "media_tracker/internal/lib/api/response"
	sl "media_tracker/internal/lib/logger/sl"
	"media_tracker/internal/models"
)

type Response struct {
	resp.Response
	Items []models.MediaItem `json:"items"`
}

type MediaLister interface {
	List(ctx context.Context, userID string) ([]models.MediaItem, error)
}

func New(log *slog.Logger, lister MediaLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.media.list.New"

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

		items, err := lister.List(ctx, user.ID)
		if err != nil {
			log.Error("failed to list media", sl.Err(err))

			resp.Internal(w, r)

			return
		}

		if items == nil {
			items = []models.MediaItem{}
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Items:    items,
		})
	}
}
