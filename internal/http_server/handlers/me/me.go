package me

import (
	"net/http"

	"github.com/go-chi/render"

	"media_tracker/internal/http_server/middleware/authn"
	resp "media_tracker/internal/lib/api/response"
	"media_tracker/internal/models"
)

type Response struct {
	resp.Response
	models.UserResponse
}

// New returns the public projection of the session user. It must be mounted behind authn.
func New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authn.UserFromContext(r.Context())
		if !ok {
			resp.Fail(w, r, http.StatusUnauthorized, resp.CodeMissingToken, "Not authenticated")
			return
		}

		render.JSON(w, r, Response{
			Response:     resp.OK(),
			UserResponse: user.Public(),
		})
	}
}
