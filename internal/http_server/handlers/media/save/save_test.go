package save

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media_tracker/internal/http_server/middleware/authn"
	resp "media_tracker/internal/lib/api/response"
	"media_tracker/internal/lib/api/validate"
	"media_tracker/internal/media"
	"media_tracker/internal/models"
)

type staticResolver string

func (s staticResolver) ResolveSession(context.Context, string) (models.User, error) {
	return models.User{ID: string(s)}, nil
}

type saverFunc func(ctx context.Context, userID string, in media.CreateInput) (models.MediaItem, error)

func (f saverFunc) Create(ctx context.Context, userID string, in media.CreateInput) (models.MediaItem, error) {
	return f(ctx, userID, in)
}

func TestNew(t *testing.T) {
	var gotUser string
	var gotInput media.CreateInput

	saver := saverFunc(func(_ context.Context, userID string, in media.CreateInput) (models.MediaItem, error) {
		gotUser, gotInput = userID, in
		return models.MediaItem{ID: "m1", UserID: userID, Title: in.Title, Type: in.Type, Status: models.DefaultMediaStatus}, nil
	})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := authn.New(log, staticResolver("u1"))(New(log, validate.New(), saver))

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/media", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer t")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("ok", func(t *testing.T) {
		rec := post(`{"title":"Dune","type":"book","total":412}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var body Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, resp.StatusOK, body.Status)
		assert.Equal(t, "m1", body.Item.ID)
		assert.Equal(t, "plan", body.Item.Status)

		assert.Equal(t, "u1", gotUser)
		assert.Equal(t, media.CreateInput{Title: "Dune", Type: "book", Total: 412}, gotInput)
	})

	t.Run("user_id in body is ignored", func(t *testing.T) {
		rec := post(`{"title":"Dune","type":"book","user_id":"u2"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", gotUser)
	})

	t.Run("missing title", func(t *testing.T) {
		rec := post(`{"type":"book"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body resp.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, resp.CodeValidation, body.Code)
	})

	t.Run("negative counter", func(t *testing.T) {
		rec := post(`{"title":"Dune","type":"book","current":-1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
