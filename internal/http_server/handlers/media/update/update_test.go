package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media_tracker/internal/http_server/middleware/authn"
	resp "media_tracker/internal/lib/api/response"
	"media_tracker/internal/lib/api/validate"
	"media_tracker/internal/media"
	"media_tracker/internal/models"
)

type headerResolver struct{}

// ResolveSession treats the bearer token as the user id.
func (headerResolver) ResolveSession(_ context.Context, token string) (models.User, error) {
	return models.User{ID: token}, nil
}

type ownedItem struct {
	item  models.MediaItem
	patch models.MediaPatch
}

func (o *ownedItem) Update(_ context.Context, userID, id string, patch models.MediaPatch) (models.MediaItem, error) {
	if id != o.item.ID || userID != o.item.UserID {
		return models.MediaItem{}, fmt.Errorf("media.Update: %w", media.ErrNotFound)
	}

	o.patch = patch
	if patch.Current != nil {
		o.item.Current = *patch.Current
	}
	return o.item, nil
}

func newRouter(updater MediaUpdater) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	r.With(authn.New(log, headerResolver{})).Put("/media/{id}", New(log, validate.New(), updater))
	return r
}

func put(h http.Handler, userID, id, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/media/"+id, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+userID)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_PartialUpdate(t *testing.T) {
	owned := &ownedItem{item: models.MediaItem{ID: "m1", UserID: "u1", Title: "Dune", Total: 412}}
	h := newRouter(owned)

	rec := put(h, "u1", "m1", `{"current":100}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 100, body.Item.Current)
	assert.Equal(t, "Dune", body.Item.Title)

	require.NotNil(t, owned.patch.Current)
	assert.Nil(t, owned.patch.Title)
	assert.Nil(t, owned.patch.Total)
}

func TestNew_OtherUsersItemIsNotFound(t *testing.T) {
	h := newRouter(&ownedItem{item: models.MediaItem{ID: "m1", UserID: "u1"}})

	for _, tc := range []struct{ user, id string }{{"u2", "m1"}, {"u1", "missing"}} {
		rec := put(h, tc.user, tc.id, `{"title":"x"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)

		var body resp.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, resp.CodeNotFound, body.Code)
	}
}

func TestNew_BadBodies(t *testing.T) {
	h := newRouter(&ownedItem{item: models.MediaItem{ID: "m1", UserID: "u1"}})

	assert.Equal(t, http.StatusBadRequest, put(h, "u1", "m1", ``).Code)
	assert.Equal(t, http.StatusBadRequest, put(h, "u1", "m1", `{"total":-3}`).Code)
	assert.Equal(t, http.StatusBadRequest, put(h, "u1", "m1", `[1,2]`).Code)
}
