package me

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media_tracker/internal/http_server/middleware/authn"
	"media_tracker/internal/models"
)

type staticResolver models.User

func (s staticResolver) ResolveSession(context.Context, string) (models.User, error) {
	return models.User(s), nil
}

func TestNew(t *testing.T) {
	token := "vt"
	alice := models.User{
		ID: "u1", Email: "a@x.com", Name: "Alice", PassHash: "$2a$hash",
		IsVerified: false, VerificationToken: &token,
	}

	h := authn.New(slog.New(slog.NewTextHandler(io.Discard, nil)), staticResolver(alice))(New())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{
		"status":      "OK",
		"id":          "u1",
		"email":       "a@x.com",
		"name":        "Alice",
		"is_verified": false,
	}, body)
}

func TestNew_WithoutSession(t *testing.T) {
	rec := httptest.NewRecorder()
	New().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
