package response_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resp "media_tracker/internal/lib/api/response"
	"media_tracker/internal/lib/api/validate"
)

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=3"`
	Name     string `json:"name" validate:"required"`
}

func TestValidationError(t *testing.T) {
	err := validate.New().Struct(signupRequest{Email: "nope", Password: "ab"})
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	got := resp.ValidationError(verrs)

	assert.Equal(t, resp.StatusError, got.Status)
	assert.Equal(t, resp.CodeValidation, got.Code)
	assert.Equal(t,
		"field email is not a valid email, field password must be at least 3, field name is a required field",
		got.Error,
	)
}

func TestFail(t *testing.T) {
	rec := httptest.NewRecorder()
	resp.Fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusNotFound, resp.CodeNotFound, "Media not found")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":"Error","code":"not_found","error":"Media not found"}`, rec.Body.String())
}

func TestOK_OmitsErrorFields(t *testing.T) {
	raw, err := json.Marshal(resp.OK())
	require.NoError(t, err)

	assert.JSONEq(t, `{"status":"OK"}`, string(raw))
}
