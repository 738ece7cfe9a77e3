package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Response struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// Stable error codes exposed to clients.
const (
	CodeBadRequest          = "bad_request"
	CodeValidation          = "validation_error"
	CodeDuplicateEmail      = "duplicate_email"
	CodeInvalidOrExpired    = "invalid_or_expired_token"
	CodeMissingToken        = "missing_token"
	CodeMissingEmail        = "missing_email"
	CodeNotFound            = "not_found"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeEmailNotVerified    = "email_not_verified"
	CodeTokenExpired        = "token_expired"
	CodeInvalidToken        = "invalid_token"
	CodeInvalidTokenPayload = "invalid_token_payload"
	CodeUserNotFound        = "user_not_found"
	CodeTooManyRequests     = "too_many_requests"
	CodeInternal            = "internal_error"
)

func OK() Response {
	return Response{
		Status: StatusOK,
	}
}

func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

func ErrorCode(code, msg string) Response {
	return Response{
		Status: StatusError,
		Code:   code,
		Error:  msg,
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not a valid email", err.Field()))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param()))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}

	return Response{
		Status: StatusError,
		Code:   CodeValidation,
		Error:  strings.Join(errMsgs, ", "),
	}
}

// Fail writes an error envelope with the given HTTP status.
func Fail(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorCode(code, msg))
}

func Internal(w http.ResponseWriter, r *http.Request) {
	Fail(w, r, http.StatusInternalServerError, CodeInternal, "Internal error")
}
