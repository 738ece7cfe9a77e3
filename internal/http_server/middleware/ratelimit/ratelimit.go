package rateLimit

import (
	"net/http"
	"time"

	httprate "github.com/go-chi/httprate"

	resp "media_tracker/internal/lib/api/response"
)

func Signup() func(http.Handler) http.Handler {
	return limitByIP(5, time.Hour)
}

func Login() func(http.Handler) http.Handler {
	return limitByIP(10, 5*time.Minute)
}

func Verify() func(http.Handler) http.Handler {
	return limitByIP(10, 10*time.Minute)
}

func ResendVerification() func(http.Handler) http.Handler {
	return limitByIP(3, time.Hour)
}

func limitByIP(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(tooManyRequests),
	)
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	resp.Fail(w, r, http.StatusTooManyRequests, resp.CodeTooManyRequests, "Too many requests")
}
