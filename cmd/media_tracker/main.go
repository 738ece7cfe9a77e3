package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"media_tracker/internal/auth"
	"media_tracker/internal/config"
	"media_tracker/internal/http_server/handlers/login"
	"media_tracker/internal/http_server/handlers/me"
	"media_tracker/internal/http_server/handlers/media/list"
	"media_tracker/internal/http_server/handlers/media/remove"
	"media_tracker/internal/http_server/handlers/media/save"
	"media_tracker/internal/http_server/handlers/media/update"
	resendEmail "media_tracker/internal/http_server/handlers/resend_verification_email"
	"media_tracker/internal/http_server/handlers/signup"
	"media_tracker/internal/http_server/handlers/verify"
	"media_tracker/internal/http_server/middleware/authn"
	rateLimit "media_tracker/internal/http_server/middleware/ratelimit"
	resp "media_tracker/internal/lib/api/response"
	"media_tracker/internal/lib/api/validate"
	"media_tracker/internal/lib/jwt"
	sl "media_tracker/internal/lib/logger/sl"
	"media_tracker/internal/lib/password"
	"media_tracker/internal/lib/verification"
	"media_tracker/internal/mailer"
	"media_tracker/internal/media"
	"media_tracker/internal/metrics"
	"media_tracker/internal/rabbitmq"
	"media_tracker/internal/storage/mongo"
	"media_tracker/internal/storage/postgres"
	"media_tracker/internal/storage/redis"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type store interface {
	auth.UserSaver
	auth.UserProvider
	media.Repository
	Close()
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting media tracker",
		slog.String("env", cfg.Env),
		slog.String("storage", cfg.Storage.Driver),
	)

	if cfg.SecretGenerated {
		log.Warn("SECRET_KEY is not set; using a random secret, sessions will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := setupStorage(ctx, cfg)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}
	defer storage.Close()

	publisher, closePublisher, err := setupPublisher(ctx, log, cfg)
	if err != nil {
		log.Error("failed to init mail publisher", sl.Err(err))
		os.Exit(1)
	}
	defer closePublisher()

	m := metrics.New()

	sender := verification.NewSender(log, publisher, cfg.FrontendURL, cfg.Email.Timeout).WithObserver(m)

	tokens, err := jwt.NewManager(cfg.SecretKey, cfg.AccessTokenTTL())
	if err != nil {
		log.Error("failed to init token manager", sl.Err(err))
		os.Exit(1)
	}

	authService := auth.New(log, storage, storage, password.New(cfg.BcryptCost), tokens, sender)

	if cfg.Redis.Addr != "" {
		limiter, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis unavailable, resend cooldown disabled", sl.Err(err))
		} else {
			defer limiter.Close()
			authService.WithResendLimiter(limiter, cfg.Redis.ResendCooldown)
		}
	}

	mediaService := media.New(log, storage)

	router := setupRouter(log, cfg, m, authService, mediaService)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", sl.Err(err))
	} else {
		log.Info("server stopped gracefully")
	}

	sender.Wait()

	log.Info("media tracker stopped")
}

func setupStorage(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.Storage.DatabaseURL, cfg.Storage.DBName)
	default:
		return mongo.New(ctx, cfg.Storage.DatabaseURL, cfg.Storage.DBName)
	}
}

// setupPublisher hands verification emails to the queue when one is configured,
// otherwise sends them over SMTP from this process.
func setupPublisher(ctx context.Context, log *slog.Logger, cfg *config.Config) (verification.Publisher, func(), error) {
	if cfg.RabbitMQ.URL != "" {
		client, err := rabbitmq.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
		if err != nil {
			return nil, nil, err
		}

		log.Info("verification emails go through the queue", slog.String("queue", cfg.RabbitMQ.QueueName))

		return client, client.Close, nil
	}

	log.Info("verification emails are sent directly", slog.String("smtp_host", cfg.Email.Host))

	return &mailer.Mailer{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
	}, func() {}, nil
}

type rootResponse struct {
	resp.Response
	Message string `json:"message"`
}

func setupRouter(
	log *slog.Logger,
	cfg *config.Config,
	m *metrics.Metrics,
	authService *auth.Auth,
	mediaService *media.Service,
) *chi.Mux {
	v := validate.New()
	requireSession := authn.New(log, authService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, rootResponse{Response: resp.OK(), Message: "Media Tracker API running"})
	})
	r.Handle("/metrics", m.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.With(rateLimit.Signup()).Post("/signup", signup.New(log, v, authService))
		r.With(rateLimit.Verify()).Get("/verify-email", verify.New(log, authService))
		r.With(rateLimit.ResendVerification()).Post("/resend-verification", resendEmail.New(log, v, authService))
		r.With(rateLimit.Login()).Post("/login", login.New(log, v, authService))
		r.With(requireSession).Get("/me", me.New())
	})

	r.Group(func(r chi.Router) {
		r.Use(requireSession)

		r.Post("/media", save.New(log, v, mediaService))
		r.Get("/media", list.New(log, mediaService))
		r.Put("/media/{id}", update.New(log, v, mediaService))
		r.Delete("/media/{id}", remove.New(log, mediaService))
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
