package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"media_tracker/internal/config"
	sl "media_tracker/internal/lib/logger/sl"
	"media_tracker/internal/lib/verification"
	"media_tracker/internal/mailer"
	"media_tracker/internal/models"
	"media_tracker/internal/rabbitmq"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const sendAttempts = 3

var sendBackoff = time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoadMailSender()
	log := setupLogger(cfg.Env)

	log.Info("starting mail_sender", slog.String("env", cfg.Env))

	startConsumer(ctx, cfg, log)
}

func startConsumer(ctx context.Context, cfg *config.Config, log *slog.Logger) {
	r, err := rabbitmq.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to init rabbitmq", sl.Err(err))
		return
	}
	defer r.Close()

	m := &mailer.Mailer{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		if err := r.StartReading(ctx, newHandler(log, m, cfg.Email.Timeout)); err != nil {
			log.Error("consumer stopped", sl.Err(err))
		}
	}()

	log.Info("consumer successfully started", slog.String("queue", cfg.RabbitMQ.QueueName))

	select {
	case <-ctx.Done():
		log.Info("shutting down consumer...")
		<-done
	case <-done:
		log.Info("consumer finished the work")
	}

	log.Info("service gracefully stopped")
}

// newHandler decodes one queued message and sends it, retrying transient SMTP failures.
// Undecodable messages are rejected; messages that cannot be sent for lack of
// credentials are dropped with a warning.
func newHandler(log *slog.Logger, pub verification.Publisher, timeout time.Duration) rabbitmq.Handler {
	return func(ctx context.Context, body []byte) error {
		const op = "mail_sender.handle"

		log := log.With(slog.String("op", op))

		var msg models.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			log.Error("failed to unmarshal message", sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}

		log = log.With(slog.String("email", msg.Email), slog.String("purpose", msg.Purpose))

		backoff := retry.WithMaxRetries(sendAttempts, retry.NewExponential(sendBackoff))

		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			sendCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			err := pub.SendMessage(sendCtx, msg)
			if err == nil || errors.Is(err, verification.ErrNotConfigured) {
				return err
			}

			log.Warn("send attempt failed", sl.Err(err))
			return retry.RetryableError(err)
		})

		switch {
		case errors.Is(err, verification.ErrNotConfigured):
			log.Warn("email credentials not configured; dropping message")
			return nil
		case err != nil:
			log.Error("failed to send message", sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}

		log.Info("message sent successfully")

		return nil
	}
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
