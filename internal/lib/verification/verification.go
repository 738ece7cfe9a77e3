package verification

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	sl "media_tracker/internal/lib/logger/sl"
	"media_tracker/internal/models"
)

const (
	PurposeEmailVerification = "email_verification"

	tokenBytes = 32
)

// ErrNotConfigured is returned by publishers that have no credentials to deliver with.
var ErrNotConfigured = errors.New("mail delivery is not configured")

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

// Observer is notified about the outcome of every dispatch.
type Observer interface {
	EmailDispatched(err error)
}

// NewToken returns an unguessable url-safe token carrying 256 bits of entropy.
func NewToken() (string, error) {
	const op = "verification.NewToken"

	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Link builds the frontend link the user follows: <baseURL>?verify=<token>.
func Link(baseURL, token string) (string, error) {
	const op = "verification.Link"

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	q := u.Query()
	q.Set("verify", token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Sender dispatches verification emails in the background. Callers never wait for
// delivery; failures are only logged.
type Sender struct {
	log      *slog.Logger
	pub      Publisher
	observer Observer
	baseURL  string
	timeout  time.Duration

	wg sync.WaitGroup
}

func NewSender(log *slog.Logger, pub Publisher, baseURL string, timeout time.Duration) *Sender {
	return &Sender{
		log:     log,
		pub:     pub,
		baseURL: baseURL,
		timeout: timeout,
	}
}

func (s *Sender) WithObserver(o Observer) *Sender {
	s.observer = o
	return s
}

func (s *Sender) SendVerification(email, token, name string) {
	const op = "verification.Sender.SendVerification"

	log := s.log.With(slog.String("op", op), slog.String("email", email))

	link, err := Link(s.baseURL, token)
	if err != nil {
		log.Error("failed to build verification link", sl.Err(err))
		s.observe(err)
		return
	}

	msg := models.Message{
		Email:   email,
		Name:    name,
		Link:    link,
		Purpose: PurposeEmailVerification,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		err := s.pub.SendMessage(ctx, msg)
		s.observe(err)

		switch {
		case errors.Is(err, ErrNotConfigured):
			log.Warn("email credentials not configured; skipping email send")
		case err != nil:
			log.Error("failed to send verification email", sl.Err(err))
		default:
			log.Info("verification email dispatched")
		}
	}()
}

// Wait blocks until every dispatch started so far has finished.
func (s *Sender) Wait() {
	s.wg.Wait()
}

func (s *Sender) observe(err error) {
	if s.observer != nil {
		s.observer.EmailDispatched(err)
	}
}
