package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media_tracker/internal/lib/verification"
	"media_tracker/internal/models"
)

type flakyPublisher struct {
	failures int
	err      error
	calls    int
	got      models.Message
}

func (p *flakyPublisher) SendMessage(_ context.Context, msg models.Message) error {
	p.calls++
	p.got = msg
	if p.calls <= p.failures {
		return p.err
	}
	return nil
}

func init() {
	sendBackoff = time.Millisecond
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const body = `{"to":"a@x.com","name":"Alice","link":"http://localhost:3000?verify=T1","purpose":"email_verification"}`

func TestHandler_RetriesTransientFailures(t *testing.T) {
	pub := &flakyPublisher{failures: 2, err: errors.New("421 try again")}

	err := newHandler(discard(), pub, time.Second)(context.Background(), []byte(body))
	require.NoError(t, err)

	assert.Equal(t, 3, pub.calls)
	assert.Equal(t, models.Message{
		Email:   "a@x.com",
		Name:    "Alice",
		Link:    "http://localhost:3000?verify=T1",
		Purpose: verification.PurposeEmailVerification,
	}, pub.got)
}

func TestHandler_GivesUp(t *testing.T) {
	pub := &flakyPublisher{failures: 100, err: errors.New("535 auth failed")}

	err := newHandler(discard(), pub, time.Second)(context.Background(), []byte(body))
	require.Error(t, err)
	assert.Equal(t, sendAttempts+1, pub.calls)
}

func TestHandler_DropsWhenNotConfigured(t *testing.T) {
	pub := &flakyPublisher{failures: 100, err: verification.ErrNotConfigured}

	err := newHandler(discard(), pub, time.Second)(context.Background(), []byte(body))
	require.NoError(t, err)
	assert.Equal(t, 1, pub.calls)
}

func TestHandler_RejectsGarbage(t *testing.T) {
	pub := &flakyPublisher{}

	err := newHandler(discard(), pub, time.Second)(context.Background(), []byte("not json"))
	require.Error(t, err)
	assert.Zero(t, pub.calls)
}
