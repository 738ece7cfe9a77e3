//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"media_tracker/internal/models"
	"media_tracker/internal/storage"
	"media_tracker/internal/storage/postgres"
)

func newRepo(t *testing.T) *postgres.PostgresRepo {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("media_tracker"),
		tcpostgres.WithUsername("media"),
		tcpostgres.WithPassword("media"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := postgres.New(ctx, dsn, "media_tracker")
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	return repo
}

func TestPostgresRepo_VerificationLifecycle(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	token := "T1"
	user := models.User{
		ID:                "u1",
		Email:             "a@x.com",
		Name:              "Alice",
		PassHash:          "hash",
		VerificationToken: &token,
		CreatedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.SaveUser(ctx, user))

	err := repo.SaveUser(ctx, models.User{ID: "u2", Email: "a@x.com", Name: "Bob", PassHash: "h", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, storage.ErrUserExists)

	require.NoError(t, repo.UpdateVerificationToken(ctx, "a@x.com", "T2"))

	_, err = repo.SetEmailVerified(ctx, "T1")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	verified, err := repo.SetEmailVerified(ctx, "T2")
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.Nil(t, verified.VerificationToken)

	_, err = repo.SetEmailVerified(ctx, "T2")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	assert.ErrorIs(t, repo.UpdateVerificationToken(ctx, "a@x.com", "T3"), storage.ErrUserNotFound)
}

func TestPostgresRepo_MediaOwnership(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for _, id := range []string{"u1", "u2"} {
		require.NoError(t, repo.SaveUser(ctx, models.User{
			ID: id, Email: id + "@x.com", Name: id, PassHash: "h", IsVerified: true, CreatedAt: now,
		}))
	}

	item := models.MediaItem{
		ID: "m1", UserID: "u1", Title: "Dune", Type: "book", Status: models.DefaultMediaStatus,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repo.SaveMedia(ctx, item))

	title := "Dune Messiah"
	_, err := repo.UpdateMedia(ctx, "m1", "u2", models.MediaPatch{Title: &title}, now)
	assert.ErrorIs(t, err, storage.ErrMediaNotFound)
	assert.ErrorIs(t, repo.DeleteMedia(ctx, "m1", "u2"), storage.ErrMediaNotFound)

	updated, err := repo.UpdateMedia(ctx, "m1", "u1", models.MediaPatch{Title: &title}, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.Equal(t, "book", updated.Type)

	items, err := repo.MediaByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, repo.DeleteMedia(ctx, "m1", "u1"))
}
