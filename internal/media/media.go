package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	sl "media_tracker/internal/lib/logger/sl"
	"media_tracker/internal/models"
	"media_tracker/internal/storage"
)

// ErrNotFound covers both missing items and items owned by someone else.
var ErrNotFound = errors.New("media not found")

type Repository interface {
	SaveMedia(ctx context.Context, m models.MediaItem) error
	MediaByUser(ctx context.Context, userID string) ([]models.MediaItem, error)
	UpdateMedia(ctx context.Context, id, userID string, patch models.MediaPatch, updatedAt time.Time) (models.MediaItem, error)
	DeleteMedia(ctx context.Context, id, userID string) error
}

type Service struct {
	log  *slog.Logger
	repo Repository
	now  func() time.Time
}

type CreateInput struct {
	Title   string
	Type    string
	Status  string
	Current int
	Total   int
}

func New(log *slog.Logger, repo Repository) *Service {
	return &Service{
		log:  log,
		repo: repo,
		now:  time.Now,
	}
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (models.MediaItem, error) {
	const op = "media.Create"

	log := s.log.With(slog.String("op", op), slog.String("uid", userID))

	status := in.Status
	if status == "" {
		status = models.DefaultMediaStatus
	}

	ts := s.now().UTC()

	item := models.MediaItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     in.Title,
		Type:      in.Type,
		Status:    status,
		Current:   in.Current,
		Total:     in.Total,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	if err := s.repo.SaveMedia(ctx, item); err != nil {
		log.Error("failed to save media", sl.Err(err))
		return models.MediaItem{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("media created", slog.String("media_id", item.ID))

	return item, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]models.MediaItem, error) {
	const op = "media.List"

	items, err := s.repo.MediaByUser(ctx, userID)
	if err != nil {
		s.log.Error("failed to list media", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return items, nil
}

// Update applies the supplied fields and refreshes updated_at, even for an empty patch.
func (s *Service) Update(ctx context.Context, userID, id string, patch models.MediaPatch) (models.MediaItem, error) {
	const op = "media.Update"

	log := s.log.With(slog.String("op", op), slog.String("uid", userID), slog.String("media_id", id))

	item, err := s.repo.UpdateMedia(ctx, id, userID, patch, s.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrMediaNotFound) {
			log.Info("media not found")
			return models.MediaItem{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		log.Error("failed to update media", sl.Err(err))
		return models.MediaItem{}, fmt.Errorf("%s: %w", op, err)
	}

	return item, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	const op = "media.Delete"

	log := s.log.With(slog.String("op", op), slog.String("uid", userID), slog.String("media_id", id))

	if err := s.repo.DeleteMedia(ctx, id, userID); err != nil {
		if errors.Is(err, storage.ErrMediaNotFound) {
			log.Info("media not found")
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		log.Error("failed to delete media", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
