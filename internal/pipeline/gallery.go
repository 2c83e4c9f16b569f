package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"companion/internal/domain"
)

// Get returns the metadata of one image.
func (s *Service) Get(ctx context.Context, id string) (*domain.ImageRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: image id is required", domain.ErrInvalidRequest)
	}
	return s.deps.Repo.GetByID(ctx, id)
}

// Content returns the record and stored bytes of one image.
func (s *Service) Content(ctx context.Context, id string) (*domain.ImageRecord, []byte, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.deps.Store.Read(ctx, rec.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return rec, data, nil
}

// List returns a character's images, newest first.
func (s *Service) List(ctx context.Context, characterID string, limit, offset int) ([]domain.ImageRecord, error) {
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return nil, fmt.Errorf("%w: character_id is required", domain.ErrInvalidRequest)
	}
	return s.deps.Repo.ListByCharacter(ctx, characterID, limit, offset)
}

// Delete removes the record first, then its blob. A missing blob is not an
// error once the record is gone.
func (s *Service) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deps.Repo.Delete(ctx, rec.ID); err != nil {
		return err
	}
	if err := s.deps.Store.Delete(ctx, rec.StorageKey); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error().Err(err).Str("image_id", rec.ID).Str("storage_key", rec.StorageKey).Msg("pipeline: delete blob")
	}
	return nil
}
