package domain

import "context"

// ImageRepository is the persistence collaborator for generated images. The
// prompt core never reads it back for diversity decisions.
type ImageRepository interface {
	Save(ctx context.Context, rec *ImageRecord) error
	GetByID(ctx context.Context, id string) (*ImageRecord, error)
	ListByCharacter(ctx context.Context, characterID string, limit, offset int) ([]ImageRecord, error)
	Delete(ctx context.Context, id string) error
}
