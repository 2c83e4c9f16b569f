package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"companion/internal/domain"
	"companion/internal/infra"
	"companion/internal/sqlinline"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ImageRepositoryPG implements domain.ImageRepository using PostgreSQL
// through the marker-checked SQL runner.
type ImageRepositoryPG struct {
	exec infra.SQLExecutor
}

// NewImageRepository constructs a new image repository instance.
func NewImageRepository(exec infra.SQLExecutor) *ImageRepositoryPG {
	return &ImageRepositoryPG{exec: exec}
}

// EnsureSchema creates the images table when missing.
func (r *ImageRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.exec.Exec(ctx, sqlinline.QEnsureImagesSchema); err != nil {
		return fmt.Errorf("repo: ensure images schema: %w", err)
	}
	return nil
}

// Save persists a new image record.
func (r *ImageRepositoryPG) Save(ctx context.Context, rec *domain.ImageRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	_, err := r.exec.Exec(ctx, sqlinline.QInsertImage,
		rec.ID, rec.CharacterID, rec.Prompt, rec.NegativePrompt, int(rec.NSFWLevel), rec.Fingerprint, rec.Score,
		rec.Provider, rec.StorageKey, rec.MIME, rec.Bytes, rec.Width, rec.Height, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("repo: insert image: %w", err)
	}
	return nil
}

// GetByID loads one record or returns domain.ErrNotFound.
func (r *ImageRepositoryPG) GetByID(ctx context.Context, id string) (*domain.ImageRecord, error) {
	var rec domain.ImageRecord
	err := scanImage(r.exec.QueryRow(ctx, sqlinline.QGetImage, id), &rec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repo: get image: %w", err)
	}
	return &rec, nil
}

// ListByCharacter returns a character's images, newest first.
func (r *ImageRepositoryPG) ListByCharacter(ctx context.Context, characterID string, limit, offset int) ([]domain.ImageRecord, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.exec.Query(ctx, sqlinline.QListImagesByCharacter, characterID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repo: list images: %w", err)
	}
	defer rows.Close()

	records := make([]domain.ImageRecord, 0, limit)
	for rows.Next() {
		var rec domain.ImageRecord
		if err := scanImage(rows, &rec); err != nil {
			return nil, fmt.Errorf("repo: scan image: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: list images: %w", err)
	}
	return records, nil
}

// Delete removes a record or returns domain.ErrNotFound.
func (r *ImageRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.exec.Exec(ctx, sqlinline.QDeleteImage, id)
	if err != nil {
		return fmt.Errorf("repo: delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(row scanner, rec *domain.ImageRecord) error {
	var level int
	if err := row.Scan(&rec.ID, &rec.CharacterID, &rec.Prompt, &rec.NegativePrompt, &level, &rec.Fingerprint, &rec.Score,
		&rec.Provider, &rec.StorageKey, &rec.MIME, &rec.Bytes, &rec.Width, &rec.Height, &rec.CreatedAt); err != nil {
		return err
	}
	rec.NSFWLevel = domain.NSFWLevel(level)
	return nil
}

func validateRecord(rec *domain.ImageRecord) error {
	switch {
	case rec == nil:
		return fmt.Errorf("%w: nil image record", domain.ErrInvalidRequest)
	case strings.TrimSpace(rec.ID) == "":
		return fmt.Errorf("%w: image id is required", domain.ErrInvalidRequest)
	case !rec.NSFWLevel.Valid():
		return fmt.Errorf("%w: nsfw_level %d outside 0..3", domain.ErrInvalidRequest, int(rec.NSFWLevel))
	case rec.CreatedAt.IsZero():
		return fmt.Errorf("%w: created_at is required", domain.ErrInvalidRequest)
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var _ domain.ImageRepository = (*ImageRepositoryPG)(nil)
