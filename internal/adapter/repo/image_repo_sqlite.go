package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"companion/internal/domain"
)

const sqliteSchema = `
create table if not exists images (
  id              text primary key,
  character_id    text not null,
  prompt          text not null,
  negative_prompt text not null,
  nsfw_level      integer not null check (nsfw_level between 0 and 3),
  fingerprint     text not null,
  score           real not null,
  provider        text not null,
  storage_key     text not null,
  mime            text not null,
  bytes           integer not null,
  width           integer not null,
  height          integer not null,
  created_at      text not null
);
create index if not exists images_character_created_idx on images (character_id, created_at desc);
`

// Fixed width so text ordering matches time ordering.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z"

const sqliteColumns = `id, character_id, prompt, negative_prompt, nsfw_level, fingerprint, score,
  provider, storage_key, mime, bytes, width, height, created_at`

// ImageRepositorySQLite implements domain.ImageRepository on a local SQLite
// file. It is the default store for single-node deployments.
type ImageRepositorySQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func OpenSQLite(ctx context.Context, path string) (*ImageRepositorySQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("repo: sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repo: open sqlite: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY and keeps
	// ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "pragma journal_mode = wal; pragma busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repo: configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repo: migrate sqlite: %w", err)
	}
	return &ImageRepositorySQLite{db: db}, nil
}

// Close releases the database handle.
func (r *ImageRepositorySQLite) Close() error {
	return r.db.Close()
}

// Ping checks the database handle.
func (r *ImageRepositorySQLite) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *ImageRepositorySQLite) Save(ctx context.Context, rec *domain.ImageRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `insert into images (`+sqliteColumns+`) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CharacterID, rec.Prompt, rec.NegativePrompt, int(rec.NSFWLevel), rec.Fingerprint, rec.Score,
		rec.Provider, rec.StorageKey, rec.MIME, rec.Bytes, rec.Width, rec.Height, rec.CreatedAt.UTC().Format(sqliteTimeFormat))
	if err != nil {
		return fmt.Errorf("repo: insert image: %w", err)
	}
	return nil
}

func (r *ImageRepositorySQLite) GetByID(ctx context.Context, id string) (*domain.ImageRecord, error) {
	row := r.db.QueryRowContext(ctx, `select `+sqliteColumns+` from images where id = ?`, id)
	rec, err := scanSQLiteImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repo: get image: %w", err)
	}
	return rec, nil
}

func (r *ImageRepositorySQLite) ListByCharacter(ctx context.Context, characterID string, limit, offset int) ([]domain.ImageRecord, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.db.QueryContext(ctx, `select `+sqliteColumns+` from images where character_id = ? order by created_at desc, id desc limit ? offset ?`,
		characterID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repo: list images: %w", err)
	}
	defer rows.Close()

	records := make([]domain.ImageRecord, 0, limit)
	for rows.Next() {
		rec, err := scanSQLiteImage(rows)
		if err != nil {
			return nil, fmt.Errorf("repo: scan image: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo: list images: %w", err)
	}
	return records, nil
}

func (r *ImageRepositorySQLite) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `delete from images where id = ?`, id)
	if err != nil {
		return fmt.Errorf("repo: delete image: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repo: delete image: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSQLiteImage(row scanner) (*domain.ImageRecord, error) {
	var rec domain.ImageRecord
	var created string
	var level int
	if err := row.Scan(&rec.ID, &rec.CharacterID, &rec.Prompt, &rec.NegativePrompt, &level, &rec.Fingerprint, &rec.Score,
		&rec.Provider, &rec.StorageKey, &rec.MIME, &rec.Bytes, &rec.Width, &rec.Height, &created); err != nil {
		return nil, err
	}
	t, err := time.Parse(sqliteTimeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	rec.CreatedAt = t
	rec.NSFWLevel = domain.NSFWLevel(level)
	return &rec, nil
}

var _ domain.ImageRepository = (*ImageRepositorySQLite)(nil)
