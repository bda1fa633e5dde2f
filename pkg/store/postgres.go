package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/xhad/inkwell/internal/models"
	"github.com/xhad/inkwell/pkg/logging"
)

type PostgresConfig struct {
	ConnString string
	EntryTable string
	ImageTable string
	TagTable   string
	Logger     logrus.FieldLogger
}

// PostgresStore keeps entries, images and tags in the host's own database.
type PostgresStore struct {
	config PostgresConfig
	pool   *pgxpool.Pool
	logger logrus.FieldLogger

	entries string
	images  string
	tags    string
}

var ErrEntryNotFound = errors.New("entry not found")

func NewPostgres(ctx context.Context, config PostgresConfig) (*PostgresStore, error) {
	if config.EntryTable == "" {
		config.EntryTable = "entries"
	}
	if config.ImageTable == "" {
		config.ImageTable = "entry_images"
	}
	if config.TagTable == "" {
		config.TagTable = "tags"
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PostgresStore{
		config:  config,
		pool:    pool,
		logger:  logging.OrDefault(config.Logger),
		entries: pgx.Identifier{config.EntryTable}.Sanitize(),
		images:  pgx.Identifier{config.ImageTable}.Sanitize(),
		tags:    pgx.Identifier{config.TagTable}.Sanitize(),
	}

	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) initialize(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			plain_text TEXT,
			title TEXT,
			user_id TEXT,
			document_id TEXT,
			first_image TEXT,
			tag_ids TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.entries),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			entry_id TEXT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			position INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.images, s.entries),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`, s.tags),
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) CreateEntry(ctx context.Context, entry *models.Entry) (string, error) {
	id := uuid.New().String()
	tagIDs := entry.TagIDs
	if tagIDs == nil {
		tagIDs = []string{}
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, plain_text, title, user_id, document_id, first_image, tag_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.entries)

	_, err := s.pool.Exec(ctx, stmt,
		id,
		sanitizeUTF8(entry.Content),
		sanitizeUTF8(entry.PlainText),
		sanitizeUTF8(entry.Title),
		entry.UserID,
		entry.DocumentID,
		entry.FirstImage,
		tagIDs,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert entry: %w", err)
	}

	s.logger.WithField("entry_id", id).Debug("entry row inserted")
	return id, nil
}

func (s *PostgresStore) CreateImage(ctx context.Context, image *models.ImageRecord) (string, error) {
	id := uuid.New().String()
	stmt := fmt.Sprintf(`INSERT INTO %s (id, entry_id, url, position) VALUES ($1, $2, $3, $4)`, s.images)

	if _, err := s.pool.Exec(ctx, stmt, id, image.EntryID, image.URL, image.Position); err != nil {
		return "", fmt.Errorf("failed to insert image: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) FindTag(ctx context.Context, name string) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE name = $1`, s.tags), name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query tag: %w", err)
	}
	return id, true, nil
}

// CreateTag inserts a tag, returning the existing id when the name is already taken.
func (s *PostgresStore) CreateTag(ctx context.Context, name string) (string, error) {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, s.tags)

	var id string
	if err := s.pool.QueryRow(ctx, stmt, uuid.New().String(), sanitizeUTF8(name)).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert tag: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) EntryTags(ctx context.Context, entryID string) ([]string, error) {
	var ids []string
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT tag_ids FROM %s WHERE id = $1`, s.entries), entryID).Scan(&ids)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry tags: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) SetEntryTags(ctx context.Context, entryID string, tagIDs []string) error {
	if tagIDs == nil {
		tagIDs = []string{}
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET tag_ids = $2 WHERE id = $1`, s.entries), entryID, tagIDs)
	if err != nil {
		return fmt.Errorf("failed to update entry tags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	return nil
}

// EntryImages lists the image URLs linked to an entry in position order.
func (s *PostgresStore) EntryImages(ctx context.Context, entryID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT url FROM %s WHERE entry_id = $1 ORDER BY position`, s.images), entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// sanitizeUTF8 drops invalid bytes; Postgres rejects them in TEXT columns.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
