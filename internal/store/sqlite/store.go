// Package sqlite is a file-backed StyleStore for local development and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vibecreator-backend/internal/models"
	"vibecreator-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var _ store.StyleStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS styles (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    config_json TEXT NOT NULL DEFAULT '{}',
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS styles_created_at_idx ON styles (created_at DESC);`

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (or creates) the database at path. Use ":memory:" for a private
// in-memory database; the pool is limited to one connection so it is shared.
func Open(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger.Named("SQLiteStore"), now: time.Now}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) CreateStyle(ctx context.Context, arg store.CreateStyleParams) (*models.StyleRecord, error) {
	configBytes, err := arg.Config.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode style configuration: %w", err)
	}
	createdAt := s.now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO styles (id, name, description, config_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		arg.ID.String(), arg.Name, arg.Description, string(configBytes), createdAt.UnixNano(),
	)
	if err != nil {
		s.logger.Error("CreateStyle: insert failed", zap.Stringer("id", arg.ID), zap.Error(err))
		return nil, fmt.Errorf("database error creating style: %w", err)
	}

	return &models.StyleRecord{
		ID:          arg.ID,
		Name:        arg.Name,
		Description: arg.Description,
		Config:      arg.Config,
		CreatedAt:   createdAt,
	}, nil
}

func (s *SQLiteStore) ListStyles(ctx context.Context) ([]models.StyleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, config_json, created_at FROM styles ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("database error listing styles: %w", err)
	}
	defer rows.Close()

	styles := []models.StyleRecord{}
	for rows.Next() {
		rec, err := scanStyle(rows)
		if err != nil {
			return nil, err
		}
		styles = append(styles, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error after listing styles: %w", err)
	}
	return styles, nil
}

func (s *SQLiteStore) GetStyleByID(ctx context.Context, id uuid.UUID) (*models.StyleRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, config_json, created_at FROM styles WHERE id = ?`, id.String())
	rec, err := scanStyle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) DeleteStyle(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM styles WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("database error deleting style: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("database error deleting style: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStyle(row rowScanner) (*models.StyleRecord, error) {
	var (
		rec        models.StyleRecord
		idStr      string
		configText string
		createdAt  int64
	)
	if err := row.Scan(&idStr, &rec.Name, &rec.Description, &configText, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("database error scanning style: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("stored style id %q is invalid: %w", idStr, err)
	}
	cfg, err := models.ParseStyleConfig([]byte(configText))
	if err != nil {
		return nil, fmt.Errorf("stored configuration for style %s is invalid: %w", idStr, err)
	}

	rec.ID = id
	rec.Config = cfg
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return &rec, nil
}
