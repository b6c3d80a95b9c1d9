package postgres

import (
	"context"
	"errors"
	"fmt"

	"vibecreator-backend/internal/models"
	"vibecreator-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// --- Style Methods ---

const styleColumns = `id, name, description, config_json, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStyle(row rowScanner) (*models.StyleRecord, error) {
	rec := &models.StyleRecord{}
	var configBytes []byte
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Description, &configBytes, &rec.CreatedAt); err != nil {
		return nil, err
	}
	cfg, err := models.ParseStyleConfig(configBytes)
	if err != nil {
		return nil, fmt.Errorf("stored configuration for style %s is invalid: %w", rec.ID, err)
	}
	rec.Config = cfg
	return rec, nil
}

// CreateStyle inserts a new style record.
func (s *PostgresStore) CreateStyle(ctx context.Context, arg store.CreateStyleParams) (*models.StyleRecord, error) {
	s.logger.Debug("CreateStyle called", zap.Stringer("id", arg.ID), zap.String("name", arg.Name))
	query := `
        INSERT INTO styles (id, name, description, config_json)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + styleColumns

	configBytes, err := arg.Config.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode style configuration: %w", err)
	}

	rec, err := scanStyle(s.db.QueryRow(ctx, query, arg.ID, arg.Name, arg.Description, string(configBytes)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			s.logger.Error("CreateStyle: PostgreSQL error",
				zap.String("code", pgErr.Code), zap.String("message", pgErr.Message), zap.String("detail", pgErr.Detail))
			if pgErr.Code == "42501" { // insufficient_privilege
				return nil, fmt.Errorf("permission denied inserting into styles: %w", err)
			}
		} else {
			s.logger.Error("CreateStyle: failed exec/scan", zap.Error(err))
		}
		return nil, fmt.Errorf("database error creating style: %w", err)
	}

	s.logger.Info("CreateStyle: inserted style", zap.Stringer("id", rec.ID))
	return rec, nil
}

// ListStyles retrieves all styles, newest first.
func (s *PostgresStore) ListStyles(ctx context.Context) ([]models.StyleRecord, error) {
	query := `SELECT ` + styleColumns + ` FROM styles ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.logger.Error("ListStyles: failed query", zap.Error(err))
		return nil, fmt.Errorf("database error listing styles: %w", err)
	}
	defer rows.Close()

	styles := []models.StyleRecord{}
	for rows.Next() {
		rec, err := scanStyle(rows)
		if err != nil {
			s.logger.Error("ListStyles: failed scanning row", zap.Error(err))
			return nil, fmt.Errorf("database error scanning style: %w", err)
		}
		styles = append(styles, *rec)
	}

	if err = rows.Err(); err != nil {
		s.logger.Error("ListStyles: error after iterating rows", zap.Error(err))
		return nil, fmt.Errorf("database error after listing styles: %w", err)
	}

	s.logger.Debug("ListStyles: done", zap.Int("count", len(styles)))
	return styles, nil
}

// GetStyleByID retrieves a specific style by its ID.
func (s *PostgresStore) GetStyleByID(ctx context.Context, id uuid.UUID) (*models.StyleRecord, error) {
	query := `SELECT ` + styleColumns + ` FROM styles WHERE id = $1`

	rec, err := scanStyle(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		s.logger.Error("GetStyleByID: failed query/scan", zap.Stringer("id", id), zap.Error(err))
		return nil, fmt.Errorf("database error fetching style: %w", err)
	}
	return rec, nil
}

// DeleteStyle deletes a specific style by ID.
func (s *PostgresStore) DeleteStyle(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := s.db.Exec(ctx, `DELETE FROM styles WHERE id = $1`, id)
	if err != nil {
		s.logger.Error("DeleteStyle: failed exec", zap.Stringer("id", id), zap.Error(err))
		return fmt.Errorf("database error deleting style: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	s.logger.Info("DeleteStyle: deleted style", zap.Stringer("id", id))
	return nil
}
