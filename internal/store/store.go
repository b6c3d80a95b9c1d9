package store

import (
	"context"
	"errors"

	"vibecreator-backend/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// CreateStyleParams contains parameters for creating a style record.
type CreateStyleParams struct {
	ID          uuid.UUID
	Name        string
	Description string
	Config      models.StyleConfig
}

// StyleStore defines the operations on the shared styles table.
// Implementations exist for Postgres, SQLite and Redis; all of them keep the
// configuration JSON text verbatim.
type StyleStore interface {
	CreateStyle(ctx context.Context, arg CreateStyleParams) (*models.StyleRecord, error)
	ListStyles(ctx context.Context) ([]models.StyleRecord, error) // newest first
	GetStyleByID(ctx context.Context, id uuid.UUID) (*models.StyleRecord, error)
	DeleteStyle(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}
