package services

import (
	"context"
	"errors"
	"fmt"

	"vibecreator-backend/internal/models"
	"vibecreator-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StyleService reads and deletes stored styles.
type StyleService struct {
	store  store.StyleStore
	logger *zap.Logger
}

// NewStyleService creates a new StyleService.
func NewStyleService(s store.StyleStore, logger *zap.Logger) *StyleService {
	return &StyleService{store: s, logger: logger.Named("StyleService")}
}

// ListStyles returns every style, newest first.
func (s *StyleService) ListStyles(ctx context.Context) ([]models.StyleRecord, error) {
	styles, err := s.store.ListStyles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list styles: %w", err)
	}
	return styles, nil
}

// GetStyle returns one style.
func (s *StyleService) GetStyle(ctx context.Context, id uuid.UUID) (*models.StyleRecord, error) {
	rec, err := s.store.GetStyleByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStyleNotFound
		}
		return nil, fmt.Errorf("failed to get style: %w", err)
	}
	return rec, nil
}

// DeleteStyle removes a style. Deleting an id that does not exist succeeds.
func (s *StyleService) DeleteStyle(ctx context.Context, id uuid.UUID) error {
	err := s.store.DeleteStyle(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("DeleteStyle: nothing to delete", zap.Stringer("id", id))
			return nil
		}
		return fmt.Errorf("Failed to delete style: %w", err)
	}
	s.logger.Info("DeleteStyle: deleted", zap.Stringer("id", id))
	return nil
}

// Ping checks the backing store.
func (s *StyleService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
