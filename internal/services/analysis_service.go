package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vibecreator-backend/internal/analysis"
	"vibecreator-backend/internal/dify"
	"vibecreator-backend/internal/models"
	"vibecreator-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkflowRunner is the part of the gateway client used by the analysis flow.
type WorkflowRunner interface {
	RunWorkflow(ctx context.Context, ep dify.Endpoint, inputs map[string]string) (*dify.WorkflowResponse, error)
}

// AnalysisService sends scripts to the analysis workflow and stores the resulting style.
type AnalysisService struct {
	gateway  WorkflowRunner
	endpoint dify.Endpoint
	store    store.StyleStore
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewAnalysisService creates an AnalysisService. A zero timeout means none.
func NewAnalysisService(gateway WorkflowRunner, endpoint dify.Endpoint, s store.StyleStore, timeout time.Duration, logger *zap.Logger) *AnalysisService {
	return &AnalysisService{
		gateway:  gateway,
		endpoint: endpoint,
		store:    s,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger.Named("AnalysisService"),
	}
}

// AnalyzeScript runs the workflow on script and persists the extracted style.
// Duplicate submissions create duplicate records.
func (s *AnalysisService) AnalyzeScript(ctx context.Context, script string) (*models.StyleRecord, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("%w: script cannot be empty", ErrBadRequest)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.gateway.RunWorkflow(ctx, s.endpoint, map[string]string{"original_script": script})
	if err != nil {
		if errors.Is(err, dify.ErrMissingCredentials) {
			return nil, fmt.Errorf("%w: DIFY_API_URL and DIFY_API_KEY must be set", err)
		}
		s.logger.Warn("workflow call failed", zap.Error(err))
		return nil, err
	}

	outputs := resp.Data.Outputs
	if len(outputs) == 0 || string(outputs) == "null" {
		return nil, ErrEmptyOutput
	}

	cfg, err := analysis.ParseOutputs(outputs)
	if err != nil {
		s.logger.Warn("workflow output unparseable", zap.ByteString("outputs", outputs))
		return nil, err
	}
	draft := analysis.BuildDraft(cfg, s.now())

	rec, err := s.store.CreateStyle(ctx, store.CreateStyleParams{
		ID:          uuid.New(),
		Name:        draft.Name,
		Description: draft.Description,
		Config:      draft.Config,
	})
	if err != nil {
		s.logger.Error("store insert failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v.%s", ErrPersistence, err, persistenceHint)
	}

	s.logger.Info("style created", zap.Stringer("id", rec.ID), zap.String("name", rec.Name))
	return rec, nil
}
