package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"vibecreator-backend/internal/analysis"
	"vibecreator-backend/internal/dify"
	"vibecreator-backend/internal/models"
	"vibecreator-backend/internal/services"
	"vibecreator-backend/pkg/httputil"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StyleService defines the interface expected from the style service.
type StyleService interface {
	ListStyles(ctx context.Context) ([]models.StyleRecord, error)
	GetStyle(ctx context.Context, id uuid.UUID) (*models.StyleRecord, error)
	DeleteStyle(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

// ScriptAnalyzer defines the interface expected from the analysis service.
type ScriptAnalyzer interface {
	AnalyzeScript(ctx context.Context, script string) (*models.StyleRecord, error)
}

type StyleHandler struct {
	styles   StyleService
	analyzer ScriptAnalyzer
	logger   *zap.Logger
}

func NewStyleHandler(styles StyleService, analyzer ScriptAnalyzer, logger *zap.Logger) *StyleHandler {
	return &StyleHandler{
		styles:   styles,
		analyzer: analyzer,
		logger:   logger.Named("StyleHandler"),
	}
}

// HandleListStyles handles GET /styles
func (h *StyleHandler) HandleListStyles(w http.ResponseWriter, r *http.Request) {
	styles, err := h.styles.ListStyles(r.Context())
	if err != nil {
		h.logger.Error("HandleListStyles", zap.Error(err))
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to load styles: "+err.Error())
		return
	}

	if styles == nil {
		styles = []models.StyleRecord{}
	}
	httputil.RespondJSON(w, http.StatusOK, models.ListStylesResponse{Styles: styles, Total: len(styles)})
}

// HandleGetStyle handles GET /styles/{styleID}
func (h *StyleHandler) HandleGetStyle(w http.ResponseWriter, r *http.Request) {
	styleID, err := styleIDParam(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid style ID format")
		return
	}

	style, err := h.styles.GetStyle(r.Context(), styleID)
	if err != nil {
		if errors.Is(err, services.ErrStyleNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Style not found")
			return
		}
		h.logger.Error("HandleGetStyle", zap.Stringer("id", styleID), zap.Error(err))
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get style")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, style)
}

// HandleDeleteStyle handles DELETE /styles/{styleID}
func (h *StyleHandler) HandleDeleteStyle(w http.ResponseWriter, r *http.Request) {
	styleID, err := styleIDParam(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid style ID format")
		return
	}

	if err := h.styles.DeleteStyle(r.Context(), styleID); err != nil {
		h.logger.Error("HandleDeleteStyle", zap.Stringer("id", styleID), zap.Error(err))
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	httputil.RespondJSON(w, http.StatusOK, models.SuccessResponse{Success: true})
}

// HandleAnalyzeScript handles POST /styles/analyze. The caller re-fetches the
// style list on success.
func (h *StyleHandler) HandleAnalyzeScript(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondJSON(w, http.StatusBadRequest, models.AnalyzeResult{Error: "Invalid JSON body"})
		return
	}
	defer r.Body.Close()

	if _, err := h.analyzer.AnalyzeScript(r.Context(), req.Script); err != nil {
		status, message := analyzeErrorResponse(err)
		h.logger.Warn("HandleAnalyzeScript", zap.Int("status", status), zap.Error(err))
		httputil.RespondJSON(w, status, models.AnalyzeResult{Error: message})
		return
	}

	httputil.RespondJSON(w, http.StatusOK, models.AnalyzeResult{Success: true})
}

// HandleStoreHealth handles GET /health/store
func (h *StyleHandler) HandleStoreHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.styles.Ping(r.Context()); err != nil {
		httputil.RespondError(w, http.StatusServiceUnavailable, "Style store unreachable: "+err.Error())
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.SuccessResponse{Success: true})
}

func analyzeErrorResponse(err error) (int, string) {
	var statusErr *dify.StatusError
	switch {
	case errors.Is(err, services.ErrBadRequest):
		return http.StatusBadRequest, "Script is required"
	case errors.Is(err, dify.ErrMissingCredentials):
		return http.StatusInternalServerError, err.Error()
	case errors.As(err, &statusErr):
		return http.StatusBadGateway, statusErr.Error()
	case errors.Is(err, services.ErrEmptyOutput):
		return http.StatusBadGateway, services.ErrEmptyOutput.Error()
	case errors.Is(err, analysis.ErrUnparseable):
		return http.StatusBadGateway, "Dify output did not contain a parseable object or JSON string (expected style_name and tone). Check your workflow configuration."
	case errors.Is(err, services.ErrPersistence):
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusBadGateway, err.Error()
	}
}
