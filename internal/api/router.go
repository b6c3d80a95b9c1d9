package api

import (
	"net/http"
	"time"

	"vibecreator-backend/internal/config"
	"vibecreator-backend/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// requestTimeout applies to every route except the chat stream and script analysis.
const requestTimeout = 60 * time.Second

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	ChatHandler  *handlers.ChatHandler
	StyleHandler *handlers.StyleHandler
	Logger       *zap.Logger
	Config       *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	if deps.ChatHandler == nil {
		panic("ChatHandler dependency is nil in router setup")
	}
	if deps.StyleHandler == nil {
		panic("StyleHandler dependency is nil in router setup")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	// --- CORS Configuration ---
	allowedOrigins := []string{"http://localhost:3000"}
	if deps.Config != nil && len(deps.Config.AllowedOrigins) > 0 {
		allowedOrigins = deps.Config.AllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", handlers.StylePromptTokensHeader},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// The chat stream lives as long as the upstream keeps sending, and script
	// analysis is bounded by DIFY_TIMEOUT, so both sit outside the timeout group.
	r.Post("/chat", deps.ChatHandler.HandleChat)
	r.Post("/styles/analyze", deps.StyleHandler.HandleAnalyzeScript)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
		r.Get("/health/store", deps.StyleHandler.HandleStoreHealth)

		r.Get("/styles", deps.StyleHandler.HandleListStyles)
		r.Get("/styles/{styleID}", deps.StyleHandler.HandleGetStyle)
		r.Delete("/styles/{styleID}", deps.StyleHandler.HandleDeleteStyle)
	})

	return r
}
