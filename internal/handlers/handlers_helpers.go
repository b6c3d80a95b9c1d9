package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// styleIDParam extracts the {styleID} URL parameter.
func styleIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "styleID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid style ID %q: %w", raw, err)
	}
	return id, nil
}
