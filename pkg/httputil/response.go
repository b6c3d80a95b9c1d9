package httputil

import (
	"encoding/json"
	"net/http"

	api_models "vibecreator-backend/internal/models"
)

// RespondJSON writes a JSON response with the given status code and payload.
func RespondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	// Style configurations are echoed back as stored, without \u003c-style escapes.
	enc.SetEscapeHTML(false)
	// Headers are already sent; an encoding error cannot be reported to the client.
	_ = enc.Encode(payload)
}

// RespondError writes a JSON error response with the given status code and message.
func RespondError(w http.ResponseWriter, statusCode int, message string) {
	resp := api_models.ErrorResponse{Error: message}
	RespondJSON(w, statusCode, resp)
}
