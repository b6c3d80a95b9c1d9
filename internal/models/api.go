package models

import (
	"encoding/json"
)

// --- Request Structs ---

// ChatRequest is the body accepted by the chat relay.
// Message and StyleConfig stay raw so type mismatches can be reported precisely.
type ChatRequest struct {
	Message        json.RawMessage `json:"message"`
	ConversationID *string         `json:"conversation_id,omitempty"`
	StyleConfig    json.RawMessage `json:"style_config,omitempty"`
}

// AnalyzeScriptRequest is the body accepted by the analysis endpoint.
type AnalyzeScriptRequest struct {
	Script string `json:"script"`
}

// --- Response Structs ---

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is returned by operations without a payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// AnalyzeResult mirrors the analysis action result: {success:true} or
// {success:false, error}.
type AnalyzeResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ListStylesResponse wraps the style list with its count for the dashboard stats.
type ListStylesResponse struct {
	Styles []StyleRecord `json:"styles"`
	Total  int           `json:"total"`
}
