package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"vibecreator-backend/internal/dify"
	"vibecreator-backend/internal/models"
	"vibecreator-backend/internal/services"
	"vibecreator-backend/pkg/httputil"

	"go.uber.org/zap"
)

// streamChunkSize bounds how much of the upstream stream is held in memory at once.
const streamChunkSize = 32 * 1024

// StylePromptTokensHeader carries the estimated token cost of the hidden style prompt.
const StylePromptTokensHeader = "X-Style-Prompt-Tokens"

// ChatRelay is the relay service as seen by the handler.
type ChatRelay interface {
	CheckConfigured() error
	OpenStream(ctx context.Context, req models.ChatRequest) (*services.ChatStream, error)
}

// ChatHandler relays chat turns to the streaming chat gateway.
type ChatHandler struct {
	relay  ChatRelay
	logger *zap.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(relay ChatRelay, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{relay: relay, logger: logger.Named("ChatHandler")}
}

// HandleChat handles POST /chat. On success the upstream event stream is copied
// through unmodified, flushing after every chunk so deltas reach the browser as
// they arrive. The upstream request shares the inbound request's context, so a
// client that goes away cancels the upstream read.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if err := h.relay.CheckConfigured(); err != nil {
		h.logger.Error("chat gateway not configured", zap.Error(err))
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	defer r.Body.Close()

	body, err := h.relay.OpenStream(r.Context(), req)
	if err != nil {
		status, message := chatErrorResponse(err)
		httputil.RespondError(w, status, message)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if body.StylePromptTokens > 0 {
		w.Header().Set(StylePromptTokensHeader, strconv.Itoa(body.StylePromptTokens))
	}
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	buf := make([]byte, streamChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				h.logger.Debug("client went away during stream", zap.Error(writeErr))
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) && r.Context().Err() == nil {
				h.logger.Warn("upstream stream ended with error", zap.Error(readErr))
			}
			return
		}
	}
}

func chatErrorResponse(err error) (int, string) {
	var statusErr *dify.StatusError
	switch {
	case errors.Is(err, services.ErrBadRequest):
		return http.StatusBadRequest, "message is required"
	case errors.Is(err, dify.ErrMissingCredentials):
		return http.StatusInternalServerError, err.Error()
	case errors.As(err, &statusErr):
		return statusErr.StatusCode, statusErr.Error()
	case errors.Is(err, dify.ErrProtocolMismatch):
		return http.StatusBadGateway, "Dify did not return a stream"
	case errors.Is(err, dify.ErrEmptyStream):
		return http.StatusBadGateway, "No response body"
	default:
		return http.StatusBadGateway, "Failed to reach chat gateway: " + err.Error()
	}
}
