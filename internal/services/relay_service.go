package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"vibecreator-backend/internal/dify"
	"vibecreator-backend/internal/models"

	"go.uber.org/zap"
)

// StylePromptPrefix precedes the serialized style configuration in the hidden style prompt.
const StylePromptPrefix = "[System: The user has already selected this style. Do not ask what style they want; only use it. Style configuration: ]"

// ChatStreamer is the part of the gateway client used by the relay.
type ChatStreamer interface {
	StreamChat(ctx context.Context, ep dify.Endpoint, req dify.ChatRequest) (io.ReadCloser, error)
}

// TokenCounter estimates the token cost of a prompt.
type TokenCounter interface {
	Count(text string) int
}

// RelayService forwards chat turns to the streaming chat endpoint. It is
// stateless: the style prompt is injected on every turn, so each turn is
// independently primed regardless of the gateway's conversation memory.
type RelayService struct {
	gateway  ChatStreamer
	endpoint dify.Endpoint
	tokens   TokenCounter // optional
	logger   *zap.Logger
}

// NewRelayService creates a RelayService. tokens may be nil.
func NewRelayService(gateway ChatStreamer, endpoint dify.Endpoint, tokens TokenCounter, logger *zap.Logger) *RelayService {
	return &RelayService{
		gateway:  gateway,
		endpoint: endpoint,
		tokens:   tokens,
		logger:   logger.Named("RelayService"),
	}
}

// CheckConfigured reports a configuration error when the chat endpoint lacks a URL or key.
func (s *RelayService) CheckConfigured() error {
	if strings.TrimSpace(s.endpoint.BaseURL) == "" || strings.TrimSpace(s.endpoint.APIKey) == "" {
		return fmt.Errorf("%w: DIFY_CHAT_API_KEY and Dify chat API URL must be set", dify.ErrMissingCredentials)
	}
	return nil
}

// BuildChatRequest validates a relay request and converts it to the upstream body.
func BuildChatRequest(req models.ChatRequest) (dify.ChatRequest, error) {
	var message string
	if len(req.Message) == 0 || json.Unmarshal(req.Message, &message) != nil || message == "" {
		return dify.ChatRequest{}, fmt.Errorf("%w: message is required", ErrBadRequest)
	}

	out := dify.ChatRequest{Query: message}
	if req.ConversationID != nil {
		out.ConversationID = *req.ConversationID
	}

	// Anything but a non-empty object is ignored.
	if len(req.StyleConfig) > 0 {
		if cfg, err := models.ParseStyleConfig(req.StyleConfig); err == nil && cfg.Len() > 0 {
			out.Inputs = map[string]string{"style_prompt": StylePrompt(cfg)}
		}
	}
	return out, nil
}

// StylePrompt renders the hidden instruction for cfg.
func StylePrompt(cfg models.StyleConfig) string {
	return StylePromptPrefix + cfg.String()
}

// ChatStream is an open upstream event stream. Reading and closing it reads and
// closes the upstream body.
type ChatStream struct {
	io.ReadCloser

	// StylePromptTokens estimates the size of the hidden style prompt sent with
	// this turn. It is 0 for unstyled turns or when no counter is configured.
	StylePromptTokens int
}

// OpenStream validates req and opens the upstream event stream. The returned stream
// is bound to ctx; the caller must close it.
func (s *RelayService) OpenStream(ctx context.Context, req models.ChatRequest) (*ChatStream, error) {
	if err := s.CheckConfigured(); err != nil {
		return nil, err
	}
	upstream, err := BuildChatRequest(req)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.Bool("new_conversation", upstream.ConversationID == ""),
		zap.Bool("styled", upstream.Inputs != nil),
	}
	var promptTokens int
	if prompt, ok := upstream.Inputs["style_prompt"]; ok && s.tokens != nil {
		promptTokens = s.tokens.Count(prompt)
		fields = append(fields, zap.Int("style_prompt_tokens", promptTokens))
	}
	s.logger.Info("relaying chat turn", fields...)

	body, err := s.gateway.StreamChat(ctx, s.endpoint, upstream)
	if err != nil {
		s.logger.Warn("upstream chat failed", zap.Error(err))
		return nil, err
	}
	return &ChatStream{ReadCloser: body, StylePromptTokens: promptTokens}, nil
}
