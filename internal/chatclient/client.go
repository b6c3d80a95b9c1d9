// Package chatclient drives a styled chat conversation against the relay, the
// same way the browser chat page does.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"vibecreator-backend/internal/models"
	"vibecreator-backend/internal/stream"

	"github.com/google/uuid"
)

var (
	ErrBusy          = errors.New("a reply is still streaming")
	ErrEmptyMessage  = errors.New("message is empty")
	ErrStyleNotFound = errors.New("Style not found")
)

const (
	welcomeID               = "welcome"
	stylePromptTokensHeader = "X-Style-Prompt-Tokens"
)

// RequestError is a relay failure that happened before any delta was streamed.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string { return e.Message }

// WelcomeMessage is the assistant greeting that opens every conversation.
func WelcomeMessage(styleName string) stream.Message {
	return stream.Message{
		ID:      welcomeID,
		Role:    stream.RoleAssistant,
		Content: fmt.Sprintf("Target style loaded. I'm ready to write in the style of %s. What topic should we tackle today?", styleName),
	}
}

// Session owns one conversation with the relay. Apart from the in-flight
// guard it is not safe for concurrent use.
type Session struct {
	baseURL     string
	httpClient  *http.Client
	styleName   string
	styleConfig models.StyleConfig

	conv         *stream.Conversation
	inFlight     atomic.Bool
	promptTokens int
}

// NewSession creates a Session for the relay at baseURL, primed with the given style.
func NewSession(baseURL string, httpClient *http.Client, styleName string, styleConfig models.StyleConfig) *Session {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	s := &Session{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		styleName:   styleName,
		styleConfig: styleConfig,
		conv:        &stream.Conversation{},
	}
	s.conv.Reset(WelcomeMessage(styleName))
	return s
}

// Conversation exposes the transcript, e.g. to set OnDelta.
func (s *Session) Conversation() *stream.Conversation { return s.conv }

// StylePromptTokens is the relay's token estimate for the style prompt sent with
// the last successful turn, or 0 if the relay did not report one.
func (s *Session) StylePromptTokens() int { return s.promptTokens }

// Reset starts a new conversation.
func (s *Session) Reset() {
	s.conv.Reset(WelcomeMessage(s.styleName))
}

// Send posts one user turn and streams the reply into the transcript. It returns
// the final assistant message. If the relay fails before streaming, the
// placeholder is removed; if the stream breaks midway, the partial reply is kept.
func (s *Session) Send(ctx context.Context, text string) (stream.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return stream.Message{}, ErrEmptyMessage
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return stream.Message{}, ErrBusy
	}
	defer s.inFlight.Store(false)

	s.conv.AddUser(text)
	replyID := s.conv.BeginAssistant()

	resp, err := s.post(ctx, text)
	if err != nil {
		s.conv.Remove(replyID)
		return stream.Message{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.conv.Remove(replyID)
		return stream.Message{}, readRequestError(resp)
	}
	s.promptTokens, _ = strconv.Atoi(resp.Header.Get(stylePromptTokensHeader))

	re := s.conv.Reassembler(replyID)
	_, copyErr := io.Copy(re, resp.Body)
	re.Close()

	reply, _ := s.conv.Find(replyID)
	if copyErr != nil {
		return reply, fmt.Errorf("stream interrupted: %w", copyErr)
	}
	return reply, nil
}

func (s *Session) post(ctx context.Context, text string) (*http.Response, error) {
	message, err := json.Marshal(text)
	if err != nil {
		return nil, err
	}
	body := models.ChatRequest{Message: message}
	if id := s.conv.ConversationID; id != "" {
		body.ConversationID = &id
	}
	if s.styleConfig.Len() > 0 {
		body.StyleConfig = json.RawMessage(s.styleConfig.String())
	}

	// Without HTML escaping the style prompt text matches what the browser sends.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reach relay: %w", err)
	}
	return resp, nil
}

func readRequestError(resp *http.Response) error {
	var body models.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err == nil && body.Error != "" {
		return &RequestError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	return &RequestError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("Request failed (%d)", resp.StatusCode)}
}

// FetchStyle loads a saved style from the server at baseURL.
func FetchStyle(ctx context.Context, httpClient *http.Client, baseURL string, id uuid.UUID) (*models.StyleRecord, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/styles/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reach server: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrStyleNotFound
	default:
		return nil, readRequestError(resp)
	}

	var style models.StyleRecord
	if err := json.NewDecoder(resp.Body).Decode(&style); err != nil {
		return nil, fmt.Errorf("decode style: %w", err)
	}
	return &style, nil
}

// ListStyles loads all saved styles, newest first.
func ListStyles(ctx context.Context, httpClient *http.Client, baseURL string) ([]models.StyleRecord, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/styles", nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readRequestError(resp)
	}
	var list models.ListStylesResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode styles: %w", err)
	}
	return list.Styles, nil
}
