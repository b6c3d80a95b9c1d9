package dify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWorkflow_RequestShape(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/workflows/run", r.URL.Path)
		assert.Equal(t, "Bearer wf-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":{"outputs":{"style_name":"X"}}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "fixed-user", nil)
	resp, err := c.RunWorkflow(context.Background(), Endpoint{BaseURL: srv.URL + "/v1/", APIKey: "wf-key"},
		map[string]string{"original_script": "hello"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"style_name":"X"}`, string(resp.Data.Outputs))
	assert.Equal(t, map[string]any{
		"inputs":        map[string]any{"original_script": "hello"},
		"response_mode": "blocking",
		"user":          "fixed-user",
	}, gotBody)
}

func TestRunWorkflow_MissingCredentialsMakesNoCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	c := NewClient(srv.Client(), "u", nil)
	_, err := c.RunWorkflow(context.Background(), Endpoint{BaseURL: srv.URL, APIKey: "  "}, nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.False(t, called)
}

func TestRunWorkflow_StatusErrorTruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, strings.Repeat("x", 1000))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "u", nil)
	_, err := c.RunWorkflow(context.Background(), Endpoint{BaseURL: srv.URL, APIKey: "k"}, nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Len(t, statusErr.Body, WorkflowErrorBodyLimit)
	assert.True(t, strings.HasPrefix(statusErr.Error(), "Dify API error (401): xxx"))
}

func TestStreamChat_PassesBodyThrough(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat-messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		_, _ = io.WriteString(w, "data: {\"answer\":\"hi\"}\n\ndata: [DONE]\n")
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "fixed-user", nil)
	body, err := c.StreamChat(context.Background(), Endpoint{BaseURL: srv.URL, APIKey: "chat-key"},
		ChatRequest{Query: "hi"})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"answer\":\"hi\"}\n\ndata: [DONE]\n", string(raw))

	assert.Equal(t, map[string]any{
		"query":         "hi",
		"user":          "fixed-user",
		"response_mode": "streaming",
	}, gotBody)
}

func TestStreamChat_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "upstream status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = io.WriteString(w, strings.Repeat("é", 500))
			},
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
				assert.Equal(t, strings.Repeat("é", ChatErrorBodyLimit), statusErr.Body)
			},
		},
		{
			name: "json instead of stream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"answer":"x"}`)
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrProtocolMismatch) },
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.Header().Set("Content-Length", "0")
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmptyStream) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(srv.Client(), "u", nil)
			body, err := c.StreamChat(context.Background(), Endpoint{BaseURL: srv.URL, APIKey: "k"}, ChatRequest{Query: "q"})
			assert.Nil(t, body)
			tt.check(t, err)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "日本", Truncate("日本語", 2))
}

func TestStreamChat_BodyIsNotHTMLEscaped(t *testing.T) {
	bodies := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		bodies <- string(raw)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: [DONE]\n")
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), "u", nil)
	body, err := c.StreamChat(context.Background(), Endpoint{BaseURL: srv.URL, APIKey: "k"},
		ChatRequest{Query: "a & b", Inputs: map[string]string{"style_prompt": `{"tone":"<calm>"}`}})
	require.NoError(t, err)
	_ = body.Close()

	raw := <-bodies
	assert.Contains(t, raw, `"query":"a & b"`)
	assert.Contains(t, raw, `"style_prompt":"{\"tone\":\"<calm>\"}"`)
	assert.NotContains(t, raw, `\u003c`)
}
