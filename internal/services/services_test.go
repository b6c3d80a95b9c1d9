package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"vibecreator-backend/internal/analysis"
	"vibecreator-backend/internal/dify"
	"vibecreator-backend/internal/models"
	"vibecreator-backend/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- fakes ---

type fakeWorkflow struct {
	resp   *dify.WorkflowResponse
	err    error
	inputs map[string]string
	calls  int
}

func (f *fakeWorkflow) RunWorkflow(_ context.Context, _ dify.Endpoint, inputs map[string]string) (*dify.WorkflowResponse, error) {
	f.calls++
	f.inputs = inputs
	return f.resp, f.err
}

func outputs(raw string) *dify.WorkflowResponse {
	var r dify.WorkflowResponse
	r.Data.Outputs = json.RawMessage(raw)
	return &r
}

type memStore struct {
	styles    []models.StyleRecord
	createErr error
	deleteErr error
}

func (m *memStore) CreateStyle(_ context.Context, arg store.CreateStyleParams) (*models.StyleRecord, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	rec := models.StyleRecord{ID: arg.ID, Name: arg.Name, Description: arg.Description, Config: arg.Config, CreatedAt: time.Now()}
	m.styles = append([]models.StyleRecord{rec}, m.styles...)
	return &rec, nil
}

func (m *memStore) ListStyles(context.Context) ([]models.StyleRecord, error) { return m.styles, nil }

func (m *memStore) GetStyleByID(_ context.Context, id uuid.UUID) (*models.StyleRecord, error) {
	for _, s := range m.styles {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) DeleteStyle(_ context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, s := range m.styles {
		if s.ID == id {
			m.styles = append(m.styles[:i], m.styles[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) Ping(context.Context) error { return nil }

var testEndpoint = dify.Endpoint{BaseURL: "http://gateway", APIKey: "k"}

// --- analysis ---

func TestAnalyzeScript_StoresParsedStyle(t *testing.T) {
	wf := &fakeWorkflow{resp: outputs(`{"style_name":" Punchy ","tone":"fast cuts","pace":3}`)}
	st := &memStore{}
	svc := NewAnalysisService(wf, testEndpoint, st, time.Minute, zap.NewNop())

	rec, err := svc.AnalyzeScript(context.Background(), "my script")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"original_script": "my script"}, wf.inputs)
	assert.Equal(t, "Punchy", rec.Name)
	assert.Equal(t, "fast cuts", rec.Description)
	assert.Equal(t, `{"style_name":" Punchy ","tone":"fast cuts","pace":3}`, rec.Config.String())
	assert.Len(t, st.styles, 1)
}

func TestAnalyzeScript_DuplicatesAreNotDeduplicated(t *testing.T) {
	wf := &fakeWorkflow{resp: outputs(`{"style_name":"Same"}`)}
	st := &memStore{}
	svc := NewAnalysisService(wf, testEndpoint, st, 0, zap.NewNop())

	_, err := svc.AnalyzeScript(context.Background(), "s")
	require.NoError(t, err)
	_, err = svc.AnalyzeScript(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, st.styles, 2)
}

func TestAnalyzeScript_Errors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		wf     *fakeWorkflow
		store  *memStore
		check  func(t *testing.T, err error)
	}{
		{
			name:   "empty script",
			script: "   ",
			wf:     &fakeWorkflow{},
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrBadRequest) },
		},
		{
			name:   "missing credentials",
			script: "s",
			wf:     &fakeWorkflow{err: dify.ErrMissingCredentials},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, dify.ErrMissingCredentials)
				assert.Contains(t, err.Error(), "DIFY_API_URL and DIFY_API_KEY must be set")
			},
		},
		{
			name:   "gateway status",
			script: "s",
			wf:     &fakeWorkflow{err: &dify.StatusError{StatusCode: 500, Body: "boom"}},
			check: func(t *testing.T, err error) {
				var se *dify.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, 500, se.StatusCode)
			},
		},
		{
			name:   "missing outputs",
			script: "s",
			wf:     &fakeWorkflow{resp: outputs(``)},
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmptyOutput) },
		},
		{
			name:   "null outputs",
			script: "s",
			wf:     &fakeWorkflow{resp: outputs(`null`)},
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmptyOutput) },
		},
		{
			name:   "unparseable outputs",
			script: "s",
			wf:     &fakeWorkflow{resp: outputs(`[1,2]`)},
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, analysis.ErrUnparseable) },
		},
		{
			name:   "store failure",
			script: "s",
			wf:     &fakeWorkflow{resp: outputs(`{"tone":"x"}`)},
			store:  &memStore{createErr: errors.New("permission denied for table styles")},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrPersistence)
				assert.Contains(t, err.Error(), "permission denied for table styles")
				assert.Contains(t, err.Error(), "access-control")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.store
			if st == nil {
				st = &memStore{}
			}
			svc := NewAnalysisService(tt.wf, testEndpoint, st, 0, zap.NewNop())
			rec, err := svc.AnalyzeScript(context.Background(), tt.script)
			assert.Nil(t, rec)
			tt.check(t, err)
			assert.Empty(t, st.styles)
		})
	}
}

// --- styles ---

func TestStyleService_DeleteIsIdempotent(t *testing.T) {
	st := &memStore{}
	svc := NewStyleService(st, zap.NewNop())
	assert.NoError(t, svc.DeleteStyle(context.Background(), uuid.New()))

	st.deleteErr = errors.New("connection reset")
	err := svc.DeleteStyle(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Failed to delete style: "))
}

func TestStyleService_GetNotFound(t *testing.T) {
	svc := NewStyleService(&memStore{}, zap.NewNop())
	_, err := svc.GetStyle(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrStyleNotFound)
}

// --- relay ---

type fakeStreamer struct {
	got  dify.ChatRequest
	body string
}

func (f *fakeStreamer) StreamChat(_ context.Context, _ dify.Endpoint, req dify.ChatRequest) (io.ReadCloser, error) {
	f.got = req
	return io.NopCloser(strings.NewReader(f.body)), nil
}

type fixedCounter int

func (c fixedCounter) Count(string) int { return int(c) }

func TestBuildChatRequest_StylePrompt(t *testing.T) {
	req, err := BuildChatRequest(models.ChatRequest{
		Message:     json.RawMessage(`"write about cats"`),
		StyleConfig: json.RawMessage(`{"tone":"formal","style_name":"Essay"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "write about cats", req.Query)
	assert.Empty(t, req.ConversationID)
	assert.Equal(t, map[string]string{
		"style_prompt": StylePromptPrefix + `{"tone":"formal","style_name":"Essay"}`,
	}, req.Inputs)
}

func TestBuildChatRequest_NoPromptForEmptyOrNonObjectConfig(t *testing.T) {
	for _, cfg := range []string{``, `{}`, `null`, `"formal"`, `[1]`} {
		req, err := BuildChatRequest(models.ChatRequest{Message: json.RawMessage(`"hi"`), StyleConfig: json.RawMessage(cfg)})
		require.NoError(t, err)
		assert.Nil(t, req.Inputs, "style_config %q", cfg)

		body, err := json.Marshal(req)
		require.NoError(t, err)
		assert.NotContains(t, string(body), "inputs")
	}
}

func TestBuildChatRequest_ConversationPassThrough(t *testing.T) {
	id := "conv-42"
	req, err := BuildChatRequest(models.ChatRequest{Message: json.RawMessage(`"hi"`), ConversationID: &id})
	require.NoError(t, err)
	assert.Equal(t, "conv-42", req.ConversationID)
}

func TestBuildChatRequest_InvalidMessage(t *testing.T) {
	for _, msg := range []string{``, `""`, `42`, `null`, `{"text":"hi"}`} {
		_, err := BuildChatRequest(models.ChatRequest{Message: json.RawMessage(msg)})
		assert.ErrorIs(t, err, ErrBadRequest, "message %q", msg)
	}
}

func TestRelayService_OpenStream(t *testing.T) {
	streamer := &fakeStreamer{body: "data: {\"answer\":\"x\"}\n"}
	svc := NewRelayService(streamer, testEndpoint, fixedCounter(12), zap.NewNop())

	body, err := svc.OpenStream(context.Background(), models.ChatRequest{
		Message:     json.RawMessage(`"hi"`),
		StyleConfig: json.RawMessage(`{"tone":"formal"}`),
	})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"answer\":\"x\"}\n", string(raw))
	assert.Equal(t, StylePromptPrefix+`{"tone":"formal"}`, streamer.got.Inputs["style_prompt"])
	assert.Equal(t, 12, body.StylePromptTokens)
}

func TestRelayService_NoTokenEstimateWithoutPrompt(t *testing.T) {
	svc := NewRelayService(&fakeStreamer{}, testEndpoint, fixedCounter(12), zap.NewNop())

	body, err := svc.OpenStream(context.Background(), models.ChatRequest{Message: json.RawMessage(`"hi"`)})
	require.NoError(t, err)
	defer body.Close()
	assert.Zero(t, body.StylePromptTokens)

	svc = NewRelayService(&fakeStreamer{}, testEndpoint, nil, zap.NewNop())
	body, err = svc.OpenStream(context.Background(), models.ChatRequest{
		Message:     json.RawMessage(`"hi"`),
		StyleConfig: json.RawMessage(`{"tone":"formal"}`),
	})
	require.NoError(t, err)
	defer body.Close()
	assert.Zero(t, body.StylePromptTokens)
}

func TestRelayService_NotConfigured(t *testing.T) {
	svc := NewRelayService(&fakeStreamer{}, dify.Endpoint{BaseURL: "http://x"}, nil, zap.NewNop())
	_, err := svc.OpenStream(context.Background(), models.ChatRequest{Message: json.RawMessage(`"hi"`)})
	assert.ErrorIs(t, err, dify.ErrMissingCredentials)
}
