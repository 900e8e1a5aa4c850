package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
)

// newMessageServer fakes the Anthropic messages endpoint with a fixed reply.
func newMessageServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "msg_test",
			"type":  "message",
			"role":  "assistant",
			"model": string(core.ModelAnthropicSonnet),
			"content": []map[string]interface{}{
				{"type": "text", "text": text},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]interface{}{"input_tokens": 12, "output_tokens": 7},
		})
	}))
}

func newTestLLM(t *testing.T, serverURL string) *AnthropicLLM {
	t.Helper()
	llm, err := NewAnthropicLLMFromEndpoint("test-key", core.ModelAnthropicSonnet,
		&core.EndpointConfig{BaseURL: serverURL, TimeoutSec: 5})
	require.NoError(t, err)
	return llm
}

func TestNewAnthropicLLM(t *testing.T) {
	testCases := []struct {
		name      string
		apiKey    string
		model     core.ModelID
		expectErr bool
	}{
		{
			name:   "valid key and model",
			apiKey: "test-valid-key",
			model:  core.ModelAnthropicOpus,
		},
		{
			name:      "missing API key",
			apiKey:    "",
			model:     core.ModelAnthropicSonnet,
			expectErr: true,
		},
		{
			name:      "unsupported model",
			apiKey:    "test-valid-key",
			model:     core.ModelID("gpt-4o"),
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", "")
			llm, err := NewAnthropicLLM(tc.apiKey, tc.model)

			if tc.expectErr {
				assert.Error(t, err)
				assert.Nil(t, llm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, string(tc.model), llm.ModelID())
			assert.Equal(t, "anthropic", llm.ProviderName())
			assert.Contains(t, llm.Capabilities(), core.CapabilityCompletion)
			assert.Contains(t, llm.Capabilities(), core.CapabilityChat)
			assert.Contains(t, llm.Capabilities(), core.CapabilityJSON)
		})
	}
}

func TestAnthropicLLM_Generate(t *testing.T) {
	server := newMessageServer(t, http.StatusOK, "Generated response")
	defer server.Close()

	llm := newTestLLM(t, server.URL)
	resp, err := llm.Generate(context.Background(), "example prompt",
		core.WithMaxTokens(100), core.WithTemperature(0.7))

	require.NoError(t, err)
	assert.Equal(t, "Generated response", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 7, resp.Usage.CompletionTokens)
	assert.Equal(t, 19, resp.Usage.TotalTokens)
}

func TestAnthropicLLM_GenerateAPIError(t *testing.T) {
	server := newMessageServer(t, http.StatusInternalServerError, "")
	defer server.Close()

	llm := newTestLLM(t, server.URL)
	resp, err := llm.Generate(context.Background(), "example prompt")

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Equal(t, errors.LLMGenerationFailed, errors.CodeOf(err))
}

func TestAnthropicLLM_GenerateWithJSON(t *testing.T) {
	server := newMessageServer(t, http.StatusOK, "```json\n{\"answer\": \"42\", \"score\": 7}\n```")
	defer server.Close()

	llm := newTestLLM(t, server.URL)
	result, err := llm.GenerateWithJSON(context.Background(), "example prompt")

	require.NoError(t, err)
	assert.Equal(t, "42", result["answer"])
	assert.Equal(t, float64(7), result["score"])
}

func TestParseJSONResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     map[string]interface{}
		wantErr  bool
	}{
		{
			name:     "bare object",
			response: `{"key": "value"}`,
			want:     map[string]interface{}{"key": "value"},
		},
		{
			name:     "fenced object",
			response: "```json\n{\"key\": \"value\"}\n```",
			want:     map[string]interface{}{"key": "value"},
		},
		{
			name:     "fence without language tag",
			response: "```\n{\"n\": 1}\n```",
			want:     map[string]interface{}{"n": float64(1)},
		},
		{
			name:     "not JSON",
			response: "no object here",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJSONResponse(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.InvalidResponse, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
