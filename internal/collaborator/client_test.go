// File: internal/collaborator/client_test.go
package collaborator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trainingloop/coursepilot/api/schemas"
	"github.com/trainingloop/coursepilot/internal/config"
)

// -- Test Setup Helpers --

func testCollaboratorConfig() config.CollaboratorConfig {
	return config.CollaboratorConfig{
		APIKey:            "sk-ant-test-key",
		Model:             "claude-sonnet-4-20250514",
		APITimeout:        5 * time.Second,
		MaxTokens:         4096,
		ThinkingBudget:    1024,
		RequestsPerMinute: 6000, // effectively unthrottled in tests
	}
}

// setupClient rigs up a Client pointed at a mock HTTP server.
func setupClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testCollaboratorConfig()
	cfg.Endpoint = server.URL

	client, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testDecisionRequest() schemas.DecisionRequest {
	return schemas.DecisionRequest{
		Instructions: "Operating instructions.",
		Tools: []schemas.ToolSpec{
			{Type: "computer_20250124", Name: "computer", DisplayWidthPX: 1330, DisplayHeightPX: 864, DisplayNumber: 1},
		},
		Messages: []schemas.Message{schemas.UserText("Begin.")},
	}
}

func okResponse(content string) string {
	return `{
		"id": "msg_01",
		"role": "assistant",
		"content": ` + content + `,
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 1200, "output_tokens": 85, "cache_read_input_tokens": 900}
	}`
}

// -- Initialization --

func TestNewClient_RequiresAPIKey(t *testing.T) {
	cfg := testCollaboratorConfig()
	cfg.APIKey = ""

	client, err := NewClient(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "API key is required")
}

// -- Request Construction --

func TestDecide_SendsVersionedRequest(t *testing.T) {
	var captured requestPayload
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-ant-test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		assert.Equal(t, betaFeatures, r.Header.Get("anthropic-beta"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(okResponse(`[{"type": "text", "text": "All modules complete."}]`)))
	})

	_, err := client.Decide(context.Background(), testDecisionRequest())
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-20250514", captured.Model)
	assert.Equal(t, 4096, captured.MaxTokens)
	require.NotNil(t, captured.Thinking)
	assert.Equal(t, "enabled", captured.Thinking.Type)
	assert.Equal(t, 1024, captured.Thinking.BudgetTokens)

	// Instructions become a cache-marked system block.
	require.Len(t, captured.System, 1)
	assert.Equal(t, "Operating instructions.", captured.System[0].Text)
	require.NotNil(t, captured.System[0].CacheControl)
	assert.Equal(t, "ephemeral", captured.System[0].CacheControl.Type)

	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "computer", captured.Tools[0].Name)
	assert.Equal(t, 1330, captured.Tools[0].DisplayWidthPX)
}

func TestDecide_ThinkingOmittedWhenDisabled(t *testing.T) {
	var captured requestPayload
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(okResponse(`[{"type": "text", "text": "ok"}]`)))
	})
	client.cfg.ThinkingBudget = 0

	_, err := client.Decide(context.Background(), testDecisionRequest())
	require.NoError(t, err)
	assert.Nil(t, captured.Thinking)
}

// -- Decision Parsing --

func TestDecide_ExtractsToolCallsAndCommentary(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(okResponse(`[
			{"type": "thinking", "thinking": "The play button is centered.", "signature": "sig123"},
			{"type": "text", "text": "Clicking the play button."},
			{"type": "tool_use", "id": "toolu_01", "name": "computer", "input": {"action": "left_click", "coordinate": [640, 400]}},
			{"type": "tool_use", "id": "toolu_02", "name": "mark_video_watched", "input": {"module_id": "m1"}}
		]`)))
	})

	decision, err := client.Decide(context.Background(), testDecisionRequest())
	require.NoError(t, err)

	assert.Equal(t, "tool_use", decision.StopReason)
	assert.Equal(t, "Clicking the play button.", decision.Commentary)

	require.Len(t, decision.ToolCalls, 2)
	assert.Equal(t, "toolu_01", decision.ToolCalls[0].ID)
	assert.Equal(t, "computer", decision.ToolCalls[0].Name)
	assert.Equal(t, "mark_video_watched", decision.ToolCalls[1].Name)

	// The raw assistant message is preserved for history, thinking included.
	require.Len(t, decision.Message.Content, 4)
	assert.Equal(t, schemas.RoleAssistant, decision.Message.Role)
	assert.Equal(t, "sig123", decision.Message.Content[0].Signature)
}

func TestDecide_NoToolCallsMeansCompletion(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(okResponse(`[{"type": "text", "text": "Every module has passed."}]`)))
	})

	decision, err := client.Decide(context.Background(), testDecisionRequest())
	require.NoError(t, err)
	assert.Empty(t, decision.ToolCalls)
	assert.Equal(t, "Every module has passed.", decision.Commentary)
}

func TestDecide_EmptyContentIsError(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(okResponse(`[]`)))
	})

	_, err := client.Decide(context.Background(), testDecisionRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty content")
}

// -- Error Classification --

func TestDecide_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"type": "rate_limit_error", "message": "slow down"}}`))
			return
		}
		w.Write([]byte(okResponse(`[{"type": "text", "text": "ok"}]`)))
	})

	decision, err := client.Decide(context.Background(), testDecisionRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", decision.Commentary)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDecide_AuthFailureIsFatalAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	})

	_, err := client.Decide(context.Background(), testDecisionRequest())
	require.Error(t, err)
	assert.True(t, schemas.IsFatal(err), "credential rejection must be fatal")
	assert.Equal(t, int32(1), calls.Load(), "permanent errors must not retry")
}

func TestDecide_BadRequestIsPermanentButNotFatal(t *testing.T) {
	var calls atomic.Int32
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "max_tokens too large"}}`))
	})

	_, err := client.Decide(context.Background(), testDecisionRequest())
	require.Error(t, err)
	assert.False(t, schemas.IsFatal(err))
	assert.Contains(t, err.Error(), "max_tokens too large")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDecide_ContextCancellationStopsRetries(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := client.Decide(ctx, testDecisionRequest())
	require.Error(t, err)
}
