// File: internal/collaborator/client.go
package collaborator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/trainingloop/coursepilot/api/schemas"
	"github.com/trainingloop/coursepilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	apiVersion = "2023-06-01"
	// computer-use enables the built-in computer tool; prompt caching keeps
	// the static instruction block from being re-billed every turn.
	betaFeatures = "computer-use-2025-01-24,prompt-caching-2024-07-31"
)

// Client talks to the reasoning collaborator's message API. It implements
// schemas.Collaborator.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	cfg        config.CollaboratorConfig
	limiter    *rate.Limiter
}

// -- API request/response structures (internal to this file) --

type thinkingConfig struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type requestPayload struct {
	Model     string                 `json:"model"`
	MaxTokens int                    `json:"max_tokens"`
	System    []schemas.ContentBlock `json:"system,omitempty"`
	Messages  []schemas.Message      `json:"messages"`
	Tools     []schemas.ToolSpec     `json:"tools,omitempty"`
	Thinking  *thinkingConfig        `json:"thinking,omitempty"`
}

type responsePayload struct {
	ID         string                 `json:"id"`
	Role       schemas.Role           `json:"role"`
	Content    []schemas.ContentBlock `json:"content"`
	StopReason string                 `json:"stop_reason"`
	Usage      struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	} `json:"usage"`
}

type errorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient initializes the client.
func NewClient(cfg config.CollaboratorConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("collaborator API key is required")
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	return &Client{
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger:  logger.Named("collaborator"),
		limiter: rate.NewLimiter(rate.Limit(rpm/60.0), 1),
	}, nil
}

// Decide sends one turn of history to the collaborator and returns its
// decision, retrying transient API failures.
func (c *Client) Decide(ctx context.Context, req schemas.DecisionRequest) (*schemas.Decision, error) {
	body, err := json.Marshal(c.buildRequestPayload(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter interrupted: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 5 * time.Minute
	b.MaxInterval = 30 * time.Second

	requestID := uuid.NewString()
	var decision *schemas.Decision

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", apiVersion)
		httpReq.Header.Set("anthropic-beta", betaFeatures)

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			c.logger.Warn("Network error during collaborator request, retrying...",
				zap.String("request_id", requestID), zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(requestID, resp.StatusCode, respBody)
		}

		var payload responsePayload
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(payload.Content) == 0 {
			return backoff.Permanent(fmt.Errorf("collaborator returned empty content (stop reason: %s)", payload.StopReason))
		}

		c.logger.Info("Collaborator decision complete",
			zap.String("request_id", requestID),
			zap.Duration("duration", duration),
			zap.String("stop_reason", payload.StopReason),
			zap.Int("input_tokens", payload.Usage.InputTokens),
			zap.Int("output_tokens", payload.Usage.OutputTokens),
			zap.Int("cache_read_tokens", payload.Usage.CacheReadInputTokens),
		)

		decision = buildDecision(payload)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return decision, nil
}

// Close releases pooled connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) buildRequestPayload(req schemas.DecisionRequest) requestPayload {
	payload := requestPayload{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages:  req.Messages,
		Tools:     req.Tools,
	}
	if req.Instructions != "" {
		system := schemas.TextBlock(req.Instructions)
		system.CacheControl = schemas.EphemeralCache()
		payload.System = []schemas.ContentBlock{system}
	}
	if c.cfg.ThinkingBudget > 0 {
		payload.Thinking = &thinkingConfig{Type: "enabled", BudgetTokens: c.cfg.ThinkingBudget}
	}
	return payload
}

func buildDecision(payload responsePayload) *schemas.Decision {
	d := &schemas.Decision{
		Message:    schemas.Message{Role: schemas.RoleAssistant, Content: payload.Content},
		StopReason: payload.StopReason,
	}
	var commentary bytes.Buffer
	for _, block := range payload.Content {
		switch block.Type {
		case schemas.BlockText:
			if commentary.Len() > 0 {
				commentary.WriteString("\n")
			}
			commentary.WriteString(block.Text)
		case schemas.BlockToolUse:
			d.ToolCalls = append(d.ToolCalls, schemas.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}
	d.Commentary = commentary.String()
	return d
}

func (c *Client) handleAPIError(requestID string, statusCode int, body []byte) error {
	var apiErr errorPayload
	detail := string(body)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		detail = apiErr.Error.Message
	}

	c.logger.Error("Collaborator API returned error status",
		zap.String("request_id", requestID),
		zap.Int("status", statusCode),
		zap.String("detail", detail),
	)
	err := fmt.Errorf("collaborator API error: status %d: %s", statusCode, detail)

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable, 529:
		return err // Transient, retry.
	case http.StatusUnauthorized, http.StatusForbidden:
		// Rejected credentials never recover within a run.
		return backoff.Permanent(schemas.Fatalf(err, "collaborator rejected credentials"))
	default:
		return backoff.Permanent(err)
	}
}
