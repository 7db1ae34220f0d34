package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/croscope/croscope/config"
	"github.com/croscope/croscope/models"
)

// Client is a lightweight OpenAI-compatible chat-completions client with
// vision support. It uses net/http directly — no third-party SDK needed.
// A shared token-bucket limiter caps the call rate across all in-flight
// pages so a parallel batch cannot overwhelm the provider.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        config.LLMConfig
}

// NewClient creates a new model client. Pass nil to use a default
// http.Client.
func NewClient(httpClient *http.Client, cfg config.LLMConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		cfg:        cfg,
	}
}

// CompletionRequest describes one model call.
type CompletionRequest struct {
	// Model overrides the configured default when non-empty.
	Model string

	// Prompt is the user message text.
	Prompt string

	// ImageData, when non-nil, is attached to the message as a base64
	// data-URI image part. ImageMIME must then be set.
	ImageData []byte
	ImageMIME string

	// JSONOnly requests response_format json_object. Leave false for
	// free-text output such as the narrative report.
	JSONOnly bool
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatMessage content is either a plain string or a list of content parts;
// we always send parts so text and image attachments share one shape.
type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the minimal chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatErrorResponse captures an API error from the model provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends one chat completion and returns the reply text.
//
// An empty reply (no choices, or blank content) fails with LLM_EMPTY_REPLY,
// distinct from transport/auth/quota failures: the caller may retry an empty
// reply without the image attachment as a degraded fallback.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", models.NewAnalysisError(models.ErrCodeLLMFailure, "canceled while waiting for model-call slot", err)
	}

	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	parts := []contentPart{{Type: "text", Text: req.Prompt}}
	if req.ImageData != nil {
		parts = append(parts, contentPart{
			Type: "image_url",
			ImageURL: &imageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", req.ImageMIME, base64.StdEncoding.EncodeToString(req.ImageData)),
			},
		})
	}

	body := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: parts}},
		Temperature: 0,
	}
	if req.JSONOnly {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", models.NewAnalysisError(models.ErrCodeLLMFailure, "model request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewAnalysisError(models.ErrCodeLLMFailure, "failed to read model response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", models.NewAnalysisError(models.ErrCodeLLMFailure, "failed to parse model response", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", models.NewAnalysisError(models.ErrCodeLLMEmptyReply, "model returned no choices", nil)
	}

	reply := chatResp.Choices[0].Message.Content
	if strings.TrimSpace(reply) == "" {
		return "", models.NewAnalysisError(models.ErrCodeLLMEmptyReply, "model returned an empty reply", nil)
	}

	return reply, nil
}

// classifyError maps HTTP status codes to typed model-call errors.
func classifyError(statusCode int, body []byte) *models.AnalysisError {
	var errResp chatErrorResponse
	msg := "model API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewAnalysisError(models.ErrCodeLLMAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewAnalysisError(models.ErrCodeLLMRateLimited, msg, nil)
	default:
		return models.NewAnalysisError(models.ErrCodeLLMFailure, fmt.Sprintf("model API returned %d: %s", statusCode, msg), nil)
	}
}
