// Package gemini is the gateway to the hosted Gemini text-generation API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mockmate/interviewd/internal/domain"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash-lite"
	defaultTimeout = 60 * time.Second
)

var (
	// ErrMalformedTurn is returned when a history turn is missing its role or
	// text. This indicates a session invariant violation upstream, so the
	// request is rejected before any network I/O.
	ErrMalformedTurn = errors.New("gemini: history turn missing role or text")

	errNoCandidates = errors.New("gemini: no candidates in response")
)

// StatusError captures non-2xx upstream responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client is a focused client for the Gemini generateContent endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests and proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = strings.TrimSpace(model)
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Gemini client. The API key is required.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: API key must not be empty")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// GenerateContent sends the instruction as the final user turn after the
// prior history and blocks until the complete response text is available.
// maxOutputTokens <= 0 means no limit is transmitted.
func (c *Client) GenerateContent(ctx context.Context, instruction string, history []domain.Turn, maxOutputTokens int) (string, error) {
	contents, err := buildContents(instruction, history)
	if err != nil {
		return "", err
	}

	reqBody := generateRequest{Contents: contents}
	if maxOutputTokens > 0 {
		reqBody.GenerationConfig = &generationConfig{MaxOutputTokens: maxOutputTokens}
	}

	ctx, cancel := c.ensureDeadline(ctx)
	defer cancel()

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	raw, err := c.post(ctx, url, reqBody)
	if err != nil {
		return "", err
	}

	var payload generateResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(payload.Candidates) == 0 {
		return "", errNoCandidates
	}

	var sb strings.Builder
	for _, p := range payload.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &StatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("gemini: read response body: %w", err)
	}
	return buf, nil
}

// ensureDeadline applies the client timeout when the inbound context carries
// no deadline of its own, so the outbound call can never hang unbounded.
func (c *Client) ensureDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	timeout := c.httpClient.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// buildContents validates and converts history, strips a leading
// model-authored turn (the chat protocol requires the first turn to be
// user-authored), and appends the instruction as the final user turn.
func buildContents(instruction string, history []domain.Turn) ([]content, error) {
	for _, t := range history {
		if t.Role == "" || t.Text == "" {
			return nil, ErrMalformedTurn
		}
	}
	if len(history) > 0 && history[0].Role == domain.RoleModel {
		history = history[1:]
	}

	contents := make([]content, 0, len(history)+1)
	for _, t := range history {
		contents = append(contents, content{
			Role:  string(t.Role),
			Parts: []part{{Text: t.Text}},
		})
	}
	contents = append(contents, content{
		Role:  string(domain.RoleUser),
		Parts: []part{{Text: instruction}},
	})
	return contents, nil
}
