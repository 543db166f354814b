// Package gemini provides an HTTP client for the generative-language API
// (text completion only; the tool treats the service as opaque).
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
)

const _defaultTimeout = 60 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ErrUnreachable indicates the API could not be reached (connection refused or timeout).
var ErrUnreachable = errors.New("generative language API unreachable")

// ErrAuth indicates the API rejected the credential (HTTP 401/403).
var ErrAuth = errors.New("generative language API rejected the credential")

// Client calls the generative-language API. Zero value is not valid; use NewClient.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client. baseURL empty means DefaultBaseURL. If httpClient
// is nil, a default client with a 60s timeout is used. The key is sent in the
// x-goog-api-key header, never in the URL.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: _defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type generateRequest struct {
	Contents         []content       `json:"contents"`
	GenerationConfig *generateConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Options tunes a single completion call. Nil means API defaults.
type Options struct {
	Temperature     *float64
	MaxOutputTokens int
}

// Generate sends prompt to model and returns the first candidate's text,
// whitespace-trimmed. Connection failures return ErrUnreachable (via %w),
// credential failures ErrAuth; any other non-2xx or service-reported error is
// returned with the server's message.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts *Options) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}
	cfg := &generateConfig{ResponseMimeType: "text/plain"}
	if opts != nil {
		cfg.Temperature = opts.Temperature
		cfg.MaxOutputTokens = opts.MaxOutputTokens
	}
	reqBody.GenerationConfig = cfg

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini generate: marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", errors.Join(ErrUnreachable, err))
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("gemini generate: read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("gemini generate: %w: HTTP %d", ErrAuth, resp.StatusCode)
	}
	var body generateResponse
	if err := json.Unmarshal(respBody, &body); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", fmt.Errorf("gemini generate: HTTP %d: %s", resp.StatusCode, snippet(respBody))
		}
		return "", fmt.Errorf("gemini generate: parse response: %w", err)
	}
	if body.Error.Message != "" {
		return "", fmt.Errorf("gemini generate: service error: %s", body.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("gemini generate: HTTP %d: %s", resp.StatusCode, snippet(respBody))
	}
	if len(body.Candidates) == 0 {
		return "", errors.New("gemini generate: no candidates in response")
	}
	var text strings.Builder
	for _, p := range body.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", fmt.Errorf("gemini generate: empty candidate (finish reason %s)", body.Candidates[0].FinishReason)
	}
	return out, nil
}

// snippet bounds a raw response body for inclusion in an error message.
func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
