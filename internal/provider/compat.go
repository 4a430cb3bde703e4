package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type compatDefault struct {
	BaseURL string
	Model   string
}

// OpenAI-compatible chat endpoints reachable through the plain HTTP client.
var compatDefaults = map[string]compatDefault{
	"grok":       {BaseURL: "https://api.x.ai/v1", Model: "grok-beta"},
	"qwen":       {BaseURL: "https://dashscope-intl.aliyuncs.com/compatible-mode/v1", Model: "qwen-turbo"},
	"openrouter": {BaseURL: "https://openrouter.ai/api/v1", Model: "openai/gpt-4o-mini"},
}

// CompatConfig configures a chat-completions client.
//
// Timeout is in seconds. SiteURL and AppName are sent as the HTTP-Referer
// and X-Title headers when set (OpenRouter attribution).
type CompatConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

func (c *CompatConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be greater than 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

func (c *CompatConfig) headers() map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}
	if c.SiteURL != "" {
		headers["HTTP-Referer"] = c.SiteURL
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}
	return headers
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

func (e *apiError) Error() string {
	if e.Type != "" {
		return e.Type + ": " + e.Message
	}
	return e.Message
}

// Compat talks to any OpenAI-compatible /chat/completions endpoint.
type Compat struct {
	name       string
	config     *CompatConfig
	httpClient *http.Client
	baseURL    string
}

// NewCompat builds a compat client from Settings, filling base URL and model
// from the per-provider defaults.
func NewCompat(s Settings) (Provider, error) {
	if err := requireKey(s); err != nil {
		return nil, err
	}
	def := compatDefaults[s.Name]
	cfg := &CompatConfig{
		APIKey:      s.APIKey,
		APIURL:      firstNonEmpty(s.BaseURL, def.BaseURL),
		Model:       firstNonEmpty(s.Model, def.Model),
		MaxTokens:   4096,
		Temperature: 0.3,
		Timeout:     timeoutSeconds(s.Timeout),
		AppName:     "contextual-doc-translator",
	}
	return NewCompatClient(s.Name, cfg)
}

func NewCompatClient(name string, config *CompatConfig) (*Compat, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Compat{
		name:    name,
		config:  config,
		baseURL: strings.TrimRight(config.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

func (c *Compat) Name() string { return c.name }

func (c *Compat) Translate(ctx context.Context, text, prompt string, glossary map[string]string) (string, error) {
	messages := []chatMessage{}
	if sys := SystemInstruction(prompt, glossary); sys != "" {
		messages = append(messages, chatMessage{Role: "system", Content: sys})
	}
	messages = append(messages, chatMessage{Role: "user", Content: text})

	resp, err := c.makeRequest(ctx, http.MethodPost, "/chat/completions", chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", newError(c.name, nil, "no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Compat) makeRequest(ctx context.Context, method, path string, payload any) (*chatResponse, error) {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, newError(c.name, err, "marshal request")
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, newError(c.name, err, "create request")
	}
	for key, value := range c.config.headers() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, newError(c.name, err, "request timed out")
		}
		return nil, newError(c.name, err, "connection error")
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(c.name, err, "read response body")
	}

	var chat chatResponse
	if err := json.Unmarshal(responseBody, &chat); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, newError(c.name, nil, "API error (status %d): %s", resp.StatusCode, truncate(string(responseBody), 200))
		}
		return nil, newError(c.name, err, "unexpected response format")
	}
	if chat.Error != nil && chat.Error.Message != "" {
		return nil, newError(c.name, chat.Error, "API error (status %d)", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(c.name, nil, "API error (status %d): %s", resp.StatusCode, truncate(string(responseBody), 200))
	}
	return &chat, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func timeoutSeconds(d time.Duration) int {
	if d <= 0 {
		return 120
	}
	if s := int(d / time.Second); s > 0 {
		return s
	}
	return 1
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
