package aiproxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jo-hoe/wastewise/internal/common"
	"github.com/jo-hoe/wastewise/internal/config"
	"github.com/jo-hoe/wastewise/internal/llm"
)

var _ llm.Client = (*Client)(nil)

const (
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	authSchemeBearer    = "Bearer"

	endpointChatCompletions = "v1/chat/completions"

	defaultTimeout    = 60 * time.Second
	errorSnippetLimit = 400

	defaultSystemPrompt = "You inspect photos of discarded electronics and answer questions about them in plain text."
)

// Role represents the sender role for a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// PartType represents the type for a multimodal message part.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
)

// Client implements llm.Client against an OpenAI-compatible AI Proxy.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	model       string
	system      string
	temperature *float32
	maxTokens   *int
}

// New creates a new AI Proxy LLM client.
func New(cfg config.AIProxySettings) (*Client, error) {
	endpoint, err := url.JoinPath(strings.TrimRight(cfg.BaseURL, "/"), endpointChatCompletions)
	if err != nil {
		return nil, fmt.Errorf("aiproxy base url: %w", err)
	}
	system := strings.TrimSpace(cfg.SystemPrompt)
	if system == "" {
		system = defaultSystemPrompt
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		system:     system,
	}
	if cfg.Temperature != 0 {
		t := cfg.Temperature
		c.temperature = &t
	}
	if cfg.MaxTokens != 0 {
		n := cfg.MaxTokens
		c.maxTokens = &n
	}
	return c, nil
}

// InterpretImage posts prompt and image (as a data URL) in one user message and returns the first choice.
func (c *Client) InterpretImage(ctx context.Context, prompt string, r io.Reader, mime string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	img, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(img) == 0 {
		return "", fmt.Errorf("image is empty")
	}

	body, err := json.Marshal(c.newRequest(prompt, dataURL(mime, img)))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set(headerContentType, common.ContentTypeJSON)
	if c.apiKey != "" {
		req.Header.Set(headerAuthorization, authSchemeBearer+" "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("http do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("aiproxy status %d: %s", resp.StatusCode, truncate(string(raw), errorSnippetLimit))
	}

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty completion")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) newRequest(prompt, imageURL string) completionRequest {
	return completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: RoleSystem, Content: c.system},
			{Role: RoleUser, Content: []contentPart{
				{Type: PartText, Text: prompt},
				{Type: PartImageURL, ImageURL: &imageRef{URL: imageURL}},
			}},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
}

func dataURL(mime string, data []byte) string {
	mt := strings.TrimSpace(mime)
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature *float32  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type message struct {
	Role    Role `json:"role"`
	Content any  `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     PartType  `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}
