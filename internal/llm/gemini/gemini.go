// Package gemini implements llm.Client on top of the Google Gen AI SDK.
//
// Credentials are passed explicitly through genai.ClientConfig: a service
// account file selects the Vertex AI backend, an API key the Gemini API
// backend. Nothing is read from or written to the process environment here.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"

	"github.com/jo-hoe/wastewise/internal/common"
	"github.com/jo-hoe/wastewise/internal/config"
	"github.com/jo-hoe/wastewise/internal/llm"
)

var _ llm.Client = (*Client)(nil)

const scopeCloudPlatform = "https://www.googleapis.com/auth/cloud-platform"

// Client sends single-turn prompt+image requests to a Gemini model.
type Client struct {
	genAI   *genai.Client
	model   string
	timeout time.Duration
}

// New builds the underlying genai client once; it is reused for every call.
func New(ctx context.Context, cfg config.GeminiSettings) (*Client, error) {
	cc, err := clientConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{
		genAI:   gc,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

func clientConfig(ctx context.Context, cfg config.GeminiSettings) (*genai.ClientConfig, error) {
	cc := &genai.ClientConfig{}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		cc.HTTPOptions.BaseURL = base
	}

	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          []string{scopeCloudPlatform},
			CredentialsFile: file,
		})
		if err != nil {
			return nil, fmt.Errorf("load credentials file %s: %w", file, err)
		}
		project := strings.TrimSpace(cfg.Project)
		if project == "" {
			project, err = creds.ProjectID(ctx)
			if err != nil {
				return nil, fmt.Errorf("project id from credentials: %w", err)
			}
		}
		if project == "" {
			return nil, errors.New("no project configured and none found in credentials file")
		}
		cc.Backend = genai.BackendVertexAI
		cc.Credentials = creds
		cc.Project = project
		cc.Location = cfg.Location
		return cc, nil
	}

	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm.gemini needs credentialsFile (or %s) or apiKey (or %s)",
			common.EnvCredentialsFile, common.EnvGoogleAPIKey)
	}
	cc.Backend = genai.BackendGeminiAPI
	cc.APIKey = cfg.APIKey
	return cc, nil
}

// InterpretImage sends one user turn made of the prompt and the inline image and returns the response text.
func (c *Client) InterpretImage(ctx context.Context, prompt string, r io.Reader, mime string) (string, error) {
	img, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(img) == 0 {
		return "", errors.New("image is empty")
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(img, mime),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.genAI.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", emptyResponseError(resp)
	}
	return text, nil
}

func emptyResponseError(resp *genai.GenerateContentResponse) error {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("empty response from model: prompt blocked (%s)", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		return fmt.Errorf("empty response from model: finish reason %s", resp.Candidates[0].FinishReason)
	}
	return errors.New("empty response from model")
}
