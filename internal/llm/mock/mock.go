package mock

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jo-hoe/wastewise/internal/config"
	"github.com/jo-hoe/wastewise/internal/llm"
)

var _ llm.Client = (*Client)(nil)

// Client returns a canned answer without calling any model.
type Client struct {
	delay    time.Duration
	response string
}

func New(cfg config.MockSettings) *Client {
	return &Client{delay: cfg.Delay, response: cfg.Response}
}

// InterpretImage drains r, waits for the configured delay and returns the canned response.
func (c *Client) InterpretImage(ctx context.Context, prompt string, r io.Reader, mime string) (string, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if n == 0 {
		return "", fmt.Errorf("image is empty")
	}

	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.response, nil
}
