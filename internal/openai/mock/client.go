// Package mock provides an in-memory openai.Client for tests. Every call is
// recorded so tests can assert exactly how many upstream requests a flow
// issued and with what parameters.
package mock

import (
	"context"
	"fmt"

	"github.com/nordhagen/imageforge/internal/openai"
)

// Client satisfies openai.Client for testing.
type Client struct {
	GenerateFunc func(ctx context.Context, req openai.GenerationRequest) ([]openai.GeneratedImage, error)

	// Calls records every GenerationRequest in order.
	Calls []openai.GenerationRequest
}

func (c *Client) Generate(ctx context.Context, req openai.GenerationRequest) ([]openai.GeneratedImage, error) {
	c.Calls = append(c.Calls, req)
	if c.GenerateFunc != nil {
		return c.GenerateFunc(ctx, req)
	}
	return nil, nil
}

// CallCount returns the number of Generate invocations so far.
func (c *Client) CallCount() int { return len(c.Calls) }

// NewClient returns a Client that fulfils every request with N distinct
// deterministic payloads.
func NewClient() *Client {
	return &Client{
		GenerateFunc: func(_ context.Context, req openai.GenerationRequest) ([]openai.GeneratedImage, error) {
			n := req.N
			if n <= 0 {
				n = 1
			}
			images := make([]openai.GeneratedImage, 0, n)
			for i := 0; i < n; i++ {
				images = append(images, openai.GeneratedImage{
					Bytes:         []byte(fmt.Sprintf("png-bytes-%d", i+1)),
					RevisedPrompt: req.Prompt,
				})
			}
			return images, nil
		},
	}
}

// NewFailingClient returns a Client that always returns the given error.
func NewFailingClient(err error) *Client {
	return &Client{
		GenerateFunc: func(_ context.Context, _ openai.GenerationRequest) ([]openai.GeneratedImage, error) {
			return nil, err
		},
	}
}

// NewFlakyClient returns a Client that fails the call numbers listed in
// failOn (1-based) and succeeds otherwise.
func NewFlakyClient(err error, failOn ...int) *Client {
	failing := make(map[int]bool, len(failOn))
	for _, n := range failOn {
		failing[n] = true
	}
	call := 0
	return &Client{
		GenerateFunc: func(_ context.Context, req openai.GenerationRequest) ([]openai.GeneratedImage, error) {
			call++
			if failing[call] {
				return nil, err
			}
			return []openai.GeneratedImage{{
				Bytes:         []byte(fmt.Sprintf("png-bytes-call-%d", call)),
				RevisedPrompt: req.Prompt,
			}}, nil
		},
	}
}

// Compile-time check that Client implements openai.Client.
var _ openai.Client = (*Client)(nil)
