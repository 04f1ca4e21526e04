// Package openai wraps the OpenAI images API behind a narrow client
// interface. It performs no retries and touches no storage; translating
// provider failures into the error taxonomy in errors.go is its whole job
// beyond the network calls themselves.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client is the interface for the upstream image-generation provider.
type Client interface {
	Generate(ctx context.Context, req GenerationRequest) ([]GeneratedImage, error)
}

// GenerationRequest describes one provider call. N is honored directly by
// dall-e-2; dall-e-3 only accepts N=1, which the orchestrator enforces by
// issuing one call per image.
type GenerationRequest struct {
	Prompt  string
	Model   string
	Size    string
	Quality string
	Style   string
	N       int
}

// GeneratedImage is one image returned by the provider: the downloaded
// binary payload plus the revised prompt, when the provider rewrote it.
type GeneratedImage struct {
	Bytes         []byte
	RevisedPrompt string
}

// HTTPClient implements Client against the OpenAI HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a provider client. The API key may be empty, in
// which case every Generate call fails with ErrAuth before any network I/O.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type generationPayload struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type generationResponse struct {
	Created int64        `json:"created"`
	Data    []imageDatum `json:"data"`
}

type imageDatum struct {
	URL           string `json:"url"`
	B64JSON       string `json:"b64_json"`
	RevisedPrompt string `json:"revised_prompt"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *HTTPClient) Generate(ctx context.Context, req GenerationRequest) ([]GeneratedImage, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: no credential configured", ErrAuth)
	}

	n := req.N
	if n <= 0 {
		n = 1
	}

	payload := generationPayload{
		Model:          req.Model,
		Prompt:         req.Prompt,
		N:              n,
		Size:           req.Size,
		Quality:        req.Quality,
		Style:          req.Style,
		ResponseFormat: "url",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	u := fmt.Sprintf("%s/images/generations", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, translateStatus(resp)
	}

	var genResp generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if len(genResp.Data) == 0 {
		return nil, fmt.Errorf("%w: provider returned no images", ErrUnavailable)
	}

	images := make([]GeneratedImage, 0, len(genResp.Data))
	for _, d := range genResp.Data {
		img, err := c.fetchImage(ctx, d)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// fetchImage materializes one provider result: inline base64 when present,
// otherwise a download of the signed URL.
func (c *HTTPClient) fetchImage(ctx context.Context, d imageDatum) (GeneratedImage, error) {
	if d.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return GeneratedImage{}, fmt.Errorf("%w: decoding inline image: %v", ErrUnavailable, err)
		}
		return GeneratedImage{Bytes: data, RevisedPrompt: d.RevisedPrompt}, nil
	}

	if d.URL == "" {
		return GeneratedImage{}, fmt.Errorf("%w: provider returned image without url or payload", ErrUnavailable)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("building download request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return GeneratedImage{}, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GeneratedImage{}, fmt.Errorf("%w: image download failed (status %d)", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("%w: reading image payload: %v", ErrUnavailable, err)
	}
	return GeneratedImage{Bytes: data, RevisedPrompt: d.RevisedPrompt}, nil
}

// translateStatus maps a non-200 provider status into the error taxonomy.
func translateStatus(resp *http.Response) error {
	msg := readAPIError(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuth, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Message: msg, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, msg)
	}
}

func readAPIError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 1<<16))
	if err != nil || len(body) == 0 {
		return "no error detail"
	}
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return string(body)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// classifyError maps transport-level errors (dial failures, timeouts,
// cancelled contexts) to the transient sentinel.
func classifyError(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
