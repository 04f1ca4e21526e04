// Package handler contains the HTTP handlers. Each handler depends on a
// narrow interface so tests can swap in counting or failing doubles.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nordhagen/imageforge/internal/api/response"
	"github.com/nordhagen/imageforge/internal/generation"
	"github.com/nordhagen/imageforge/internal/openai"
	"github.com/nordhagen/imageforge/pkg/models"
)

// Generator runs one validated generation job to completion.
type Generator interface {
	Generate(ctx context.Context, params models.GenerationParams) (*models.Job, error)
}

type generateResponse struct {
	JobID     string               `json:"job_id"`
	Status    string               `json:"status"`
	Requested int                  `json:"requested"`
	Succeeded int                  `json:"succeeded"`
	Images    []imageEntry         `json:"images"`
	Failures  []models.SlotFailure `json:"failures,omitempty"`
}

type imageEntry struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
	Size   string `json:"size"`
}

// NewGenerateHandler returns the handler for POST /generate. With no
// provider credential configured it fails fast before reading the body.
func NewGenerateHandler(svc Generator, apiKeyConfigured bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !apiKeyConfigured {
			response.Error(w, http.StatusInternalServerError, response.CodeServiceError,
				"image generation service is not configured")
			return
		}

		var req models.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeValidationError,
				"invalid JSON in request body")
			return
		}

		params, err := generation.ValidateRequest(req)
		if err != nil {
			response.Error(w, http.StatusBadRequest, response.CodeValidationError, err.Error())
			return
		}

		job, err := svc.Generate(r.Context(), params)
		if err != nil {
			writeGenerateError(w, err)
			return
		}

		resp := generateResponse{
			JobID:     job.ID,
			Status:    job.Status,
			Requested: job.Requested,
			Succeeded: job.Succeeded,
			Images:    make([]imageEntry, 0, len(job.Images)),
			Failures:  job.Failures,
		}
		for _, img := range job.Images {
			resp.Images = append(resp.Images, imageEntry{
				ID:     img.ID,
				URL:    "/images/" + img.ID,
				Prompt: img.Prompt,
				Model:  img.Model,
				Size:   img.Size,
			})
		}
		response.JSON(w, resp)
	}
}

// writeGenerateError maps an upstream or storage failure onto the envelope.
// A provider 400 means the provider rejected parameters the validator let
// through, so it stays a validation-class failure for the caller.
func writeGenerateError(w http.ResponseWriter, err error) {
	var rateLimit *openai.RateLimitError

	switch {
	case errors.As(err, &rateLimit):
		if rateLimit.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rateLimit.RetryAfter.Seconds())))
		}
		response.Error(w, http.StatusTooManyRequests, response.CodeRateLimitExceeded, err.Error())
	case errors.Is(err, openai.ErrAuth):
		response.Error(w, http.StatusInternalServerError, response.CodeServiceError,
			"image generation service configuration error")
	case errors.Is(err, openai.ErrInvalidRequest):
		response.Error(w, http.StatusBadRequest, response.CodeValidationError, err.Error())
	default:
		response.Error(w, http.StatusInternalServerError, response.CodeServiceError,
			"image generation failed")
	}
}
