// Package generation holds the core request flow: validating raw generation
// requests against per-model constraint tables and driving batches of
// upstream calls through to persisted jobs.
package generation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nordhagen/imageforge/pkg/models"
)

// ErrValidation marks caller-fault parameter errors. Handlers map it to a
// 400 with code VALIDATION_ERROR.
var ErrValidation = errors.New("invalid request")

const (
	defaultModel = models.ModelDallE3
	defaultSize  = "1024x1024"
)

// modelSpec is the constraint table for one provider model. All per-model
// rules live here; the validator itself is model-agnostic.
type modelSpec struct {
	sizes     []string
	qualities []string // nil means the model does not accept quality
	styles    []string // nil means the model does not accept style
	maxCount  int
	promptMax int
	// batched models deliver count images from a single upstream call;
	// non-batched models need one call per image.
	batched bool
}

var modelSpecs = map[string]modelSpec{
	models.ModelDallE2: {
		sizes:     []string{"256x256", "512x512", "1024x1024"},
		maxCount:  10,
		promptMax: 1000,
		batched:   true,
	},
	models.ModelDallE3: {
		sizes:     []string{"1024x1024", "1024x1792", "1792x1024"},
		qualities: []string{"standard", "hd"},
		styles:    []string{"vivid", "natural"},
		maxCount:  1,
		promptMax: 4000,
	},
}

const (
	defaultQuality = "standard"
	defaultStyle   = "vivid"
)

// ValidateRequest normalizes a raw generation request against the selected
// model's constraint table. It fails fast on the first violation, checking
// prompt presence, model, prompt length, size, quality, style, then count,
// so the reported error is deterministic. No side effects may happen before
// this passes.
func ValidateRequest(req models.GenerateRequest) (models.GenerationParams, error) {
	var params models.GenerationParams

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return params, fmt.Errorf("%w: prompt is required and cannot be empty", ErrValidation)
	}

	model := req.Model
	if model == "" {
		model = defaultModel
	}
	spec, ok := modelSpecs[model]
	if !ok {
		return params, fmt.Errorf("%w: invalid model %q, supported models: %s",
			ErrValidation, req.Model, strings.Join(supportedModels(), ", "))
	}

	if len(prompt) > spec.promptMax {
		return params, fmt.Errorf("%w: prompt exceeds the %d character limit for %s",
			ErrValidation, spec.promptMax, model)
	}

	size := req.Size
	if size == "" {
		size = defaultSize
	}
	if !contains(spec.sizes, size) {
		return params, fmt.Errorf("%w: invalid size %q for %s, supported sizes: %s",
			ErrValidation, size, model, strings.Join(spec.sizes, ", "))
	}

	quality := req.Quality
	if spec.qualities == nil {
		if quality != "" {
			return params, fmt.Errorf("%w: quality is not supported for %s", ErrValidation, model)
		}
	} else {
		if quality == "" {
			quality = defaultQuality
		}
		if !contains(spec.qualities, quality) {
			return params, fmt.Errorf("%w: invalid quality %q, supported: %s",
				ErrValidation, req.Quality, strings.Join(spec.qualities, ", "))
		}
	}

	style := req.Style
	if spec.styles == nil {
		if style != "" {
			return params, fmt.Errorf("%w: style is not supported for %s", ErrValidation, model)
		}
	} else {
		if style == "" {
			style = defaultStyle
		}
		if !contains(spec.styles, style) {
			return params, fmt.Errorf("%w: invalid style %q, supported: %s",
				ErrValidation, req.Style, strings.Join(spec.styles, ", "))
		}
	}

	count := req.Count
	if count == 0 {
		count = 1
	}
	if count < 1 || count > spec.maxCount {
		if spec.maxCount == 1 {
			return params, fmt.Errorf("%w: count must be 1 for %s", ErrValidation, model)
		}
		return params, fmt.Errorf("%w: count must be between 1 and %d for %s",
			ErrValidation, spec.maxCount, model)
	}

	params = models.GenerationParams{
		Prompt:  prompt,
		Model:   model,
		Size:    size,
		Quality: quality,
		Style:   style,
		Count:   count,
	}
	return params, nil
}

func supportedModels() []string {
	// Fixed order keeps error messages stable.
	return []string{models.ModelDallE2, models.ModelDallE3}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
