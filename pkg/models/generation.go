// Package models contains shared data models used across the imageforge codebase.
package models

// Supported provider models.
const (
	ModelDallE2 = "dall-e-2"
	ModelDallE3 = "dall-e-3"
)

// GenerateRequest is the raw JSON body of POST /generate, before defaulting
// and validation. Optional fields stay empty/zero until the validator
// resolves them.
type GenerateRequest struct {
	Prompt  string `json:"prompt"`
	Model   string `json:"model"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	Style   string `json:"style"`
	Count   int    `json:"count"`
}

// GenerationParams is a generation request after defaulting and model-specific
// validation, ready to drive upstream calls. Quality and Style are empty for
// models that do not support them.
type GenerationParams struct {
	Prompt  string `json:"prompt"`
	Model   string `json:"model"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
	Count   int    `json:"count"`
}
