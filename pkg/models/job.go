package models

import "time"

const (
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is one logical generation request and its resulting set of images,
// persisted together under a single directory keyed by the job ID. A job is
// written once at completion time and never updated; regeneration always
// produces a new job.
type Job struct {
	ID        string           `json:"job_id"`
	Status    string           `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	Params    GenerationParams `json:"params"`
	Requested int              `json:"requested"`
	Succeeded int              `json:"succeeded"`
	Images    []Image          `json:"images"`
	Failures  []SlotFailure    `json:"failures,omitempty"`
}

// Image is one generated binary artifact plus its descriptive metadata.
// Position is the 1-based ordinal within the job, fixed at creation and used
// for on-disk filename ordering. Prompt carries the provider-revised prompt
// when the provider supplied one.
type Image struct {
	ID       string `json:"id"`
	JobID    string `json:"job_id"`
	Position int    `json:"position"`
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
	Size     string `json:"size"`
	Filename string `json:"filename"`
}

// SlotFailure records a requested image slot that the upstream provider
// failed to deliver. Failed slots are reported explicitly so under-delivery
// is observable rather than inferable from counting.
type SlotFailure struct {
	Position int    `json:"position"`
	Error    string `json:"error"`
}

// ImageResult is the per-slot outcome of a batch: either a successful Image
// descriptor with its bytes, or an error. Exactly one of Image/Err is set.
type ImageResult struct {
	Position int
	Image    Image
	Bytes    []byte
	Err      error
}
