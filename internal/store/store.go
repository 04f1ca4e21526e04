// Package store owns the durable on-disk layout for generation jobs: one
// directory per job containing numbered image files and a single metadata
// document.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nordhagen/imageforge/pkg/models"
)

// ErrNotFound is returned when an image identifier does not resolve to a
// stored file. It also covers identifiers rejected by sanitization — a
// malformed identifier can never name a stored image.
var ErrNotFound = errors.New("image not found")

// Store is the persistence interface for jobs and their images.
type Store interface {
	// CreateJob persists a job directory with one file per successful image
	// result and a metadata document covering every slot, then returns the
	// persisted job view. Job identifiers are globally unique so concurrent
	// creators never contend for the same directory.
	CreateJob(ctx context.Context, jobID string, createdAt time.Time, params models.GenerationParams, results []models.ImageResult) (*models.Job, error)

	// GetImage returns the stored bytes for an image identifier, or
	// ErrNotFound.
	GetImage(ctx context.Context, imageID string) ([]byte, error)

	// DeleteImage removes the image file, leaving the job directory, the
	// metadata document and sibling images untouched. Deleting an unknown
	// or already-deleted identifier returns ErrNotFound.
	DeleteImage(ctx context.Context, imageID string) error
}
