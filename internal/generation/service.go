package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nordhagen/imageforge/internal/openai"
	"github.com/nordhagen/imageforge/internal/store"
	"github.com/nordhagen/imageforge/pkg/models"
)

// Service orchestrates one generation job: it decides how many upstream
// calls the batch needs, issues them in order, collects per-slot outcomes
// and hands the results to the store. It never retries a failed call.
type Service struct {
	client openai.Client
	store  store.Store
	newID  func() string
	now    func() time.Time
}

// NewService creates a Service using random UUIDs for job and image
// identifiers and the wall clock for timestamps.
func NewService(client openai.Client, st store.Store) *Service {
	return &Service{
		client: client,
		store:  st,
		newID:  func() string { return uuid.New().String() },
		now:    time.Now,
	}
}

// NewServiceWithIDs is NewService with an injectable identifier source and
// clock, for tests that need deterministic ids and timestamps.
func NewServiceWithIDs(client openai.Client, st store.Store, newID func() string, now func() time.Time) *Service {
	return &Service{client: client, store: st, newID: newID, now: now}
}

// Generate runs one job to completion and persists it. The returned job is
// the persisted view; when every slot failed, nothing is persisted and the
// first slot error is returned instead so the caller can classify it.
func (s *Service) Generate(ctx context.Context, params models.GenerationParams) (*models.Job, error) {
	// Once the batch starts it runs to completion for every requested slot;
	// a client disconnect must not abandon upstream work half way through.
	ctx = context.WithoutCancel(ctx)

	jobID := s.newID()
	slog.Info("starting generation job",
		"job_id", jobID,
		"model", params.Model,
		"size", params.Size,
		"count", params.Count,
	)

	results := s.runBatch(ctx, jobID, params)

	succeeded := 0
	var firstErr error
	for _, r := range results {
		if r.Err == nil {
			succeeded++
		} else if firstErr == nil {
			firstErr = r.Err
		}
	}

	if succeeded == 0 {
		slog.Error("generation job failed", "job_id", jobID, "error", firstErr)
		return nil, firstErr
	}

	job, err := s.store.CreateJob(ctx, jobID, s.now().UTC(), params, results)
	if err != nil {
		return nil, fmt.Errorf("persisting job %s: %w", jobID, err)
	}

	slog.Info("generation job completed",
		"job_id", jobID,
		"requested", params.Count,
		"succeeded", succeeded,
	)
	return job, nil
}

// runBatch issues the upstream calls for a job and returns one ImageResult
// per requested slot, in request order.
func (s *Service) runBatch(ctx context.Context, jobID string, params models.GenerationParams) []models.ImageResult {
	if modelSpecs[params.Model].batched {
		return s.runBatchedCall(ctx, jobID, params)
	}
	return s.runSequentialCalls(ctx, jobID, params)
}

// runBatchedCall asks the provider for the whole batch in one request.
// The provider's returned image list maps 1:1, in order, onto sequence
// positions; a failure fails every slot at once since no partial results
// can come back from a single call.
func (s *Service) runBatchedCall(ctx context.Context, jobID string, params models.GenerationParams) []models.ImageResult {
	images, err := s.client.Generate(ctx, openai.GenerationRequest{
		Prompt:  params.Prompt,
		Model:   params.Model,
		Size:    params.Size,
		Quality: params.Quality,
		Style:   params.Style,
		N:       params.Count,
	})

	results := make([]models.ImageResult, 0, params.Count)
	if err != nil {
		for pos := 1; pos <= params.Count; pos++ {
			results = append(results, models.ImageResult{Position: pos, Err: err})
		}
		return results
	}

	for pos := 1; pos <= params.Count; pos++ {
		if pos > len(images) {
			results = append(results, models.ImageResult{
				Position: pos,
				Err:      fmt.Errorf("provider returned %d of %d images", len(images), params.Count),
			})
			continue
		}
		results = append(results, s.successResult(jobID, pos, params, images[pos-1]))
	}
	return results
}

// runSequentialCalls issues one single-image call per slot. Slots are
// independent: a failure at slot k is recorded and the loop continues
// through the remaining slots, preserving request order as position.
func (s *Service) runSequentialCalls(ctx context.Context, jobID string, params models.GenerationParams) []models.ImageResult {
	results := make([]models.ImageResult, 0, params.Count)
	for pos := 1; pos <= params.Count; pos++ {
		images, err := s.client.Generate(ctx, openai.GenerationRequest{
			Prompt:  params.Prompt,
			Model:   params.Model,
			Size:    params.Size,
			Quality: params.Quality,
			Style:   params.Style,
			N:       1,
		})
		if err != nil {
			slog.Warn("image slot failed", "job_id", jobID, "position", pos, "error", err)
			results = append(results, models.ImageResult{Position: pos, Err: err})
			continue
		}
		if len(images) == 0 {
			results = append(results, models.ImageResult{
				Position: pos,
				Err:      fmt.Errorf("provider returned no image for slot %d", pos),
			})
			continue
		}
		results = append(results, s.successResult(jobID, pos, params, images[0]))
	}
	return results
}

func (s *Service) successResult(jobID string, pos int, params models.GenerationParams, img openai.GeneratedImage) models.ImageResult {
	prompt := params.Prompt
	if img.RevisedPrompt != "" {
		prompt = img.RevisedPrompt
	}
	return models.ImageResult{
		Position: pos,
		Image: models.Image{
			ID:       s.newID(),
			JobID:    jobID,
			Position: pos,
			Prompt:   prompt,
			Model:    params.Model,
			Size:     params.Size,
		},
		Bytes: img.Bytes,
	}
}
