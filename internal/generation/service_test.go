package generation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nordhagen/imageforge/internal/openai"
	"github.com/nordhagen/imageforge/internal/openai/mock"
	"github.com/nordhagen/imageforge/internal/store"
	"github.com/nordhagen/imageforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, client openai.Client) (*Service, *store.FileStore) {
	t.Helper()

	fileStore, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	seq := 0
	newID := func() string {
		seq++
		return fmt.Sprintf("id-%04d", seq)
	}
	now := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	return NewServiceWithIDs(client, fileStore, newID, now), fileStore
}

func dallE2Params(count int) models.GenerationParams {
	return models.GenerationParams{
		Prompt: "a red cube",
		Model:  models.ModelDallE2,
		Size:   "256x256",
		Count:  count,
	}
}

func dallE3Params(count int) models.GenerationParams {
	return models.GenerationParams{
		Prompt:  "a red cube",
		Model:   models.ModelDallE3,
		Size:    "1024x1024",
		Quality: "standard",
		Style:   "vivid",
		Count:   count,
	}
}

func TestGenerate_DallE2_SingleBatchedCall(t *testing.T) {
	client := mock.NewClient()
	svc, _ := newTestService(t, client)

	job, err := svc.Generate(context.Background(), dallE2Params(3))
	require.NoError(t, err)

	// One upstream call carrying the whole batch.
	require.Equal(t, 1, client.CallCount())
	assert.Equal(t, 3, client.Calls[0].N)
	assert.Equal(t, models.ModelDallE2, client.Calls[0].Model)

	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.Requested)
	assert.Equal(t, 3, job.Succeeded)
	require.Len(t, job.Images, 3)

	seen := map[string]bool{}
	for i, img := range job.Images {
		assert.Equal(t, i+1, img.Position)
		assert.Equal(t, models.ModelDallE2, img.Model)
		assert.Equal(t, "256x256", img.Size)
		assert.False(t, seen[img.ID], "image ids must be distinct")
		seen[img.ID] = true
	}
}

func TestGenerate_DallE3_OneCallPerSlot(t *testing.T) {
	client := mock.NewClient()
	svc, _ := newTestService(t, client)

	job, err := svc.Generate(context.Background(), dallE3Params(3))
	require.NoError(t, err)

	require.Equal(t, 3, client.CallCount())
	for _, call := range client.Calls {
		assert.Equal(t, 1, call.N)
		assert.Equal(t, "standard", call.Quality)
		assert.Equal(t, "vivid", call.Style)
	}
	assert.Equal(t, 3, job.Succeeded)
}

func TestGenerate_DallE3_PartialFailureContinues(t *testing.T) {
	upstreamErr := fmt.Errorf("%w: boom", openai.ErrUnavailable)
	client := mock.NewFlakyClient(upstreamErr, 2)
	svc, fileStore := newTestService(t, client)

	job, err := svc.Generate(context.Background(), dallE3Params(3))
	require.NoError(t, err)

	// The failure at slot 2 must not stop slot 3 from being issued.
	require.Equal(t, 3, client.CallCount())

	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.Requested)
	assert.Equal(t, 2, job.Succeeded)

	require.Len(t, job.Images, 2)
	assert.Equal(t, 1, job.Images[0].Position)
	assert.Equal(t, 3, job.Images[1].Position)

	require.Len(t, job.Failures, 1)
	assert.Equal(t, 2, job.Failures[0].Position)
	assert.Contains(t, job.Failures[0].Error, "boom")

	// Both surviving images are retrievable and intact.
	for _, img := range job.Images {
		data, err := fileStore.GetImage(context.Background(), img.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestGenerate_AllSlotsFail(t *testing.T) {
	upstreamErr := fmt.Errorf("%w: boom", openai.ErrUnavailable)
	client := mock.NewFailingClient(upstreamErr)
	svc, fileStore := newTestService(t, client)

	_, err := svc.Generate(context.Background(), dallE3Params(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, openai.ErrUnavailable)

	// Nothing persisted for a job with zero successes.
	entries, readErr := os.ReadDir(fileStore.Root())
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestGenerate_BatchedCallFailureFailsAllSlots(t *testing.T) {
	var rateErr error = &openai.RateLimitError{Message: "slow down", RetryAfter: 30 * time.Second}
	client := mock.NewFailingClient(rateErr)
	svc, _ := newTestService(t, client)

	_, err := svc.Generate(context.Background(), dallE2Params(5))
	require.Error(t, err)

	var rle *openai.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 30*time.Second, rle.RetryAfter)
	assert.Equal(t, 1, client.CallCount())
}

func TestGenerate_RecordsRevisedPrompt(t *testing.T) {
	client := &mock.Client{
		GenerateFunc: func(_ context.Context, req openai.GenerationRequest) ([]openai.GeneratedImage, error) {
			return []openai.GeneratedImage{{
				Bytes:         []byte("png"),
				RevisedPrompt: "a glossy red cube on white",
			}}, nil
		},
	}
	svc, _ := newTestService(t, client)

	job, err := svc.Generate(context.Background(), dallE3Params(1))
	require.NoError(t, err)
	require.Len(t, job.Images, 1)
	assert.Equal(t, "a glossy red cube on white", job.Images[0].Prompt)
}

func TestGenerate_ShortBatchMarksMissingSlots(t *testing.T) {
	// Provider claims success but returns fewer images than requested.
	client := &mock.Client{
		GenerateFunc: func(_ context.Context, _ openai.GenerationRequest) ([]openai.GeneratedImage, error) {
			return []openai.GeneratedImage{{Bytes: []byte("png-1")}, {Bytes: []byte("png-2")}}, nil
		},
	}
	svc, _ := newTestService(t, client)

	job, err := svc.Generate(context.Background(), dallE2Params(3))
	require.NoError(t, err)

	assert.Equal(t, 2, job.Succeeded)
	require.Len(t, job.Failures, 1)
	assert.Equal(t, 3, job.Failures[0].Position)
}

func TestGenerate_RunsToCompletionAfterCancel(t *testing.T) {
	calls := 0
	client := &mock.Client{
		GenerateFunc: func(ctx context.Context, _ openai.GenerationRequest) ([]openai.GeneratedImage, error) {
			calls++
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return []openai.GeneratedImage{{Bytes: []byte("png")}}, nil
		},
	}
	svc, _ := newTestService(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled caller context must not abort the batch mid-flight.
	job, err := svc.Generate(ctx, dallE3Params(1))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
}

func TestGenerate_PersistedFilesMatchLayout(t *testing.T) {
	client := mock.NewClient()
	svc, fileStore := newTestService(t, client)

	job, err := svc.Generate(context.Background(), dallE2Params(2))
	require.NoError(t, err)

	dir := filepath.Join(fileStore.Root(), job.ID)
	for _, img := range job.Images {
		assert.Equal(t, fmt.Sprintf("%03d-%s.png", img.Position, img.ID), img.Filename)
		_, statErr := os.Stat(filepath.Join(dir, img.Filename))
		require.NoError(t, statErr)
	}
	_, statErr := os.Stat(filepath.Join(dir, "metadata.json"))
	require.NoError(t, statErr)
}

func TestGenerate_PersistFailureSurfaces(t *testing.T) {
	client := mock.NewClient()
	fileStore, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	// Job ids are used as directory names; an id the store rejects must
	// surface as an error rather than a half-written job.
	svc := NewServiceWithIDs(client, fileStore, func() string { return "../evil" }, time.Now)

	_, err = svc.Generate(context.Background(), dallE2Params(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persisting job")
	entries, readErr := os.ReadDir(fileStore.Root())
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}
