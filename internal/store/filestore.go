package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nordhagen/imageforge/pkg/models"
)

const (
	metadataFile = "metadata.json"
	imageExt     = ".png"
)

// FileStore implements Store on a local filesystem root shared by multiple
// independent worker processes. Safety against concurrent writers comes
// entirely from globally unique job and image identifiers — no two jobs ever
// write to the same directory, so no locking is needed or used.
type FileStore struct {
	root string
}

// NewFileStore initializes a FileStore rooted at root, creating it if needed.
func NewFileStore(root string) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("store: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the configured storage root.
func (s *FileStore) Root() string { return s.root }

// metadataDoc is the serialized snapshot written once at job completion.
// Its field layout is a compatibility surface for tooling that reads the
// directory directly.
type metadataDoc struct {
	JobID     string               `json:"job_id"`
	Timestamp string               `json:"timestamp"`
	Prompt    string               `json:"prompt"`
	Model     string               `json:"model"`
	Size      string               `json:"size"`
	Quality   string               `json:"quality,omitempty"`
	Style     string               `json:"style,omitempty"`
	Count     int                  `json:"count"`
	Status    string               `json:"status"`
	Succeeded int                  `json:"succeeded"`
	Images    []metadataImage      `json:"images"`
	Failures  []models.SlotFailure `json:"failures,omitempty"`
}

type metadataImage struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Filename string `json:"filename"`
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
	Size     string `json:"size"`
}

func (s *FileStore) CreateJob(ctx context.Context, jobID string, createdAt time.Time, params models.GenerationParams, results []models.ImageResult) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := sanitizeID(jobID); err != nil {
		return nil, fmt.Errorf("store: job id: %w", err)
	}

	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create job directory: %w", err)
	}

	job := &models.Job{
		ID:        jobID,
		CreatedAt: createdAt,
		Params:    params,
		Requested: params.Count,
	}

	doc := metadataDoc{
		JobID:     jobID,
		Timestamp: createdAt.UTC().Format(time.RFC3339),
		Prompt:    params.Prompt,
		Model:     params.Model,
		Size:      params.Size,
		Quality:   params.Quality,
		Style:     params.Style,
		Count:     params.Count,
		Images:    []metadataImage{},
	}

	for _, r := range results {
		if r.Err != nil {
			failure := models.SlotFailure{Position: r.Position, Error: r.Err.Error()}
			job.Failures = append(job.Failures, failure)
			doc.Failures = append(doc.Failures, failure)
			continue
		}

		img := r.Image
		img.Filename = fmt.Sprintf("%03d-%s%s", r.Position, img.ID, imageExt)
		if err := writeFileAtomic(dir, img.Filename, r.Bytes); err != nil {
			return nil, fmt.Errorf("store: write image %s: %w", img.ID, err)
		}

		job.Images = append(job.Images, img)
		doc.Images = append(doc.Images, metadataImage{
			ID:       img.ID,
			Position: img.Position,
			Filename: img.Filename,
			Prompt:   img.Prompt,
			Model:    img.Model,
			Size:     img.Size,
		})
	}

	job.Succeeded = len(job.Images)
	job.Status = models.JobStatusFailed
	if job.Succeeded > 0 {
		job.Status = models.JobStatusCompleted
	}
	doc.Status = job.Status
	doc.Succeeded = job.Succeeded

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("store: encode metadata: %w", err)
	}
	if err := writeFileAtomic(dir, metadataFile, data); err != nil {
		return nil, fmt.Errorf("store: write metadata: %w", err)
	}

	return job, nil
}

func (s *FileStore) GetImage(ctx context.Context, imageID string) ([]byte, error) {
	path, err := s.findImage(ctx, imageID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// The file can vanish between lookup and read when a delete races
		// this read; that is a NotFound, not an I/O failure.
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: read image: %w", err)
	}
	return data, nil
}

func (s *FileStore) DeleteImage(ctx context.Context, imageID string) error {
	path, err := s.findImage(ctx, imageID)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("store: delete image: %w", err)
	}
	return nil
}

// findImage resolves an image identifier to a file path. It consults only
// the sanitized form of the identifier and only paths under the store root:
// job directories are scanned for a filename carrying the identifier in its
// fixed <seq>-<id>.png slot. This is the security-critical path — anything
// that fails sanitization is simply not found.
func (s *FileStore) findImage(ctx context.Context, imageID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := sanitizeID(imageID)
	if err != nil {
		return "", ErrNotFound
	}
	suffix := "-" + id + imageExt

	jobs, err := os.ReadDir(s.root)
	if err != nil {
		return "", fmt.Errorf("store: read root: %w", err)
	}

	for _, jobDir := range jobs {
		if !jobDir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.root, jobDir.Name()))
		if err != nil {
			// Job directory removed while scanning; nothing to find there.
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), suffix) {
				continue
			}
			return filepath.Join(s.root, jobDir.Name(), f.Name()), nil
		}
	}
	return "", ErrNotFound
}

// sanitizeID admits only identifiers built from an allow-listed character
// set. Path separators, parent-directory sequences and anything else that
// could steer a filesystem lookup are rejected outright rather than
// stripped, since stripping could alias one identifier to another.
func sanitizeID(id string) (string, error) {
	if id == "" {
		return "", errors.New("empty identifier")
	}
	if strings.Contains(id, "..") {
		return "", errors.New("identifier contains parent-directory sequence")
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return "", fmt.Errorf("identifier contains disallowed character %q", c)
		}
	}
	return id, nil
}

// writeFileAtomic writes data to dir/name via a temp file and rename, so a
// concurrent reader observes either the whole file or no file at all.
func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Compile-time check that FileStore implements Store.
var _ Store = (*FileStore)(nil)
