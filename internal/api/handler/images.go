package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nordhagen/imageforge/internal/api/response"
	"github.com/nordhagen/imageforge/internal/store"
)

type deleteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewGetImageHandler returns the handler for GET /images/{imageID}. Success
// is raw PNG bytes; every failure is the JSON envelope.
func NewGetImageHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		imageID := chi.URLParam(r, "imageID")

		data, err := st.GetImage(r.Context(), imageID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, response.CodeImageNotFound,
					fmt.Sprintf("Image not found: %s", imageID))
				return
			}
			response.Error(w, http.StatusInternalServerError, response.CodeServiceError,
				"failed to read image")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}
}

// NewDeleteImageHandler returns the handler for DELETE /images/{imageID}.
// The job directory and sibling images are left untouched; deleting an
// already-deleted image is a plain 404, not a failure.
func NewDeleteImageHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		imageID := chi.URLParam(r, "imageID")

		if err := st.DeleteImage(r.Context(), imageID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, response.CodeImageNotFound,
					fmt.Sprintf("Image not found: %s", imageID))
				return
			}
			response.Error(w, http.StatusInternalServerError, response.CodeServiceError,
				"failed to delete image")
			return
		}

		response.JSON(w, deleteResponse{
			Status:  "success",
			Message: fmt.Sprintf("Image %s deleted", imageID),
		})
	}
}
