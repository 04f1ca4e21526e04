package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nordhagen/imageforge/internal/api"
	"github.com/nordhagen/imageforge/internal/api/handler"
	"github.com/nordhagen/imageforge/internal/generation"
	"github.com/nordhagen/imageforge/internal/openai/mock"
	"github.com/nordhagen/imageforge/internal/store"
)

// newTestRouter wires a real orchestrator and file store behind the router,
// with only the upstream provider mocked out.
func newTestRouter(t *testing.T) (http.Handler, *mock.Client) {
	t.Helper()

	fileStore, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := mock.NewClient()
	svc := generation.NewService(client, fileStore)

	router := api.NewRouter(api.Dependencies{
		HealthHandler:      handler.NewHealthHandler(true),
		GenerateHandler:    handler.NewGenerateHandler(svc, true),
		GetImageHandler:    handler.NewGetImageHandler(fileStore),
		DeleteImageHandler: handler.NewDeleteImageHandler(fileStore),
	})
	return router, client
}

func TestGenerateThenFetchThenDelete(t *testing.T) {
	router, client := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{
		"prompt": "a red cube",
		"model":  "dall-e-2",
		"size":   "256x256",
		"count":  3,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("generate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if client.CallCount() != 1 {
		t.Fatalf("expected one batched upstream call, got %d", client.CallCount())
	}

	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
		Images []struct {
			ID    string `json:"id"`
			URL   string `json:"url"`
			Model string `json:"model"`
			Size  string `json:"size"`
		} `json:"images"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "completed" || len(resp.Images) != 3 {
		t.Fatalf("unexpected generate response: %+v", resp)
	}

	ids := map[string]bool{}
	for _, img := range resp.Images {
		if ids[img.ID] {
			t.Fatalf("duplicate image id %q", img.ID)
		}
		ids[img.ID] = true
		if img.Model != "dall-e-2" || img.Size != "256x256" {
			t.Errorf("unexpected image metadata: %+v", img)
		}

		// Every advertised URL serves the stored bytes.
		fetch := httptest.NewRecorder()
		router.ServeHTTP(fetch, httptest.NewRequest(http.MethodGet, img.URL, nil))
		if fetch.Code != http.StatusOK {
			t.Fatalf("fetch %s: expected 200, got %d", img.URL, fetch.Code)
		}
		if fetch.Body.Len() == 0 {
			t.Errorf("fetch %s: empty payload", img.URL)
		}
	}

	// Delete one image; its siblings stay retrievable.
	target := resp.Images[1]
	del := httptest.NewRecorder()
	router.ServeHTTP(del, httptest.NewRequest(http.MethodDelete, target.URL, nil))
	if del.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", del.Code)
	}

	gone := httptest.NewRecorder()
	router.ServeHTTP(gone, httptest.NewRequest(http.MethodGet, target.URL, nil))
	if gone.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", gone.Code)
	}

	sibling := httptest.NewRecorder()
	router.ServeHTTP(sibling, httptest.NewRequest(http.MethodGet, resp.Images[0].URL, nil))
	if sibling.Code != http.StatusOK {
		t.Errorf("sibling must survive delete, got %d", sibling.Code)
	}
}

func TestHealthRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUnconfiguredServiceStillServes(t *testing.T) {
	fileStore, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	svc := generation.NewService(mock.NewClient(), fileStore)

	router := api.NewRouter(api.Dependencies{
		HealthHandler:      handler.NewHealthHandler(false),
		GenerateHandler:    handler.NewGenerateHandler(svc, false),
		GetImageHandler:    handler.NewGetImageHandler(fileStore),
		DeleteImageHandler: handler.NewDeleteImageHandler(fileStore),
	})

	// /health responds and reports the missing credential.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	var health struct {
		APIKeyConfigured bool `json:"api_key_configured"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.APIKeyConfigured {
		t.Error("expected api_key_configured=false")
	}

	// /generate fails fast with SERVICE_ERROR instead of crashing.
	body, _ := json.Marshal(map[string]any{"prompt": "a red cube"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(body)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("generate: expected 500, got %d", rec.Code)
	}
	var env struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != "SERVICE_ERROR" {
		t.Errorf("expected SERVICE_ERROR, got %q", env.Code)
	}
}
