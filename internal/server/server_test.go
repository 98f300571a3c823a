package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/photodump/internal/model"
	"github.com/Veraticus/photodump/internal/session"
	"github.com/Veraticus/photodump/internal/storage"
)

// stubEngine returns a canned selection, optionally blocking until released
// so tests can hold a run open.
type stubEngine struct {
	selection model.Selection
	err       error
	block     chan struct{}
}

func (e *stubEngine) Run(ctx context.Context, _, _ string, _ []model.Category) (model.Selection, error) {
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.selection, e.err
}

func newTestServer(t *testing.T, engine Engine) (*Server, Config) {
	t.Helper()

	cfg := Config{
		UploadsDir:     filepath.Join(t.TempDir(), "uploads"),
		OutputDir:      filepath.Join(t.TempDir(), "output"),
		CategoriesFile: filepath.Join(t.TempDir(), "categories.txt"),
	}
	require.NoError(t, os.MkdirAll(cfg.UploadsDir, 0o750))
	require.NoError(t, os.WriteFile(cfg.CategoriesFile, []byte("1. Beach day\n2. Food\n"), 0o600))

	files := storage.NewFSStore()
	coordinator := session.NewCoordinator(files, cfg.UploadsDir, cfg.OutputDir)
	return New(engine, coordinator, files, cfg), cfg
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestServer_Upload(t *testing.T) {
	srv, cfg := newTestServer(t, &stubEngine{})
	handler := srv.Handler()

	body, contentType := multipartBody(t, map[string]string{
		"a.jpg":     "image a",
		"notes.txt": "not an image",
	})

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Uploaded int      `json:"uploaded"`
		Files    []string `json:"files"`
		Skipped  int      `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Uploaded)
	assert.Equal(t, []string{"a.jpg"}, resp.Files)

	data, err := os.ReadFile(filepath.Join(cfg.UploadsDir, "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "image a", string(data))
	_, err = os.Stat(filepath.Join(cfg.UploadsDir, "notes.txt"))
	assert.True(t, os.IsNotExist(err))

	t.Run("existing names are skipped", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"a.jpg": "changed"})
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Uploaded int `json:"uploaded"`
			Skipped  int `json:"skipped"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 0, resp.Uploaded)
		assert.Equal(t, 1, resp.Skipped)

		data, err := os.ReadFile(filepath.Join(cfg.UploadsDir, "a.jpg"))
		require.NoError(t, err)
		assert.Equal(t, "image a", string(data))
	})

	t.Run("path traversal names are flattened", func(t *testing.T) {
		body, contentType := multipartBody(t, map[string]string{"../../evil.jpg": "x"})
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		_, err := os.Stat(filepath.Join(cfg.UploadsDir, "evil.jpg"))
		assert.NoError(t, err)
	})

	t.Run("non-multipart rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("nope"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_ListUploads(t *testing.T) {
	srv, cfg := newTestServer(t, &stubEngine{})
	handler := srv.Handler()

	require.NoError(t, os.WriteFile(filepath.Join(cfg.UploadsDir, "b.jpg"), []byte("b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.UploadsDir, "a.jpg"), []byte("a"), 0o600))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list-uploads", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, names)
}

func TestServer_RemoveFile(t *testing.T) {
	srv, cfg := newTestServer(t, &stubEngine{})
	handler := srv.Handler()

	path := filepath.Join(cfg.UploadsDir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/remove-file",
		strings.NewReader(`{"filename":"a.jpg"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	t.Run("missing file is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/remove-file",
			strings.NewReader(`{"filename":"a.jpg"}`)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("empty filename is 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/remove-file",
			strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_Categories(t *testing.T) {
	srv, _ := newTestServer(t, &stubEngine{})
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, []string{"None", "Beach day", "Food"}, names)
}

func TestServer_Process(t *testing.T) {
	selection := model.Selection{"Food": {"p1.jpg"}}
	srv, _ := newTestServer(t, &stubEngine{selection: selection})
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process",
		strings.NewReader(`["Beach day","Food"]`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Selection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, selection, got)

	t.Run("reserved category rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process",
			strings.NewReader(`["None"]`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid body rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process",
			strings.NewReader(`not json`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_ProcessConflictWhileRunning(t *testing.T) {
	engine := &stubEngine{
		selection: model.Selection{},
		block:     make(chan struct{}),
	}
	srv, _ := newTestServer(t, engine)
	handler := srv.Handler()

	firstDone := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process",
			strings.NewReader(`["Food"]`)))
		firstDone <- rec.Code
	}()

	// Wait until the first run holds the slot.
	require.Eventually(t, func() bool {
		return srv.coordinator.State() == model.RunStateRunning
	}, time.Second, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process",
		strings.NewReader(`["Food"]`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(engine.block)
	assert.Equal(t, http.StatusOK, <-firstDone)
}

func TestServer_ProcessEngineFailure(t *testing.T) {
	srv, _ := newTestServer(t, &stubEngine{err: errors.New("no images")})
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process",
		strings.NewReader(`["Food"]`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, model.RunStateFailed, srv.coordinator.State())
}

func TestServer_Clear(t *testing.T) {
	srv, cfg := newTestServer(t, &stubEngine{})
	handler := srv.Handler()

	require.NoError(t, os.WriteFile(filepath.Join(cfg.UploadsDir, "a.jpg"), []byte("a"), 0o600))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/clear", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := os.ReadDir(cfg.UploadsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestServer_Download(t *testing.T) {
	srv, cfg := newTestServer(t, &stubEngine{})
	handler := srv.Handler()

	require.NoError(t, os.MkdirAll(filepath.Join(cfg.OutputDir, "Food"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.OutputDir, "Food", "p1.jpg"), []byte("p1"), 0o600))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}
