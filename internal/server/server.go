// Package server exposes the selection pipeline to a web front end: photo
// uploads, run control, and websocket observers of run lifecycle events.
package server

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/photodump/internal/common"
	"github.com/Veraticus/photodump/internal/model"
	"github.com/Veraticus/photodump/internal/service"
	"github.com/Veraticus/photodump/internal/session"
	"github.com/Veraticus/photodump/internal/storage"
)

// maxUploadBytes bounds a single upload request.
const maxUploadBytes = 512 << 20

// Engine is the slice of the selection pipeline the server needs.
type Engine interface {
	Run(ctx context.Context, albumDir, outputDir string, categories []model.Category) (model.Selection, error)
}

// Config holds the server settings.
type Config struct {
	Addr           string
	UploadsDir     string
	OutputDir      string
	CategoriesFile string
}

// Server wires HTTP handlers onto the engine and session coordinator.
type Server struct {
	engine      Engine
	coordinator *session.Coordinator
	files       service.Storage
	config      Config
}

// New creates a server. The coordinator owns run mutual exclusion and
// observer fan-out; the server only translates HTTP and websocket traffic.
func New(engine Engine, coordinator *session.Coordinator, files service.Storage, config Config) *Server {
	return &Server{
		engine:      engine,
		coordinator: coordinator,
		files:       files,
		config:      config,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /list-uploads", s.handleListUploads)
	mux.HandleFunc("POST /remove-file", s.handleRemoveFile)
	mux.HandleFunc("GET /categories", s.handleCategories)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	return mux
}

// ListenAndServe runs the server until the context is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	slog.Info("Server listening", "addr", s.config.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleUpload saves the image files of a multipart request into the
// uploads area, skipping non-images and names that already exist.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("expected multipart upload: %w", err))
		return
	}

	if err := os.MkdirAll(s.config.UploadsDir, 0o750); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var uploaded, skipped []string
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		name := filepath.Base(part.FileName())
		if name == "" || name == "." || !storage.IsImage(name) {
			_ = part.Close()
			continue
		}

		dst := filepath.Join(s.config.UploadsDir, name)
		if _, err := os.Stat(dst); err == nil {
			skipped = append(skipped, name)
			_ = part.Close()
			continue
		}

		if err := savePart(part, dst); err != nil {
			_ = part.Close()
			writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to save %s: %w", name, err))
			return
		}
		_ = part.Close()
		uploaded = append(uploaded, name)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       fmt.Sprintf("Successfully uploaded %d files", len(uploaded)),
		"uploaded":      len(uploaded),
		"files":         uploaded,
		"skipped":       len(skipped),
		"skipped_files": skipped,
	})
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	photos, err := s.files.ListImages(r.Context(), s.config.UploadsDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	names := make([]string, 0, len(photos))
	for _, photo := range photos {
		names = append(names, photo.Base())
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Filename == "" {
		writeError(w, http.StatusBadRequest, errors.New("no filename provided"))
		return
	}

	path := filepath.Join(s.config.UploadsDir, filepath.Base(body.Filename))
	if err := s.files.Remove(r.Context(), path); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "File removed successfully"})
}

// handleCategories serves the default category list, "None" first.
func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	f, err := os.Open(s.config.CategoriesFile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("cannot open categories file: %w", err))
		return
	}
	defer f.Close()

	categories, err := model.ParseCategories(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, model.CategoryNames(categories))
}

// handleProcess runs the pipeline for the uploaded photos against the
// categories in the request body. Exactly one run is allowed at a time.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var names []string
	if err := json.NewDecoder(r.Body).Decode(&names); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("expected a JSON list of categories: %w", err))
		return
	}

	categories, err := model.MakeCategories(names)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	handle, err := s.coordinator.StartRun()
	if err != nil {
		if errors.Is(err, common.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	selection, err := s.engine.Run(r.Context(), s.config.UploadsDir, s.config.OutputDir, categories)
	if err != nil {
		if failErr := handle.Fail(err); failErr != nil {
			slog.Warn("Run already finished elsewhere", "error", failErr)
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := handle.Complete(selection); err != nil {
		// The run was cancelled while we were processing; the selection is
		// discarded and retained results stay as they were.
		writeError(w, http.StatusConflict, err)
		return
	}

	writeJSON(w, http.StatusOK, selection)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "All data cleared successfully"})
}

// handleDownload streams a zip archive of the materialized output folders.
func (s *Server) handleDownload(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="photodump.zip"`)

	zw := zip.NewWriter(w)
	defer zw.Close()

	err := filepath.WalkDir(s.config.OutputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsImage(d.Name()) {
			return err
		}

		rel, err := filepath.Rel(s.config.OutputDir, path)
		if err != nil {
			return err
		}

		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		slog.Warn("Download archive incomplete", "error", err)
	}
}

func savePart(part io.Reader, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, part); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
