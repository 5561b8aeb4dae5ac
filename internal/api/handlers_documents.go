package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docbridge/internal/parser"
	"github.com/dgallion1/docbridge/internal/tools"
	"github.com/google/uuid"
)

// uploadDir is where uploads land, relative to the document directory.
const uploadDir = "uploads"

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, s.inv.Invoke(r.Context(), "list_documents", nil))
}

// handleUpload stores a multipart "file" under the document directory and
// opens it through open_document.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	rel, err := s.storeUpload(filename, data)
	if err != nil {
		s.log.Error("store upload", "filename", filename, "error", err)
		jsonError(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	resp := s.inv.Invoke(r.Context(), "open_document", tools.Args{"path": rel})
	if resp.Error != nil {
		writeResponse(w, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// storeUpload writes data under the upload directory without replacing an
// existing file and returns the path relative to the document directory.
func (s *Server) storeUpload(filename string, data []byte) (string, error) {
	dir := filepath.Join(s.cfg.DocumentDir, uploadDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := filename
	for attempt := 0; attempt < 5; attempt++ {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			ext := filepath.Ext(filename)
			name = strings.TrimSuffix(filename, ext) + "-" + uuid.NewString()[:8] + ext
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return filepath.Join(uploadDir, name), nil
	}
	return "", fmt.Errorf("no free name for %s", filename)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
