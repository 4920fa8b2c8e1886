package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/logging"
)

var errNoFile = errors.New("no file provided")

// handleCreateImport accepts a multipart upload (base_file, optional
// sld_file / xml_file, action, resource_id), stores the files and runs the
// requested action through the orchestrator.
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.respondError(w, r, fmt.Errorf("file too large: %w", err), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondBadRequest(w, r, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	ctx, cancel := s.importContext(r)
	defer cancel()

	base, err := s.saveFormFile(ctx, r, core.FileKeyBase)
	if errors.Is(err, http.ErrMissingFile) {
		s.respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	files := make(map[string]string)
	for _, key := range []string{core.FileKeySLD, core.FileKeyMetadata} {
		ref, err := s.saveFormFile(ctx, r, key)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			s.respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		files[key] = ref
	}

	payload := core.Payload{
		BaseFile:   base,
		Action:     r.FormValue("action"),
		Files:      files,
		ResourceID: r.FormValue("resource_id"),
	}

	result, err := s.deps.Orchestrator.Run(ctx, payload, core.UserFromContext(ctx), core.ValidateOptions{
		MaxBytes: s.cfg.Upload.MaxDocumentBytes,
	})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(ctx).Info("import finished",
		"import_id", result.ImportID,
		"state", result.State,
		"duration_ms", result.Duration.Milliseconds(),
	)
	writeJSONStatus(w, r, http.StatusCreated, result)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.deps.Orchestrator.List())
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "importID")
	if !ok {
		return
	}

	status, err := s.deps.Orchestrator.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, status)
}

// handleRollbackImport runs the rollback action. Repeating it returns the
// first rollback's result.
func (s *Server) handleRollbackImport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "importID")
	if !ok {
		return
	}

	ctx, cancel := s.importContext(r)
	defer cancel()

	result, err := s.deps.Orchestrator.Rollback(ctx, id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, result)
}
