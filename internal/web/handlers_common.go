package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// uuidParam parses a UUID URL parameter, writing a 400 when it is malformed.
func (s *Server) uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		s.respondBadRequest(w, r, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// saveFormFile stores the multipart file under field and returns its
// storage reference. Returns http.ErrMissingFile when the field is absent.
func (s *Server) saveFormFile(ctx context.Context, r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer file.Close()

	ref, err := s.deps.Files.Put(ctx, header.Filename, file, header.Size)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", field, err)
	}
	return ref, nil
}
