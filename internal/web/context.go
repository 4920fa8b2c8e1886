package web

import (
	"context"
	"net/http"
	"time"
)

// importContext derives the context an import runs under: the request
// context bounded by the configured import timeout.
func (s *Server) importContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := s.cfg.Upload.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return context.WithTimeout(r.Context(), timeout)
}
