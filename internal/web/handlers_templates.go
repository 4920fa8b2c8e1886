package web

import (
	"net/http"

	"github.com/JonMunkholm/geoimport/internal/web/templates"
)

// handleListHandlers advertises the registered handlers in resolution order.
func (s *Server) handleListHandlers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.deps.Registry.Descriptors())
}

// handleHandlersPage renders the same list as an HTML table.
func (s *Server) handleHandlersPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.HandlersPage(s.deps.Registry.Descriptors()).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}
