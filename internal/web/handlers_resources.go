package web

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/geoimport/internal/core"
)

// resourceRequest is the body of POST /api/resources.
type resourceRequest struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Subtype      string `json:"subtype"`
	DownloadHref string `json:"downloadHref"`
}

// resourceResponse is a resource with its links.
type resourceResponse struct {
	Resource *core.Resource `json:"resource"`
	Links    []*core.Link   `json:"links"`
}

// handleSaveResource registers (or replaces) a resource imports can target.
func (s *Server) handleSaveResource(w http.ResponseWriter, r *http.Request) {
	var req resourceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.respondBadRequest(w, r, "invalid request body")
		return
	}

	id := uuid.New()
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			s.respondBadRequest(w, r, "invalid resource id")
			return
		}
		id = parsed
	}

	res := &core.Resource{
		ID:           id,
		Title:        req.Title,
		Subtype:      req.Subtype,
		DownloadHref: req.DownloadHref,
	}
	if err := s.deps.Catalog.SaveResource(r.Context(), res); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, r, http.StatusCreated, res)
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "resourceID")
	if !ok {
		return
	}

	res, err := s.deps.Catalog.GetResource(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	links, err := s.deps.Catalog.ListLinks(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if links == nil {
		links = []*core.Link{}
	}
	writeJSON(w, r, resourceResponse{Resource: res, Links: links})
}
