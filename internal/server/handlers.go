package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/searchbox/searchbox/internal/config"
	"github.com/searchbox/searchbox/internal/document"
	"github.com/searchbox/searchbox/internal/elastic"
	"github.com/searchbox/searchbox/internal/logging"
	"github.com/searchbox/searchbox/internal/metrics"
	"github.com/searchbox/searchbox/internal/monitor"
)

// handleRoot serves a welcome message on the root endpoint.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the searchbox document API. See /healthz for service health.",
	})
}

// healthResponse is the payload served by /healthz.
type healthResponse struct {
	Status       string                    `json:"status"`
	Service      string                    `json:"service"`
	Version      string                    `json:"version"`
	Uptime       int64                     `json:"uptime"`
	Dependencies map[string]monitor.Status `json:"dependencies"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	st := s.health.Status()
	resp := healthResponse{
		Status:       "healthy",
		Service:      "searchbox",
		Version:      Version,
		Uptime:       int64(time.Since(s.started).Seconds()),
		Dependencies: map[string]monitor.Status{"elasticsearch": st},
	}
	code := http.StatusOK
	if !st.Ready {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	sendJSON(w, code, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := s.paging(w, r)
	if !ok {
		return
	}
	hits, err := s.store.ListDocuments(r.Context(), s.cfg.ESIndex, limit, offset)
	if err != nil {
		logging.Get().Error().Err(err).Msg("list documents failed")
		sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"results": sources(hits)})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var doc document.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := doc.Validate(); err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.store.IndexDocument(r.Context(), s.cfg.ESIndex, doc)
	if err != nil {
		logging.Get().Error().Err(err).Msg("index document failed")
		sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.IncDocumentIndexed()
	logging.Get().Info().Str("id", id).Str("author", doc.Author).Msg("indexed document")
	sendJSON(w, http.StatusCreated, map[string]string{"result": "Document indexed", "id": id})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	src, err := s.store.GetDocument(r.Context(), s.cfg.ESIndex, id)
	if err != nil {
		if errors.Is(err, elastic.ErrNotFound) {
			sendError(w, http.StatusNotFound, "Document not found")
			return
		}
		logging.Get().Error().Err(err).Str("id", id).Msg("get document failed")
		sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sendJSON(w, http.StatusOK, src)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteDocument(r.Context(), s.cfg.ESIndex, id); err != nil {
		if errors.Is(err, elastic.ErrNotFound) {
			sendError(w, http.StatusNotFound, "Document not found")
			return
		}
		logging.Get().Error().Err(err).Str("id", id).Msg("delete document failed")
		sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.IncDocumentDeleted()
	logging.Get().Info().Str("id", id).Msg("deleted document")
	sendJSON(w, http.StatusOK, map[string]string{"result": "Document deleted", "id": id})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		sendError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit, offset, ok := s.paging(w, r)
	if !ok {
		return
	}
	hits, err := s.store.SearchDocuments(r.Context(), s.cfg.ESIndex, q, limit, offset)
	if err != nil {
		logging.Get().Error().Err(err).Str("q", q).Msg("search failed")
		sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.IncSearch()
	sendJSON(w, http.StatusOK, map[string]interface{}{"results": sources(hits)})
}

// paging parses limit/offset query parameters with config defaults. A false
// return means an error response was already written.
func (s *Server) paging(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	limit := s.cfg.ListLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			sendError(w, http.StatusBadRequest, "invalid limit")
			return 0, 0, false
		}
		limit = n
	}
	if limit > config.MaxListLimit {
		limit = config.MaxListLimit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendError(w, http.StatusBadRequest, "invalid offset")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

// sources flattens hits into their source objects, carrying the document ID.
func sources(hits []elastic.Hit) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(hits))
	for _, h := range hits {
		src := make(map[string]interface{}, len(h.Source)+1)
		for k, v := range h.Source {
			src[k] = v
		}
		src["id"] = h.ID
		out = append(out, src)
	}
	return out
}
