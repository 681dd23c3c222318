package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kikigaki/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := s.catalog.CountEpisodes(ctx)
	if err != nil {
		s.logger.Error("status: count episodes failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	resp := map[string]interface{}{
		"episodes": total,
		"shows":    counts,
	}
	if s.index != nil {
		if n, err := s.index.DocCount(); err == nil {
			resp["indexed_utterances"] = n
		}
	}
	last, err := s.catalog.LastRun(ctx)
	if err != nil {
		s.logger.Error("status: last run failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if last != nil {
		resp["last_run"] = last
		if chunks, err := s.catalog.ListChunks(ctx, last.RunID); err == nil {
			resp["last_run_chunks"] = chunks
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		s.respondError(w, http.StatusBadRequest, "prefix is required")
		return
	}
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	episodes, err := s.catalog.ListEpisodes(r.Context(), prefix, offset, limit)
	if err != nil {
		s.logger.Error("list episodes failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"prefix":   prefix,
		"count":    len(episodes),
		"episodes": episodes,
	})
}

func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	prefix := chi.URLParam(r, "prefix")
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "episode number must be an integer")
		return
	}
	ep, err := s.catalog.GetEpisode(r.Context(), prefix, number)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "episode not found")
		return
	}
	s.respondJSON(w, http.StatusOK, ep)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.respondError(w, http.StatusNotImplemented, "search index not enabled")
		return
	}
	params := r.URL.Query()
	query := models.SearchQuery{
		Query:   params.Get("q"),
		Prefix:  params.Get("prefix"),
		Speaker: params.Get("speaker"),
		Limit:   queryInt(r, "limit", 0),
		Offset:  queryInt(r, "offset", 0),
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.index.Search(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
