package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/insightbot/internal/builder"
	"github.com/hyperjump/insightbot/internal/corpus"
	"github.com/hyperjump/insightbot/internal/keyword"
	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/internal/rag"
	"github.com/hyperjump/insightbot/internal/search"
	"github.com/hyperjump/insightbot/internal/session"
	"github.com/hyperjump/insightbot/internal/storage"
	"github.com/hyperjump/insightbot/internal/vector"
)

const (
	defaultLookupLimit = 20
	maxLookupLimit     = 200
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"datasets":       s.engine.Datasets(),
		"sessions":       s.sessions.Len(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	configInfo := map[string]interface{}{
		"index_type":          s.config.Corpus.IndexType,
		"embedding_provider":  s.config.Embedding.Provider,
		"embedding_model":     s.config.Embedding.Model,
		"generation_provider": s.config.Generation.Provider,
		"generation_model":    s.config.Generation.Model,
		"top_k":               s.config.Retrieval.TopK,
		"memory_turns":        s.config.Retrieval.MemoryTurns,
		"database_path":       s.config.Storage.DatabasePath,
		"index_dir":           s.config.Storage.IndexDir,
		"keyword_dir":         s.config.Storage.KeywordDir,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.IndexDir,
		s.config.Storage.KeywordDir,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	if built, err := s.storage.ListDatasets(r.Context()); err == nil {
		resp["built_datasets"] = len(built)
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if query.Dataset == "" {
		query.Dataset = s.config.Corpus.Default
	}
	if err := query.Validate(s.config.Retrieval.TopK, s.config.Retrieval.MaxK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("dataset", query.Dataset), zap.String("query", query.Query), zap.Int("k", query.K))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"datasets": s.engine.Datasets()})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.builder == nil {
		s.respondError(w, http.StatusNotImplemented, "reload not enabled")
		return
	}
	name := chi.URLParam(r, "name")
	force := r.URL.Query().Get("force") == "true"
	s.logger.Info("reload request", zap.String("dataset", name), zap.Bool("force", force))
	res, err := s.builder.Refresh(r.Context(), name, force, s.engine)
	if err != nil {
		s.fail(w, "reload failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	ds, err := s.engine.Dataset(chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, "lookup failed", err)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	opts := &keyword.SearchOptions{
		Field:        r.URL.Query().Get("field"),
		FuzzyEnabled: r.URL.Query().Get("fuzzy") == "true",
	}
	matches, err := ds.Lookup(r.Context(), q, limit, opts)
	if err != nil {
		s.fail(w, "lookup failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"dataset": ds.Name(), "query": q, "matches": matches})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultLookupLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxLookupLimit {
		n = maxLookupLimit
	}
	return n, nil
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ds, err := s.engine.Dataset(chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, "get record failed", err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	rec, err := ds.Record(id)
	if err != nil {
		s.fail(w, "get record failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	sess, err := s.sessions.Create(req.Dataset)
	if err != nil {
		s.fail(w, "create session failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": sess.ID, "dataset": sess.Dataset})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": s.sessions.List()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.fail(w, "delete session failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	ans, err := s.sessions.Ask(r.Context(), id, req.Query)
	if err != nil {
		s.fail(w, "answer failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, ans)
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.sessions.Window(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "memory failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"turns": turns})
}

func (s *Server) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Clear(chi.URLParam(r, "id")); err != nil {
		s.fail(w, "clear memory failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	entries, err := s.sessions.Transcript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "transcript failed", err)
		return
	}
	if entries == nil {
		entries = []models.TranscriptEntry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrUnknownDataset),
		errors.Is(err, search.ErrUnknownRecord),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, builder.ErrUnknownDataset):
		return http.StatusNotFound
	case errors.Is(err, rag.ErrEmptyQuery),
		errors.Is(err, vector.ErrInvalidK):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrNotLoaded),
		errors.Is(err, keyword.ErrNoIndex):
		return http.StatusServiceUnavailable
	case errors.Is(err, corpus.ErrShapeMismatch),
		errors.Is(err, corpus.ErrEmptyCorpus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
