package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/eiga/internal/catalog"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/recommend"
	"github.com/hyperjump/eiga/internal/storage"
	"github.com/hyperjump/eiga/internal/vector"
	"go.uber.org/zap"
)

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var query models.RecommendQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.recommend(w, r, &query)
}

func (s *Server) handleRecommendGet(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	s.recommend(w, r, &models.RecommendQuery{Query: r.URL.Query().Get("q"), Limit: limit})
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request, query *models.RecommendQuery) {
	s.logger.Debug("recommend request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.recommender.Recommend(r.Context(), query)
	s.respondRecommendation(w, response, err)
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "position must be an integer")
		return
	}
	cat, err := s.catalogs.Current()
	if errors.Is(err, catalog.ErrNotLoaded) && s.storage != nil {
		// Metadata lookups do not need the embedding matrix.
		movie, err := s.storage.GetMovie(r.Context(), pos)
		if err != nil {
			s.respondError(w, statusForError(err), err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, movie)
		return
	}
	if err != nil {
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	movie, ok := cat.Movie(pos)
	if !ok {
		s.respondError(w, http.StatusNotFound, "movie not found")
		return
	}
	s.respondJSON(w, http.StatusOK, movie)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "position must be an integer")
		return
	}
	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	response, err := s.recommender.Similar(r.Context(), pos, limit)
	s.respondRecommendation(w, response, err)
}

func (s *Server) handleSimilarByTitle(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	response, err := s.recommender.SimilarToTitle(r.Context(), title, limit)
	s.respondRecommendation(w, response, err)
}

func (s *Server) handleTitleSuggestions(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	if limit == 0 {
		limit = models.DefaultLimit
	}
	cat, err := s.catalogs.Current()
	if err != nil {
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	suggestions := cat.SuggestTitles(r.URL.Query().Get("q"), limit)
	if suggestions == nil {
		suggestions = []catalog.TitleSuggestion{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"total":       len(suggestions),
	})
}

// limitParam parses the optional limit query parameter, writing a 400 on failure.
func (s *Server) limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "limit must be an integer")
		return 0, false
	}
	return n, true
}

func (s *Server) respondRecommendation(w http.ResponseWriter, response *models.RecommendResponse, err error) {
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("recommend failed", zap.Error(err))
		}
		s.respondError(w, status, err.Error())
		return
	}
	w.Header().Set("X-Request-ID", response.RequestID)
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{}

	if s.storage != nil {
		stored, err := s.storage.CountMovies(ctx)
		if err != nil {
			s.logger.Error("status: count movies failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["stored_movies"] = stored
	}

	catalogInfo := map[string]interface{}{"loaded": false}
	if cat, err := s.catalogs.Current(); err == nil {
		catalogInfo["loaded"] = true
		catalogInfo["movies"] = cat.Len()
		catalogInfo["dimensions"] = cat.Dimensions()
		catalogInfo["loaded_at"] = s.catalogs.LoadedAt()
	}
	resp["catalog"] = catalogInfo

	if s.embedder != nil {
		resp["embedding_dimensions"] = s.embedder.Dimensions()
	}

	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"embedding_provider": s.config.Embedding.Provider,
			"database_path":      s.config.Storage.DatabasePath,
			"default_limit":      s.config.Recommend.DefaultLimit,
			"max_limit":          s.config.Recommend.MaxLimit,
			"watch":              s.config.Catalog.WatchOrDefault(),
		}
		if diskBytes, err := storage.DatabaseSize(s.config.Storage.DatabasePath); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	cat, err := s.catalogs.Reload(r.Context())
	s.metrics.ObserveReload(err)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "reloaded",
		"movies":     cat.Len(),
		"dimensions": cat.Dimensions(),
	})
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	var embedErr *recommend.EmbedError
	switch {
	case errors.Is(err, models.ErrEmptyQuery), errors.Is(err, models.ErrInvalidLimit):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotLoaded), errors.Is(err, vector.ErrEmptyCatalog):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrMovieNotFound), errors.Is(err, catalog.ErrUnknownPosition), errors.Is(err, catalog.ErrTitleNotFound):
		return http.StatusNotFound
	case errors.As(err, &embedErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
