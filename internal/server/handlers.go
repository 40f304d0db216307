package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/bookrs/internal/models"
	"github.com/hyperjump/bookrs/internal/popularity"
	"github.com/hyperjump/bookrs/internal/recommend"
)

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := models.RecommendQuery{Query: params.Get("q")}

	// An absent k gets the default; an explicit k=0 means "no results" and
	// is passed through as-is.
	query.TopK = s.config.Recommend.DefaultTopK
	if raw := params.Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		query.TopK = k
	}
	if raw := params.Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "user_id must be an integer")
			return
		}
		query.UserID = &id
	}

	s.logger.Debug("recommend request", zap.String("query", query.Query), zap.Int("top_k", query.TopK))
	response, err := s.engine.Recommend(r.Context(), query)
	if err != nil {
		if errors.Is(err, recommend.ErrNoCandidates) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		if query.TopK < 0 {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("recommend failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	k := s.config.Recommend.DefaultTopK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.respondError(w, http.StatusBadRequest, "k must be a non-negative integer")
			return
		}
		k = parsed
	}
	if k > s.config.Recommend.MaxTopK {
		k = s.config.Recommend.MaxTopK
	}

	b := s.engine.Bundle()
	top := popularity.TopK(b, k)
	results := make([]*models.Recommendation, 0, len(top))
	for i, entry := range top {
		rec := &models.Recommendation{
			BookID:     entry.BookID,
			PopScore:   entry.PopScore,
			FusedScore: entry.PopScore,
			Provenance: models.ProvenancePopularity,
			Rank:       i + 1,
		}
		if meta, ok := b.Book(entry.BookID); ok {
			rec.Title = meta.Title
			rec.Authors = meta.Authors
		}
		results = append(results, rec)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"total":   len(results),
	})
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog not configured")
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	books, err := s.storage.ListBooks(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list books failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"books": books, "count": len(books)})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog not configured")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "id must be an integer")
		return
	}
	book, err := s.storage.GetBook(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "book not found")
		return
	}
	s.respondJSON(w, http.StatusOK, book)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog not configured")
		return
	}
	var book models.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if book.ID == 0 || book.Title == "" {
		s.respondError(w, http.StatusBadRequest, "id and title are required")
		return
	}
	if err := s.storage.CreateBook(r.Context(), &book); err != nil {
		s.logger.Error("create book failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.index != nil {
		if err := s.index.Index(r.Context(), &book); err != nil {
			s.logger.Warn("keyword indexing failed", zap.Int64("book_id", book.ID), zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusCreated, book)
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	if s.index == nil || s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog not configured")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	hits, err := s.index.Search(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	type hitResult struct {
		Book  *models.Book `json:"book"`
		Score float64      `json:"score"`
	}
	results := make([]hitResult, 0, len(hits))
	for _, hit := range hits {
		book, err := s.storage.GetBook(r.Context(), hit.BookID)
		if err != nil {
			// Indexed but no longer in the catalog; skip.
			continue
		}
		results = append(results, hitResult{Book: book, Score: hit.Score})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results, "total": len(results)})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog not configured")
		return
	}
	var user models.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if user.ID == 0 || user.Name == "" {
		s.respondError(w, http.StatusBadRequest, "id and name are required")
		return
	}
	if err := s.storage.CreateUser(r.Context(), &user); err != nil {
		s.logger.Error("create user failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleUpsertRating(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog not configured")
		return
	}
	var rating models.Rating
	if err := json.NewDecoder(r.Body).Decode(&rating); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.storage.UpsertRating(r.Context(), &rating); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rating)
}

func (s *Server) handleListRatings(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog not configured")
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "user_id must be an integer")
		return
	}
	ratings, err := s.storage.ListRatingsByUser(r.Context(), userID)
	if err != nil {
		s.logger.Error("list ratings failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ratings": ratings, "total": len(ratings)})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reload(); err != nil {
		s.logger.Error("reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	b := s.store.Current()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "reloaded",
		"artifacts": b.Summary(),
		"loaded_at": b.LoadedAt(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	b := s.engine.Bundle()
	resp := map[string]interface{}{
		"artifacts": map[string]interface{}{
			"summary":   b.Summary(),
			"books":     b.Embeddings.Len(),
			"users":     b.UserFactors.Len(),
			"loaded_at": b.LoadedAt(),
		},
		"stats": s.engine.Stats(),
		"config": map[string]interface{}{
			"semantic_weight": s.config.Recommend.SemanticWeight,
			"cf_weight":       s.config.Recommend.CFWeight,
			"pop_weight":      s.config.Recommend.PopWeight,
			"default_top_k":   s.config.Recommend.DefaultTopK,
			"max_top_k":       s.config.Recommend.MaxTopK,
		},
	}
	if s.storage != nil {
		if count, err := s.storage.CountBooks(r.Context()); err == nil {
			resp["catalog_books"] = count
		}
		if count, err := s.storage.CountRatings(r.Context()); err == nil {
			resp["catalog_ratings"] = count
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
