package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"paragon-backend/internal/api/middleware"
	"paragon-backend/internal/models"
	"paragon-backend/internal/store"
)

// CategoriesHandler is plain CRUD over categories and tags; the ingestion
// pipeline only reads them.
type CategoriesHandler struct {
	db  *store.DB
	log zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(db *store.DB, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{db: db, log: log}
}

// Categories handles GET and POST /api/categories.
func (h *CategoriesHandler) Categories(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		cats, err := h.db.ListCategories(r.Context(), userID)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to list categories")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, cats)
	case http.MethodPost:
		var req struct {
			Name     string `json:"name"`
			ParentID *uint  `json:"parent_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			middleware.WriteError(w, http.StatusBadRequest, "A non-empty name is required")
			return
		}
		cat := &models.Category{Name: strings.TrimSpace(req.Name), ParentID: req.ParentID, UserID: &userID}
		if err := h.db.CreateCategory(r.Context(), cat); err != nil {
			h.log.Error().Err(err).Msg("Failed to create category")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to create category")
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, cat)
	default:
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// CategoryItem handles PATCH and DELETE /api/categories/{id}. Only
// user-owned categories can be changed.
func (h *CategoriesHandler) CategoryItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, err := strconv.ParseUint(strings.TrimPrefix(r.URL.Path, "/api/categories/"), 10, 32)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Category id must be numeric")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			middleware.WriteError(w, http.StatusBadRequest, "A non-empty name is required")
			return
		}
		err = h.db.RenameCategory(r.Context(), userID, uint(id), strings.TrimSpace(req.Name))
	case http.MethodDelete:
		err = h.db.DeleteCategory(r.Context(), userID, uint(id))
	default:
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		h.log.Error().Err(err).Msg("Category update failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Category update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tags handles GET and POST /api/tags.
func (h *CategoriesHandler) Tags(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		tags, err := h.db.ListTags(r.Context(), userID)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to list tags")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to list tags")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, tags)
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			middleware.WriteError(w, http.StatusBadRequest, "A non-empty name is required")
			return
		}
		tag := &models.Tag{Name: strings.TrimSpace(req.Name), UserID: &userID}
		if err := h.db.CreateTag(r.Context(), tag); err != nil {
			h.log.Error().Err(err).Msg("Failed to create tag")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to create tag")
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, tag)
	default:
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// TagItem handles PATCH and DELETE /api/tags/{id}.
func (h *CategoriesHandler) TagItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, err := strconv.ParseUint(strings.TrimPrefix(r.URL.Path, "/api/tags/"), 10, 32)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Tag id must be numeric")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			middleware.WriteError(w, http.StatusBadRequest, "A non-empty name is required")
			return
		}
		err = h.db.RenameTag(r.Context(), userID, uint(id), strings.TrimSpace(req.Name))
	case http.MethodDelete:
		err = h.db.DeleteTag(r.Context(), userID, uint(id))
	default:
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		h.log.Error().Err(err).Msg("Tag update failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Tag update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
