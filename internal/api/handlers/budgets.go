package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"paragon-backend/internal/api/middleware"
	"paragon-backend/internal/store"
)

// BudgetsHandler exposes monthly spending limits.
type BudgetsHandler struct {
	db  *store.DB
	log zerolog.Logger
}

// NewBudgetsHandler creates a new budgets handler.
func NewBudgetsHandler(db *store.DB, log zerolog.Logger) *BudgetsHandler {
	return &BudgetsHandler{db: db, log: log}
}

// Monthly handles GET and PUT /api/budgets/monthly.
func (h *BudgetsHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserID(r.Context()); !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		now := time.Now()
		month, year := int(now.Month()), now.Year()
		if m := r.URL.Query().Get("month"); m != "" {
			v, err := strconv.Atoi(m)
			if err != nil || v < 1 || v > 12 {
				middleware.WriteError(w, http.StatusBadRequest, "month must be 1-12")
				return
			}
			month = v
		}
		if y := r.URL.Query().Get("year"); y != "" {
			v, err := strconv.Atoi(y)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, "year must be numeric")
				return
			}
			year = v
		}

		mb, err := h.db.GetMonthlyBudget(r.Context(), nil, month, year)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to load monthly budget")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to load monthly budget")
			return
		}
		if mb == nil {
			middleware.WriteError(w, http.StatusNotFound, "No budget set for this month")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, mb)
	case http.MethodPut:
		var req struct {
			Month  int     `json:"month"`
			Year   int     `json:"year"`
			Amount float64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Month < 1 || req.Month > 12 || req.Year == 0 {
			middleware.WriteError(w, http.StatusBadRequest, "month must be 1-12 and year set")
			return
		}

		mb, err := h.db.UpsertMonthlyBudget(r.Context(), nil, req.Month, req.Year, req.Amount)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to upsert monthly budget")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to save monthly budget")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, mb)
	default:
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
