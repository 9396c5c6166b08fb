package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"paragon-backend/internal/api/middleware"
	"paragon-backend/internal/ingest"
	"paragon-backend/internal/models"
	"paragon-backend/internal/store"
)

// maxUploadBytes caps receipt image uploads at 16 MiB.
const maxUploadBytes = 16 << 20

// TransactionsHandler exposes the ingestion pipeline and transaction CRUD.
type TransactionsHandler struct {
	svc *ingest.Service
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc *ingest.Service, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, log: log}
}

// List handles GET /api/transactions.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	txs, err := h.svc.List(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, txs)
}

// Upload handles POST /api/transactions/upload?force=<bool>. It returns the
// placeholder transaction immediately; parsing continues in the background.
func (h *TransactionsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A 'file' part is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Uploaded file is empty")
		return
	}

	tx, err := h.svc.Upload(r.Context(), userID, header.Filename, data, force)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, tx)
}

type manualLineRequest struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity"`
	CategoryID *uint   `json:"category_id"`
}

type manualTransactionRequest struct {
	MerchantName string              `json:"merchant_name"`
	Currency     string              `json:"currency"`
	Date         *string             `json:"date"`
	Type         string              `json:"type"`
	TotalAmount  float64             `json:"total_amount"`
	CategoryID   *uint               `json:"category_id"`
	TagIDs       []uint              `json:"tag_ids"`
	Lines        []manualLineRequest `json:"lines"`
}

// CreateManual handles POST /api/transactions/manual.
func (h *TransactionsHandler) CreateManual(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req manualTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.MerchantName) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "merchant_name is required")
		return
	}

	in := ingest.ManualTransactionInput{
		MerchantName: req.MerchantName,
		Currency:     req.Currency,
		TotalAmount:  req.TotalAmount,
		CategoryID:   req.CategoryID,
		TagIDs:       req.TagIDs,
	}
	if req.Type != "" {
		txType, err := parseTransactionType(req.Type)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.Type = txType
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "date must be RFC 3339 or YYYY-MM-DD")
			return
		}
		in.Date = date
	}
	for _, l := range req.Lines {
		if strings.TrimSpace(l.Name) == "" {
			middleware.WriteError(w, http.StatusBadRequest, "every line needs a name")
			return
		}
		in.Lines = append(in.Lines, ingest.ManualLine{
			Name:       l.Name,
			Price:      l.Price,
			Quantity:   l.Quantity,
			CategoryID: l.CategoryID,
		})
	}

	tx, err := h.svc.CreateManual(r.Context(), userID, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Item dispatches /api/transactions/{id}, /{id}/retry and
// /{id}/lines/{lineId}.
func (h *TransactionsHandler) Item(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	id, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Transaction id must be numeric")
		return
	}
	txID := uint(id)

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, txID)
		case http.MethodPatch:
			h.patch(w, r, txID)
		case http.MethodDelete:
			h.delete(w, r, txID)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	case len(parts) == 2 && parts[1] == "retry":
		if r.Method != http.MethodPost {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.retry(w, r, txID)
	case len(parts) == 3 && parts[1] == "lines":
		if r.Method != http.MethodPatch {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		lineID, err := strconv.ParseUint(parts[2], 10, 32)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Line id must be numeric")
			return
		}
		h.patchLine(w, r, txID, uint(lineID))
	default:
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (h *TransactionsHandler) get(w http.ResponseWriter, r *http.Request, txID uint) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	tx, err := h.svc.Get(r.Context(), userID, txID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

func (h *TransactionsHandler) retry(w http.ResponseWriter, r *http.Request, txID uint) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	tx, err := h.svc.Retry(r.Context(), userID, txID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

type transactionPatchRequest struct {
	MerchantName *string  `json:"merchant_name"`
	Date         *string  `json:"date"`
	TotalAmount  *float64 `json:"total_amount"`
	Currency     *string  `json:"currency"`
	Type         *string  `json:"type"`
	CategoryID   *uint    `json:"category_id"`
}

func (h *TransactionsHandler) patch(w http.ResponseWriter, r *http.Request, txID uint) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req transactionPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	patch := store.TransactionPatch{
		MerchantName: req.MerchantName,
		TotalAmount:  req.TotalAmount,
		Currency:     req.Currency,
		CategoryID:   req.CategoryID,
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "date must be RFC 3339 or YYYY-MM-DD")
			return
		}
		patch.Date = date
	}
	if req.Type != nil {
		txType, err := parseTransactionType(*req.Type)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.Type = &txType
	}

	tx, err := h.svc.Patch(r.Context(), userID, txID, patch)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

type linePatchRequest struct {
	Name       *string  `json:"name"`
	Price      *float64 `json:"price"`
	Quantity   *float64 `json:"quantity"`
	CategoryID *uint    `json:"category_id"`
}

func (h *TransactionsHandler) patchLine(w http.ResponseWriter, r *http.Request, txID, lineID uint) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req linePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	patch := store.LinePatch{
		Name:       req.Name,
		Price:      req.Price,
		Quantity:   req.Quantity,
		CategoryID: req.CategoryID,
	}

	tx, err := h.svc.PatchLine(r.Context(), userID, txID, lineID, patch)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

func (h *TransactionsHandler) delete(w http.ResponseWriter, r *http.Request, txID uint) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.svc.Delete(r.Context(), userID, txID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *TransactionsHandler) writeServiceError(w http.ResponseWriter, err error) {
	var dup *ingest.DuplicateError
	switch {
	case errors.As(err, &dup):
		middleware.WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"error":          "duplicate receipt",
			"transaction_id": dup.TransactionID,
			"scan_id":        dup.ScanID,
		})
	case errors.Is(err, ingest.ErrForbidden):
		middleware.WriteError(w, http.StatusForbidden, "You do not own this transaction")
	case errors.Is(err, ingest.ErrInvalidScanState):
		middleware.WriteError(w, http.StatusBadRequest, "Scan is not in a retryable state")
	case errors.Is(err, ingest.ErrImageMissing):
		middleware.WriteError(w, http.StatusNotFound, "Stored image no longer exists; upload the receipt again")
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	default:
		h.log.Error().Err(err).Msg("Transaction operation failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func parseTransactionType(s string) (models.TransactionType, error) {
	switch models.TransactionType(s) {
	case models.TransactionTypeExpense, models.TransactionTypeIncome, models.TransactionTypeTransfer:
		return models.TransactionType(s), nil
	default:
		return "", errors.New("type must be expense, income or transfer")
	}
}

// parseDate accepts RFC 3339 timestamps and bare YYYY-MM-DD dates.
func parseDate(s string) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
