package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"paragon-backend/internal/api/middleware"
	"paragon-backend/internal/auth"
	"paragon-backend/internal/models"
	"paragon-backend/internal/store"
)

// AuthHandler issues tokens and registers users.
type AuthHandler struct {
	db     *store.DB
	secret string
	log    zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(db *store.DB, secret string, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{db: db, secret: secret, log: log}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	if existing, err := h.db.GetUserByEmail(r.Context(), req.Email); err == nil && existing != nil {
		middleware.WriteError(w, http.StatusConflict, "Email already registered")
		return
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.log.Error().Err(err).Msg("Failed to check existing user")
		middleware.WriteError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to hash password")
		middleware.WriteError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	user := &models.User{Email: req.Email, PasswordHash: hash}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		h.log.Error().Err(err).Msg("Failed to create user")
		middleware.WriteError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"id":    user.ID,
		"email": user.Email,
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := h.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := auth.GenerateToken(h.secret, user)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to generate token")
		middleware.WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
		},
	})
}
