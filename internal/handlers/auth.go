package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/paytrace/installments/internal/auth"
	"github.com/paytrace/installments/internal/httpx"
	"github.com/paytrace/installments/internal/services"
	"github.com/paytrace/installments/internal/validation"
)

// AuthHandler serves signup, login, and account deletion.
type AuthHandler struct {
	Accounts *services.AccountService
	Tokens   *auth.Tokens
}

func NewAuthHandler(accounts *services.AccountService, tokens *auth.Tokens) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Tokens: tokens}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Signup: POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if verr := validation.ValidateUsername(req.Username); verr != nil {
		writeValidationError(w, verr)
		return
	}
	if verr := validation.ValidatePassword(req.Password); verr != nil {
		writeValidationError(w, verr)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("hash password", "error", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	user, err := h.Accounts.Register(req.Username, hash)
	if errors.Is(err, services.ErrUsernameTaken) {
		httpx.JSONError(w, http.StatusBadRequest, "username_exists", nil)
		return
	}
	if err != nil {
		slog.Error("create user", "error", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	token, err := h.Tokens.Issue(user.ID)
	if err != nil {
		slog.Error("issue token", "error", err, "user_id", user.ID)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, authResponse{ID: user.ID, Username: user.Username, Token: token})
}

// Login: POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	user, err := h.Accounts.FindByUsername(req.Username)
	if errors.Is(err, services.ErrUserNotFound) {
		httpx.JSONError(w, http.StatusNotFound, "user_not_found", nil)
		return
	}
	if err != nil {
		slog.Error("find user", "error", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		httpx.JSONError(w, http.StatusUnauthorized, "password_incorrect", nil)
		return
	}
	token, err := h.Tokens.Issue(user.ID)
	if err != nil {
		slog.Error("issue token", "error", err, "user_id", user.ID)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, authResponse{ID: user.ID, Username: user.Username, Token: token})
}

// DeleteMe: DELETE /auth/me — requires the password again before the
// cascading delete.
func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "token_not_provided", nil)
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		httpx.JSONError(w, http.StatusBadRequest, "password_required", nil)
		return
	}
	user, err := h.Accounts.FindByID(uid)
	if errors.Is(err, services.ErrUserNotFound) {
		httpx.JSONError(w, http.StatusUnauthorized, "user_not_found", nil)
		return
	}
	if err != nil {
		slog.Error("find user", "error", err, "user_id", uid)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		httpx.JSONError(w, http.StatusUnauthorized, "password_incorrect", nil)
		return
	}
	if err := h.Accounts.Delete(uid); err != nil {
		slog.Error("delete account", "error", err, "user_id", uid)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.Message(w, http.StatusOK, "user deleted")
}

func writeValidationError(w http.ResponseWriter, verr *validation.Error) {
	details := map[string]any{}
	for k, v := range verr.Details {
		details[k] = v
	}
	if verr.Index >= 0 {
		details["index"] = verr.Index
	}
	if len(details) == 0 {
		httpx.JSONError(w, http.StatusBadRequest, verr.Code, nil)
		return
	}
	httpx.JSONError(w, http.StatusBadRequest, verr.Code, details)
}
