package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/mydiary/internal/auth"
	"github.com/crucial707/mydiary/internal/logging"
	"github.com/crucial707/mydiary/internal/middleware"
	"github.com/crucial707/mydiary/internal/repo"
)

// Activity paging bounds.
const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// ==========================
// User Handler
// ==========================
type UserHandler struct {
	Accounts Accounts
	// Audit backs the activity trail. Nil yields an empty trail.
	Audit *repo.AuditRepo
}

// ==========================
// Find username by email
// ==========================
func (h *UserHandler) FindID(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}

	masked, err := h.Accounts.FindUsername(r.Context(), input.Email)
	if err != nil {
		if auth.ErrorCode(err) == auth.CodeUserNotFound {
			JSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeServiceError(w, r, "find username", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"message":      "username found",
		"maskedUserId": masked,
	})
}

// ==========================
// Request password reset
// ==========================
func (h *UserHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := decodeJSON(r, &input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	username := input.Username
	if username == "" {
		username = input.UserID
	}

	if err := h.Accounts.RequestPasswordReset(r.Context(), username, input.Email); err != nil {
		writeServiceError(w, r, "request password reset", err)
		return
	}
	JSONOK(w, "If the account exists, a password reset link has been sent to its email address.", nil)
}

// ==========================
// Reset password
// ==========================
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r, &input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := h.Accounts.ResetPassword(r.Context(), input.Token, input.NewPassword); err != nil {
		writeServiceError(w, r, "reset password", err)
		return
	}
	JSONOK(w, "password has been reset", nil)
}

// ==========================
// Availability checks
// ==========================
func (h *UserHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	available, err := h.Accounts.UsernameAvailable(r.Context(), chi.URLParam(r, "username"))
	writeAvailability(w, r, "username", available, err)
}

func (h *UserHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	available, err := h.Accounts.EmailAvailable(r.Context(), r.URL.Query().Get("email"))
	writeAvailability(w, r, "email", available, err)
}

func writeAvailability(w http.ResponseWriter, r *http.Request, what string, available bool, err error) {
	if err != nil {
		writeServiceError(w, r, "check "+what, err)
		return
	}
	if !available {
		JSONError(w, what+" is already in use", http.StatusConflict)
		return
	}
	JSONOK(w, what+" is available", nil)
}

// ==========================
// Activity trail
// ==========================
func (h *UserHandler) Activity(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	limit := defaultActivityLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			JSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxActivityLimit)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			JSONError(w, "invalid offset", http.StatusBadRequest)
			return
		}
		offset = n
	}

	if h.Audit == nil {
		JSONOK(w, "", []struct{}{})
		return
	}
	entries, err := h.Audit.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		logging.LogError(r.Context(), nil, "list activity", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	JSONOK(w, "", entries)
}
