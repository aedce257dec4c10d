package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/crucial707/mydiary/internal/auth"
	"github.com/crucial707/mydiary/internal/logging"
	"github.com/crucial707/mydiary/internal/metrics"
	"github.com/crucial707/mydiary/internal/middleware"
	"github.com/crucial707/mydiary/internal/models"
	"github.com/crucial707/mydiary/internal/session"
)

// Accounts is the account service as seen by the HTTP layer. *auth.Service satisfies it.
type Accounts interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	CurrentUser(ctx context.Context, userID int64) (*models.User, error)
	RequestPasswordReset(ctx context.Context, username, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	FindUsername(ctx context.Context, email string) (string, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	EmailAvailable(ctx context.Context, email string) (bool, error)
}

// ==========================
// Auth Handler
// ==========================
type AuthHandler struct {
	Accounts Accounts
	Sessions session.Store
	Secret   []byte
	// TokenTTL is the bearer token lifetime handed out by Token.
	TokenTTL time.Duration
	// SessionTTL sets the cookie Max-Age; zero makes it a browser-session cookie.
	SessionTTL   time.Duration
	CookieSecure bool
}

type signupInput struct {
	Username  string `json:"username" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required"`
	Name      string `json:"name" validate:"max=100"`
	BirthDate string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	Gender    string `json:"gender" validate:"max=10"`
	Phone     string `json:"phone" validate:"max=30"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ==========================
// Signup
// ==========================
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input signupInput
	if err := decodeJSON(r, &input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(input); err != nil {
		JSONValidationError(w, "validation failed", validationFields(err), http.StatusBadRequest)
		return
	}

	profile := models.Profile{Name: input.Name, Gender: input.Gender, Phone: input.Phone}
	if input.BirthDate != "" {
		// Format already checked by the datetime rule.
		bd, _ := time.Parse("2006-01-02", input.BirthDate)
		profile.BirthDate = &bd
	}

	_, err := h.Accounts.Register(r.Context(), auth.RegisterInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Profile:  profile,
	})
	if err != nil {
		writeServiceError(w, r, "signup failed", err)
		return
	}
	JSONOK(w, "signup complete", nil)
}

// ==========================
// Login (starts a cookie session)
// ==========================
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	// Drop any session the client already holds before issuing a new one.
	if c, err := r.Cookie(middleware.SessionCookie); err == nil && c.Value != "" {
		_ = h.Sessions.Delete(r.Context(), c.Value)
	}

	token, err := h.Sessions.Create(r.Context(), user.ID)
	if err != nil {
		logging.LogError(r.Context(), nil, "create session", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	metrics.IncSessionsCreated()

	cookie := &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.SessionTTL > 0 {
		cookie.MaxAge = int(h.SessionTTL / time.Second)
	}
	http.SetCookie(w, cookie)
	JSONOK(w, "login successful", user)
}

// ==========================
// Token (bearer JWT for CLI clients)
// ==========================
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	token, exp, err := middleware.IssueToken(h.Secret, user.ID, h.TokenTTL, time.Now())
	if err != nil {
		logging.LogError(r.Context(), nil, "issue token", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

// authenticate decodes credentials and checks them, writing the error response on failure.
func (h *AuthHandler) authenticate(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	var input credentials
	if err := decodeJSON(r, &input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return nil, false
	}

	user, err := h.Accounts.Authenticate(r.Context(), input.Username, input.Password)
	if err != nil {
		switch auth.ErrorCode(err) {
		case auth.CodeUserNotFound, auth.CodeInvalidCredentials:
			// Same answer for both so usernames cannot be probed.
			JSONError(w, "invalid username or password", http.StatusUnauthorized)
		default:
			writeServiceError(w, r, "login failed", err)
		}
		return nil, false
	}
	return user, true
}

// ==========================
// Me
// ==========================
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	user, err := h.Accounts.CurrentUser(r.Context(), userID)
	if err != nil {
		if auth.ErrorCode(err) == auth.CodeUserNotFound {
			JSONError(w, "login required", http.StatusUnauthorized)
			return
		}
		writeServiceError(w, r, "load current user", err)
		return
	}
	JSONOK(w, "", user)
}

// ==========================
// Logout
// ==========================
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(middleware.SessionCookie); err == nil && c.Value != "" {
		if err := h.Sessions.Delete(r.Context(), c.Value); err != nil && !errors.Is(err, session.ErrNotFound) {
			logging.LogError(r.Context(), nil, "delete session", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	JSONOK(w, "logged out", nil)
}
