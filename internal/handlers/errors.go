package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/crucial707/mydiary/internal/auth"
	"github.com/crucial707/mydiary/internal/logging"
)

// ErrMessageInternal is the generic message for 500 responses. Do not expose internal details to clients.
const ErrMessageInternal = "internal server error"

// APIResponse is the envelope for account endpoints and all errors.
type APIResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

var validate = validator.New()

// JSONError sends {"success":false,"message":...}.
func JSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, APIResponse{Success: false, Message: message})
}

// JSONValidationError sends an error response with optional "fields" for field-level details.
// status is typically http.StatusBadRequest (400).
func JSONValidationError(w http.ResponseWriter, message string, fields map[string]string, status int) {
	writeJSON(w, status, APIResponse{Success: false, Message: message, Fields: fields})
}

// JSONOK sends {"success":true,"message":...,"data":...} with 200.
func JSONOK(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: message, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an auth error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case auth.CodeValidation, auth.CodePasswordPolicy,
		auth.CodeResetTokenInvalid, auth.CodeResetTokenUsed, auth.CodeResetTokenExpired:
		return http.StatusBadRequest
	case auth.CodeDuplicateUsername, auth.CodeDuplicateEmail:
		return http.StatusConflict
	case auth.CodeUserNotFound, auth.CodeInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError answers with the status for err's code. Client errors
// carry the service message verbatim; anything else is logged and masked.
func writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(auth.ErrorCode(err))
	if status == http.StatusInternalServerError {
		logging.LogError(r.Context(), nil, msg, err)
		JSONError(w, ErrMessageInternal, status)
		return
	}
	JSONError(w, err.Error(), status)
}

// validationFields flattens validator errors to json field -> failed rule.
func validationFields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[lowerFirst(fe.Field())] = rule
	}
	return fields
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
