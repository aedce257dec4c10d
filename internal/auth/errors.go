package auth

import "github.com/samber/oops"

// Error codes carried by Service errors. Handlers map them to HTTP statuses.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeDuplicateUsername  = "AUTH_DUPLICATE_USERNAME"
	CodeDuplicateEmail     = "AUTH_DUPLICATE_EMAIL"
	CodeUserNotFound       = "AUTH_USER_NOT_FOUND"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeResetTokenInvalid  = "AUTH_RESET_TOKEN_INVALID"
	CodeResetTokenUsed     = "AUTH_RESET_TOKEN_USED"
	CodeResetTokenExpired  = "AUTH_RESET_TOKEN_EXPIRED"
	CodePasswordPolicy     = "AUTH_PASSWORD_POLICY"
	CodeInternal           = "AUTH_INTERNAL"
)

// ErrorCode returns the oops code attached to err, or "" if there is none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}

func internal(operation string, err error) error {
	return oops.Code(CodeInternal).With("operation", operation).Wrap(err)
}
