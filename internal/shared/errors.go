package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrValidation indicates a request rejected before any mutation was attempted.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates state changed between selection and commit.
	ErrConflict = errors.New("state changed, refresh and retry")
)

// userSafe lists errors whose message may be shown verbatim to end users.
var userSafe = []error{
	ErrNotFound,
	ErrInvalidCredentials,
	ErrValidation,
	ErrConflict,
}

// UserSafeMessage returns a message suitable for display. Unknown errors are
// masked so internal details never leak to the UI.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, safe := range userSafe {
		if errors.Is(err, safe) {
			return err.Error()
		}
	}
	return "something went wrong, please try again"
}
