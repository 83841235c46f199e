package conversation

import "errors"

// Step outcome classes. Steps wrap them with detail; callers match with errors.Is.
var (
	// ErrValidation marks malformed input: wrong kind, non-digits, out-of-range selectors.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound marks a code, channel or admin that does not match any record.
	ErrNotFound = errors.New("not found")
	// ErrLookup marks a failed chat platform lookup.
	ErrLookup = errors.New("lookup failed")
	// ErrForbidden marks an action the caller's role does not allow.
	ErrForbidden = errors.New("forbidden")
)

// ErrorCode maps a step error to the err_code written to logs.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "VALIDATION"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrLookup):
		return "LOOKUP"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	}
	return "INTERNAL"
}
