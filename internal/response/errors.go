package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "LOGIN_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "LOGIN_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam engine ───────────────────────────────────────────────────
	ErrWindowNotOpen     ErrCode = "SESSION_NOT_OPEN"
	ErrWindowClosed      ErrCode = "SESSION_CLOSED"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrAttemptLocked     ErrCode = "ATTEMPT_LOCKED"
	ErrProctorConflict   ErrCode = "PROCTOR_DOUBLE_BOOKED"
	ErrQuestionShortfall ErrCode = "QUESTION_POOL_SHORTFALL"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your login has been invalidated. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."
	case ErrForbidden:
		return "You are not allowed to perform this action."
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid identifier format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "The requested change conflicts with the current state."
	case ErrWindowNotOpen:
		return "The exam session has not opened yet."
	case ErrWindowClosed:
		return "The exam session window has closed."
	case ErrAlreadySubmitted:
		return "This attempt has already been submitted."
	case ErrAttemptLocked:
		return "This attempt has been locked by a proctor."
	case ErrProctorConflict:
		return "The proctor is already assigned to an overlapping session."
	case ErrQuestionShortfall:
		return "The question pool cannot satisfy the requested count."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
