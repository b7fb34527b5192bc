package response

// ErrCode identifies an API failure. Clients branch on it, never on the message.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrAccountInactive    ErrCode = "ACCOUNT_INACTIVE"
	ErrWrongPassword      ErrCode = "WRONG_PASSWORD"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound      ErrCode = "NOT_FOUND"
	ErrAlreadyExists ErrCode = "ALREADY_EXISTS"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrExamNotFound            ErrCode = "EXAM_NOT_FOUND"
	ErrExamNotAvailable        ErrCode = "EXAM_NOT_AVAILABLE"
	ErrNotAssigned             ErrCode = "NOT_ASSIGNED"
	ErrNotExamOwner            ErrCode = "NOT_EXAM_OWNER"
	ErrAttemptNotFound         ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAttemptAlreadySubmitted ErrCode = "ATTEMPT_ALREADY_SUBMITTED"
	ErrSubmissionFailed        ErrCode = "SUBMISSION_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

var messages = map[ErrCode]string{
	ErrInvalidCredentials: "Invalid email or password.",
	ErrAccountInactive:    "Account is inactive.",
	ErrWrongPassword:      "Current password is incorrect.",
	ErrSessionInvalidated: "Your session has ended. Please log in again.",
	ErrTokenRequired:      "Authentication token is required.",
	ErrTokenInvalid:       "Authentication token is invalid.",
	ErrTokenExpired:       "Authentication token has expired.",

	ErrForbidden:         "You do not have permission to access this resource.",
	ErrPermissionDenied:  "Permission denied.",
	ErrStudentAccessOnly: "This resource is restricted to students.",
	ErrAdminAccessOnly:   "This resource is restricted to administrators.",

	ErrValidation:     "Validation failed. Please check your input.",
	ErrInvalidID:      "Invalid ID format.",
	ErrInvalidPayload: "Invalid request payload.",

	ErrNotFound:      "Resource not found.",
	ErrAlreadyExists: "Resource already exists.",

	ErrExamNotFound:            "Exam not found.",
	ErrExamNotAvailable:        "This exam is not currently available.",
	ErrNotAssigned:             "You are not assigned to this exam. Please contact your administrator.",
	ErrNotExamOwner:            "You do not own this exam.",
	ErrAttemptNotFound:         "Attempt not found.",
	ErrAttemptAlreadySubmitted: "You have already submitted this exam.",
	ErrSubmissionFailed:        "Failed to submit exam, please try again.",

	ErrRateLimitExceeded: "Too many requests. Please try again later.",
	ErrInternal:          "Internal server error.",
}

const fallbackMessage = "An unexpected error occurred."

// GetMessage returns the client-facing text for code.
func GetMessage(code ErrCode) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return fallbackMessage
}
