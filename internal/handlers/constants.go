package handlers

const (
	ErrInvalidJSON           = "Invalid JSON body"
	ErrUnauthorized          = "Unauthorized"
	ErrForbidden             = "Forbidden"
	ErrInternalServerError   = "Internal server error"
	ErrTooManyRequests       = "Too many requests"
	ErrContentUnavailable    = "Word content is temporarily unavailable"
	ErrDuplicateRecord       = "Duplicate record"
	ErrInvalidReferenceError = "Invalid reference"

	// maxBodyBytes bounds JSON request bodies
	maxBodyBytes = 1 << 20
)
