package internal

import (
	"fmt"
	"strings"
)

// ErrorType represents different types of errors
type ErrorType int

const (
	ErrInvalidURL ErrorType = iota
	ErrAuthRequired
	ErrRateLimit
	ErrNetworkTimeout
	ErrEntityNotFound
	ErrInvalidResponse
	ErrMissingMedia
	ErrDownloadFailed
	ErrPermissionDenied
	ErrLedgerFailed
	ErrDiskSpace
)

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// DouyinError represents a platform-specific error with detailed information
type DouyinError struct {
	Code       int                    `json:"status_code"`
	Message    string                 `json:"message"`
	Type       ErrorType              `json:"type"`
	Severity   ErrorSeverity          `json:"severity"`
	URL        string                 `json:"url,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	RetryAfter int                    `json:"retry_after,omitempty"` // seconds
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *DouyinError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("douyin error (code: %d, type: %s)", e.Code, e.Type.String()))

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, " - ")
}

// DetailedError returns a detailed error message with all available information
func (e *DouyinError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s] %s Error", e.Severity.String(), e.Type.String()))

	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("Code: %d", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, fmt.Sprintf("Message: %s", e.Message))
	}

	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("URL: %s", redactSensitiveURL(e.URL)))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("\nSuggestion: %s", e.Suggestion))
	}

	if e.RetryAfter > 0 {
		parts = append(parts, fmt.Sprintf("Retry after: %d seconds", e.RetryAfter))
	}

	return strings.Join(parts, "\n")
}

// String returns the string representation of ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrInvalidURL:
		return "InvalidURL"
	case ErrAuthRequired:
		return "AuthRequired"
	case ErrRateLimit:
		return "RateLimit"
	case ErrNetworkTimeout:
		return "NetworkTimeout"
	case ErrEntityNotFound:
		return "EntityNotFound"
	case ErrInvalidResponse:
		return "InvalidResponse"
	case ErrMissingMedia:
		return "MissingMedia"
	case ErrDownloadFailed:
		return "DownloadFailed"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrLedgerFailed:
		return "LedgerFailed"
	case ErrDiskSpace:
		return "DiskSpace"
	default:
		return "Unknown"
	}
}

// String returns the string representation of ErrorSeverity
func (es ErrorSeverity) String() string {
	switch es {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// NewDouyinError creates a new DouyinError with detailed information
func NewDouyinError(code int, message string, errorType ErrorType) *DouyinError {
	err := &DouyinError{
		Code:     code,
		Message:  message,
		Type:     errorType,
		Severity: SeverityError,
		Context:  make(map[string]interface{}),
	}

	err.Suggestion = getDefaultSuggestion(errorType, code)
	err.Severity = getDefaultSeverity(errorType)

	return err
}

// WithSuggestion adds a custom suggestion to the error
func (e *DouyinError) WithSuggestion(suggestion string) *DouyinError {
	e.Suggestion = suggestion
	return e
}

// WithURL adds URL context to the error (will be redacted in logs)
func (e *DouyinError) WithURL(url string) *DouyinError {
	e.URL = url
	return e
}

// WithRetryAfter sets the retry delay for rate limit errors
func (e *DouyinError) WithRetryAfter(seconds int) *DouyinError {
	e.RetryAfter = seconds
	return e
}

// WithContext adds context information to the error
func (e *DouyinError) WithContext(key string, value interface{}) *DouyinError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable returns true if the error is transient and worth retrying
func (e *DouyinError) IsRetryable() bool {
	switch e.Type {
	case ErrNetworkTimeout, ErrRateLimit:
		return true
	case ErrInvalidResponse:
		// Some invalid responses might be temporary
		return e.Code >= 500
	default:
		return false
	}
}

// IsCritical returns true if the error is critical and should stop execution
func (e *DouyinError) IsCritical() bool {
	return e.Severity == SeverityCritical
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field      string                 `json:"field"`
	Message    string                 `json:"message"`
	Value      interface{}            `json:"value,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := []string{fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("Suggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, " - ")
}

// DetailedError returns a detailed validation error message
func (e *ValidationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Validation Error for field '%s'", e.Field))
	parts = append(parts, fmt.Sprintf("Message: %s", e.Message))

	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("Provided value: %v", e.Value))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("Context: %s", strings.Join(contextParts, ", ")))
	}

	if e.Suggestion != "" {
		parts = append(parts, fmt.Sprintf("\nSuggestion: %s", e.Suggestion))
	}

	return strings.Join(parts, "\n")
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewValidationErrorWithValue creates a ValidationError with the invalid value
func NewValidationErrorWithValue(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Context: make(map[string]interface{}),
	}
}

// WithSuggestion adds a suggestion to the validation error
func (e *ValidationError) WithSuggestion(suggestion string) *ValidationError {
	e.Suggestion = suggestion
	return e
}

// WithContext adds context to the validation error
func (e *ValidationError) WithContext(key string, value interface{}) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// getDefaultSuggestion returns a default suggestion based on error type and code
func getDefaultSuggestion(errorType ErrorType, code int) string {
	switch errorType {
	case ErrInvalidURL:
		return "Please provide a valid douyin URL (e.g., https://www.douyin.com/video/... or a v.douyin.com share link)"
	case ErrAuthRequired:
		return "Please provide valid cookies using --cookies flag or DYFETCH_COOKIES environment variable"
	case ErrRateLimit:
		return "Please wait before retrying. Consider raising --interval to slow down requests"
	case ErrNetworkTimeout:
		return "Check your internet connection and try again. Consider using a proxy if needed"
	case ErrEntityNotFound:
		return "Verify the user/mix/music still exists and the link is not private"
	case ErrInvalidResponse:
		if code >= 500 {
			return "Server error occurred. Please try again later"
		}
		return "Invalid response from the platform. The web API might have changed or the cookies are stale"
	case ErrMissingMedia:
		return "The item has no usable media reference. It may be a live room or a removed post"
	case ErrDownloadFailed:
		return "Download failed. Check available disk space and network connection"
	case ErrPermissionDenied:
		return "Permission denied. Check file/directory permissions"
	case ErrLedgerFailed:
		return "Download ledger operation failed. Check the database file is writable, or disable it with --no-database"
	case ErrDiskSpace:
		return "Insufficient disk space. Free up space or choose a different output directory"
	default:
		return "Please check the error details and try again"
	}
}

// getDefaultSeverity returns the default severity for an error type
func getDefaultSeverity(errorType ErrorType) ErrorSeverity {
	switch errorType {
	case ErrRateLimit, ErrNetworkTimeout:
		return SeverityWarning
	case ErrInvalidURL, ErrAuthRequired, ErrEntityNotFound, ErrMissingMedia:
		return SeverityError
	case ErrPermissionDenied, ErrDiskSpace:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// redactSensitiveURL redacts sensitive information from URLs
func redactSensitiveURL(url string) string {
	// Query strings carry msToken and signing parameters
	if strings.Contains(url, "?") {
		parts := strings.Split(url, "?")
		return parts[0] + "?[REDACTED]"
	}
	return url
}

// Common error constructors for frequently used errors

// NewInvalidURLError creates an error for invalid URLs
func NewInvalidURLError(url string, reason string) *DouyinError {
	return NewDouyinError(400, fmt.Sprintf("Invalid URL: %s", reason), ErrInvalidURL).
		WithURL(url)
}

// NewAuthRequiredError creates an error for authentication requirements
func NewAuthRequiredError(message string) *DouyinError {
	return NewDouyinError(401, message, ErrAuthRequired)
}

// NewRateLimitError creates an error for rate limiting
func NewRateLimitError(retryAfter int) *DouyinError {
	return NewDouyinError(429, "Rate limit exceeded", ErrRateLimit).
		WithRetryAfter(retryAfter).
		WithSuggestion(fmt.Sprintf("Please wait %d seconds before retrying", retryAfter))
}

// NewNetworkTimeoutError creates an error for network timeouts
func NewNetworkTimeoutError(operation string) *DouyinError {
	return NewDouyinError(408, fmt.Sprintf("Network timeout during %s", operation), ErrNetworkTimeout)
}

// NewEntityNotFoundError creates an error for failed user/mix/music lookups
func NewEntityNotFoundError(kind, id string) *DouyinError {
	return NewDouyinError(404, fmt.Sprintf("%s not found: %s", kind, id), ErrEntityNotFound).
		WithContext(kind+"_id", id)
}

// NewMissingMediaError creates an error for items without a usable primary media reference
func NewMissingMediaError(itemID string) *DouyinError {
	return NewDouyinError(422, "Item has no usable media reference", ErrMissingMedia).
		WithContext("item_id", itemID)
}

// NewLedgerError creates an error for failed ledger operations
func NewLedgerError(operation string, cause error) *DouyinError {
	return NewDouyinError(500, fmt.Sprintf("Ledger %s failed: %v", operation, cause), ErrLedgerFailed).
		WithContext("operation", operation)
}
