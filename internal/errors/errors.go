package errors

import (
	stderrors "errors"
	"fmt"
)

// GalleryError is the structured error type for gallerysearch.
// It carries enough context for logging, CLI rendering and errors.Is matching.
type GalleryError struct {
	// Code is the unique error code (e.g., "ERR_205_CORRUPT_INDEX").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Index, Catalog, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the caller can retry the operation.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// ErrInvalidArgument matches any error carrying ErrCodeInvalidInput.
var ErrInvalidArgument = &GalleryError{Code: ErrCodeInvalidInput, Message: "invalid argument"}

// ErrCorruptIndex matches any error carrying ErrCodeCorruptIndex.
var ErrCorruptIndex = &GalleryError{Code: ErrCodeCorruptIndex, Message: "corrupt index"}

// Error implements the error interface.
func (e *GalleryError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GalleryError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *GalleryError) Is(target error) bool {
	if t, ok := target.(*GalleryError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *GalleryError) WithDetail(key, value string) *GalleryError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *GalleryError) WithSuggestion(suggestion string) *GalleryError {
	e.Suggestion = suggestion
	return e
}

// New creates a new GalleryError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *GalleryError {
	return &GalleryError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a GalleryError from an existing error.
// The error's message becomes the GalleryError message.
func Wrap(code string, err error) *GalleryError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *GalleryError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *GalleryError {
	return New(ErrCodeInvalidInput, message, cause)
}

// CorruptIndexError creates a fatal index integrity error.
func CorruptIndexError(message string, cause error) *GalleryError {
	return New(ErrCodeCorruptIndex, message, cause).
		WithSuggestion("Rebuild the search index")
}

// CatalogError creates a catalog lookup error.
func CatalogError(message string, cause error) *GalleryError {
	return New(ErrCodeCatalogQuery, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *GalleryError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first GalleryError in err's chain.
func As(err error) (*GalleryError, bool) {
	var ge *GalleryError
	if stderrors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if ge, ok := As(err); ok {
		return ge.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current operation.
func IsFatal(err error) bool {
	if ge, ok := As(err); ok {
		return ge.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a GalleryError.
// Returns empty string if err carries none.
func GetCode(err error) string {
	if ge, ok := As(err); ok {
		return ge.Code
	}
	return ""
}

// GetCategory extracts the category from a GalleryError.
func GetCategory(err error) Category {
	if ge, ok := As(err); ok {
		return ge.Category
	}
	return ""
}
