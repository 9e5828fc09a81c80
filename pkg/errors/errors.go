// Package errors defines the application error taxonomy.
//
// Matching itself never fails hard: a bad candidate scores 0.0 and a
// missed threshold is an empty result, not an error. Errors exist for
// the edges: invalid configuration, storage failures, and the
// recoverable duplicate-attachment condition that batch processing
// reports without aborting.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryMatching      ErrorCategory = "matching"
	CategoryAttachment    ErrorCategory = "attachment"
	CategoryStorage       ErrorCategory = "storage"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Validation errors
	CodeMissingField  ErrorCode = "missing_field"
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidData   ErrorCode = "invalid_data"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Matching errors
	CodeMatchingFailed  ErrorCode = "matching_failed"
	CodeProcessingError ErrorCode = "processing_error"

	// Attachment errors
	CodeDuplicateAttachment ErrorCode = "duplicate_attachment"
	CodeAttachmentNotFound  ErrorCode = "attachment_not_found"

	// Storage errors
	CodeDocumentNotFound    ErrorCode = "document_not_found"
	CodeTransactionNotFound ErrorCode = "transaction_not_found"
	CodeStorageUnavailable  ErrorCode = "storage_unavailable"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// MatcherError is the base error type for all application errors
type MatcherError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *MatcherError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *MatcherError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *MatcherError) GetExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryConfiguration:
		return 3
	case CategoryMatching, CategoryAttachment:
		return 4
	case CategoryStorage:
		return 5
	case CategoryInternal:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *MatcherError) WithContext(key string, value interface{}) *MatcherError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *MatcherError) WithSuggestion(suggestion string) *MatcherError {
	e.Suggestion = suggestion
	return e
}

// New creates a new MatcherError
func New(category ErrorCategory, code ErrorCode, message string) *MatcherError {
	return &MatcherError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with MatcherError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *MatcherError {
	if err == nil {
		return nil
	}

	return &MatcherError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *MatcherError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "ensure amounts are valid decimal numbers (e.g., '12.34')"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	result := newOrWrap(err, CategoryValidation, code, message)

	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error. Violations
// from the matching configuration validation pass are attached as
// context so callers can present them individually.
func ConfigurationError(code ErrorCode, setting string, violations []string) *MatcherError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %d violation(s)", setting, len(violations))
		suggestion = "correct the listed violations or fall back to the default configuration"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	result := New(CategoryConfiguration, code, message)

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("violations", violations)
}

// MatchingError creates a matching-related error
func MatchingError(code ErrorCode, operation string, err error) *MatcherError {
	var message string
	var suggestion string

	switch code {
	case CodeMatchingFailed:
		message = fmt.Sprintf("matching failed during %s", operation)
		suggestion = "try adjusting matching tolerances or check data quality"
	case CodeProcessingError:
		message = fmt.Sprintf("processing error during %s", operation)
		suggestion = "check the input data and try again"
	default:
		message = fmt.Sprintf("matching error during %s", operation)
		suggestion = "review the data and configuration"
	}

	result := newOrWrap(err, CategoryMatching, code, message)

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// DuplicateAttachmentError reports an attempt to attach an
// already-attached (transaction, document) pair. This is a recoverable
// condition: batch processing records it and moves on.
func DuplicateAttachmentError(transactionID, documentID string) *MatcherError {
	return New(CategoryAttachment, CodeDuplicateAttachment,
		fmt.Sprintf("document %s is already attached to transaction %s", documentID, transactionID)).
		WithSuggestion("remove the existing attachment first if it should be replaced").
		WithContext("transaction_id", transactionID).
		WithContext("document_id", documentID)
}

// StorageError creates a storage-related error
func StorageError(code ErrorCode, entity string, err error) *MatcherError {
	var message string
	var suggestion string

	switch code {
	case CodeDocumentNotFound:
		message = fmt.Sprintf("document not found: %s", entity)
		suggestion = "check the document ID"
	case CodeTransactionNotFound:
		message = fmt.Sprintf("transaction not found: %s", entity)
		suggestion = "check the transaction ID"
	case CodeStorageUnavailable:
		message = fmt.Sprintf("storage unavailable during %s", entity)
		suggestion = "check the database file and permissions"
	default:
		message = fmt.Sprintf("storage error: %s", entity)
		suggestion = "check the storage backend and try again"
	}

	result := newOrWrap(err, CategoryStorage, code, message)

	return result.WithSuggestion(suggestion).WithContext("entity", entity)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *MatcherError {
	result := newOrWrap(err, CategoryInternal, CodeUnexpectedError,
		fmt.Sprintf("unexpected error during %s", operation))

	return result.
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

func newOrWrap(err error, category ErrorCategory, code ErrorCode, message string) *MatcherError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// Utility functions

// AsMatcherError extracts a MatcherError from an error chain
func AsMatcherError(err error) (*MatcherError, bool) {
	var matcherErr *MatcherError
	if errors.As(err, &matcherErr) {
		return matcherErr, true
	}
	return nil, false
}

// IsDuplicateAttachment reports whether the error chain contains the
// duplicate-attachment condition.
func IsDuplicateAttachment(err error) bool {
	matcherErr, ok := AsMatcherError(err)
	return ok && matcherErr.Code == CodeDuplicateAttachment
}

// IsNotFound reports whether the error chain contains a not-found
// storage condition.
func IsNotFound(err error) bool {
	matcherErr, ok := AsMatcherError(err)
	if !ok {
		return false
	}
	return matcherErr.Code == CodeDocumentNotFound ||
		matcherErr.Code == CodeTransactionNotFound ||
		matcherErr.Code == CodeAttachmentNotFound
}

// ErrorSummary provides a summary of multiple non-fatal errors
// collected during a batch run.
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*MatcherError       `json:"errors"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*MatcherError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}
