package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewError(t *testing.T) {
	err := New(CategoryMatching, CodeMatchingFailed, "test message")

	if err.Category != CategoryMatching {
		t.Errorf("Expected category %s, got %s", CategoryMatching, err.Category)
	}
	if err.Code != CodeMatchingFailed {
		t.Errorf("Expected code %s, got %s", CodeMatchingFailed, err.Code)
	}
	if err.Error() != "test message" {
		t.Errorf("Expected 'test message', got %q", err.Error())
	}
	if len(err.StackTrace) == 0 {
		t.Error("Expected a stack trace")
	}
}

func TestErrorWithSuggestion(t *testing.T) {
	err := New(CategoryValidation, CodeInvalidData, "bad input").
		WithSuggestion("fix the input")

	if !strings.Contains(err.Error(), "suggestion: fix the input") {
		t.Errorf("Error string should include the suggestion, got %q", err.Error())
	}
}

func TestWrapError(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := Wrap(cause, CategoryStorage, CodeStorageUnavailable, "storage failed")

	if err.Cause != cause {
		t.Error("Wrapped error should keep the cause")
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}

	if Wrap(nil, CategoryStorage, CodeStorageUnavailable, "no-op") != nil {
		t.Error("Wrapping nil should return nil")
	}
}

func TestWithContext(t *testing.T) {
	err := New(CategoryMatching, CodeProcessingError, "test").
		WithContext("transaction_id", "TX001").
		WithContext("documents", 3)

	if err.Context["transaction_id"] != "TX001" {
		t.Errorf("Expected transaction_id context, got %v", err.Context["transaction_id"])
	}
	if err.Context["documents"] != 3 {
		t.Errorf("Expected documents context, got %v", err.Context["documents"])
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected int
	}{
		{CategoryValidation, 2},
		{CategoryConfiguration, 3},
		{CategoryMatching, 4},
		{CategoryAttachment, 4},
		{CategoryStorage, 5},
		{CategoryInternal, 6},
		{ErrorCategory("other"), 1},
	}

	for _, tt := range tests {
		err := New(tt.category, CodeUnexpectedError, "test")
		if got := err.GetExitCode(); got != tt.expected {
			t.Errorf("Exit code for %s = %d, expected %d", tt.category, got, tt.expected)
		}
	}
}

func TestValidationErrorMessages(t *testing.T) {
	err := ValidationError(CodeMissingField, "transaction_id", nil, nil)
	if !strings.Contains(err.Message, "transaction_id") {
		t.Errorf("Message should name the field, got %q", err.Message)
	}
	if err.Suggestion == "" {
		t.Error("Validation errors should carry a suggestion")
	}
	if err.Context["field"] != "transaction_id" {
		t.Error("Field should be recorded in context")
	}

	err = ValidationError(CodeInvalidAmount, "total", "abc", nil)
	if !strings.Contains(err.Message, "abc") {
		t.Errorf("Message should include the bad value, got %q", err.Message)
	}
}

func TestConfigurationErrorCarriesViolations(t *testing.T) {
	violations := []string{"amount weight must not be negative", "minimum score must be between 0 and 1"}
	err := ConfigurationError(CodeInvalidConfig, "matching", violations)

	if !strings.Contains(err.Message, "2 violation(s)") {
		t.Errorf("Message should count violations, got %q", err.Message)
	}
	recorded, ok := err.Context["violations"].([]string)
	if !ok || len(recorded) != 2 {
		t.Errorf("Violations should be attached as context, got %v", err.Context["violations"])
	}
}

func TestDuplicateAttachmentError(t *testing.T) {
	err := DuplicateAttachmentError("TX001", "DOC-1")

	if err.Category != CategoryAttachment || err.Code != CodeDuplicateAttachment {
		t.Errorf("Unexpected classification: %s/%s", err.Category, err.Code)
	}
	if !strings.Contains(err.Message, "TX001") || !strings.Contains(err.Message, "DOC-1") {
		t.Errorf("Message should name both IDs, got %q", err.Message)
	}
	if !IsDuplicateAttachment(err) {
		t.Error("IsDuplicateAttachment should recognize the error")
	}
	if IsDuplicateAttachment(fmt.Errorf("plain error")) {
		t.Error("IsDuplicateAttachment should reject plain errors")
	}
}

func TestStorageErrorMessages(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		entity   string
		expected string
	}{
		{CodeDocumentNotFound, "DOC-1", "document not found: DOC-1"},
		{CodeTransactionNotFound, "TX001", "transaction not found: TX001"},
		{CodeStorageUnavailable, "save transaction", "storage unavailable during save transaction"},
	}

	for _, tt := range tests {
		err := StorageError(tt.code, tt.entity, nil)
		if err.Message != tt.expected {
			t.Errorf("StorageError(%s) message = %q, expected %q", tt.code, err.Message, tt.expected)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	notFound := []*MatcherError{
		StorageError(CodeDocumentNotFound, "DOC-1", nil),
		StorageError(CodeTransactionNotFound, "TX001", nil),
		New(CategoryStorage, CodeAttachmentNotFound, "gone"),
	}
	for _, err := range notFound {
		if !IsNotFound(err) {
			t.Errorf("IsNotFound should recognize %s", err.Code)
		}
	}

	if IsNotFound(StorageError(CodeStorageUnavailable, "db", nil)) {
		t.Error("IsNotFound should reject unavailable-storage errors")
	}
	if IsNotFound(fmt.Errorf("plain error")) {
		t.Error("IsNotFound should reject plain errors")
	}
}

func TestAsMatcherError(t *testing.T) {
	original := New(CategoryInternal, CodeUnexpectedError, "boom")

	matcherErr, ok := AsMatcherError(original)
	if !ok || matcherErr != original {
		t.Error("AsMatcherError should return the original error")
	}

	wrapped := fmt.Errorf("outer: %w", original)
	matcherErr, ok = AsMatcherError(wrapped)
	if !ok || matcherErr != original {
		t.Error("AsMatcherError should unwrap standard wrapping")
	}

	if _, ok := AsMatcherError(fmt.Errorf("plain")); ok {
		t.Error("AsMatcherError should reject plain errors")
	}
}

func TestErrorSummary(t *testing.T) {
	errs := []*MatcherError{
		New(CategoryValidation, CodeInvalidData, "first"),
		New(CategoryValidation, CodeMissingField, "second"),
		New(CategoryStorage, CodeStorageUnavailable, "third"),
	}

	summary := NewErrorSummary(errs)
	if summary.ByCategory[CategoryValidation] != 2 {
		t.Errorf("Expected 2 validation errors, got %d", summary.ByCategory[CategoryValidation])
	}
	if summary.ByCode[CodeStorageUnavailable] != 1 {
		t.Errorf("Expected 1 storage error, got %d", summary.ByCode[CodeStorageUnavailable])
	}

	// Storage outranks validation in exit code priority
	if got := summary.GetExitCode(); got != 5 {
		t.Errorf("Expected exit code 5, got %d", got)
	}

	if summary.Error() == "" {
		t.Error("Summary should render a message")
	}
}
