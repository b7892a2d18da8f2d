// Package domain contains the core business entities for Base Documentaire.
package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the catalog matches exactly one of these
// with errors.Is, so callers can map failures without inspecting messages.
var (
	// ErrInvalidInput indicates an empty required field or a malformed value.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName indicates a unique name is already taken.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrRejectedFileType indicates the file extension is not in the allow-list.
	ErrRejectedFileType = errors.New("file type not allowed")

	// ErrStorageFailure indicates the database or the blob store failed.
	ErrStorageFailure = errors.New("storage failure")

	// ErrUnauthorized indicates the caller lacks the required privileges.
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	// ===========================================
	// Category Errors
	// ===========================================

	// ErrCategoryNotFound indicates the requested category does not exist.
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)

	// ErrCategoryNameRequired indicates the category name is empty after trimming.
	ErrCategoryNameRequired = fmt.Errorf("%w: category name is required", ErrInvalidInput)

	// ErrCategoryExists indicates a category with the same name exists.
	ErrCategoryExists = fmt.Errorf("category %w", ErrDuplicateName)

	// ===========================================
	// Document Errors
	// ===========================================

	// ErrDocumentNotFound indicates the requested document does not exist.
	ErrDocumentNotFound = fmt.Errorf("document %w", ErrNotFound)

	// ErrTitleRequired indicates the document title is empty after trimming.
	ErrTitleRequired = fmt.Errorf("%w: title is required", ErrInvalidInput)

	// ErrNoFiles indicates an upload batch without any file.
	ErrNoFiles = fmt.Errorf("%w: no file selected", ErrInvalidInput)

	// ErrInvalidDate indicates a date filter that is not YYYY-MM-DD.
	ErrInvalidDate = fmt.Errorf("%w: date must be formatted as YYYY-MM-DD", ErrInvalidInput)

	// ErrInvalidSort indicates an unknown sort key.
	ErrInvalidSort = fmt.Errorf("%w: unknown sort order", ErrInvalidInput)

	// ===========================================
	// Blob Errors
	// ===========================================

	// ErrBlobNotFound indicates the stored file does not exist.
	ErrBlobNotFound = fmt.Errorf("file %w", ErrNotFound)

	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrUserAlreadyExists indicates a user with the same username/email exists.
	ErrUserAlreadyExists = fmt.Errorf("user %w", ErrDuplicateName)

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)

	// ErrCannotDeleteSelf indicates an administrator tried to delete their own account.
	ErrCannotDeleteSelf = fmt.Errorf("%w: you cannot delete your own account", ErrInvalidInput)

	// ===========================================
	// Session Errors
	// ===========================================

	// ErrSessionNotFound indicates the session token is unknown or expired.
	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., category name, filename).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// StorageError wraps an infrastructure failure as ErrStorageFailure while keeping
// the cause in the message. Domain errors pass through unchanged.
func StorageError(err error, message string) error {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	for _, kind := range []error{ErrInvalidInput, ErrNotFound, ErrDuplicateName, ErrRejectedFileType, ErrStorageFailure, ErrUnauthorized} {
		if errors.Is(err, kind) {
			return err
		}
	}

	return &DomainError{
		Err:     ErrStorageFailure,
		Message: fmt.Sprintf("%s: %v", message, err),
	}
}

// Reason returns a short human-readable explanation for err, suitable for
// showing to a user.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStorageFailure):
		return "An internal error occurred, nothing was changed."
	default:
		return err.Error()
	}
}
