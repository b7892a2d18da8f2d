// Package service provides business logic services for Base Documentaire.
package service

import (
	"fmt"

	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
)

// ResetConfirmation must be typed to confirm a catalog reset.
const ResetConfirmation = "RESET"

// Service input errors. Each matches domain.ErrInvalidInput with errors.Is.
var (
	// User errors
	ErrInvalidPassword = fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	ErrInvalidUsername = fmt.Errorf("%w: username must be 3-80 characters", domain.ErrInvalidInput)
	ErrInvalidEmail    = fmt.Errorf("%w: invalid email format", domain.ErrInvalidInput)

	// Catalog errors
	ErrCategoryRequired     = fmt.Errorf("%w: a category must be selected", domain.ErrInvalidInput)
	ErrConfirmationRequired = fmt.Errorf("%w: type %s to confirm", domain.ErrInvalidInput, ResetConfirmation)
)
