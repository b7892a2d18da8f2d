package domain

import (
	"strings"
	"time"
)

// Category groups documents. A category owns its documents: deleting it
// deletes them and their stored files.
type Category struct {
	// ID is the unique identifier for the category (auto-generated).
	ID int64 `json:"id"`

	// Name is unique among categories and never empty.
	Name string `json:"name"`

	// Description is optional free text.
	Description string `json:"description"`

	// CreatedAt is the timestamp when the category was created.
	CreatedAt time.Time `json:"created_at"`

	// DocumentCount is filled by list queries; it is not persisted.
	DocumentCount int64 `json:"document_count"`
}

// NewCategory creates a new Category with a trimmed name and description.
func NewCategory(name, description string) *Category {
	return &Category{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now().UTC(),
	}
}
