package domain

import (
	"path"
	"strings"
	"time"

	"github.com/docker/go-units"
)

// Document is an uploaded file filed under a category.
type Document struct {
	// ID is the unique identifier for the document (auto-generated).
	ID int64 `json:"id"`

	// Title is displayed in listings and searched by Search.
	Title string `json:"title"`

	// Description is optional free text, also searched.
	Description string `json:"description"`

	// StoredFilename is the collision-resolved name of the blob in the file store.
	// It differs from the name the uploader supplied.
	StoredFilename string `json:"stored_filename"`

	// CategoryID references the owning category.
	CategoryID int64 `json:"category_id"`

	// CategoryName is filled by read queries; it is not persisted.
	CategoryName string `json:"category_name,omitempty"`

	// AddedAt is the timestamp when the document was uploaded.
	AddedAt time.Time `json:"added_at"`

	// ModifiedAt is refreshed on every edit.
	ModifiedAt time.Time `json:"modified_at"`

	// SizeBytes is the stored file size when it could be determined.
	SizeBytes *int64 `json:"size_bytes"`

	// ViewCount counts detail views. It never decreases.
	ViewCount int64 `json:"view_count"`
}

// NewDocument creates a new Document with default values.
func NewDocument(title, description, storedFilename string, categoryID int64, size *int64) *Document {
	now := time.Now().UTC()
	return &Document{
		Title:          title,
		Description:    description,
		StoredFilename: storedFilename,
		CategoryID:     categoryID,
		AddedAt:        now,
		ModifiedAt:     now,
		SizeBytes:      size,
	}
}

// Extension returns the lower-cased extension of the stored file, dot included.
func (d *Document) Extension() string {
	return strings.ToLower(path.Ext(d.StoredFilename))
}

// HumanSize returns the file size in a readable form, or "unknown".
func (d *Document) HumanSize() string {
	if d.SizeBytes == nil {
		return "unknown"
	}
	return units.HumanSize(float64(*d.SizeBytes))
}
