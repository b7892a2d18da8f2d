// Package repository defines data access interfaces for Base Documentaire.
// These interfaces abstract database operations, allowing for different implementations
// (SQLite, PostgreSQL, in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
)

// =============================================================================
// Category Repository
// =============================================================================

// CategoryRepository defines the interface for category data access.
type CategoryRepository interface {
	// Create inserts a category and sets its ID.
	// Returns domain.ErrCategoryExists on a name collision.
	Create(ctx context.Context, category *domain.Category) error

	// GetByID retrieves a category by ID.
	GetByID(ctx context.Context, id int64) (*domain.Category, error)

	// GetByName retrieves a category by exact name.
	GetByName(ctx context.Context, name string) (*domain.Category, error)

	// Update updates name and description.
	// Returns domain.ErrCategoryExists on a name collision.
	Update(ctx context.Context, category *domain.Category) error

	// Delete deletes a category row. Owned documents must be removed first.
	Delete(ctx context.Context, id int64) error

	// List returns every category ordered by name, with document counts.
	List(ctx context.Context) ([]domain.Category, error)

	// Count returns the number of categories.
	Count(ctx context.Context) (int64, error)

	// DeleteAll removes every category.
	DeleteAll(ctx context.Context) (int64, error)
}

// =============================================================================
// Document Repository
// =============================================================================

// DocumentRepository defines the interface for document data access.
type DocumentRepository interface {
	// Create inserts a document and sets its ID.
	Create(ctx context.Context, doc *domain.Document) error

	// GetByID retrieves a document by ID, including its category name.
	GetByID(ctx context.Context, id int64) (*domain.Document, error)

	// Update updates title, description, category, stored filename, size and
	// modification time.
	Update(ctx context.Context, doc *domain.Document) error

	// Delete deletes a document row.
	Delete(ctx context.Context, id int64) error

	// IncrementViews adds one to view_count.
	// Returns domain.ErrDocumentNotFound if no row matched.
	IncrementViews(ctx context.Context, id int64) error

	// Search returns one page of documents matching filter, and the total match count.
	Search(ctx context.Context, filter domain.DocumentFilter, page domain.PageRequest) ([]domain.Document, int64, error)

	// ListByCategoryID returns every document of a category.
	ListByCategoryID(ctx context.Context, categoryID int64) ([]domain.Document, error)

	// DeleteByCategoryID deletes every document of a category.
	DeleteByCategoryID(ctx context.Context, categoryID int64) (int64, error)

	// Related returns up to limit documents from the same category, newest first,
	// excluding the document itself.
	Related(ctx context.Context, doc *domain.Document, limit int) ([]domain.Document, error)

	// Latest returns the most recently added documents.
	Latest(ctx context.Context, limit int) ([]domain.Document, error)

	// TopViewed returns the most viewed documents.
	TopViewed(ctx context.Context, limit int) ([]domain.Document, error)

	// Count returns the number of documents.
	Count(ctx context.Context) (int64, error)

	// CountAddedSince returns the number of documents added at or after since.
	CountAddedSince(ctx context.Context, since time.Time) (int64, error)

	// StoredFilenames returns the set of blob names referenced by documents.
	StoredFilenames(ctx context.Context) (map[string]struct{}, error)

	// DeleteAll removes every document and returns their stored filenames.
	DeleteAll(ctx context.Context) ([]string, error)
}

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// UpdateLastLogin sets last_login_at.
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error

	// Delete deletes a user by ID.
	Delete(ctx context.Context, id int64) error

	// List returns all users ordered by username.
	List(ctx context.Context) ([]domain.User, error)

	// Count returns the number of users.
	Count(ctx context.Context) (int64, error)

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// Setting Repository
// =============================================================================

// SettingRepository defines the interface for key/value settings.
type SettingRepository interface {
	// Get returns the setting, or domain.ErrNotFound.
	Get(ctx context.Context, key string) (*domain.Setting, error)

	// Upsert creates or overwrites the setting and refreshes its modification time.
	Upsert(ctx context.Context, setting *domain.Setting) error

	// List returns all settings ordered by key.
	List(ctx context.Context) ([]domain.Setting, error)

	// DeleteAll removes every setting.
	DeleteAll(ctx context.Context) (int64, error)
}

// =============================================================================
// Transaction Support
// =============================================================================

// TxManager defines the interface for transaction management.
type TxManager interface {
	// WithTx executes the given function within a transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	// Repository calls must use the context passed to fn.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories holds all repository instances.
type Repositories struct {
	Category CategoryRepository
	Document DocumentRepository
	User     UserRepository
	Setting  SettingRepository
	Tx       TxManager
}

// DatabaseHealth is an interface for database health checks.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
