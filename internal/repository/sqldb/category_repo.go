package sqldb

import (
	"context"
	"fmt"

	"github.com/ErnestDikoum/basedocumentaire/internal/database"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository"
)

// categoryRepository implements repository.CategoryRepository.
type categoryRepository struct {
	db *database.DB
}

// NewCategoryRepository creates a new category repository.
func NewCategoryRepository(db *database.DB) repository.CategoryRepository {
	return &categoryRepository{db: db}
}

// Create creates a new category.
func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	query := `
		INSERT INTO categories (name, description, created_at)
		VALUES (?, ?, ?)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		category.Name,
		category.Description,
		database.FormatTime(category.CreatedAt),
	).Scan(&category.ID)

	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrCategoryExists, "a category with this name already exists", category.Name)
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// GetByID retrieves a category by ID.
func (r *categoryRepository) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	query := `
		SELECT id, name, description, created_at
		FROM categories
		WHERE id = ?
	`

	category, err := scanCategory(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category by ID: %w", err)
	}

	return category, nil
}

// GetByName retrieves a category by name.
func (r *categoryRepository) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	query := `
		SELECT id, name, description, created_at
		FROM categories
		WHERE name = ?
	`

	category, err := scanCategory(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category by name: %w", err)
	}

	return category, nil
}

// Update updates an existing category.
func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) error {
	query := `
		UPDATE categories
		SET name = ?, description = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, category.Name, category.Description, category.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrCategoryExists, "a category with this name already exists", category.Name)
		}
		return fmt.Errorf("failed to update category: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrCategoryNotFound
	}

	return nil
}

// Delete deletes a category by ID.
func (r *categoryRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrCategoryNotFound
	}

	return nil
}

// List returns all categories ordered by name, with their document counts.
func (r *categoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	query := `
		SELECT c.id, c.name, c.description, c.created_at, COUNT(d.id)
		FROM categories c
		LEFT JOIN documents d ON d.category_id = c.id
		GROUP BY c.id, c.name, c.description, c.created_at
		ORDER BY c.name ASC, c.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var category domain.Category
		var createdAt string
		if err := rows.Scan(&category.ID, &category.Name, &category.Description, &createdAt, &category.DocumentCount); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		if category.CreatedAt, err = database.ParseTime(createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at for category %d: %w", category.ID, err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// Count returns the number of categories.
func (r *categoryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count categories: %w", err)
	}
	return count, nil
}

// DeleteAll removes every category.
func (r *categoryRepository) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete categories: %w", err)
	}
	return result.RowsAffected()
}

func scanCategory(row rowScanner) (*domain.Category, error) {
	category := &domain.Category{}
	var createdAt string

	if err := row.Scan(&category.ID, &category.Name, &category.Description, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if category.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at for category %d: %w", category.ID, err)
	}

	return category, nil
}
