package sqldb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ErnestDikoum/basedocumentaire/internal/database"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository"
)

// documentRepository implements repository.DocumentRepository.
type documentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *database.DB) repository.DocumentRepository {
	return &documentRepository{db: db}
}

// Create creates a new document.
func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (title, description, stored_filename, category_id, added_at, modified_at, size_bytes, view_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		doc.Title,
		doc.Description,
		doc.StoredFilename,
		doc.CategoryID,
		database.FormatTime(doc.AddedAt),
		database.FormatTime(doc.ModifiedAt),
		nullInt64(doc.SizeBytes),
		doc.ViewCount,
	).Scan(&doc.ID)

	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return domain.ErrCategoryNotFound
		}
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document by ID.
func (r *documentRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + documentFrom + ` WHERE d.id = ?`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document by ID: %w", err)
	}

	return doc, nil
}

// Update updates an existing document.
func (r *documentRepository) Update(ctx context.Context, doc *domain.Document) error {
	query := `
		UPDATE documents
		SET title = ?, description = ?, stored_filename = ?, category_id = ?, modified_at = ?, size_bytes = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		doc.Title,
		doc.Description,
		doc.StoredFilename,
		doc.CategoryID,
		database.FormatTime(doc.ModifiedAt),
		nullInt64(doc.SizeBytes),
		doc.ID,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return domain.ErrCategoryNotFound
		}
		return fmt.Errorf("failed to update document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}

	return nil
}

// Delete deletes a document by ID.
func (r *documentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}

	return nil
}

// IncrementViews adds one to the view counter in a single statement.
func (r *documentRepository) IncrementViews(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE documents SET view_count = view_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to record view: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrDocumentNotFound
	}

	return nil
}

// Search returns one page of matching documents and the total count.
func (r *documentRepository) Search(ctx context.Context, filter domain.DocumentFilter, page domain.PageRequest) ([]domain.Document, int64, error) {
	where, args := buildFilter(r.db, filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM documents d` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	if page.PastEnd(total) {
		return []domain.Document{}, total, nil
	}

	query := `SELECT ` + documentColumns + documentFrom + where +
		` ORDER BY ` + orderBy(r.db, filter.Sort) + ` LIMIT ? OFFSET ?`
	args = append(args, page.PageSize, page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search documents: %w", err)
	}

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// buildFilter renders the WHERE clause for a document filter.
func buildFilter(db *database.DB, filter domain.DocumentFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if term := strings.TrimSpace(filter.Term); term != "" {
		pattern := containsPattern(term)
		like := ` LIKE ` + db.Lower("?") + ` ESCAPE '\'`
		conds = append(conds, `(`+db.Lower("d.title")+like+` OR `+db.Lower("d.description")+like+`)`)
		args = append(args, pattern, pattern)
	}
	if filter.CategoryID != nil {
		conds = append(conds, `d.category_id = ?`)
		args = append(args, *filter.CategoryID)
	}
	if filter.Added.From != nil {
		conds = append(conds, `d.added_at >= ?`)
		args = append(args, database.FormatTime(*filter.Added.From))
	}
	if to := filter.Added.ToExclusive(); to != nil {
		conds = append(conds, `d.added_at < ?`)
		args = append(args, database.FormatTime(*to))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListByCategoryID returns every document of a category, newest first.
func (r *documentRepository) ListByCategoryID(ctx context.Context, categoryID int64) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + documentFrom +
		` WHERE d.category_id = ? ORDER BY d.added_at DESC, d.id ASC`

	rows, err := r.db.QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents by category: %w", err)
	}

	return scanDocuments(rows)
}

// DeleteByCategoryID deletes every document of a category.
func (r *documentRepository) DeleteByCategoryID(ctx context.Context, categoryID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE category_id = ?`, categoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents by category: %w", err)
	}
	return result.RowsAffected()
}

// Related returns documents from the same category, newest first.
func (r *documentRepository) Related(ctx context.Context, doc *domain.Document, limit int) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + documentFrom +
		` WHERE d.category_id = ? AND d.id <> ? ORDER BY d.added_at DESC, d.id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, doc.CategoryID, doc.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list related documents: %w", err)
	}

	return scanDocuments(rows)
}

// Latest returns the most recently added documents.
func (r *documentRepository) Latest(ctx context.Context, limit int) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + documentFrom +
		` ORDER BY d.added_at DESC, d.id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest documents: %w", err)
	}

	return scanDocuments(rows)
}

// TopViewed returns the most viewed documents.
func (r *documentRepository) TopViewed(ctx context.Context, limit int) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + documentFrom +
		` ORDER BY d.view_count DESC, d.id ASC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top viewed documents: %w", err)
	}

	return scanDocuments(rows)
}

// Count returns the number of documents.
func (r *documentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// CountAddedSince returns the number of documents added at or after since.
func (r *documentRepository) CountAddedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE added_at >= ?`, database.FormatTime(since)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent documents: %w", err)
	}
	return count, nil
}

// StoredFilenames returns every blob name referenced by a document.
func (r *documentRepository) StoredFilenames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT stored_filename FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored filenames: %w", err)
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan stored filename: %w", err)
		}
		names[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stored filenames: %w", err)
	}

	return names, nil
}

// DeleteAll removes every document and returns the stored filenames they referenced.
func (r *documentRepository) DeleteAll(ctx context.Context) ([]string, error) {
	names, err := r.StoredFilenames(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return nil, fmt.Errorf("failed to delete documents: %w", err)
	}

	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	return result, nil
}
