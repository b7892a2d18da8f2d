// Package sqldb implements the repository interfaces over database/sql.
// The same queries serve SQLite and PostgreSQL: placeholders are written as ?
// and rebound by database.DB, and timestamps are stored as fixed-width text.
package sqldb

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ErnestDikoum/basedocumentaire/internal/database"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository"
)

// NewRepositories creates every repository over db.
func NewRepositories(db *database.DB) *repository.Repositories {
	return &repository.Repositories{
		Category: NewCategoryRepository(db),
		Document: NewDocumentRepository(db),
		User:     NewUserRepository(db),
		Setting:  NewSettingRepository(db),
		Tx:       db,
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const documentColumns = `
	d.id, d.title, d.description, d.stored_filename, d.category_id, c.name,
	d.added_at, d.modified_at, d.size_bytes, d.view_count
`

const documentFrom = `
	FROM documents d
	JOIN categories c ON c.id = d.category_id
`

func scanDocument(row rowScanner) (*domain.Document, error) {
	doc := &domain.Document{}
	var addedAt, modifiedAt string
	var size sql.NullInt64

	if err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Description,
		&doc.StoredFilename,
		&doc.CategoryID,
		&doc.CategoryName,
		&addedAt,
		&modifiedAt,
		&size,
		&doc.ViewCount,
	); err != nil {
		return nil, err
	}

	var err error
	if doc.AddedAt, err = database.ParseTime(addedAt); err != nil {
		return nil, fmt.Errorf("invalid added_at for document %d: %w", doc.ID, err)
	}
	if doc.ModifiedAt, err = database.ParseTime(modifiedAt); err != nil {
		return nil, fmt.Errorf("invalid modified_at for document %d: %w", doc.ID, err)
	}
	if size.Valid {
		v := size.Int64
		doc.SizeBytes = &v
	}

	return doc, nil
}

func scanDocuments(rows *sql.Rows) ([]domain.Document, error) {
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere. Case folding is
// left to SQL so the pattern and the column go through the same function.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// orderBy maps a sort order to its ORDER BY clause. Every clause ends with the
// id tie-break so pagination is deterministic.
func orderBy(db *database.DB, sort domain.SortOrder) string {
	switch sort {
	case domain.SortDateAsc:
		return "d.added_at ASC, d.id ASC"
	case domain.SortTitleAsc:
		return db.Lower("d.title") + " ASC, d.id ASC"
	case domain.SortTitleDesc:
		return db.Lower("d.title") + " DESC, d.id ASC"
	case domain.SortViewsDesc:
		return "d.view_count DESC, d.id ASC"
	default:
		return "d.added_at DESC, d.id ASC"
	}
}
