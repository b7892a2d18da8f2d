package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ErnestDikoum/basedocumentaire/internal/auth"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/filestore"
	"github.com/ErnestDikoum/basedocumentaire/internal/metrics"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository"
)

// CatalogService manages categories and documents and keeps the file store in
// step with the database.
type CatalogService struct {
	repos    *repository.Repositories
	store    filestore.Store
	settings *SettingService
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	config   CatalogConfig
}

// CatalogConfig contains listing and dashboard settings.
type CatalogConfig struct {
	DefaultPageSize int
	MaxPageSize     int

	// RecentWindow is how far back Stats counts recent documents.
	RecentWindow time.Duration

	TopViewedLimit  int
	LatestLimit     int
	HomeLatestLimit int
	RelatedLimit    int
}

// DefaultCatalogConfig returns sensible defaults.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		DefaultPageSize: 10,
		MaxPageSize:     100,
		RecentWindow:    7 * 24 * time.Hour,
		TopViewedLimit:  5,
		LatestLimit:     10,
		HomeLatestLimit: 8,
		RelatedLimit:    5,
	}
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(
	repos *repository.Repositories,
	store filestore.Store,
	settings *SettingService,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config CatalogConfig,
) *CatalogService {
	return &CatalogService{
		repos:    repos,
		store:    store,
		settings: settings,
		metrics:  m,
		logger:   logger.With().Str("service", "catalog").Logger(),
		config:   config,
	}
}

// =============================================================================
// Categories
// =============================================================================

// CategoryInput contains the editable fields of a category.
type CategoryInput struct {
	Name        string
	Description string
}

// AddCategory creates a category with a unique, non-empty name.
func (s *CatalogService) AddCategory(ctx context.Context, p auth.Principal, input CategoryInput) (*domain.Category, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}

	category := domain.NewCategory(input.Name, input.Description)
	if category.Name == "" {
		return nil, domain.ErrCategoryNameRequired
	}

	if err := s.repos.Category.Create(ctx, category); err != nil {
		if !errors.Is(err, domain.ErrDuplicateName) {
			s.logger.Error().Err(err).Str("name", category.Name).Msg("failed to create category")
		}
		return nil, domain.StorageError(err, "failed to create category")
	}

	s.logger.Info().
		Int64("category_id", category.ID).
		Str("name", category.Name).
		Str("by", p.Username).
		Msg("category created")

	return category, nil
}

// EditCategory renames a category and replaces its description.
func (s *CatalogService) EditCategory(ctx context.Context, p auth.Principal, id int64, input CategoryInput) (*domain.Category, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}

	category, err := s.repos.Category.GetByID(ctx, id)
	if err != nil {
		return nil, domain.StorageError(err, "failed to get category")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.ErrCategoryNameRequired
	}

	category.Name = name
	category.Description = strings.TrimSpace(input.Description)

	if err := s.repos.Category.Update(ctx, category); err != nil {
		if !errors.Is(err, domain.ErrDuplicateName) {
			s.logger.Error().Err(err).Int64("category_id", id).Msg("failed to update category")
		}
		return nil, domain.StorageError(err, "failed to update category")
	}

	s.logger.Info().Int64("category_id", id).Str("name", name).Msg("category updated")
	return category, nil
}

// DeleteCategory removes a category with all of its documents, then their files.
// Rows are removed in one transaction before any file is touched, so a
// failure leaves at worst an orphaned file.
func (s *CatalogService) DeleteCategory(ctx context.Context, p auth.Principal, id int64) error {
	if err := auth.RequireAdmin(p); err != nil {
		return err
	}

	category, err := s.repos.Category.GetByID(ctx, id)
	if err != nil {
		return domain.StorageError(err, "failed to get category")
	}

	var storedNames []string
	err = s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		docs, err := s.repos.Document.ListByCategoryID(ctx, id)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			storedNames = append(storedNames, doc.StoredFilename)
		}

		if _, err := s.repos.Document.DeleteByCategoryID(ctx, id); err != nil {
			return err
		}
		return s.repos.Category.Delete(ctx, id)
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("category_id", id).Msg("failed to delete category")
		return domain.StorageError(err, "failed to delete category")
	}

	s.removeBlobs(ctx, storedNames)

	s.logger.Info().
		Int64("category_id", id).
		Str("name", category.Name).
		Int("documents", len(storedNames)).
		Msg("category deleted")

	return nil
}

// Categories returns every category ordered by name, with document counts.
func (s *CatalogService) Categories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.repos.Category.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list categories")
		return nil, domain.StorageError(err, "failed to list categories")
	}
	return categories, nil
}

// GetCategory returns one category.
func (s *CatalogService) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	category, err := s.repos.Category.GetByID(ctx, id)
	if err != nil {
		return nil, domain.StorageError(err, "failed to get category")
	}
	return category, nil
}

// =============================================================================
// Documents
// =============================================================================

// UploadFile is one submitted file.
type UploadFile struct {
	// Name is the filename supplied by the client.
	Name    string
	Content io.Reader
}

// AddDocumentsInput contains an upload batch.
type AddDocumentsInput struct {
	Title       string
	Description string
	CategoryID  int64
	Files       []UploadFile
}

// AddDocumentsResult reports how a batch was handled.
type AddDocumentsResult struct {
	Succeeded int
	Rejected  int
	Documents []domain.Document
}

// AddDocuments stores every accepted file and creates one document per file.
// Files with a disallowed extension are skipped and counted. When more than
// one file is submitted each title gets " - <stored filename>" appended.
// All rows are inserted in one transaction; if it fails, the files already
// written by this batch are removed.
func (s *CatalogService) AddDocuments(ctx context.Context, p auth.Principal, input AddDocumentsInput) (*AddDocumentsResult, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domain.ErrTitleRequired
	}
	if input.CategoryID <= 0 {
		return nil, ErrCategoryRequired
	}

	files := make([]UploadFile, 0, len(input.Files))
	for _, f := range input.Files {
		if f.Name != "" && f.Content != nil {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, domain.ErrNoFiles
	}

	if _, err := s.repos.Category.GetByID(ctx, input.CategoryID); err != nil {
		return nil, domain.StorageError(err, "failed to get category")
	}

	result := &AddDocumentsResult{}
	description := strings.TrimSpace(input.Description)
	var written []string
	var docs []*domain.Document

	for _, f := range files {
		if !s.store.Allowed(f.Name) {
			s.logger.Warn().Str("filename", f.Name).Msg("rejected file extension")
			result.Rejected++
			continue
		}

		storedName, err := s.store.Put(ctx, f.Name, f.Content)
		if err != nil {
			if errors.Is(err, domain.ErrRejectedFileType) {
				result.Rejected++
				continue
			}
			s.logger.Error().Err(err).Str("filename", f.Name).Msg("failed to store file")
			s.removeBlobs(ctx, written)
			return nil, domain.StorageError(err, "failed to store file")
		}
		written = append(written, storedName)

		docTitle := title
		if len(files) > 1 {
			docTitle = title + " - " + storedName
		}
		docs = append(docs, domain.NewDocument(docTitle, description, storedName, input.CategoryID, s.sizeOf(ctx, storedName)))
	}

	if len(docs) > 0 {
		err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
			for _, doc := range docs {
				if err := s.repos.Document.Create(ctx, doc); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Error().Err(err).Int("files", len(written)).Msg("failed to create documents")
			s.removeBlobs(ctx, written)
			return nil, domain.StorageError(err, "failed to create documents")
		}
	}

	for _, doc := range docs {
		result.Documents = append(result.Documents, *doc)
	}
	result.Succeeded = len(docs)

	s.metrics.DocumentsUploaded(result.Succeeded)
	s.metrics.DocumentsRejected(result.Rejected)

	s.logger.Info().
		Int64("category_id", input.CategoryID).
		Int("succeeded", result.Succeeded).
		Int("rejected", result.Rejected).
		Str("by", p.Username).
		Msg("documents added")

	return result, nil
}

// EditDocumentInput contains the editable fields of a document. File is
// optional and replaces the stored file when set.
type EditDocumentInput struct {
	Title       string
	Description string
	CategoryID  int64
	File        *UploadFile
}

// EditDocument updates a document. A replacement file is written before the
// row is updated and the previous file is removed afterwards.
func (s *CatalogService) EditDocument(ctx context.Context, p auth.Principal, id int64, input EditDocumentInput) (*domain.Document, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}

	doc, err := s.repos.Document.GetByID(ctx, id)
	if err != nil {
		return nil, domain.StorageError(err, "failed to get document")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domain.ErrTitleRequired
	}

	category, err := s.repos.Category.GetByID(ctx, input.CategoryID)
	if err != nil {
		return nil, domain.StorageError(err, "failed to get category")
	}

	var newName string
	if input.File != nil && input.File.Name != "" {
		if !s.store.Allowed(input.File.Name) {
			return nil, domain.NewDomainError(domain.ErrRejectedFileType, "extension not allowed", input.File.Name)
		}
		newName, err = s.store.Put(ctx, input.File.Name, input.File.Content)
		if err != nil {
			s.logger.Error().Err(err).Int64("document_id", id).Msg("failed to store replacement file")
			return nil, domain.StorageError(err, "failed to store file")
		}
	}

	oldName := doc.StoredFilename
	doc.Title = title
	doc.Description = strings.TrimSpace(input.Description)
	doc.CategoryID = category.ID
	doc.CategoryName = category.Name
	doc.ModifiedAt = time.Now().UTC()
	if newName != "" {
		doc.StoredFilename = newName
		doc.SizeBytes = s.sizeOf(ctx, newName)
	}

	if err := s.repos.Document.Update(ctx, doc); err != nil {
		s.logger.Error().Err(err).Int64("document_id", id).Msg("failed to update document")
		if newName != "" {
			s.removeBlobs(ctx, []string{newName})
		}
		return nil, domain.StorageError(err, "failed to update document")
	}

	if newName != "" {
		s.removeBlobs(ctx, []string{oldName})
	}

	s.logger.Info().
		Int64("document_id", id).
		Bool("file_replaced", newName != "").
		Msg("document updated")

	return doc, nil
}

// DeleteDocument removes a document row, then its file.
func (s *CatalogService) DeleteDocument(ctx context.Context, p auth.Principal, id int64) error {
	if err := auth.RequireAdmin(p); err != nil {
		return err
	}

	doc, err := s.repos.Document.GetByID(ctx, id)
	if err != nil {
		return domain.StorageError(err, "failed to get document")
	}

	if err := s.repos.Document.Delete(ctx, id); err != nil {
		s.logger.Error().Err(err).Int64("document_id", id).Msg("failed to delete document")
		return domain.StorageError(err, "failed to delete document")
	}

	s.removeBlobs(ctx, []string{doc.StoredFilename})

	s.logger.Info().Int64("document_id", id).Str("title", doc.Title).Msg("document deleted")
	return nil
}

// RecordView adds one to the view counter of a document.
func (s *CatalogService) RecordView(ctx context.Context, id int64) error {
	if err := s.repos.Document.IncrementViews(ctx, id); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error().Err(err).Int64("document_id", id).Msg("failed to record view")
		}
		return domain.StorageError(err, "failed to record view")
	}

	s.metrics.DocumentViewed()
	return nil
}

// DocumentDetail is a document together with related documents.
type DocumentDetail struct {
	Document domain.Document
	Related  []domain.Document
}

// GetDocument returns a document and up to RelatedLimit documents from the
// same category, newest first.
func (s *CatalogService) GetDocument(ctx context.Context, id int64) (*DocumentDetail, error) {
	doc, err := s.repos.Document.GetByID(ctx, id)
	if err != nil {
		return nil, domain.StorageError(err, "failed to get document")
	}

	related, err := s.repos.Document.Related(ctx, doc, s.config.RelatedLimit)
	if err != nil {
		s.logger.Error().Err(err).Int64("document_id", id).Msg("failed to list related documents")
		return nil, domain.StorageError(err, "failed to list related documents")
	}

	return &DocumentDetail{Document: *doc, Related: related}, nil
}

// OpenFile opens a stored file for download.
func (s *CatalogService) OpenFile(ctx context.Context, storedName string) (io.ReadCloser, error) {
	rc, err := s.store.Open(ctx, storedName)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error().Err(err).Str("stored_filename", storedName).Msg("failed to open file")
		}
		return nil, domain.StorageError(err, "failed to open file")
	}
	return rc, nil
}

// =============================================================================
// Listing and search
// =============================================================================

// Search returns one page of documents whose title or description contains
// the term, optionally restricted to a category and an added-date range.
// A page past the end is empty rather than an error.
func (s *CatalogService) Search(ctx context.Context, query domain.SearchQuery) (domain.Page[domain.Document], error) {
	sort, err := domain.ParseSortOrder(query.Sort)
	if err != nil {
		return domain.Page[domain.Document]{}, err
	}

	added, err := domain.ParseDateRange(query.From, query.To)
	if err != nil {
		return domain.Page[domain.Document]{}, err
	}

	filter := domain.DocumentFilter{
		Term:       strings.TrimSpace(query.Term),
		CategoryID: query.CategoryID,
		Added:      added,
		Sort:       sort,
	}

	return s.page(ctx, filter, query.Page, query.PageSize)
}

// ListByCategory returns one page of the documents of a category.
func (s *CatalogService) ListByCategory(ctx context.Context, categoryID int64, sortKey string, page, pageSize int) (*domain.Category, domain.Page[domain.Document], error) {
	sort, err := domain.ParseSortOrder(sortKey)
	if err != nil {
		return nil, domain.Page[domain.Document]{}, err
	}

	category, err := s.repos.Category.GetByID(ctx, categoryID)
	if err != nil {
		return nil, domain.Page[domain.Document]{}, domain.StorageError(err, "failed to get category")
	}

	filter := domain.DocumentFilter{CategoryID: &category.ID, Sort: sort}
	result, err := s.page(ctx, filter, page, pageSize)
	if err != nil {
		return nil, domain.Page[domain.Document]{}, err
	}

	return category, result, nil
}

func (s *CatalogService) page(ctx context.Context, filter domain.DocumentFilter, page, pageSize int) (domain.Page[domain.Document], error) {
	req := domain.PageRequest{Page: page, PageSize: pageSize}
	req.Normalize(s.config.DefaultPageSize, s.config.MaxPageSize)

	items, total, err := s.repos.Document.Search(ctx, filter, req)
	if err != nil {
		s.logger.Error().Err(err).Str("term", filter.Term).Msg("failed to search documents")
		return domain.Page[domain.Document]{}, domain.StorageError(err, "failed to search documents")
	}

	return domain.NewPage(items, total, req), nil
}

// HomeView holds what the landing page shows.
type HomeView struct {
	Categories      []domain.Category
	Latest          []domain.Document
	TotalDocuments  int64
	TotalCategories int64
}

// Home returns categories with counts, the latest documents and totals.
func (s *CatalogService) Home(ctx context.Context) (*HomeView, error) {
	categories, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}

	latest, err := s.repos.Document.Latest(ctx, s.config.HomeLatestLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list latest documents")
		return nil, domain.StorageError(err, "failed to list latest documents")
	}

	total, err := s.repos.Document.Count(ctx)
	if err != nil {
		return nil, domain.StorageError(err, "failed to count documents")
	}

	return &HomeView{
		Categories:      categories,
		Latest:          latest,
		TotalDocuments:  total,
		TotalCategories: int64(len(categories)),
	}, nil
}

// Stats returns the dashboard figures.
func (s *CatalogService) Stats(ctx context.Context) (*domain.Stats, error) {
	var stats domain.Stats
	var err error

	if stats.TotalCategories, err = s.repos.Category.Count(ctx); err != nil {
		return nil, domain.StorageError(err, "failed to count categories")
	}
	if stats.TotalDocuments, err = s.repos.Document.Count(ctx); err != nil {
		return nil, domain.StorageError(err, "failed to count documents")
	}
	if stats.TotalUsers, err = s.repos.User.Count(ctx); err != nil {
		return nil, domain.StorageError(err, "failed to count users")
	}

	since := time.Now().UTC().Add(-s.config.RecentWindow)
	if stats.RecentDocuments, err = s.repos.Document.CountAddedSince(ctx, since); err != nil {
		return nil, domain.StorageError(err, "failed to count recent documents")
	}
	if stats.TopViewed, err = s.repos.Document.TopViewed(ctx, s.config.TopViewedLimit); err != nil {
		return nil, domain.StorageError(err, "failed to list most viewed documents")
	}
	if stats.Latest, err = s.repos.Document.Latest(ctx, s.config.LatestLimit); err != nil {
		return nil, domain.StorageError(err, "failed to list latest documents")
	}

	return &stats, nil
}

// =============================================================================
// Reset
// =============================================================================

// ResetResult reports what a catalog reset removed.
type ResetResult struct {
	Documents    int
	Categories   int64
	Settings     int64
	FilesRemoved int
}

// ResetCatalog deletes every document, category and setting, then every
// stored file. Users are kept. confirmation must equal ResetConfirmation.
func (s *CatalogService) ResetCatalog(ctx context.Context, p auth.Principal, confirmation string) (*ResetResult, error) {
	if err := auth.RequireAdmin(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(confirmation) != ResetConfirmation {
		return nil, ErrConfirmationRequired
	}

	result := &ResetResult{}
	var storedNames []string
	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if storedNames, err = s.repos.Document.DeleteAll(ctx); err != nil {
			return err
		}
		if result.Categories, err = s.repos.Category.DeleteAll(ctx); err != nil {
			return err
		}
		result.Settings, err = s.repos.Setting.DeleteAll(ctx)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to reset catalog")
		return nil, domain.StorageError(err, "failed to reset catalog")
	}
	result.Documents = len(storedNames)

	if s.settings != nil {
		s.settings.Invalidate(ctx)
	}

	// Files not referenced by any row go too.
	blobs, err := s.store.List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list stored files, removing referenced files only")
		result.FilesRemoved = s.removeBlobs(ctx, storedNames)
	} else {
		names := make([]string, 0, len(blobs))
		for _, b := range blobs {
			names = append(names, b.Name)
		}
		result.FilesRemoved = s.removeBlobs(ctx, names)
	}

	s.logger.Warn().
		Int("documents", result.Documents).
		Int64("categories", result.Categories).
		Int64("settings", result.Settings).
		Int("files", result.FilesRemoved).
		Str("by", p.Username).
		Msg("catalog reset")

	return result, nil
}

// =============================================================================
// Helpers
// =============================================================================

// removeBlobs deletes files best-effort and returns how many were removed.
// Failures are logged and counted, never returned.
func (s *CatalogService) removeBlobs(ctx context.Context, names []string) int {
	removed := 0
	for _, name := range names {
		deleted, err := s.store.Delete(ctx, name)
		if err != nil {
			s.metrics.BlobCleanupFailed()
			s.logger.Warn().Err(err).Str("stored_filename", name).Msg("failed to remove file")
			continue
		}
		if deleted {
			removed++
		}
	}
	return removed
}

// sizeOf returns the stored size, or nil when it cannot be determined.
func (s *CatalogService) sizeOf(ctx context.Context, name string) *int64 {
	size, err := s.store.SizeOf(ctx, name)
	if err != nil {
		s.logger.Warn().Err(err).Str("stored_filename", name).Msg("failed to read file size")
		return nil
	}
	return size
}
