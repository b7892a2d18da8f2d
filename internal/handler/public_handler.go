package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/service"
)

// SortOption is one entry of the sort selector.
type SortOption struct {
	Value    string
	Label    string
	Selected bool
}

var sortLabels = []struct {
	value domain.SortOrder
	label string
}{
	{domain.SortDateDesc, "Newest first"},
	{domain.SortDateAsc, "Oldest first"},
	{domain.SortTitleAsc, "Title A-Z"},
	{domain.SortTitleDesc, "Title Z-A"},
	{domain.SortViewsDesc, "Most viewed"},
}

func sortOptions(current string) []SortOption {
	if current == "" {
		current = string(domain.DefaultSortOrder)
	}
	opts := make([]SortOption, 0, len(sortLabels))
	for _, s := range sortLabels {
		opts = append(opts, SortOption{
			Value:    string(s.value),
			Label:    s.label,
			Selected: string(s.value) == current,
		})
	}
	return opts
}

// Pager links to the neighbouring pages of a listing.
type Pager struct {
	Page      int
	PageCount int
	Total     int64
	PrevURL   string
	NextURL   string
}

// newPager builds links by rewriting the page parameter of base.
func newPager[T any](p domain.Page[T], base *url.URL) Pager {
	link := func(page int) string {
		q := base.Query()
		q.Set("page", strconv.Itoa(page))
		u := *base
		u.RawQuery = q.Encode()
		return u.RequestURI()
	}

	pager := Pager{Page: p.Page, PageCount: p.PageCount, Total: p.TotalCount}
	if p.HasPrev() {
		pager.PrevURL = link(p.Page - 1)
	}
	if p.HasNext() {
		pager.NextURL = link(p.Page + 1)
	}
	return pager
}

// =============================================================================
// Home
// =============================================================================

// HomePageData contains the landing page data.
type HomePageData struct {
	Home *service.HomeView
}

// Home handles GET /.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	home, err := h.catalog.Home(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pageHome, "Home", HomePageData{Home: home})
}

// =============================================================================
// Categories and documents
// =============================================================================

// CategoryPageData contains a category listing.
type CategoryPageData struct {
	Category  *domain.Category
	Documents []domain.Document
	Sort      []SortOption
	SortKey   string
	Pager     Pager
}

// ShowCategory handles GET /categories/{id}.
func (h *Handler) ShowCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	q := r.URL.Query()
	sortKey := q.Get("sort")
	page, _ := strconv.Atoi(q.Get("page"))

	category, result, err := h.catalog.ListByCategory(r.Context(), id, sortKey, page, 0)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, pageCategory, category.Name, CategoryPageData{
		Category:  category,
		Documents: result.Items,
		Sort:      sortOptions(sortKey),
		SortKey:   sortKey,
		Pager:     newPager(result, r.URL),
	})
}

// DocumentPageData contains a document with related documents.
type DocumentPageData struct {
	Detail *service.DocumentDetail
}

// ShowDocument handles GET /documents/{id}. Each visit counts as a view.
func (h *Handler) ShowDocument(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if err := h.catalog.RecordView(r.Context(), id); err != nil {
		h.renderError(w, r, err)
		return
	}

	detail, err := h.catalog.GetDocument(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, pageDocument, detail.Document.Title, DocumentPageData{Detail: detail})
}

// =============================================================================
// Search
// =============================================================================

// SearchPageData contains search criteria and results.
type SearchPageData struct {
	Term       string
	CategoryID int64
	From       string
	To         string
	Categories []domain.Category
	Results    []domain.Document
	Sort       []SortOption
	Pager      Pager
}

// Search handles GET /search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))

	query := domain.SearchQuery{
		Term: strings.TrimSpace(q.Get("q")),
		From: q.Get("from"),
		To:   q.Get("to"),
		Sort: q.Get("sort"),
		Page: page,
	}
	categoryID := formInt(q.Get("category"))
	if categoryID > 0 {
		query.CategoryID = &categoryID
	}

	if query.Empty() {
		h.addFlash(w, r, flashWarning, "Enter at least one search criterion.")
		h.redirect(w, r, "/")
		return
	}

	result, err := h.catalog.Search(r.Context(), query)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, pageSearch, "Search", SearchPageData{
		Term:       query.Term,
		CategoryID: categoryID,
		From:       query.From,
		To:         query.To,
		Categories: categories,
		Results:    result.Items,
		Sort:       sortOptions(query.Sort),
		Pager:      newPager(result, r.URL),
	})
}

// =============================================================================
// Download
// =============================================================================

// Download handles GET /uploads/{filename}. A missing file sends the visitor
// back home with a message.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	rc, err := h.catalog.OpenFile(r.Context(), name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.addFlash(w, r, flashError, "The requested file does not exist.")
			h.redirect(w, r, "/")
			return
		}
		h.renderError(w, r, err)
		return
	}
	defer rc.Close()

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn().Err(err).Str("stored_filename", name).Msg("download interrupted")
	}
}
