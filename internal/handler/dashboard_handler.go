package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/ErnestDikoum/basedocumentaire/internal/auth"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/service"
)

const dashboardPath = "/admin"

// =============================================================================
// Template Data Structs
// =============================================================================

// DashboardPageData contains the admin dashboard data.
type DashboardPageData struct {
	Stats             *domain.Stats
	Categories        []domain.Category
	Users             []domain.User
	ResetConfirmation string
}

// EditCategoryPageData contains the category edit form.
type EditCategoryPageData struct {
	Category *domain.Category
}

// EditDocumentPageData contains the document edit form.
type EditDocumentPageData struct {
	Document   *domain.Document
	Categories []domain.Category
}

// =============================================================================
// Dashboard
// =============================================================================

// Dashboard handles GET /admin.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.catalog.Stats(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	categories, err := h.catalog.Categories(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	users, err := h.users.List(ctx)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, pageAdmin, "Administration", DashboardPageData{
		Stats:             stats,
		Categories:        categories,
		Users:             users,
		ResetConfirmation: service.ResetConfirmation,
	})
}

// =============================================================================
// Category Handlers
// =============================================================================

// AddCategory handles POST /admin/categories.
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.catalog.AddCategory(r.Context(), auth.PrincipalFromContext(r.Context()), service.CategoryInput{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
	})
	if err != nil {
		h.fail(w, r, err, dashboardPath)
		return
	}

	h.addFlash(w, r, flashSuccess, fmt.Sprintf("Category %q added.", category.Name))
	h.redirect(w, r, dashboardPath)
}

// EditCategoryPage handles GET /admin/categories/{id}/edit.
func (h *Handler) EditCategoryPage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	category, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, pageEditCategory, "Edit category", EditCategoryPageData{Category: category})
}

// EditCategory handles POST /admin/categories/{id}/edit.
func (h *Handler) EditCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	_, err = h.catalog.EditCategory(r.Context(), auth.PrincipalFromContext(r.Context()), id, service.CategoryInput{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
	})
	if err != nil {
		h.fail(w, r, err, fmt.Sprintf("/admin/categories/%d/edit", id))
		return
	}

	h.addFlash(w, r, flashSuccess, "Category updated.")
	h.redirect(w, r, dashboardPath)
}

// DeleteCategory handles POST /admin/categories/{id}/delete.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if err := h.catalog.DeleteCategory(r.Context(), auth.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, r, err, dashboardPath)
		return
	}

	h.addFlash(w, r, flashSuccess, "Category deleted.")
	h.redirect(w, r, dashboardPath)
}

// =============================================================================
// Document Handlers
// =============================================================================

// AddDocuments handles POST /admin/documents, a multipart form with one or
// more "files" parts.
func (h *Handler) AddDocuments(w http.ResponseWriter, r *http.Request) {
	if err := parseUploadForm(r); err != nil {
		h.failForm(w, r, err)
		return
	}
	defer removeUploadForm(r)

	files, closeAll, err := openParts(uploadParts(r, "files"))
	defer closeAll()
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	result, err := h.catalog.AddDocuments(r.Context(), auth.PrincipalFromContext(r.Context()), service.AddDocumentsInput{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		CategoryID:  formInt(r.PostFormValue("category_id")),
		Files:       files,
	})
	if err != nil {
		h.fail(w, r, err, dashboardPath)
		return
	}

	if result.Succeeded > 0 {
		h.addFlash(w, r, flashSuccess, fmt.Sprintf("%d document(s) added.", result.Succeeded))
	}
	if result.Rejected > 0 {
		h.addFlash(w, r, flashWarning, fmt.Sprintf("%d file(s) rejected (extension not allowed).", result.Rejected))
	}
	h.redirect(w, r, dashboardPath)
}

// EditDocumentPage handles GET /admin/documents/{id}/edit.
func (h *Handler) EditDocumentPage(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	detail, err := h.catalog.GetDocument(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, pageEditDocument, "Edit document", EditDocumentPageData{
		Document:   &detail.Document,
		Categories: categories,
	})
}

// EditDocument handles POST /admin/documents/{id}/edit. The "file" part is
// optional and replaces the stored file.
func (h *Handler) EditDocument(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if err := parseUploadForm(r); err != nil {
		h.failForm(w, r, err)
		return
	}
	defer removeUploadForm(r)

	input := service.EditDocumentInput{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		CategoryID:  formInt(r.PostFormValue("category_id")),
	}

	files, closeAll, err := openParts(uploadParts(r, "file"))
	defer closeAll()
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if len(files) > 0 {
		input.File = &files[0]
	}

	if _, err := h.catalog.EditDocument(r.Context(), auth.PrincipalFromContext(r.Context()), id, input); err != nil {
		h.fail(w, r, err, fmt.Sprintf("/admin/documents/%d/edit", id))
		return
	}

	h.addFlash(w, r, flashSuccess, "Document updated.")
	h.redirect(w, r, dashboardPath)
}

// DeleteDocument handles POST /admin/documents/{id}/delete.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if err := h.catalog.DeleteDocument(r.Context(), auth.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, r, err, dashboardPath)
		return
	}

	h.addFlash(w, r, flashSuccess, "Document deleted.")
	h.redirect(w, r, dashboardPath)
}

// =============================================================================
// Settings, users and reset
// =============================================================================

// UpdateAnnouncement handles POST /admin/announcement.
func (h *Handler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	err := h.settings.SetAnnouncement(r.Context(), auth.PrincipalFromContext(r.Context()), r.PostFormValue("message"))
	if err != nil {
		h.fail(w, r, err, dashboardPath)
		return
	}

	h.addFlash(w, r, flashSuccess, "Announcement updated.")
	h.redirect(w, r, dashboardPath)
}

// CreateUser handles POST /admin/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Create(r.Context(), auth.PrincipalFromContext(r.Context()), service.CreateUserInput{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		IsAdmin:  r.PostFormValue("is_admin") == "on",
	})
	if err != nil {
		h.fail(w, r, err, dashboardPath)
		return
	}

	h.addFlash(w, r, flashSuccess, fmt.Sprintf("User %q created.", user.Username))
	h.redirect(w, r, dashboardPath)
}

// DeleteUser handles POST /admin/users/{id}/delete.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if err := h.users.Delete(r.Context(), auth.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, r, err, dashboardPath)
		return
	}

	h.addFlash(w, r, flashSuccess, "User deleted.")
	h.redirect(w, r, dashboardPath)
}

// ResetCatalog handles POST /admin/reset.
func (h *Handler) ResetCatalog(w http.ResponseWriter, r *http.Request) {
	result, err := h.catalog.ResetCatalog(r.Context(), auth.PrincipalFromContext(r.Context()), r.PostFormValue("confirmation"))
	if err != nil {
		h.fail(w, r, err, dashboardPath)
		return
	}

	h.addFlash(w, r, flashSuccess, fmt.Sprintf(
		"Catalog reset: %d document(s), %d categor(ies), %d file(s) removed.",
		result.Documents, result.Categories, result.FilesRemoved,
	))
	h.redirect(w, r, dashboardPath)
}

// =============================================================================
// Helper Methods
// =============================================================================

// failForm reports a multipart parse error; an oversized body gets 413.
func (h *Handler) failForm(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) == http.StatusRequestEntityTooLarge {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}
	h.renderError(w, r, domain.NewDomainError(domain.ErrInvalidInput, "invalid form data", ""))
}

// parseUploadForm parses a multipart body. A plain urlencoded form is accepted
// too and simply carries no files.
func parseUploadForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

func removeUploadForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func uploadParts(r *http.Request, field string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.File[field]
}

// openParts opens uploaded parts. closeAll is always safe to call.
func openParts(headers []*multipart.FileHeader) ([]service.UploadFile, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	files := make([]service.UploadFile, 0, len(headers))
	for i, fh := range headers {
		if fh.Filename == "" {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to open upload part %d: %w", i, err)
		}
		opened = append(opened, f)
		files = append(files, service.UploadFile{Name: fh.Filename, Content: f})
	}
	return files, closeAll, nil
}
