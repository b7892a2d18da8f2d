package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"time"
)

//go:embed templates/*.html templates/pages/*.html
var templateFS embed.FS

// Page templates, relative to templates/pages.
const (
	pageHome         = "home.html"
	pageCategory     = "category.html"
	pageDocument     = "document.html"
	pageSearch       = "search.html"
	pageLogin        = "login.html"
	pageAdmin        = "admin.html"
	pageEditCategory = "edit_category.html"
	pageEditDocument = "edit_document.html"
	pageError        = "error.html"
)

var pageNames = []string{
	pageHome,
	pageCategory,
	pageDocument,
	pageSearch,
	pageLogin,
	pageAdmin,
	pageEditCategory,
	pageEditDocument,
	pageError,
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02/01/2006")
	},
	"datetime": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "never"
		}
		return t.Format("02/01/2006 15:04")
	},
	"deref": func(id *int64) int64 {
		if id == nil {
			return 0
		}
		return *id
	},
}

// templateSet holds the layout cloned once per page, parsed at startup.
type templateSet struct {
	pages map[string]*template.Template
}

func newTemplateSet() (*templateSet, error) {
	layouts, err := template.New("layout").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pageSub, err := fs.Sub(templateFS, "templates/pages")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := layouts.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(pageSub, name); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}

	return &templateSet{pages: pages}, nil
}

// execute renders page inside the layout into a buffer, so a template error
// never leaves a half-written response.
func (ts *templateSet) execute(page string, data any) (*bytes.Buffer, error) {
	t, ok := ts.pages[page]
	if !ok {
		return nil, fmt.Errorf("template not found: %s", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return nil, err
	}
	return &buf, nil
}
