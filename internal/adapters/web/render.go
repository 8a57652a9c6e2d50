package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	webui "github.com/arunteja30/poultry-tracker/web"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PageData is the payload every page template receives. Data carries the
// page-specific view model.
type PageData struct {
	Title     string
	ActiveNav string
	FarmName  string
	Username  string
	Role      string
	Flash     string
	FlashKind string
	Data      any
}

// CanWrite reports whether the page's user may submit mutating forms.
func (d PageData) CanWrite() bool {
	return d.Role == "admin" || d.Role == "manager"
}

// IsAdmin reports whether the page's user is an admin.
func (d PageData) IsAdmin() bool {
	return d.Role == "admin"
}

// Renderer holds one parsed template set per page. Each set is the shared
// base layout plus that page's content blocks, so page-level block names
// never collide across files.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses all embedded page templates against the base layout.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"date": func(t time.Time) string {
			return t.Format("02 Jan 2006")
		},
		"dateptr": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"isodate": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"money": func(d decimal.Decimal) string {
			return d.StringFixed(2)
		},
		"num1": func(f float64) string {
			return strconv.FormatFloat(f, 'f', 1, 64)
		},
		"num2": func(f float64) string {
			return strconv.FormatFloat(f, 'f', 2, 64)
		},
		"avgWeight": func(weightKg float64, birds int) float64 {
			if birds == 0 {
				return 0
			}
			return weightKg / float64(birds)
		},
	}

	pageFiles, err := fs.Glob(webui.Templates, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob page templates: %w", err)
	}
	if len(pageFiles) == 0 {
		return nil, fmt.Errorf("no page templates found in embedded FS")
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, pf := range pageFiles {
		name := strings.TrimSuffix(path.Base(pf), ".html")
		t, err := template.New(name).Funcs(funcMap).ParseFS(webui.Templates,
			"templates/layouts/base.html", pf)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", pf, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages}, nil
}

// Render executes the named page into a buffer first so a template error
// mid-render cannot leave a half-written response.
func (rd *Renderer) Render(w io.Writer, page string, data PageData) error {
	t, ok := rd.pages[page]
	if !ok {
		return fmt.Errorf("unknown page template %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("failed to render page %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// renderPage writes the page as HTML, logging render failures.
func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, page string, data PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Render(w, page, data); err != nil {
		h.logger.Error("page render failed",
			zap.String("page", page),
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.Error(err))
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// flashRedirect sends a 303 to target with the flash message carried in
// query parameters, the classic post/redirect/get shape.
func flashRedirect(w http.ResponseWriter, r *http.Request, target, message, kind string) {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	http.Redirect(w, r, target+sep+"flash="+url.QueryEscape(message)+"&kind="+url.QueryEscape(kind), http.StatusSeeOther)
}
