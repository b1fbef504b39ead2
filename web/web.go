// Package web holds the page templates and static assets of the shop.
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/shopfront/pkg/models"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static returns the embedded static tree rooted at static/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Templates parses every page template. When dir is set the templates are
// read from disk instead of the embedded copy.
func Templates(dir string, funcs template.FuncMap) (*template.Template, error) {
	t := template.New("").Funcs(funcs)
	if dir != "" {
		return t.ParseGlob(filepath.Join(dir, "*.html"))
	}
	return t.ParseFS(templateFS, "templates/*.html")
}

// Funcs are the helpers available to every template. uploadPrefix is the
// URL prefix uploaded product images are stored under.
func Funcs(uploadPrefix string) template.FuncMap {
	uploadPrefix = strings.Trim(uploadPrefix, "/")
	return template.FuncMap{
		"money": func(d decimal.Decimal) string {
			return d.StringFixed(2)
		},
		"image": func(ref string) string {
			if uploadPrefix != "" && strings.HasPrefix(ref, uploadPrefix+"/") {
				return "/" + ref
			}
			return path.Join("/static", ref)
		},
		"date": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
		"statusLabel": func(s models.OrderStatus) string {
			if s == "" {
				return ""
			}
			return strings.ToUpper(string(s[:1])) + string(s[1:])
		},
		"statuses": func() []models.OrderStatus {
			return models.OrderStatuses
		},
		"deref": func(id *uint) uint {
			if id == nil {
				return 0
			}
			return *id
		},
	}
}
