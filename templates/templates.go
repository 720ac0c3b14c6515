package templates

import (
	"embed"
	"errors"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

//go:embed *.html
var files embed.FS

var pages = []string{"index.html", "detail.html", "results.html", "error.html"}

// Registry renders a page wrapped in base.html.
type Registry struct {
	templates map[string]*template.Template
}

func New() *Registry {
	t := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t[page] = template.Must(template.ParseFS(files, page, "base.html"))
	}
	return &Registry{templates: t}
}

func (t *Registry) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := t.templates[name]
	if !ok {
		err := errors.New("template not found: " + name)
		return err
	}

	return tmpl.ExecuteTemplate(w, "base.html", data)
}
