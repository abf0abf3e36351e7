// Package web holds the embedded page templates and static assets of the
// dashboard and renders them for gin.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin/render"

	"github.com/noah-isme/clinic-dashboard/internal/models"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static/*
var staticFiles embed.FS

// Pages lists every renderable page. Each is parsed together with the layout.
var Pages = []string{
	"signin",
	"dashboard",
	"analysis_detail",
	"analysis_create",
	"profile",
	"users",
	"user_create",
	"error",
}

// Static returns the embedded static assets with the static folder as root.
func Static() (fs.FS, error) {
	return fs.Sub(staticFiles, "static")
}

// Renderer implements gin's HTMLRender over one template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the layout with each page.
func NewRenderer() (*Renderer, error) {
	pages := make(map[string]*template.Template, len(Pages))
	for _, name := range Pages {
		tmpl, err := template.New(name).Funcs(Funcs()).ParseFS(templateFiles,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Instance returns the render for page name.
func (r *Renderer) Instance(name string, data interface{}) render.Render {
	tmpl, ok := r.pages[name]
	if !ok {
		tmpl = r.pages["error"]
		data = map[string]interface{}{"Title": "Not found", "Error": "unknown page " + name}
	}
	return render.HTML{Template: tmpl, Name: "layout", Data: data}
}

// Funcs returns the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"date":       formatDate,
		"percent":    func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "%" },
		"pageURL":    PageURL,
		"stateLabel": func(s models.AnalysisState) string { return s.Label() },
		"stateClass": func(s models.AnalysisState) string { return "state-" + string(s) },
		"deref":      deref,
		"first":      func(p models.Pagination, n int) int { return p.FirstIndex(n) },
		"last":       func(p models.Pagination, n int) int { return p.LastIndex(n) },
	}
}

// PageURL builds the link of page on a list route, keeping the search term.
func PageURL(route string, page int, search string) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if s := strings.TrimSpace(search); s != "" {
		q.Set("search", s)
	}
	return route + "?" + q.Encode()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("02 Jan 2006 15:04")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
