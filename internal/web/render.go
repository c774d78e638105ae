package web

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/rileyhilliard/nodeboard/internal/panel"
)

//go:embed templates/*.html
var templateFS embed.FS

// TimeFormat is the wall-clock format of the page's last-updated time.
const TimeFormat = "15:04:05"

var templateFuncs = template.FuncMap{
	"pct": func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
	"isDisabled": func(b panel.Body) bool {
		return b.Kind == panel.BodyDisabled
	},
	"disabledTitle": func() string { return panel.DisabledTitle },
	"noGPU":         func() string { return panel.NoGPUMessage },
}

// Renderer renders the board page and individual panel fragments.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("board").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

// PageData is the input of the page template.
type PageData struct {
	Header        panel.Header
	LastUpdated   string
	Panels        []panel.Panel
	WebsocketPath string
	RefreshPath   string
}

// Page writes the full board page.
func (r *Renderer) Page(w io.Writer, data PageData) error {
	return r.tmpl.ExecuteTemplate(w, "page", data)
}

// Panel renders one node card. The result replaces the card with the same
// id on the page.
func (r *Renderer) Panel(p panel.Panel) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "panel", p); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatUpdated renders the last-updated time, or "-" before the first cycle.
func FormatUpdated(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(TimeFormat)
}
