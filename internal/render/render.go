// Package render turns bookstore data into HTML fragments for the page
// document. Fragments are produced with html/template so every server-supplied
// string is escaped for its context.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"bookstore-web/internal/core/model"
	"bookstore-web/internal/ui"
	"bookstore-web/pkg/util"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type Options struct {
	PageSize         int
	DateLayout       string // review and order dates
	PlaceholderImage string
	Currency         string
}

func (o Options) withDefaults() Options {
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.DateLayout == "" {
		o.DateLayout = "02.01.2006"
	}
	if o.PlaceholderImage == "" {
		o.PlaceholderImage = "https://via.placeholder.com/300x400"
	}
	return o
}

// Renderer holds the parsed templates. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
	opts Options
}

func New(opts Options) (*Renderer, error) {
	opts = opts.withDefaults()
	funcs := template.FuncMap{
		"stars":   Stars,
		"istars":  func(n int) StarDisplay { return Stars(float64(n)) },
		"stock":   StockLevel,
		"rating":  func(r float64) string { return fmt.Sprintf("%.1f", r) },
		"money":   func(d decimal.Decimal) string { return formatMoney(d, opts.Currency) },
		"date":    func(t time.Time) string { return t.Format(opts.DateLayout) },
		"percent": func(p float64) string { return fmt.Sprintf("%.0f%%", p) },
		"image": func(p *string) string {
			if src := util.Deref(p, ""); src != "" {
				return src
			}
			return opts.PlaceholderImage
		},
	}
	t, err := template.New("_root").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: t, opts: opts}, nil
}

func formatMoney(d decimal.Decimal, currency string) string {
	if currency == "" {
		return d.StringFixed(2)
	}
	return d.StringFixed(2) + " " + currency
}

func (r *Renderer) fragment(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// Message kinds rendered into the catalog grid or a panel body.
type MessageKind string

const (
	MsgLoading        MessageKind = "loading"
	MsgNothingFound   MessageKind = "nothing_found"
	MsgLoadFailed     MessageKind = "load_failed"
	MsgFavoritesEmpty MessageKind = "favorites_empty"
	MsgFavoritesLogin MessageKind = "favorites_login"
	MsgCartLogin      MessageKind = "cart_login"
	MsgCartEmpty      MessageKind = "cart_empty"
	MsgOrdersEmpty    MessageKind = "orders_empty"
)

// Message renders a canned state message. detail is shown when non-empty.
func (r *Renderer) Message(kind MessageKind, detail string) template.HTML {
	html, err := r.fragment("message", struct {
		Kind   MessageKind
		Detail string
	}{kind, detail})
	if err != nil {
		return template.HTML(template.HTMLEscapeString(string(kind)))
	}
	return html
}

// Page writes the full page for a document view.
func (r *Renderer) Page(w io.Writer, page PageData) error {
	return r.tmpl.ExecuteTemplate(w, "base", page)
}

// PageData is what the page layout needs besides the document itself.
type PageData struct {
	View     ui.View
	User     *model.User
	Search   string
	Ordering string
}

//go:embed assets
var assetFS embed.FS

// Assets holds the stylesheet the page links under /assets/.
func Assets() fs.FS {
	sub, err := fs.Sub(assetFS, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}
