package render

import (
	"html/template"

	"bookstore-web/internal/core/model"
	"bookstore-web/internal/ui"
)

// Favorites answers favorite membership for card rendering.
type Favorites interface {
	Has(id int64) bool
}

type cardData struct {
	Book     model.Book
	Favorite bool
}

// Card renders one catalog tile.
func (r *Renderer) Card(b model.Book, favorite bool) (template.HTML, error) {
	return r.fragment("card", cardData{Book: b, Favorite: favorite})
}

// Cards renders the grid for books, marking members of favs.
func (r *Renderer) Cards(books []model.Book, favs Favorites) ([]ui.Card, error) {
	cards := make([]ui.Card, 0, len(books))
	for _, b := range books {
		html, err := r.Card(b, favs != nil && favs.Has(b.ID))
		if err != nil {
			return nil, err
		}
		cards = append(cards, ui.Card{BookID: b.ID, HTML: html})
	}
	return cards, nil
}

// Pagination renders the page selector, or nothing when a single page fits
// every result.
func (r *Renderer) Pagination(count, current int) (template.HTML, error) {
	p := Paginate(count, current, r.opts.PageSize)
	if !p.Visible() {
		return "", nil
	}
	return r.fragment("pagination", p)
}

// SidebarModel describes the category list and its highlighted entry.
type SidebarModel struct {
	Categories      []model.Category
	AllActive       bool
	FavoritesActive bool
	ActiveCategory  int64
}

func (r *Renderer) Sidebar(m SidebarModel) (template.HTML, error) {
	return r.fragment("sidebar", m)
}
