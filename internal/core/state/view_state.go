// Package state holds the per-visitor view state and the rules that keep it
// consistent with the bookstore API. It does no I/O and is not safe for
// concurrent use; the owning Storefront serializes access.
package state

import (
	"bookstore-web/internal/core/model"
)

type FilterKind int

const (
	FilterAll FilterKind = iota
	FilterFavorites
	FilterCategory
)

// Filter is the catalog filter: everything, the favorites list, or one category.
type Filter struct {
	Kind       FilterKind
	CategoryID int64
}

func (f Filter) IsFavorites() bool { return f.Kind == FilterFavorites }

// CategoryParam is the category id sent to the books endpoint, 0 for none.
func (f Filter) CategoryParam() int64 {
	if f.Kind == FilterCategory {
		return f.CategoryID
	}
	return 0
}

// Scope names an independent stream of responses guarded by a generation.
type Scope string

const (
	ScopeCatalog   Scope = "catalog"
	ScopeDetail    Scope = "detail"
	ScopeCart      Scope = "cart"
	ScopeCartCount Scope = "cart_count"
	ScopeOrders    Scope = "orders"
	ScopeUser      Scope = "user"
)

// Token identifies one request within a scope.
type Token struct {
	Scope Scope
	Gen   uint64
}

type ViewState struct {
	Filter      Filter
	Page        int
	Search      string
	Ordering    string
	User        *model.User
	Favorites   FavoriteSet
	Categories  []model.Category
	Listing     []model.Book // books currently shown in the grid
	CurrentBook int64        // book shown in the detail view, 0 when closed

	gens     map[Scope]uint64
	toggling map[int64]struct{}
}

func New() *ViewState {
	return &ViewState{
		Page:      1,
		Favorites: NewFavoriteSet(),
		gens:      make(map[Scope]uint64),
		toggling:  make(map[int64]struct{}),
	}
}

// Begin starts a new request in scope and invalidates every earlier one.
func (s *ViewState) Begin(scope Scope) Token {
	s.gens[scope]++
	return Token{Scope: scope, Gen: s.gens[scope]}
}

// Current is the token of the latest request in scope.
func (s *ViewState) Current(scope Scope) Token {
	return Token{Scope: scope, Gen: s.gens[scope]}
}

// Renew returns a fresh state for a reloaded page. Generations carry over and
// advance, so no token issued before the reload is current afterwards.
func (s *ViewState) Renew() *ViewState {
	next := New()
	for scope, gen := range s.gens {
		next.gens[scope] = gen + 1
	}
	return next
}

// IsCurrent reports whether t is still the latest request of its scope.
func (s *ViewState) IsCurrent(t Token) bool {
	return s.gens[t.Scope] == t.Gen
}

// Query is the books query for the current filter, search, sort and page.
func (s *ViewState) Query() model.ListQuery {
	return model.ListQuery{
		Search:   s.Search,
		Ordering: s.Ordering,
		Category: s.Filter.CategoryParam(),
		Page:     s.Page,
	}
}

// SelectAll clears the category filter and goes back to page 1.
func (s *ViewState) SelectAll() {
	s.Filter = Filter{Kind: FilterAll}
	s.Page = 1
}

func (s *ViewState) SelectFavorites() {
	s.Filter = Filter{Kind: FilterFavorites}
	s.Page = 1
}

func (s *ViewState) SelectCategory(id int64) {
	s.Filter = Filter{Kind: FilterCategory, CategoryID: id}
	s.Page = 1
}

func (s *ViewState) Authenticated() bool { return s.User != nil }

// SetUser records the signed-in user. Favorites are reloaded by the caller.
func (s *ViewState) SetUser(u *model.User) {
	s.User = u
	if u == nil {
		s.Favorites = NewFavoriteSet()
	}
}

// ClearUser forgets the user and everything tied to them.
func (s *ViewState) ClearUser() {
	s.SetUser(nil)
}

// BeginToggle marks a favorite toggle for id as in flight. It returns false
// when one is already running for the same book.
func (s *ViewState) BeginToggle(id int64) bool {
	if _, busy := s.toggling[id]; busy {
		return false
	}
	s.toggling[id] = struct{}{}
	return true
}

func (s *ViewState) EndToggle(id int64) {
	delete(s.toggling, id)
}

// ListedBook returns the book with id from the current grid.
func (s *ViewState) ListedBook(id int64) (model.Book, bool) {
	for _, b := range s.Listing {
		if b.ID == id {
			return b, true
		}
	}
	return model.Book{}, false
}

// DropListed removes id from the current grid.
func (s *ViewState) DropListed(id int64) {
	out := s.Listing[:0]
	for _, b := range s.Listing {
		if b.ID != id {
			out = append(out, b)
		}
	}
	s.Listing = out
}
