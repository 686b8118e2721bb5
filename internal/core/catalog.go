package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookstore-web/internal/core/model"
	"bookstore-web/internal/core/state"
	"bookstore-web/internal/render"
	"bookstore-web/internal/ui"
)

// ListMode says how the catalog grid reacts to a favorite change.
type ListMode int

const (
	// ModeCatalog updates the heart icon of the card in place.
	ModeCatalog ListMode = iota
	// ModeFavorites fades out and removes cards that are no longer favorites.
	ModeFavorites
)

func listModeFor(f state.Filter) ListMode {
	if f.IsFavorites() {
		return ModeFavorites
	}
	return ModeCatalog
}

const catalogAnchor = "catalog-view"

// LoadCategories fetches the category list and redraws the sidebar.
func (s *Storefront) LoadCategories(ctx context.Context) error {
	cats, err := s.api.Categories(ctx)
	if err != nil {
		s.log.Warn("loading categories failed", "error", err)
		return fmt.Errorf("categories: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Categories = cats
	s.renderSidebar()
	return nil
}

func (s *Storefront) renderSidebar() {
	m := render.SidebarModel{
		Categories:      s.st.Categories,
		AllActive:       s.st.Filter.Kind == state.FilterAll,
		FavoritesActive: s.st.Filter.Kind == state.FilterFavorites,
		ActiveCategory:  s.st.Filter.CategoryParam(),
	}
	html, err := s.view.Sidebar(m)
	if err != nil {
		s.log.Error("rendering sidebar failed", "error", err)
		return
	}
	s.doc.SetRegion(ui.RegionSidebar, html)
}

// SelectCategory filters the catalog to one category, starting at page 1.
func (s *Storefront) SelectCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	s.router.Show(ui.PanelCatalog)
	s.st.SelectCategory(id)
	s.renderSidebar()
	s.doc.ScrollTo(catalogAnchor)
	s.mu.Unlock()
	return s.LoadBooks(ctx, "", "", 1)
}

// ResetCatalog clears the filter, search and sort.
func (s *Storefront) ResetCatalog(ctx context.Context) error {
	s.mu.Lock()
	s.router.Show(ui.PanelCatalog)
	s.st.SelectAll()
	s.renderSidebar()
	s.mu.Unlock()
	return s.LoadBooks(ctx, "", "", 1)
}

// SortBy shows the whole catalog in the given order, dropping search and
// category.
func (s *Storefront) SortBy(ctx context.Context, ordering string) error {
	s.mu.Lock()
	s.router.Show(ui.PanelCatalog)
	s.st.SelectAll()
	s.renderSidebar()
	s.doc.ScrollTo(catalogAnchor)
	s.mu.Unlock()
	return s.LoadBooks(ctx, "", ordering, 1)
}

// ApplyFilters runs a search with the given sort inside the current
// category. Searching leaves the favorites list for the full catalog.
func (s *Storefront) ApplyFilters(ctx context.Context, search, ordering string) error {
	s.mu.Lock()
	s.router.Show(ui.PanelCatalog)
	if s.st.Filter.IsFavorites() {
		s.st.SelectAll()
		s.renderSidebar()
	}
	s.mu.Unlock()
	return s.LoadBooks(ctx, strings.TrimSpace(search), ordering, 1)
}

// ChangePage loads another page keeping search, sort and category. The
// favorites list is not paginated, so it ignores page changes.
func (s *Storefront) ChangePage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	s.mu.Lock()
	if s.st.Filter.IsFavorites() {
		s.mu.Unlock()
		return nil
	}
	search, ordering := s.st.Search, s.st.Ordering
	s.doc.ScrollTo(catalogAnchor)
	s.mu.Unlock()
	return s.LoadBooks(ctx, search, ordering, page)
}

// LoadBooks fetches one catalog page for the current category and renders the
// grid and page selector.
func (s *Storefront) LoadBooks(ctx context.Context, search, ordering string, page int) error {
	s.mu.Lock()
	s.st.Search = search
	s.st.Ordering = ordering
	q := s.st.Query()
	q.Page = page
	s.doc.SetGridMessage(s.view.Message(render.MsgLoading, ""))
	tok := s.st.Begin(state.ScopeCatalog)
	s.mu.Unlock()

	res, err := s.api.ListBooks(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(tok) {
		return nil
	}
	if err != nil {
		s.log.Error("loading books failed", "error", err, "page", page)
		s.doc.SetGridMessage(s.view.Message(render.MsgLoadFailed, ""))
		s.doc.ClearRegion(ui.RegionPagination)
		return fmt.Errorf("list books: %w", err)
	}
	s.st.Page = page
	s.st.Listing = res.Data
	if len(res.Data) == 0 {
		s.doc.SetGridMessage(s.view.Message(render.MsgNothingFound, ""))
		s.doc.ClearRegion(ui.RegionPagination)
		return nil
	}
	if err := s.renderGrid(); err != nil {
		return err
	}
	if !res.Paginated {
		s.doc.ClearRegion(ui.RegionPagination)
		return nil
	}
	pag, err := s.view.Pagination(res.Count, page)
	if err != nil {
		s.log.Error("rendering pagination failed", "error", err)
		return err
	}
	s.doc.SetRegion(ui.RegionPagination, pag)
	return nil
}

func (s *Storefront) renderGrid() error {
	cards, err := s.view.Cards(s.st.Listing, s.st.Favorites)
	if err != nil {
		s.log.Error("rendering cards failed", "error", err)
		s.doc.SetGridMessage(s.view.Message(render.MsgLoadFailed, ""))
		return err
	}
	s.doc.SetCards(cards)
	return nil
}

// ShowFavorites switches the catalog to the signed-in user's favorites.
func (s *Storefront) ShowFavorites(ctx context.Context) error {
	s.mu.Lock()
	s.router.Show(ui.PanelCatalog)
	s.st.SelectFavorites()
	s.renderSidebar()
	s.doc.SetGridMessage(s.view.Message(render.MsgLoading, ""))
	s.doc.ClearRegion(ui.RegionPagination)
	tok := s.st.Begin(state.ScopeCatalog)
	s.mu.Unlock()

	res, err := s.api.Favorites(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(tok) {
		return nil
	}
	s.st.Listing = nil
	if err != nil {
		if errors.Is(err, model.ErrUnauthenticated) {
			s.doc.SetGridMessage(s.view.Message(render.MsgFavoritesLogin, ""))
			return err
		}
		s.log.Error("loading favorites failed", "error", err)
		s.doc.SetGridMessage(s.view.Message(render.MsgLoadFailed, ""))
		return fmt.Errorf("favorites: %w", err)
	}
	s.st.Listing = res.Data
	if len(res.Data) == 0 {
		s.doc.SetGridMessage(s.view.Message(render.MsgFavoritesEmpty, ""))
		return nil
	}
	return s.renderGrid()
}

// ToggleFavorite flips the favorite mark of a book. A second toggle for the
// same book while the first is in flight returns ErrToggleInFlight.
func (s *Storefront) ToggleFavorite(ctx context.Context, bookID int64) error {
	s.mu.Lock()
	st := s.st
	if !st.BeginToggle(bookID) {
		s.mu.Unlock()
		return ErrToggleInFlight
	}
	s.mu.Unlock()

	fav, err := s.api.ToggleFavorite(ctx, bookID)

	s.mu.Lock()
	if s.st != st {
		s.mu.Unlock()
		s.log.Debug("dropping favorite toggle from before reload", "book_id", bookID)
		return nil
	}
	s.st.EndToggle(bookID)
	if err != nil {
		defer s.mu.Unlock()
		if errors.Is(err, model.ErrUnauthenticated) {
			s.promptLogin("Sign in to add books to your favorites.")
			return err
		}
		s.log.Error("toggling favorite failed", "error", err, "book_id", bookID)
		s.doc.Notify(ui.NoticeError, "Could not update your favorites. Please try again.")
		return fmt.Errorf("toggle favorite: %w", err)
	}
	s.st.Favorites.Set(bookID, fav)
	reload := s.applyFavoriteChange(listModeFor(s.st.Filter), bookID, fav)
	s.mu.Unlock()

	if reload {
		return s.ShowFavorites(ctx)
	}
	return nil
}

// applyFavoriteChange updates the grid after the server confirmed a toggle.
// It reports whether the favorites view has to be entered again because the
// set became empty. Must be called with mu held.
func (s *Storefront) applyFavoriteChange(mode ListMode, bookID int64, favorite bool) bool {
	if mode == ModeCatalog || favorite {
		s.renderCardInPlace(bookID)
		return false
	}
	if !s.doc.FadeCard(bookID) {
		return false
	}
	s.st.DropListed(bookID)
	if s.fadeDelay <= 0 {
		return s.finishFade(bookID)
	}
	s.afterFade(bookID, s.st.Current(state.ScopeCatalog))
	return false
}

// afterFade removes the card once the fade is over, unless the grid was
// reloaded in the meantime. Must be called with mu held.
func (s *Storefront) afterFade(bookID int64, grid state.Token) {
	if t, ok := s.fades[bookID]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.fadeDelay, func() {
		s.mu.Lock()
		if s.fades[bookID] == timer {
			delete(s.fades, bookID)
		}
		if !s.current(grid) {
			s.mu.Unlock()
			return
		}
		reload := s.finishFade(bookID)
		s.mu.Unlock()
		if !reload {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.reloadTimeout)
		defer cancel()
		if err := s.ShowFavorites(ctx); err != nil {
			s.log.Warn("reloading empty favorites failed", "error", err)
		}
	})
	s.fades[bookID] = timer
}

// finishFade drops a faded card. Must be called with mu held.
func (s *Storefront) finishFade(bookID int64) bool {
	s.doc.RemoveCard(bookID)
	return s.st.Filter.IsFavorites() && s.st.Favorites.Len() == 0
}

// renderCardInPlace redraws one card so its heart matches the favorites set.
// Must be called with mu held.
func (s *Storefront) renderCardInPlace(bookID int64) {
	b, ok := s.st.ListedBook(bookID)
	if !ok {
		return
	}
	html, err := s.view.Card(b, s.st.Favorites.Has(bookID))
	if err != nil {
		s.log.Error("rendering card failed", "error", err, "book_id", bookID)
		return
	}
	s.doc.ReplaceCard(bookID, html)
}

// reloadListing refreshes whatever list the grid currently shows.
func (s *Storefront) reloadListing(ctx context.Context) error {
	s.mu.Lock()
	favorites := s.st.Filter.IsFavorites()
	search, ordering, page := s.st.Search, s.st.Ordering, s.st.Page
	s.mu.Unlock()
	if favorites {
		return s.ShowFavorites(ctx)
	}
	return s.LoadBooks(ctx, search, ordering, page)
}

// OpenBook loads a book with its reviews into the detail view.
func (s *Storefront) OpenBook(ctx context.Context, id int64) error {
	s.mu.Lock()
	s.st.CurrentBook = id
	s.draft = render.ReviewDraft{}
	s.mu.Unlock()
	return s.loadDetail(ctx, id)
}

// EnsureBookOpen makes id the open book, loading it if another one is shown.
func (s *Storefront) EnsureBookOpen(ctx context.Context, id int64) error {
	s.mu.Lock()
	open := s.st.CurrentBook == id && s.doc.DetailOpen()
	s.mu.Unlock()
	if open {
		return nil
	}
	return s.OpenBook(ctx, id)
}

// RefreshDetail reloads the open book, if any.
func (s *Storefront) RefreshDetail(ctx context.Context) error {
	s.mu.Lock()
	id := s.st.CurrentBook
	s.mu.Unlock()
	if id == 0 {
		return nil
	}
	return s.loadDetail(ctx, id)
}

func (s *Storefront) loadDetail(ctx context.Context, id int64) error {
	tok := s.begin(state.ScopeDetail)
	b, err := s.api.GetBook(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(tok) || s.st.CurrentBook != id {
		return nil
	}
	if err != nil {
		s.log.Error("loading book failed", "error", err, "book_id", id)
		if errors.Is(err, model.ErrNotFound) {
			s.doc.Notify(ui.NoticeError, "This book is no longer available.")
		} else {
			s.doc.Notify(ui.NoticeError, "Could not load the book. Please try again.")
		}
		return fmt.Errorf("get book %d: %w", id, err)
	}
	s.detail = b
	return s.renderDetail()
}

// renderDetail must be called with mu held.
func (s *Storefront) renderDetail() error {
	html, err := s.view.Detail(s.detail, s.st.User, s.draft)
	if err != nil {
		s.log.Error("rendering book detail failed", "error", err)
		return err
	}
	s.doc.OpenDetail(html)
	return nil
}

// CloseBook closes the detail view and ignores any detail load still running.
func (s *Storefront) CloseBook() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.CurrentBook = 0
	s.st.Begin(state.ScopeDetail)
	s.detail = model.Book{}
	s.draft = render.ReviewDraft{}
	s.doc.CloseDetail()
}

// SubmitReview posts a review for the open book. Empty text is rejected
// without a request. On success the detail view and the list are refreshed
// because the average rating changed.
func (s *Storefront) SubmitReview(ctx context.Context, rating int, text string) error {
	if rating == 0 {
		rating = render.DefaultReviewRating
	}
	s.mu.Lock()
	in := model.ReviewInput{BookID: s.st.CurrentBook, Rating: rating, Text: strings.TrimSpace(text)}
	if err := validate.Struct(in); err != nil {
		defer s.mu.Unlock()
		s.draft = render.ReviewDraft{Rating: rating, Text: text, Error: "Write a few words before posting."}
		if s.doc.DetailOpen() {
			_ = s.renderDetail()
		}
		return validationError(err)
	}
	s.mu.Unlock()

	_, err := s.api.CreateReview(ctx, in)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.draft = render.ReviewDraft{Rating: rating, Text: text}
		if errors.Is(err, model.ErrUnauthenticated) {
			s.doc.OpenOverlay(ui.OverlayLogin)
			return err
		}
		s.log.Error("posting review failed", "error", err, "book_id", in.BookID)
		s.draft.Error = "Could not post the review."
		if msg := model.ServerMessage(err); msg != "" {
			s.draft.Error = msg
		}
		if s.doc.DetailOpen() {
			_ = s.renderDetail()
		}
		return fmt.Errorf("create review: %w", err)
	}

	s.mu.Lock()
	s.draft = render.ReviewDraft{}
	s.mu.Unlock()
	return errors.Join(s.RefreshDetail(ctx), s.reloadListing(ctx))
}

// DeleteReview removes a review; the server decides whether the visitor may.
func (s *Storefront) DeleteReview(ctx context.Context, reviewID int64) error {
	if err := s.api.DeleteReview(ctx, reviewID); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.log.Error("deleting review failed", "error", err, "review_id", reviewID)
		s.doc.Notify(ui.NoticeError, "Could not delete the review.")
		return fmt.Errorf("delete review %d: %w", reviewID, err)
	}
	return errors.Join(s.RefreshDetail(ctx), s.reloadListing(ctx))
}
