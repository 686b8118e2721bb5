package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bookstore-web/internal/core/model"
	"bookstore-web/internal/core/state"
	"bookstore-web/internal/render"
	"bookstore-web/internal/ui"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// Backend is the bookstore API as the storefront uses it.
type Backend interface {
	Prime(ctx context.Context) error
	CurrentUser(ctx context.Context) (model.User, error)
	UpdateProfile(ctx context.Context, in model.ProfileUpdate) (model.User, error)
	FavoriteIDs(ctx context.Context) ([]int64, error)
	Favorites(ctx context.Context) (model.Page[model.Book], error)
	ToggleFavorite(ctx context.Context, bookID int64) (bool, error)
	Categories(ctx context.Context) ([]model.Category, error)
	ListBooks(ctx context.Context, q model.ListQuery) (model.Page[model.Book], error)
	GetBook(ctx context.Context, id int64) (model.Book, error)
	CreateReview(ctx context.Context, in model.ReviewInput) (model.Review, error)
	DeleteReview(ctx context.Context, id int64) error
	Cart(ctx context.Context) (model.Cart, error)
	AddToCart(ctx context.Context, bookID int64) error
	ReduceCartItem(ctx context.Context, bookID int64) error
	RemoveCartItem(ctx context.Context, bookID int64) error
	Checkout(ctx context.Context) (model.Order, error)
	Orders(ctx context.Context) ([]model.Order, error)
	Login(ctx context.Context, in model.Credentials) error
	Register(ctx context.Context, in model.Credentials) error
	Logout(ctx context.Context) error
}

// ErrToggleInFlight is returned when a favorite toggle for the same book has
// not finished yet.
var ErrToggleInFlight = errors.New("favorite toggle already in flight")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Storefront owns one visitor's view state and page document and implements
// every user action against the bookstore API. Network calls run without the
// lock; state and document changes are applied under it, and responses that
// were superseded in the meantime are dropped.
type Storefront struct {
	mu     sync.Mutex
	api    Backend
	view   *render.Renderer
	doc    *ui.Document
	router *ui.Router
	st     *state.ViewState
	log    *slog.Logger

	help          ui.HelpCatalog
	fadeDelay     time.Duration
	reloadTimeout time.Duration
	onStale       func(scope state.Scope)

	fades         map[int64]*time.Timer // pending card removals by book id
	detail        model.Book            // book behind the open detail view
	draft         render.ReviewDraft
	profileNotice string
}

type Option func(*Storefront)

func WithLogger(l *slog.Logger) Option {
	return func(s *Storefront) { s.log = l }
}

// WithFadeDelay sets how long a removed favorites card fades before it is
// dropped from the grid. Zero removes it immediately.
func WithFadeDelay(d time.Duration) Option {
	return func(s *Storefront) { s.fadeDelay = d }
}

func WithHelp(h ui.HelpCatalog) Option {
	return func(s *Storefront) { s.help = h }
}

// WithStaleHook is called for every response dropped because a newer request
// of the same scope was issued.
func WithStaleHook(fn func(scope state.Scope)) Option {
	return func(s *Storefront) { s.onStale = fn }
}

func NewStorefront(api Backend, view *render.Renderer, opts ...Option) *Storefront {
	s := &Storefront{
		api:           api,
		view:          view,
		log:           slog.Default(),
		help:          ui.DefaultHelp(),
		fadeDelay:     300 * time.Millisecond,
		reloadTimeout: 10 * time.Second,
		fades:         make(map[int64]*time.Timer),
	}
	for _, o := range opts {
		o(s)
	}
	s.reset()
	return s
}

// reset puts the storefront back to a freshly opened page. Responses and
// timers started before it are dropped.
func (s *Storefront) reset() {
	for id, t := range s.fades {
		t.Stop()
		delete(s.fades, id)
	}
	s.doc = ui.NewDocument()
	s.router = ui.NewRouter(s.doc, s.help)
	if s.st == nil {
		s.st = state.New()
	} else {
		s.st = s.st.Renew()
	}
	s.detail = model.Book{}
	s.draft = render.ReviewDraft{}
	s.profileNotice = ""
}

// Page returns what the page layout needs, consuming one-shot notices.
func (s *Storefront) Page() render.PageData {
	s.mu.Lock()
	defer s.mu.Unlock()
	var u *model.User
	if s.st.User != nil {
		cp := *s.st.User
		u = &cp
	}
	return render.PageData{
		View:     s.doc.Snapshot(),
		User:     u,
		Search:   s.st.Search,
		Ordering: s.st.Ordering,
	}
}

func (s *Storefront) begin(scope state.Scope) state.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Begin(scope)
}

// current must be called with mu held.
func (s *Storefront) current(t state.Token) bool {
	if s.st.IsCurrent(t) {
		return true
	}
	s.log.Debug("dropping stale response", "scope", t.Scope, "gen", t.Gen)
	if s.onStale != nil {
		s.onStale(t.Scope)
	}
	return false
}

// Bootstrap loads everything a freshly opened page shows: the anti-forgery
// token, the visitor, their favorites, then categories, the first catalog
// page and the cart badge in parallel.
func (s *Storefront) Bootstrap(ctx context.Context) error {
	if err := s.api.Prime(ctx); err != nil {
		s.log.Warn("priming anti-forgery token failed", "error", err)
	}
	if err := s.FetchCurrentUser(ctx); err != nil {
		s.log.Warn("loading current user failed", "error", err)
	}

	var g errgroup.Group
	g.Go(func() error { return s.LoadCategories(ctx) })
	g.Go(func() error { return s.LoadBooks(ctx, "", "", 1) })
	g.Go(func() error { return s.UpdateCartCount(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return nil
}

// Reload discards the page state and loads it again, as a browser reload
// would.
func (s *Storefront) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
	return s.Bootstrap(ctx)
}

// FetchCurrentUser refreshes the signed-in user and, when there is one, their
// favorites. An anonymous visitor is not an error.
func (s *Storefront) FetchCurrentUser(ctx context.Context) error {
	tok := s.begin(state.ScopeUser)
	u, err := s.api.CurrentUser(ctx)

	s.mu.Lock()
	if !s.current(tok) {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.st.ClearUser()
		s.renderProfile()
		s.mu.Unlock()
		if errors.Is(err, model.ErrUnauthenticated) {
			return nil
		}
		return fmt.Errorf("current user: %w", err)
	}
	s.st.SetUser(&u)
	s.renderProfile()
	s.mu.Unlock()

	return s.LoadFavoriteIDs(ctx)
}

// LoadFavoriteIDs replaces the favorites set with the server's and refreshes
// the heart icons of the cards on screen.
func (s *Storefront) LoadFavoriteIDs(ctx context.Context) error {
	ids, err := s.api.FavoriteIDs(ctx)
	if err != nil {
		s.log.Warn("loading favorite ids failed", "error", err)
		return fmt.Errorf("favorite ids: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.st.Authenticated() {
		return nil
	}
	s.st.Favorites = state.NewFavoriteSet(ids...)
	for _, b := range s.st.Listing {
		s.renderCardInPlace(b.ID)
	}
	return nil
}

func (s *Storefront) renderProfile() {
	html, err := s.view.Profile(s.st.User, s.profileNotice)
	if err != nil {
		s.log.Error("rendering profile failed", "error", err)
		return
	}
	s.doc.SetRegion(ui.RegionProfile, html)
}

// ShowCatalog makes the catalog the visible panel.
func (s *Storefront) ShowCatalog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.router.Show(ui.PanelCatalog)
}

func (s *Storefront) ShowProfile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.router.Show(ui.PanelProfile)
	s.renderProfile()
}

// OpenHelp shows the help panel for topic; unknown topics show an empty panel.
func (s *Storefront) OpenHelp(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.router.OpenHelp(topic)
}

func (s *Storefront) ShowLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.OpenOverlay(ui.OverlayLogin)
}

func (s *Storefront) ShowRegister() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.OpenOverlay(ui.OverlayRegister)
}

func (s *Storefront) CloseOverlays() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.CloseOverlays()
}

// promptLogin asks the visitor to sign in without blocking the page. Must be
// called with mu held.
func (s *Storefront) promptLogin(text string) {
	s.doc.Notify(ui.NoticeLogin, text)
}

func validationError(err error) error {
	return fmt.Errorf("%w: %v", model.ErrValidation, err)
}
