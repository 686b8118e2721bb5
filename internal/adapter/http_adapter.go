package adapter

import (
	"bookstore-web/internal/core"
	"bookstore-web/internal/core/model"
	"bookstore-web/internal/render"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// PageRenderer writes the full storefront page.
type PageRenderer interface {
	Page(w http.ResponseWriter, sf *core.Storefront) error
}

type pageView struct {
	view *render.Renderer
}

// NewPageRenderer renders a storefront's document with view.
func NewPageRenderer(view *render.Renderer) PageRenderer {
	return pageView{view: view}
}

func (p pageView) Page(w http.ResponseWriter, sf *core.Storefront) error {
	var buf bytes.Buffer
	if err := p.view.Page(&buf, sf.Page()); err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// StorefrontFactory builds the storefront of a new visitor session.
type StorefrontFactory func(ctx context.Context, sessionID uuid.UUID) (*core.Storefront, error)

type Handler struct {
	sessions      *SessionRepo
	newStorefront StorefrontFactory
	page          PageRenderer
	log           *slog.Logger

	metrics      http.Handler
	assets       fs.FS
	cookieName   string
	secureCookie bool
	timeout      time.Duration
	bootTimeout  time.Duration
}

type HandlerOption func(*Handler)

// WithMetricsHandler serves h under /metrics.
func WithMetricsHandler(h http.Handler) HandlerOption {
	return func(x *Handler) { x.metrics = h }
}

// WithAssets serves static files under /assets/.
func WithAssets(fsys fs.FS) HandlerOption {
	return func(x *Handler) { x.assets = fsys }
}

func WithSessionCookie(name string, secure bool) HandlerOption {
	return func(x *Handler) {
		x.cookieName = name
		x.secureCookie = secure
	}
}

// WithRequestTimeout bounds each request, including the backend calls it makes.
func WithRequestTimeout(d time.Duration) HandlerOption {
	return func(x *Handler) { x.timeout = d }
}

func NewHandler(sessions *SessionRepo, factory StorefrontFactory, page PageRenderer, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		sessions:      sessions,
		newStorefront: factory,
		page:          page,
		log:           logger,
		cookieName:    "bookstore_session",
		timeout:       30 * time.Second,
		bootTimeout:   15 * time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

type httpError struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, details map[string]interface{}) {
	e := httpError{}
	e.Error.Code = code
	e.Error.Message = msg
	e.Error.Details = details
	writeJSON(w, status, e)
}

// Routes builds the browser-facing router. Every action answers with a
// redirect to the page, so a reload never repeats a POST.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))

	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}
	if h.assets != nil {
		r.Handle("/assets/*", http.StripPrefix("/assets", http.FileServerFS(h.assets)))
	}

	r.Group(func(r chi.Router) {
		r.Use(h.session)

		r.Get("/", h.ShowPage)

		r.Get("/catalog", h.ApplyFilters)
		r.Get("/catalog/show", h.ShowCatalog)
		r.Get("/catalog/all", h.ResetCatalog)
		r.Get("/catalog/favorites", h.ShowFavorites)
		r.Get("/catalog/category/{id}", h.SelectCategory)
		r.Get("/catalog/sort/{ordering}", h.SortBy)
		r.Get("/catalog/page/{page}", h.ChangePage)

		r.Get("/books/{id}", h.OpenBook)
		r.Post("/books/close", h.CloseBook)
		r.Post("/books/{id}/reviews", h.SubmitReview)
		r.Post("/reviews/{id}/delete", h.DeleteReview)

		r.Post("/favorites/{id}/toggle", h.ToggleFavorite)

		r.Get("/cart", h.ShowCart)
		r.Post("/cart/{id}/add", h.AddToCart)
		r.Post("/cart/{id}/reduce", h.ReduceCartItem)
		r.Post("/cart/{id}/remove", h.RemoveCartItem)
		r.Post("/checkout", h.Checkout)

		r.Get("/orders", h.ShowOrders)
		r.Get("/profile", h.ShowProfile)
		r.Post("/profile", h.SaveProfile)
		r.Get("/help/{topic}", h.OpenHelp)

		r.Get("/login", h.ShowLogin)
		r.Get("/register", h.ShowRegister)
		r.Post("/overlays/close", h.CloseOverlays)
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/logout", h.Logout)
	})

	return otelhttp.NewHandler(r, "storefront")
}

func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type ctxKey struct{}

// session attaches the visitor's storefront. Only the page itself starts a
// session; actions without a known session cookie are sent to the page.
func (h *Handler) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(h.cookieName); err == nil {
			if id, err := uuid.Parse(c.Value); err == nil {
				if s, err := h.sessions.Touch(r.Context(), id); err == nil {
					next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
					return
				}
			}
		}
		if r.Method != http.MethodGet || r.URL.Path != "/" {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		id, err := uuid.NewRandom()
		if err != nil {
			h.log.Error("generating session id failed", "error", err)
			writeError(w, http.StatusInternalServerError, "SESSION", "could not start a session", nil)
			return
		}
		sf, err := h.newStorefront(r.Context(), id)
		if err != nil {
			h.log.Error("creating storefront failed", "error", err)
			writeError(w, http.StatusInternalServerError, "SESSION", "could not start a session", nil)
			return
		}
		s, err := h.sessions.Insert(r.Context(), id, sf)
		if errors.Is(err, errFull) {
			h.log.Warn("session limit reached", "sessions", h.sessions.Len())
			writeError(w, http.StatusServiceUnavailable, "SESSION_LIMIT", "too many visitors, try again later", nil)
			return
		}
		if err != nil {
			h.log.Error("storing session failed", "error", err)
			writeError(w, http.StatusInternalServerError, "SESSION", "could not start a session", nil)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     h.cookieName,
			Value:    s.ID.String(),
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		ctx, cancel := context.WithTimeout(r.Context(), h.bootTimeout)
		if err := sf.Bootstrap(ctx); err != nil {
			h.log.Warn("bootstrapping storefront failed", "error", err, "session", s.ID)
		}
		cancel()
		h.log.Info("session started", "session", s.ID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
	})
}

func sessionFrom(r *http.Request) Session {
	s, _ := r.Context().Value(ctxKey{}).(Session)
	return s
}

func storefrontFrom(r *http.Request) *core.Storefront {
	return sessionFrom(r).Storefront
}

// done finishes an action. Failures were already shown on the page by the
// storefront, so they only get logged here.
func (h *Handler) done(w http.ResponseWriter, r *http.Request, action string, err error) {
	if err != nil {
		lvl := slog.LevelWarn
		if errors.Is(err, model.ErrUnauthenticated) || errors.Is(err, model.ErrValidation) || errors.Is(err, core.ErrToggleInFlight) {
			lvl = slog.LevelDebug
		}
		h.log.Log(r.Context(), lvl, "action failed", "action", action, "error", err,
			"request_id", middleware.GetReqID(r.Context()))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": h.sessions.Len()})
}

func (h *Handler) ShowPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	if err := h.page.Page(w, storefrontFrom(r)); err != nil {
		h.log.Error("rendering page failed", "error", err)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	var id int64
	err := runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, chi.URLParam(r, name), &id)
	if err != nil {
		return 0, err
	}
	if id < 1 {
		return 0, errors.New(name + " must be positive")
	}
	return id, nil
}

// withID parses the {id} path parameter or answers 400.
func (h *Handler) withID(w http.ResponseWriter, r *http.Request, fn func(id int64)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id", map[string]interface{}{"reason": err.Error()})
		return
	}
	fn(id)
}

var orderings = map[string]bool{
	"":                true,
	"price":           true,
	"-price":          true,
	"created_at":      true,
	"-created_at":     true,
	"average_rating":  true,
	"-average_rating": true,
}

func (h *Handler) ApplyFilters(w http.ResponseWriter, r *http.Request) {
	var search, ordering string
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "search", q, &search); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid search", nil)
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "ordering", q, &ordering); err != nil || !orderings[ordering] {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid ordering", nil)
		return
	}
	h.done(w, r, "apply_filters", storefrontFrom(r).ApplyFilters(r.Context(), search, ordering))
}

// ShowCatalog returns to the catalog as it was left.
func (h *Handler) ShowCatalog(w http.ResponseWriter, r *http.Request) {
	storefrontFrom(r).ShowCatalog()
	h.done(w, r, "show_catalog", nil)
}

func (h *Handler) ResetCatalog(w http.ResponseWriter, r *http.Request) {
	h.done(w, r, "reset_catalog", storefrontFrom(r).ResetCatalog(r.Context()))
}

func (h *Handler) ShowFavorites(w http.ResponseWriter, r *http.Request) {
	h.done(w, r, "show_favorites", storefrontFrom(r).ShowFavorites(r.Context()))
}

func (h *Handler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) {
		h.done(w, r, "select_category", storefrontFrom(r).SelectCategory(r.Context(), id))
	})
}

func (h *Handler) SortBy(w http.ResponseWriter, r *http.Request) {
	var ordering string
	err := runtime.BindStyledParameterWithLocation("simple", false, "ordering", runtime.ParamLocationPath, chi.URLParam(r, "ordering"), &ordering)
	if err != nil || !orderings[ordering] {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid ordering", nil)
		return
	}
	h.done(w, r, "sort_by", storefrontFrom(r).SortBy(r.Context(), ordering))
}

func (h *Handler) ChangePage(w http.ResponseWriter, r *http.Request) {
	page, err := pathID(r, "page")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid page", nil)
		return
	}
	h.done(w, r, "change_page", storefrontFrom(r).ChangePage(r.Context(), int(page)))
}

func (h *Handler) OpenBook(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) {
		h.done(w, r, "open_book", storefrontFrom(r).OpenBook(r.Context(), id))
	})
}

func (h *Handler) CloseBook(w http.ResponseWriter, r *http.Request) {
	storefrontFrom(r).CloseBook()
	h.done(w, r, "close_book", nil)
}

func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid form", nil)
			return
		}
		rating, _ := strconv.Atoi(r.PostForm.Get("rating"))
		sf := storefrontFrom(r)
		if err := sf.EnsureBookOpen(r.Context(), id); err != nil {
			h.done(w, r, "submit_review", err)
			return
		}
		h.done(w, r, "submit_review", sf.SubmitReview(r.Context(), rating, r.PostForm.Get("text")))
	})
}

func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) {
		h.done(w, r, "delete_review", storefrontFrom(r).DeleteReview(r.Context(), id))
	})
}

func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) {
		h.done(w, r, "toggle_favorite", storefrontFrom(r).ToggleFavorite(r.Context(), id))
	})
}

func (h *Handler) ShowCart(w http.ResponseWriter, r *http.Request) {
	h.done(w, r, "show_cart", storefrontFrom(r).ShowCart(r.Context()))
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) {
		h.done(w, r, "cart_add", storefrontFrom(r).AddToCart(r.Context(), id))
	})
}

func (h *Handler) ReduceCartItem(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) {
		h.done(w, r, "cart_reduce", storefrontFrom(r).ReduceCartItem(r.Context(), id))
	})
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.withID(w, r, func(id int64) {
		h.done(w, r, "cart_remove", storefrontFrom(r).RemoveCartItem(r.Context(), id))
	})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.done(w, r, "checkout", storefrontFrom(r).Checkout(r.Context()))
}

func (h *Handler) ShowOrders(w http.ResponseWriter, r *http.Request) {
	h.done(w, r, "show_orders", storefrontFrom(r).ShowOrders(r.Context()))
}

func (h *Handler) ShowProfile(w http.ResponseWriter, r *http.Request) {
	storefrontFrom(r).ShowProfile()
	h.done(w, r, "show_profile", nil)
}

func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid form", nil)
		return
	}
	in := model.ProfileUpdate{
		Email:     r.PostForm.Get("email"),
		FirstName: r.PostForm.Get("first_name"),
		LastName:  r.PostForm.Get("last_name"),
	}
	h.done(w, r, "save_profile", storefrontFrom(r).SaveProfile(r.Context(), in))
}

func (h *Handler) OpenHelp(w http.ResponseWriter, r *http.Request) {
	storefrontFrom(r).OpenHelp(chi.URLParam(r, "topic"))
	h.done(w, r, "open_help", nil)
}

func (h *Handler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	storefrontFrom(r).ShowLogin()
	h.done(w, r, "show_login", nil)
}

func (h *Handler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	storefrontFrom(r).ShowRegister()
	h.done(w, r, "show_register", nil)
}

func (h *Handler) CloseOverlays(w http.ResponseWriter, r *http.Request) {
	storefrontFrom(r).CloseOverlays()
	h.done(w, r, "close_overlays", nil)
}

func credentialsFrom(r *http.Request) (model.Credentials, error) {
	if err := r.ParseForm(); err != nil {
		return model.Credentials{}, err
	}
	return model.Credentials{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}, nil
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	in, err := credentialsFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid form", nil)
		return
	}
	h.done(w, r, "login", storefrontFrom(r).Login(r.Context(), in))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	in, err := credentialsFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid form", nil)
		return
	}
	h.done(w, r, "register", storefrontFrom(r).Register(r.Context(), in))
}

// Logout signs the visitor out and ends their session. The next visit to the
// page starts a fresh one.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if err := s.Storefront.Logout(r.Context()); err != nil {
		h.done(w, r, "logout", err)
		return
	}
	if err := h.sessions.Delete(r.Context(), s.ID); err != nil && !errors.Is(err, errNotFound) {
		h.log.Error("ending session failed", "error", err, "session", s.ID)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	h.log.Info("session ended", "session", s.ID)
	h.done(w, r, "logout", nil)
}
