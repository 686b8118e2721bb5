package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookstore-web/internal/core/model"
	"bookstore-web/internal/core/state"
	"bookstore-web/internal/render"
	"bookstore-web/internal/ui"
)

// Messages shown inside the auth overlays.
const (
	MsgInvalidCredentials = "Invalid username or password."
	MsgRegistered         = "Account created! Now sign in."
	MsgCartEmpty          = "Your cart is empty."
	MsgProfileSaved       = "Profile saved."
)

// ShowCart switches to the cart panel and loads its contents.
func (s *Storefront) ShowCart(ctx context.Context) error {
	s.mu.Lock()
	s.router.Show(ui.PanelCart)
	s.mu.Unlock()
	return s.LoadCart(ctx)
}

// LoadCart fetches the cart and renders it with its total. The badge follows
// the fetched cart.
func (s *Storefront) LoadCart(ctx context.Context) error {
	s.mu.Lock()
	s.doc.SetRegion(ui.RegionCart, s.view.Message(render.MsgLoading, ""))
	tok := s.st.Begin(state.ScopeCart)
	s.mu.Unlock()

	c, err := s.api.Cart(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(tok) {
		return nil
	}
	if err != nil {
		s.doc.ClearRegion(ui.RegionCartTotal)
		if errors.Is(err, model.ErrUnauthenticated) {
			s.doc.SetRegion(ui.RegionCart, s.view.Message(render.MsgCartLogin, ""))
			s.doc.SetCartCount(0)
			return err
		}
		s.log.Error("loading cart failed", "error", err)
		s.doc.SetRegion(ui.RegionCart, s.view.Message(render.MsgLoadFailed, ""))
		return fmt.Errorf("cart: %w", err)
	}
	table, total, err := s.view.Cart(c)
	if err != nil {
		s.log.Error("rendering cart failed", "error", err)
		return err
	}
	s.doc.SetRegion(ui.RegionCart, table)
	s.doc.SetRegion(ui.RegionCartTotal, total)
	// A badge refresh issued before this load is older than the cart we hold.
	s.st.Begin(state.ScopeCartCount)
	s.doc.SetCartCount(c.ItemCount())
	return nil
}

// UpdateCartCount refreshes only the header badge. Anonymous visitors get an
// empty badge.
func (s *Storefront) UpdateCartCount(ctx context.Context) error {
	tok := s.begin(state.ScopeCartCount)
	c, err := s.api.Cart(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(tok) {
		return nil
	}
	if err != nil {
		s.doc.SetCartCount(0)
		if errors.Is(err, model.ErrUnauthenticated) {
			return nil
		}
		s.log.Warn("loading cart count failed", "error", err)
		return fmt.Errorf("cart count: %w", err)
	}
	s.doc.SetCartCount(c.ItemCount())
	return nil
}

// AddToCart adds one copy of a book.
func (s *Storefront) AddToCart(ctx context.Context, bookID int64) error {
	return s.changeCart(ctx, "add", bookID, s.api.AddToCart)
}

// ReduceCartItem removes one copy; the server drops the line at zero.
func (s *Storefront) ReduceCartItem(ctx context.Context, bookID int64) error {
	return s.changeCart(ctx, "reduce", bookID, s.api.ReduceCartItem)
}

func (s *Storefront) RemoveCartItem(ctx context.Context, bookID int64) error {
	return s.changeCart(ctx, "remove", bookID, s.api.RemoveCartItem)
}

func (s *Storefront) changeCart(ctx context.Context, op string, bookID int64, call func(context.Context, int64) error) error {
	if err := call(ctx, bookID); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if errors.Is(err, model.ErrUnauthenticated) {
			s.doc.OpenOverlay(ui.OverlayLogin)
			s.doc.SetOverlayMessage(ui.Notice{Kind: ui.NoticeInfo, Text: "Sign in to use the cart."})
			return err
		}
		s.log.Error("cart change failed", "error", err, "op", op, "book_id", bookID)
		msg := "Could not update the cart."
		if m := model.ServerMessage(err); m != "" {
			msg = m
		}
		s.doc.Notify(ui.NoticeError, msg)
		return fmt.Errorf("cart %s: %w", op, err)
	}

	s.mu.Lock()
	visible := s.doc.IsVisible(ui.PanelCart)
	s.mu.Unlock()
	if visible {
		return s.LoadCart(ctx)
	}
	return s.UpdateCartCount(ctx)
}

// Checkout turns the cart into an order and shows the orders panel.
func (s *Storefront) Checkout(ctx context.Context) error {
	order, err := s.api.Checkout(ctx)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case errors.Is(err, model.ErrUnauthenticated):
			s.doc.OpenOverlay(ui.OverlayLogin)
			return err
		case errors.Is(err, model.ErrValidation):
			msg := model.ServerMessage(err)
			if msg == "" {
				msg = MsgCartEmpty
			}
			s.doc.Notify(ui.NoticeError, msg)
		default:
			s.log.Error("checkout failed", "error", err)
			s.doc.Notify(ui.NoticeError, "Could not place the order. Please try again.")
		}
		return fmt.Errorf("checkout: %w", err)
	}

	s.log.Info("order placed", "order_id", order.ID, "total", order.TotalPrice.StringFixed(2))
	s.mu.Lock()
	s.doc.Notify(ui.NoticeInfo, fmt.Sprintf("Order #%d placed.", order.ID))
	s.mu.Unlock()
	return errors.Join(s.ShowOrders(ctx), s.UpdateCartCount(ctx))
}

func (s *Storefront) ShowOrders(ctx context.Context) error {
	s.mu.Lock()
	s.router.Show(ui.PanelOrders)
	s.mu.Unlock()
	return s.LoadOrders(ctx)
}

// LoadOrders fetches the order history into the orders panel.
func (s *Storefront) LoadOrders(ctx context.Context) error {
	s.mu.Lock()
	s.doc.SetRegion(ui.RegionOrders, s.view.Message(render.MsgLoading, ""))
	tok := s.st.Begin(state.ScopeOrders)
	s.mu.Unlock()

	orders, err := s.api.Orders(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(tok) {
		return nil
	}
	if err != nil {
		if errors.Is(err, model.ErrUnauthenticated) {
			s.doc.SetRegion(ui.RegionOrders, s.view.Message(render.MsgCartLogin, ""))
			return err
		}
		s.log.Error("loading orders failed", "error", err)
		s.doc.SetRegion(ui.RegionOrders, s.view.Message(render.MsgLoadFailed, ""))
		return fmt.Errorf("orders: %w", err)
	}
	html, err := s.view.Orders(orders)
	if err != nil {
		s.log.Error("rendering orders failed", "error", err)
		return err
	}
	s.doc.SetRegion(ui.RegionOrders, html)
	return nil
}

// SaveProfile patches the profile and then re-fetches the user so the page
// shows what the server stored.
func (s *Storefront) SaveProfile(ctx context.Context, in model.ProfileUpdate) error {
	in.Email = strings.TrimSpace(in.Email)
	if err := validate.Struct(in); err != nil {
		s.mu.Lock()
		s.profileNotice = "Check the e-mail address."
		s.renderProfile()
		s.mu.Unlock()
		return validationError(err)
	}
	if _, err := s.api.UpdateProfile(ctx, in); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if errors.Is(err, model.ErrUnauthenticated) {
			s.doc.OpenOverlay(ui.OverlayLogin)
			return err
		}
		s.log.Error("saving profile failed", "error", err)
		s.profileNotice = "Could not save the profile."
		if msg := model.ServerMessage(err); msg != "" {
			s.profileNotice = msg
		}
		s.renderProfile()
		return fmt.Errorf("update profile: %w", err)
	}
	s.mu.Lock()
	s.profileNotice = MsgProfileSaved
	s.mu.Unlock()
	return s.FetchCurrentUser(ctx)
}

// Login signs the visitor in and reloads the whole page state for them.
func (s *Storefront) Login(ctx context.Context, in model.Credentials) error {
	in.Username = strings.TrimSpace(in.Username)
	if err := validate.Struct(in); err != nil {
		s.overlayError(ui.OverlayLogin, MsgInvalidCredentials)
		return validationError(err)
	}
	if err := s.api.Login(ctx, in); err != nil {
		msg := MsgInvalidCredentials
		if errors.Is(err, model.ErrRequestFailed) {
			s.log.Error("login request failed", "error", err)
			msg = "Could not reach the server. Please try again."
		}
		s.overlayError(ui.OverlayLogin, msg)
		return fmt.Errorf("login: %w", err)
	}
	s.log.Info("visitor signed in", "username", in.Username)
	// Reload primes the anti-forgery token again; the session cookie changed.
	return s.Reload(ctx)
}

// Register creates an account and asks the visitor to sign in with it.
func (s *Storefront) Register(ctx context.Context, in model.Credentials) error {
	in.Username = strings.TrimSpace(in.Username)
	if err := validate.Struct(in); err != nil {
		s.overlayError(ui.OverlayRegister, "Enter a username and a password.")
		return validationError(err)
	}
	if err := s.api.Register(ctx, in); err != nil {
		msg := model.ServerMessage(err)
		if msg == "" {
			msg = "Registration failed."
		}
		if !errors.Is(err, model.ErrValidation) {
			s.log.Error("register request failed", "error", err)
		}
		s.overlayError(ui.OverlayRegister, msg)
		return fmt.Errorf("register: %w", err)
	}
	s.log.Info("account registered", "username", in.Username)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.OpenOverlay(ui.OverlayLogin)
	s.doc.SetOverlayMessage(ui.Notice{Kind: ui.NoticeInfo, Text: MsgRegistered})
	return nil
}

// Logout ends the server session and reloads the page state as anonymous.
func (s *Storefront) Logout(ctx context.Context) error {
	if err := s.api.Logout(ctx); err != nil {
		s.log.Error("logout failed", "error", err)
		s.mu.Lock()
		s.doc.Notify(ui.NoticeError, "Could not sign out. Please try again.")
		s.mu.Unlock()
		return fmt.Errorf("logout: %w", err)
	}
	return s.Reload(ctx)
}

func (s *Storefront) overlayError(o ui.Overlay, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Overlay() != o {
		s.doc.OpenOverlay(o)
	}
	s.doc.SetOverlayMessage(ui.Notice{Kind: ui.NoticeError, Text: text})
}
