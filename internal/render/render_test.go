//go:build unit

package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"bookstore-web/internal/core/model"
	"bookstore-web/internal/ui"
	"bookstore-web/pkg/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Options{})
	require.NoError(t, err)
	return r
}

func book(id int64) model.Book {
	return model.Book{
		ID:        id,
		Title:     "Dune",
		Author:    "Frank Herbert",
		Price:     decimal.RequireFromString("12.5"),
		Stock:     3,
		AvgRating: 4.4,
	}
}

type favs map[int64]bool

func (f favs) Has(id int64) bool { return f[id] }

func TestCard(t *testing.T) {
	r := newRenderer(t)

	html, err := r.Card(book(7), true)
	require.NoError(t, err)
	s := string(html)

	assert.Contains(t, s, `data-book="7"`)
	assert.Contains(t, s, `class="fav active"`)
	assert.Contains(t, s, `aria-pressed="true"`)
	assert.Equal(t, 4, strings.Count(s, "star filled"))
	assert.Equal(t, 1, strings.Count(s, "star empty"))
	assert.Contains(t, s, `data-stock="low_stock"`)
	assert.Contains(t, s, "12.50")
	assert.Contains(t, s, "4.4")
	assert.Contains(t, s, "/favorites/7/toggle")
	assert.Contains(t, s, "/cart/7/add")
	assert.Contains(t, s, "via.placeholder.com", "missing image falls back to the placeholder")
}

func TestCard_EscapesServerStrings(t *testing.T) {
	r := newRenderer(t)
	b := book(1)
	b.Title = `<script>alert(1)</script>`
	b.Image = util.GetPtr("https://img.example.com/dune.jpg")

	html, err := r.Card(b, false)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script>")
	assert.Contains(t, string(html), "&lt;script&gt;")
	assert.Contains(t, string(html), "https://img.example.com/dune.jpg")
	assert.Contains(t, string(html), `aria-pressed="false"`)
}

func TestCards_MarksFavorites(t *testing.T) {
	r := newRenderer(t)
	cards, err := r.Cards([]model.Book{book(1), book(2)}, favs{2: true})
	require.NoError(t, err)
	require.Len(t, cards, 2)

	assert.Equal(t, int64(1), cards[0].BookID)
	assert.NotContains(t, string(cards[0].HTML), "fav active")
	assert.Contains(t, string(cards[1].HTML), "fav active")
}

func TestPagination(t *testing.T) {
	r := newRenderer(t)

	html, err := r.Pagination(20, 1)
	require.NoError(t, err)
	s := string(html)
	assert.Equal(t, 3, strings.Count(s, "data-page="))
	assert.Contains(t, s, "page-item prev disabled")
	assert.NotContains(t, s, "page-item next disabled")
	assert.Contains(t, s, `aria-current="page">1<`)
	assert.Contains(t, s, "/catalog/page/2")

	html, err = r.Pagination(20, 3)
	require.NoError(t, err)
	assert.Contains(t, string(html), "page-item next disabled")
}

func TestPagination_HiddenForOnePage(t *testing.T) {
	r := newRenderer(t)
	html, err := r.Pagination(8, 1)
	require.NoError(t, err)
	assert.Empty(t, html)
}

func TestSidebar_HighlightsCategory(t *testing.T) {
	r := newRenderer(t)
	html, err := r.Sidebar(SidebarModel{
		Categories:     []model.Category{{ID: 1, Title: "Fantasy"}, {ID: 2, Title: "Poetry"}},
		ActiveCategory: 2,
	})
	require.NoError(t, err)
	assert.Contains(t, string(html), `<li class="active" data-category="2">`)
	assert.Contains(t, string(html), `<li class="" data-category="1">`)
}

func TestDetail(t *testing.T) {
	r := newRenderer(t)
	b := book(3)
	b.Reviews = []model.Review{
		{ID: 10, Username: "ann", Rating: 5, Text: "Great", CreatedAt: time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)},
		{ID: 11, Username: "bob", Rating: 4, Text: "Good"},
	}

	html, err := r.Detail(b, &model.User{Username: "ann"}, ReviewDraft{})
	require.NoError(t, err)
	s := string(html)

	assert.Contains(t, s, `data-star="5" data-count="1"`)
	assert.Contains(t, s, `data-star="4" data-count="1"`)
	assert.Contains(t, s, `data-star="1" data-count="0"`)
	assert.Contains(t, s, "width: 50%")
	assert.Contains(t, s, "/reviews/10/delete")
	assert.NotContains(t, s, "/reviews/11/delete")
	assert.Contains(t, s, "09.03.2024")
	assert.Contains(t, s, `<option value="5" selected>`)
	assert.Less(t, strings.Index(s, `data-review="10"`), strings.Index(s, `data-review="11"`))
}

func TestDetail_SuperuserDeletesAny(t *testing.T) {
	r := newRenderer(t)
	b := book(3)
	b.Reviews = []model.Review{{ID: 11, Username: "bob", Rating: 2, Text: "Meh"}}

	html, err := r.Detail(b, &model.User{Username: "root", IsSuperuser: true}, ReviewDraft{})
	require.NoError(t, err)
	assert.Contains(t, string(html), "/reviews/11/delete")

	html, err = r.Detail(b, nil, ReviewDraft{})
	require.NoError(t, err)
	assert.NotContains(t, string(html), "/reviews/11/delete")
}

func TestDetail_NoReviews(t *testing.T) {
	r := newRenderer(t)
	html, err := r.Detail(book(3), nil, ReviewDraft{Rating: 2, Text: "draft", Error: "Write a few words"})
	require.NoError(t, err)
	s := string(html)
	assert.Contains(t, s, "no-reviews")
	assert.Contains(t, s, `<option value="2" selected>`)
	assert.Contains(t, s, "Write a few words")
	assert.Equal(t, 5, strings.Count(s, `data-count="0"`))
}

func TestCart(t *testing.T) {
	r := newRenderer(t)
	c := model.Cart{Lines: []model.CartLine{
		{ID: 1, Book: book(1), Quantity: 2},
		{ID: 2, Book: model.Book{ID: 2, Title: "Emma", Price: decimal.RequireFromString("3.10")}, Quantity: 1},
	}}

	table, total, err := r.Cart(c)
	require.NoError(t, err)
	assert.Contains(t, string(table), "25.00")
	assert.Contains(t, string(table), "/cart/2/reduce")
	assert.Equal(t, "28.10", string(total))
}

func TestCart_Empty(t *testing.T) {
	r := newRenderer(t)
	table, total, err := r.Cart(model.Cart{})
	require.NoError(t, err)
	assert.Contains(t, string(table), `data-message="cart_empty"`)
	assert.Equal(t, "0.00", string(total))
}

func TestOrders(t *testing.T) {
	r := newRenderer(t)
	html, err := r.Orders(nil)
	require.NoError(t, err)
	assert.Contains(t, string(html), `data-message="orders_empty"`)

	html, err = r.Orders([]model.Order{{
		ID: 4, Status: model.OrderShipped, TotalPrice: decimal.RequireFromString("9"),
		Items: []model.OrderItem{{BookTitle: "Dune", Quantity: 1, Price: decimal.RequireFromString("9")}},
	}})
	require.NoError(t, err)
	assert.Contains(t, string(html), "Order #4")
	assert.Contains(t, string(html), "shipped")
	assert.Contains(t, string(html), "9.00")
}

func TestMoney_WithCurrency(t *testing.T) {
	r, err := New(Options{Currency: "EUR"})
	require.NoError(t, err)
	_, total, err := r.Cart(model.Cart{})
	require.NoError(t, err)
	assert.Equal(t, "0.00 EUR", string(total))
}

func TestPage(t *testing.T) {
	r := newRenderer(t)
	doc := ui.NewDocument()
	doc.SetGridMessage(r.Message(MsgNothingFound, ""))
	doc.SetCartCount(3)
	doc.Notify(ui.NoticeLogin, "Sign in to add books to your favorites.")
	doc.OpenOverlay(ui.OverlayLogin)

	var buf bytes.Buffer
	require.NoError(t, r.Page(&buf, PageData{View: doc.Snapshot(), Search: "dune"}))
	s := buf.String()

	assert.Contains(t, s, `data-message="nothing_found"`)
	assert.Contains(t, s, `<span id="cart-count" class="badge">3</span>`)
	assert.Contains(t, s, "Sign in now")
	assert.Contains(t, s, `id="login-overlay"`)
	assert.Contains(t, s, `value="dune"`)
	assert.Contains(t, s, `<section id="cart-view" class="panel" hidden>`)
}
