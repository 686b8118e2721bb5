//go:build unit

package core

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"testing"

	"bookstore-web/internal/core/model"
	"bookstore-web/internal/render"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var errForbidden = &model.StatusError{Status: http.StatusForbidden}

// fakeBackend is an in-memory bookstore API.
type fakeBackend struct {
	mu sync.Mutex

	user       *model.User
	password   string
	accounts   map[string]bool
	favorites  map[int64]bool
	books      []model.Book
	categories []model.Category
	cart       map[int64]int
	orders     []model.Order
	total      int // reported count; 0 means len(books)

	listHook   func(q model.ListQuery) (model.Page[model.Book], error)
	toggleHook func(id int64) (bool, error)
	calls      map[string]int
	queries    []model.ListQuery
	reviews    []model.ReviewInput
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		password:  "secret",
		accounts:  map[string]bool{"ann": true},
		favorites: map[int64]bool{},
		cart:      map[int64]int{},
		calls:     map[string]int{},
		categories: []model.Category{
			{ID: 1, Title: "Fantasy"},
			{ID: 2, Title: "Classics"},
		},
		books: []model.Book{
			{ID: 1, CategoryID: 1, Title: "Dune", Author: "Frank Herbert", Price: decimal.RequireFromString("12.50"), Stock: 10, AvgRating: 4.4},
			{ID: 2, CategoryID: 1, Title: "Hyperion", Author: "Dan Simmons", Price: decimal.RequireFromString("9.99"), Stock: 2, AvgRating: 4.5},
			{ID: 3, CategoryID: 2, Title: "Emma", Author: "Jane Austen", Price: decimal.RequireFromString("5.00"), Stock: 0},
		},
	}
}

func (f *fakeBackend) signIn(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = &model.User{ID: 1, Username: username}
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) lastQuery() model.ListQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeBackend) call(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) Prime(context.Context) error {
	f.call("Prime")
	return nil
}

func (f *fakeBackend) CurrentUser(context.Context) (model.User, error) {
	f.call("CurrentUser")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return model.User{}, errForbidden
	}
	return *f.user, nil
}

func (f *fakeBackend) UpdateProfile(_ context.Context, in model.ProfileUpdate) (model.User, error) {
	f.call("UpdateProfile")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return model.User{}, errForbidden
	}
	f.user.Email = in.Email
	f.user.FirstName = in.FirstName
	f.user.LastName = in.LastName
	return *f.user, nil
}

func (f *fakeBackend) FavoriteIDs(context.Context) ([]int64, error) {
	f.call("FavoriteIDs")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return nil, errForbidden
	}
	var ids []int64
	for id, ok := range f.favorites {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeBackend) Favorites(context.Context) (model.Page[model.Book], error) {
	f.call("Favorites")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return model.Page[model.Book]{}, errForbidden
	}
	var out []model.Book
	for _, b := range f.books {
		if f.favorites[b.ID] {
			out = append(out, b)
		}
	}
	return model.Page[model.Book]{Data: out, Count: len(out)}, nil
}

func (f *fakeBackend) ToggleFavorite(_ context.Context, id int64) (bool, error) {
	f.call("ToggleFavorite")
	if f.toggleHook != nil {
		return f.toggleHook(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return false, errForbidden
	}
	f.favorites[id] = !f.favorites[id]
	return f.favorites[id], nil
}

func (f *fakeBackend) Categories(context.Context) ([]model.Category, error) {
	f.call("Categories")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Category(nil), f.categories...), nil
}

func (f *fakeBackend) ListBooks(_ context.Context, q model.ListQuery) (model.Page[model.Book], error) {
	f.call("ListBooks")
	f.mu.Lock()
	f.queries = append(f.queries, q)
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		return hook(q)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Book
	for _, b := range f.books {
		if q.Category != 0 && b.CategoryID != q.Category {
			continue
		}
		out = append(out, b)
	}
	count := len(out)
	if f.total > 0 {
		count = f.total
	}
	return model.Page[model.Book]{Data: out, Count: count, Paginated: true}, nil
}

func (f *fakeBackend) GetBook(_ context.Context, id int64) (model.Book, error) {
	f.call("GetBook")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.books {
		if b.ID == id {
			return b, nil
		}
	}
	return model.Book{}, &model.StatusError{Status: http.StatusNotFound}
}

func (f *fakeBackend) CreateReview(_ context.Context, in model.ReviewInput) (model.Review, error) {
	f.call("CreateReview")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return model.Review{}, errForbidden
	}
	f.reviews = append(f.reviews, in)
	r := model.Review{ID: int64(len(f.reviews)), BookID: in.BookID, Username: f.user.Username, Rating: in.Rating, Text: in.Text}
	for i := range f.books {
		if f.books[i].ID == in.BookID {
			f.books[i].Reviews = append(f.books[i].Reviews, r)
		}
	}
	return r, nil
}

func (f *fakeBackend) DeleteReview(context.Context, int64) error {
	f.call("DeleteReview")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return errForbidden
	}
	return nil
}

func (f *fakeBackend) Cart(context.Context) (model.Cart, error) {
	f.call("Cart")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return model.Cart{}, errForbidden
	}
	var c model.Cart
	for _, b := range f.books {
		if n := f.cart[b.ID]; n > 0 {
			c.Lines = append(c.Lines, model.CartLine{ID: b.ID, Book: b, Quantity: n})
		}
	}
	c.TotalPrice = c.Total()
	return c, nil
}

func (f *fakeBackend) changeCart(name string, id int64, delta int) error {
	f.call(name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return errForbidden
	}
	f.cart[id] += delta
	if delta == 0 || f.cart[id] <= 0 {
		delete(f.cart, id)
	}
	return nil
}

func (f *fakeBackend) AddToCart(_ context.Context, id int64) error {
	return f.changeCart("AddToCart", id, 1)
}

func (f *fakeBackend) ReduceCartItem(_ context.Context, id int64) error {
	return f.changeCart("ReduceCartItem", id, -1)
}

func (f *fakeBackend) RemoveCartItem(_ context.Context, id int64) error {
	return f.changeCart("RemoveCartItem", id, 0)
}

func (f *fakeBackend) Checkout(context.Context) (model.Order, error) {
	f.call("Checkout")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return model.Order{}, errForbidden
	}
	if len(f.cart) == 0 {
		return model.Order{}, &model.StatusError{Status: http.StatusBadRequest, Message: "Empty cart"}
	}
	o := model.Order{ID: int64(len(f.orders) + 1), Status: model.OrderNew}
	for _, b := range f.books {
		if n := f.cart[b.ID]; n > 0 {
			o.Items = append(o.Items, model.OrderItem{BookTitle: b.Title, Quantity: n, Price: b.Price})
			o.TotalPrice = o.TotalPrice.Add(b.Price.Mul(decimal.NewFromInt(int64(n))))
		}
	}
	f.orders = append(f.orders, o)
	f.cart = map[int64]int{}
	return o, nil
}

func (f *fakeBackend) Orders(context.Context) ([]model.Order, error) {
	f.call("Orders")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return nil, errForbidden
	}
	return append([]model.Order(nil), f.orders...), nil
}

func (f *fakeBackend) Login(_ context.Context, in model.Credentials) error {
	f.call("Login")
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.accounts[in.Username] || in.Password != f.password {
		return &model.StatusError{Status: http.StatusBadRequest, Message: "bad credentials"}
	}
	f.user = &model.User{ID: 1, Username: in.Username}
	return nil
}

func (f *fakeBackend) Register(_ context.Context, in model.Credentials) error {
	f.call("Register")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accounts[in.Username] {
		return &model.StatusError{Status: http.StatusBadRequest, Message: "User already exists"}
	}
	f.accounts[in.Username] = true
	return nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.call("Logout")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = nil
	return nil
}

func newTestStorefront(t *testing.T, api Backend, opts ...Option) *Storefront {
	t.Helper()
	view, err := render.New(render.Options{})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := []Option{WithLogger(logger), WithFadeDelay(0)}
	return NewStorefront(api, view, append(base, opts...)...)
}
