package adapter

import (
	"bookstore-web/internal/core/model"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oapi-codegen/runtime"
)

// CallObserver is told about every finished bookstore API call.
type CallObserver interface {
	ObserveCall(ctx context.Context, op string, took time.Duration, err error)
}

// BookstoreClient talks to the bookstore REST API on behalf of one visitor.
// Its http.Client must carry a cookie jar: the backend session and the
// anti-forgery cookie live there.
type BookstoreClient struct {
	BaseURL    string
	Client     *http.Client
	Retry      int
	CSRFCookie string
	CSRFHeader string
	Observer   CallObserver

	mu    sync.Mutex
	token string
}

func NewBookstoreClient(baseURL string, retry int, httpClient *http.Client) *BookstoreClient {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if retry < 0 {
		retry = 0
	}
	return &BookstoreClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Client:     httpClient,
		Retry:      retry,
		CSRFCookie: "csrftoken",
		CSRFHeader: "X-CSRFToken",
	}
}

// Prime loads the storefront page so the backend sets the anti-forgery
// cookie, then caches its value for mutating calls.
func (c *BookstoreClient) Prime(ctx context.Context) error {
	if err := c.get(ctx, "prime", "/", nil, nil); err != nil {
		return err
	}
	if c.Client.Jar == nil {
		return fmt.Errorf("%w: http client has no cookie jar", model.ErrRequestFailed)
	}
	u, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return err
	}
	for _, ck := range c.Client.Jar.Cookies(u) {
		if ck.Name == c.CSRFCookie {
			c.mu.Lock()
			c.token = ck.Value
			c.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: no %s cookie", model.ErrRequestFailed, c.CSRFCookie)
}

func (c *BookstoreClient) csrfToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *BookstoreClient) CurrentUser(ctx context.Context) (model.User, error) {
	var u userDTO
	if err := c.get(ctx, "current_user", "/api/profile/", nil, &u); err != nil {
		return model.User{}, err
	}
	return u.toModel(), nil
}

func (c *BookstoreClient) UpdateProfile(ctx context.Context, in model.ProfileUpdate) (model.User, error) {
	body := map[string]string{
		"email":      in.Email,
		"first_name": in.FirstName,
		"last_name":  in.LastName,
	}
	var u userDTO
	if err := c.send(ctx, "update_profile", http.MethodPatch, "/api/profile/", body, &u); err != nil {
		return model.User{}, err
	}
	return u.toModel(), nil
}

func (c *BookstoreClient) FavoriteIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := c.get(ctx, "favorite_ids", "/api/favorites/ids/", nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *BookstoreClient) Favorites(ctx context.Context) (model.Page[model.Book], error) {
	var raw json.RawMessage
	if err := c.get(ctx, "favorites", "/api/favorites/", nil, &raw); err != nil {
		return model.Page[model.Book]{}, err
	}
	return decodeBooks(raw)
}

// ToggleFavorite flips the mark and returns whether the book is now a favorite.
func (c *BookstoreClient) ToggleFavorite(ctx context.Context, bookID int64) (bool, error) {
	var out struct {
		IsFavorite bool `json:"is_favorite"`
	}
	err := c.send(ctx, "toggle_favorite", http.MethodPost, "/api/favorites/toggle/", bookRef{BookID: bookID}, &out)
	if err != nil {
		return false, err
	}
	return out.IsFavorite, nil
}

func (c *BookstoreClient) Categories(ctx context.Context) ([]model.Category, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "categories", "/api/categories/", nil, &raw); err != nil {
		return nil, err
	}
	items, _, _, err := decodeList[categoryDTO](raw)
	if err != nil {
		return nil, err
	}
	out := make([]model.Category, 0, len(items))
	for _, it := range items {
		out = append(out, model.Category{ID: it.ID, Title: it.Title})
	}
	return out, nil
}

// ListBooks fetches one catalog page. Empty parameters are not sent.
func (c *BookstoreClient) ListBooks(ctx context.Context, q model.ListQuery) (model.Page[model.Book], error) {
	params := url.Values{}
	if q.Page > 0 {
		if err := addQuery(params, "page", q.Page); err != nil {
			return model.Page[model.Book]{}, err
		}
	}
	if q.Search != "" {
		if err := addQuery(params, "search", q.Search); err != nil {
			return model.Page[model.Book]{}, err
		}
	}
	if q.Ordering != "" {
		if err := addQuery(params, "ordering", q.Ordering); err != nil {
			return model.Page[model.Book]{}, err
		}
	}
	if q.Category != 0 {
		if err := addQuery(params, "category", q.Category); err != nil {
			return model.Page[model.Book]{}, err
		}
	}

	var raw json.RawMessage
	if err := c.get(ctx, "list_books", "/api/books/", params, &raw); err != nil {
		return model.Page[model.Book]{}, err
	}
	return decodeBooks(raw)
}

func (c *BookstoreClient) GetBook(ctx context.Context, id int64) (model.Book, error) {
	p, err := pathParam("id", id)
	if err != nil {
		return model.Book{}, err
	}
	var b bookDTO
	if err := c.get(ctx, "get_book", "/api/books/"+p+"/", nil, &b); err != nil {
		return model.Book{}, err
	}
	return b.toModel(), nil
}

func (c *BookstoreClient) CreateReview(ctx context.Context, in model.ReviewInput) (model.Review, error) {
	body := struct {
		Book   int64  `json:"book"`
		Rating int    `json:"rating"`
		Text   string `json:"text"`
	}{in.BookID, in.Rating, in.Text}
	var r reviewDTO
	if err := c.send(ctx, "create_review", http.MethodPost, "/api/reviews/", body, &r); err != nil {
		return model.Review{}, err
	}
	return r.toModel(), nil
}

func (c *BookstoreClient) DeleteReview(ctx context.Context, id int64) error {
	p, err := pathParam("id", id)
	if err != nil {
		return err
	}
	return c.send(ctx, "delete_review", http.MethodDelete, "/api/reviews/"+p+"/", nil, nil)
}

func (c *BookstoreClient) Cart(ctx context.Context) (model.Cart, error) {
	var dto cartDTO
	if err := c.get(ctx, "cart", "/api/cart/", nil, &dto); err != nil {
		return model.Cart{}, err
	}
	return dto.toModel(), nil
}

func (c *BookstoreClient) AddToCart(ctx context.Context, bookID int64) error {
	return c.send(ctx, "cart_add", http.MethodPost, "/api/cart/add/", bookRef{BookID: bookID}, nil)
}

func (c *BookstoreClient) ReduceCartItem(ctx context.Context, bookID int64) error {
	return c.send(ctx, "cart_reduce", http.MethodPost, "/api/cart/reduce_quantity/", bookRef{BookID: bookID}, nil)
}

func (c *BookstoreClient) RemoveCartItem(ctx context.Context, bookID int64) error {
	return c.send(ctx, "cart_remove", http.MethodPost, "/api/cart/delete_item/", bookRef{BookID: bookID}, nil)
}

// Checkout creates an order from the whole cart.
func (c *BookstoreClient) Checkout(ctx context.Context) (model.Order, error) {
	var o orderDTO
	if err := c.send(ctx, "checkout", http.MethodPost, "/api/orders/", struct{}{}, &o); err != nil {
		return model.Order{}, err
	}
	return o.toModel(), nil
}

func (c *BookstoreClient) Orders(ctx context.Context) ([]model.Order, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "orders", "/api/orders/", nil, &raw); err != nil {
		return nil, err
	}
	items, _, _, err := decodeList[orderDTO](raw)
	if err != nil {
		return nil, err
	}
	out := make([]model.Order, 0, len(items))
	for _, it := range items {
		out = append(out, it.toModel())
	}
	return out, nil
}

func (c *BookstoreClient) Login(ctx context.Context, in model.Credentials) error {
	return c.send(ctx, "login", http.MethodPost, "/api/login/", credentialsDTO(in), nil)
}

func (c *BookstoreClient) Register(ctx context.Context, in model.Credentials) error {
	return c.send(ctx, "register", http.MethodPost, "/api/register/", credentialsDTO(in), nil)
}

// Logout ends the backend session and forgets the cached token.
func (c *BookstoreClient) Logout(ctx context.Context) error {
	if err := c.get(ctx, "logout", "/logout/", nil, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return nil
}

// get is retried with a linear backoff. Answers the server gave on purpose
// (4xx) are final.
func (c *BookstoreClient) get(ctx context.Context, op, path string, q url.Values, out any) error {
	var lastErr error
	attempts := c.Retry + 1
	for i := 0; i < attempts; i++ {
		err := c.do(ctx, op, http.MethodGet, path, q, nil, out)
		if err == nil {
			return nil
		}
		var se *model.StatusError
		if errors.As(err, &se) && se.Status < http.StatusInternalServerError {
			return err
		}
		lastErr = err
		// simple backoff
		if i < attempts-1 {
			select {
			case <-time.After(time.Duration(150*(i+1)) * time.Millisecond):
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", model.ErrRequestFailed, ctx.Err())
			}
		}
	}
	return lastErr
}

// send performs a mutating call once, with the anti-forgery header.
func (c *BookstoreClient) send(ctx context.Context, op, method, path string, body, out any) error {
	return c.do(ctx, op, method, path, nil, body, out)
}

func (c *BookstoreClient) do(ctx context.Context, op, method, path string, q url.Values, body, out any) (err error) {
	if c.Observer != nil {
		start := time.Now()
		defer func() { c.Observer.ObserveCall(ctx, op, time.Since(start), err) }()
	}

	endpoint := c.BaseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", op, err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set(c.CSRFHeader, c.csrfToken())
		// the backend checks the referer on secure origins
		req.Header.Set("Referer", c.BaseURL+"/")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrRequestFailed, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &model.StatusError{Status: resp.StatusCode, Message: errorMessage(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", model.ErrRequestFailed, op, err)
	}
	return nil
}

// errorMessage pulls a readable message out of an error body: the "error" or
// "detail" field, or the first field error of a validation response.
func errorMessage(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, k := range []string{"error", "detail"} {
		var s string
		if raw, ok := fields[k]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	for k, raw := range fields {
		var list []string
		if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
			return k + ": " + list[0]
		}
	}
	return ""
}

func addQuery(v url.Values, name string, value any) error {
	frag, err := runtime.StyleParamWithLocation("form", true, name, runtime.ParamLocationQuery, value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	parsed, err := url.ParseQuery(frag)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	for k, vs := range parsed {
		for _, s := range vs {
			v.Add(k, s)
		}
	}
	return nil
}

func pathParam(name string, value any) (string, error) {
	p, err := runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	return p, nil
}
