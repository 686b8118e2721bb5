package adapter

import (
	"bookstore-web/internal/core/model"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// wire shapes of the bookstore API

type bookRef struct {
	BookID int64 `json:"book_id"`
}

type credentialsDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type categoryDTO struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type userDTO struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IsSuperuser bool   `json:"is_superuser"`
}

func (u userDTO) toModel() model.User {
	return model.User{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsSuperuser: u.IsSuperuser,
	}
}

type reviewDTO struct {
	ID        int64   `json:"id"`
	Book      int64   `json:"book"`
	Username  string  `json:"username"`
	Rating    int     `json:"rating"`
	Text      string  `json:"text"`
	CreatedAt apiTime `json:"created_at"`
}

func (r reviewDTO) toModel() model.Review {
	return model.Review{
		ID:        r.ID,
		BookID:    r.Book,
		Username:  r.Username,
		Rating:    r.Rating,
		Text:      r.Text,
		CreatedAt: time.Time(r.CreatedAt),
	}
}

type bookDTO struct {
	ID          int64           `json:"id"`
	Category    int64           `json:"category"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       *string         `json:"image"`
	AvgRating   float64         `json:"avg_rating"`
	CreatedAt   apiTime         `json:"created_at"`
	Reviews     []reviewDTO     `json:"reviews"`
}

func (b bookDTO) toModel() model.Book {
	out := model.Book{
		ID:          b.ID,
		CategoryID:  b.Category,
		Title:       b.Title,
		Author:      b.Author,
		Description: b.Description,
		Price:       b.Price,
		Stock:       b.Stock,
		Image:       b.Image,
		AvgRating:   b.AvgRating,
		CreatedAt:   time.Time(b.CreatedAt),
	}
	if b.Image != nil && *b.Image == "" {
		out.Image = nil
	}
	if len(b.Reviews) > 0 {
		out.Reviews = make([]model.Review, 0, len(b.Reviews))
		for _, r := range b.Reviews {
			out.Reviews = append(out.Reviews, r.toModel())
		}
	}
	return out
}

type cartLineDTO struct {
	ID       int64   `json:"id"`
	Book     bookDTO `json:"book"`
	Quantity int     `json:"quantity"`
}

type cartDTO struct {
	ID         int64           `json:"id"`
	Items      []cartLineDTO   `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

func (c cartDTO) toModel() model.Cart {
	out := model.Cart{ID: c.ID, TotalPrice: c.TotalPrice}
	for _, it := range c.Items {
		if it.Quantity < 1 {
			continue
		}
		out.Lines = append(out.Lines, model.CartLine{ID: it.ID, Book: it.Book.toModel(), Quantity: it.Quantity})
	}
	return out
}

type orderItemDTO struct {
	BookTitle string          `json:"book_title"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type orderDTO struct {
	ID         int64           `json:"id"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  apiTime         `json:"created_at"`
	Items      []orderItemDTO  `json:"items"`
}

func (o orderDTO) toModel() model.Order {
	out := model.Order{
		ID:         o.ID,
		Status:     model.OrderStatus(o.Status),
		TotalPrice: o.TotalPrice,
		CreatedAt:  time.Time(o.CreatedAt),
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, model.OrderItem{BookTitle: it.BookTitle, Quantity: it.Quantity, Price: it.Price})
	}
	return out
}

// apiTime accepts RFC 3339 timestamps as well as the zone-less form the
// backend emits when it runs without time zone support.
type apiTime time.Time

var apiTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"}

func (t *apiTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*t = apiTime{}
		return nil
	}
	for _, layout := range apiTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = apiTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

type paginated[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

// decodeList accepts either a paginated envelope or a plain JSON array.
func decodeList[T any](raw json.RawMessage) (items []T, count int, isPage bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, 0, false, fmt.Errorf("%w: decode list: %w", model.ErrRequestFailed, err)
		}
		return items, len(items), false, nil
	}
	var p paginated[T]
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, 0, false, fmt.Errorf("%w: decode page: %w", model.ErrRequestFailed, err)
	}
	return p.Results, p.Count, true, nil
}

func decodeBooks(raw json.RawMessage) (model.Page[model.Book], error) {
	items, count, isPage, err := decodeList[bookDTO](raw)
	if err != nil {
		return model.Page[model.Book]{}, err
	}
	books := make([]model.Book, 0, len(items))
	for _, b := range items {
		books = append(books, b.toModel())
	}
	return model.Page[model.Book]{Data: books, Count: count, Paginated: isPage}, nil
}
