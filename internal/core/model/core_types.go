package model

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// All core models live here together for simplicity.

var (
	ErrValidation      = errors.New("validation")
	ErrNotFound        = errors.New("not_found")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrRequestFailed   = errors.New("request_failed")
)

// StatusError is a non-2xx answer from the bookstore API. It unwraps to the
// sentinel callers branch on.
type StatusError struct {
	Status  int
	Message string // server-supplied "error" field, may be empty
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bookstore api: status %d", e.Status)
	}
	return fmt.Sprintf("bookstore api: status %d: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthenticated
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return ErrRequestFailed
	}
}

// ServerMessage returns the message the API attached to err, if any.
func ServerMessage(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}

type Category struct {
	ID    int64
	Title string
}

type Review struct {
	ID        int64
	BookID    int64
	Username  string
	Rating    int // 1..5
	Text      string
	CreatedAt time.Time
}

// Book is a catalog item. AvgRating and Reviews always come from the same
// response.
type Book struct {
	ID          int64
	CategoryID  int64
	Title       string
	Author      string
	Description string
	Price       decimal.Decimal
	Stock       int
	Image       *string
	AvgRating   float64
	CreatedAt   time.Time
	Reviews     []Review
}

type CartLine struct {
	ID       int64
	Book     Book
	Quantity int // >= 1, the server drops lines that reach 0
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.Book.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	ID         int64
	Lines      []CartLine
	TotalPrice decimal.Decimal // as reported by the server
}

// Total is the sum of price × quantity over all lines.
func (c Cart) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}

// ItemCount is what the cart badge shows.
func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

type OrderStatus string

const (
	OrderNew        OrderStatus = "new"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

type OrderItem struct {
	BookTitle string
	Quantity  int
	Price     decimal.Decimal
}

type Order struct {
	ID         int64
	Status     OrderStatus
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
	Items      []OrderItem
}

type User struct {
	ID          int64
	Username    string
	Email       string
	FirstName   string
	LastName    string
	IsSuperuser bool
}

// CanDeleteReview reports whether u may remove r. The server enforces the
// same rule.
func (u *User) CanDeleteReview(r Review) bool {
	if u == nil {
		return false
	}
	return u.IsSuperuser || u.Username == r.Username
}

type Page[T any] struct {
	Data      []T
	Count     int
	Paginated bool // false when the API answered with a plain list
}

type ListQuery struct {
	Search   string
	Ordering string // price | -price | created_at | -created_at | average_rating | -average_rating
	Category int64  // 0 = all categories
	Page     int
}

type Credentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type ReviewInput struct {
	BookID int64  `validate:"required"`
	Rating int    `validate:"min=1,max=5"`
	Text   string `validate:"required"`
}

type ProfileUpdate struct {
	Email     string `validate:"omitempty,email"`
	FirstName string `validate:"max=150"`
	LastName  string `validate:"max=150"`
}
