package render

import (
	"math"

	"bookstore-web/internal/core/model"
)

// DefaultPageSize is the page size the bookstore API paginates books with.
const DefaultPageSize = 8

const starPositions = 5

// StarDisplay is a five-position star rating.
type StarDisplay struct {
	Filled int
}

// Stars fills round(rating) of five positions, rounding halves up.
func Stars(rating float64) StarDisplay {
	n := int(math.Floor(rating + 0.5))
	if n < 0 {
		n = 0
	}
	if n > starPositions {
		n = starPositions
	}
	return StarDisplay{Filled: n}
}

// Positions is true for every filled position, left to right.
func (s StarDisplay) Positions() []bool {
	out := make([]bool, starPositions)
	for i := 0; i < s.Filled; i++ {
		out[i] = true
	}
	return out
}

type StockTier string

const (
	InStock    StockTier = "in_stock"
	LowStock   StockTier = "low_stock"
	OutOfStock StockTier = "out_of_stock"
)

const lowStockThreshold = 5

func StockLevel(stock int) StockTier {
	switch {
	case stock > lowStockThreshold:
		return InStock
	case stock > 0:
		return LowStock
	default:
		return OutOfStock
	}
}

// PageLink is one control of the page selector.
type PageLink struct {
	Page     int
	Current  bool
	Disabled bool
}

type Pagination struct {
	TotalPages int
	Current    int
	Prev       PageLink
	Next       PageLink
	Pages      []PageLink
}

// Visible reports whether a page selector should be drawn at all.
func (p Pagination) Visible() bool { return p.TotalPages > 1 }

// Paginate lays out the page selector for count results shown pageSize at a
// time, with current as the active page.
func Paginate(count, current, pageSize int) Pagination {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	total := 0
	if count > 0 {
		total = (count + pageSize - 1) / pageSize
	}
	if current < 1 {
		current = 1
	}
	p := Pagination{
		TotalPages: total,
		Current:    current,
		Prev:       PageLink{Page: current - 1, Disabled: current <= 1},
		Next:       PageLink{Page: current + 1, Disabled: current >= total},
	}
	for i := 1; i <= total; i++ {
		p.Pages = append(p.Pages, PageLink{Page: i, Current: i == current})
	}
	return p
}

type HistogramBar struct {
	Star    int
	Count   int
	Percent float64
}

// RatingHistogram returns one bar per star value from 5 down to 1. Ratings
// outside 1..5 are ignored.
func RatingHistogram(reviews []model.Review) []HistogramBar {
	var counts [starPositions + 1]int
	for _, r := range reviews {
		if r.Rating >= 1 && r.Rating <= starPositions {
			counts[r.Rating]++
		}
	}
	total := len(reviews)
	bars := make([]HistogramBar, 0, starPositions)
	for star := starPositions; star >= 1; star-- {
		bar := HistogramBar{Star: star, Count: counts[star]}
		if total > 0 {
			bar.Percent = float64(counts[star]) / float64(total) * 100
		}
		bars = append(bars, bar)
	}
	return bars
}
