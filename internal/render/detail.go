package render

import (
	"html/template"

	"bookstore-web/internal/core/model"
)

type reviewRow struct {
	Review    model.Review
	CanDelete bool
}

type detailData struct {
	Book      model.Book
	Histogram []HistogramBar
	Reviews   []reviewRow
	Count     int
	SignedIn  bool
	Draft     ReviewDraft
	Ratings   []int
}

// ReviewDraft is the content of the review form, kept across re-renders.
type ReviewDraft struct {
	Rating int
	Text   string
	Error  string
}

// DefaultReviewRating is preselected in the review form.
const DefaultReviewRating = 5

// Detail renders the book detail view. Reviews keep the order the server sent.
func (r *Renderer) Detail(b model.Book, viewer *model.User, draft ReviewDraft) (template.HTML, error) {
	if draft.Rating < 1 || draft.Rating > 5 {
		draft.Rating = DefaultReviewRating
	}
	rows := make([]reviewRow, 0, len(b.Reviews))
	for _, rv := range b.Reviews {
		rows = append(rows, reviewRow{Review: rv, CanDelete: viewer.CanDeleteReview(rv)})
	}
	return r.fragment("detail", detailData{
		Book:      b,
		Histogram: RatingHistogram(b.Reviews),
		Reviews:   rows,
		Count:     len(b.Reviews),
		SignedIn:  viewer != nil,
		Draft:     draft,
		Ratings:   []int{5, 4, 3, 2, 1},
	})
}
