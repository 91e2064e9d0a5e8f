package pagination

import (
	"context"
	"fmt"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"gorm.io/gorm"
)

// Request identifies one window of a list query. Page is 1-based.
type Request struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// Result is a window of items plus the total number of matches.
type Result[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

// Validate rejects pages below 1 and non-positive sizes.
func (r Request) Validate() error {
	if r.Page < 1 {
		return apperror.Validation("pagination", "page must be >= 1, got %d", r.Page)
	}
	if r.Size < 1 {
		return apperror.Validation("pagination", "size must be >= 1, got %d", r.Size)
	}
	return nil
}

// Offset is the number of rows preceding the window.
func (r Request) Offset() int {
	return (r.Page - 1) * r.Size
}

// Pages returns ceil(total/size).
func (r Result[T]) Pages() int64 {
	if r.Size <= 0 {
		return 0
	}
	return (r.Total + int64(r.Size) - 1) / int64(r.Size)
}

// Paginate is a gorm scope applying the window's offset and limit.
func Paginate(req Request) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset()).Limit(req.Size)
	}
}

// Window describes how the rows of a page are projected and ordered.
type Window struct {
	Select string
	Order  string
}

// Query counts the rows matched by base, then loads the requested window of
// rows into []R. base carries the table, joins and filter predicate only;
// projection and ordering come from w and apply to the window query.
func Query[R any](ctx context.Context, base *gorm.DB, req Request, w Window) (Result[R], error) {
	res := Result[R]{Page: req.Page, Size: req.Size, Items: []R{}}
	if err := req.Validate(); err != nil {
		return res, err
	}

	if err := base.Session(&gorm.Session{}).WithContext(ctx).Count(&res.Total).Error; err != nil {
		return res, fmt.Errorf("failed to count rows: %w", err)
	}
	if res.Total == 0 || int64(req.Offset()) >= res.Total {
		return res, nil
	}

	q := base.Session(&gorm.Session{}).WithContext(ctx)
	if w.Select != "" {
		q = q.Select(w.Select)
	}
	if w.Order != "" {
		q = q.Order(w.Order)
	}
	if err := q.Scopes(Paginate(req)).Find(&res.Items).Error; err != nil {
		return res, fmt.Errorf("failed to load page: %w", err)
	}
	return res, nil
}
