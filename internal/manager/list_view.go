package manager

import (
	"context"
	"errors"
	"sync"

	"github.com/noah-isme/campus-admin-console/internal/models"
)

// ListState is the list view's lifecycle.
type ListState string

const (
	ListIdle    ListState = "idle"
	ListLoading ListState = "loading"
	ListLoaded  ListState = "loaded"
	ListErrored ListState = "errored"
)

var (
	// ErrStale marks a list response that lost to a newer request.
	ErrStale = errors.New("stale list response discarded")
	// ErrClosed is returned once the owning screen has gone away.
	ErrClosed = errors.New("view closed")
)

// Fetcher loads one page of records.
type Fetcher func(ctx context.Context, query models.ListQuery) (models.ListResult[models.Record], error)

// ListSnapshot is a copy of the list view state safe to render.
type ListSnapshot struct {
	State      ListState
	Query      models.ListQuery
	Rows       []models.Record
	Total      int
	TotalPages int
	Err        error
}

// ListView holds the current page and its query. Responses are applied only when they
// belong to the latest request issued.
type ListView struct {
	mu          sync.Mutex
	fetch       Fetcher
	defaultSize int
	maxSize     int

	query  models.ListQuery
	state  ListState
	rows   []models.Record
	total  int
	err    error
	seq    uint64
	closed bool
}

// NewListView creates an idle list view.
func NewListView(fetch Fetcher, defaultSize, maxSize int) *ListView {
	v := &ListView{
		fetch:       fetch,
		defaultSize: defaultSize,
		maxSize:     maxSize,
		state:       ListIdle,
	}
	v.query = models.ListQuery{}.Normalize(defaultSize, maxSize)
	return v
}

// Reload fetches the current query again.
func (v *ListView) Reload(ctx context.Context) error {
	return v.dispatch(ctx, func(q *models.ListQuery) {})
}

// SetSearch changes the search term and returns to the first page.
func (v *ListView) SetSearch(ctx context.Context, term string) error {
	return v.dispatch(ctx, func(q *models.ListQuery) {
		q.Search = term
		q.Page = 1
	})
}

// SetPage moves to page, keeping the search term.
func (v *ListView) SetPage(ctx context.Context, page int) error {
	return v.dispatch(ctx, func(q *models.ListQuery) {
		q.Page = page
	})
}

// SetPageSize changes the page size, keeping the search term and page.
func (v *ListView) SetPageSize(ctx context.Context, size int) error {
	return v.dispatch(ctx, func(q *models.ListQuery) {
		q.PageSize = size
	})
}

// Apply replaces the whole query in one request.
func (v *ListView) Apply(ctx context.Context, query models.ListQuery) error {
	return v.dispatch(ctx, func(q *models.ListQuery) {
		if query.Search != q.Search {
			query.Page = 1
		}
		*q = query
	})
}

func (v *ListView) dispatch(ctx context.Context, mutate func(*models.ListQuery)) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	mutate(&v.query)
	v.query = v.query.Normalize(v.defaultSize, v.maxSize)
	v.seq++
	seq := v.seq
	query := v.query
	v.state = ListLoading
	v.mu.Unlock()

	res, err := v.fetch(ctx, query)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if seq != v.seq {
		return ErrStale
	}
	if err != nil {
		v.state = ListErrored
		v.err = err
		return err
	}
	v.state = ListLoaded
	v.err = nil
	v.rows = res.Items
	v.total = res.Total
	return nil
}

// Find returns the row on the current page with the given id.
func (v *ListView) Find(id string, idOf func(models.Record) string) (models.Record, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, row := range v.rows {
		if idOf(row) == id {
			return row.Clone(), true
		}
	}
	return nil, false
}

// Query returns the current query.
func (v *ListView) Query() models.ListQuery {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

// Snapshot copies the state for rendering.
func (v *ListView) Snapshot() ListSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	rows := make([]models.Record, len(v.rows))
	copy(rows, v.rows)
	return ListSnapshot{
		State:      v.state,
		Query:      v.query,
		Rows:       rows,
		Total:      v.total,
		TotalPages: models.TotalPages(v.total, v.query.PageSize),
		Err:        v.err,
	}
}

// Close detaches the view. In-flight responses are dropped.
func (v *ListView) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}
