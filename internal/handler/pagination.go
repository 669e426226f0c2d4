package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/repository"
)

// Paginator reads ?page=&limit= and builds the list envelope.
type Paginator struct {
	PageSize    int
	MaxPageSize int
}

// Page is the envelope of every paginated list.
type Page struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

type pageRequest struct {
	page  int
	limit int
}

func (pr pageRequest) options() repository.ListOptions {
	return repository.ListOptions{Limit: pr.limit, Offset: (pr.page - 1) * pr.limit}
}

// parse reads the page number (1-based) and page size. A page that is not a
// positive integer is not found. A bad limit falls back to the default; a
// large one is capped.
func (p Paginator) parse(r *http.Request) (pageRequest, error) {
	q := r.URL.Query()

	pr := pageRequest{page: 1, limit: p.PageSize}
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return pr, apperror.NotFound("page", raw)
		}
		pr.page = n
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pr.limit = min(n, p.MaxPageSize)
		}
	}
	return pr, nil
}

// envelope wraps one page of results. Asking for a page past the last one is
// a 404; the first page of an empty list is not.
func (pr pageRequest) envelope(r *http.Request, count int, results any) (*Page, error) {
	if pr.page > 1 && (pr.page-1)*pr.limit >= count {
		return nil, apperror.NotFound("page", pr.page)
	}

	page := &Page{Count: count, Results: results}
	if pr.page*pr.limit < count {
		next := pageURL(r, pr.page+1)
		page.Next = &next
	}
	if pr.page > 1 {
		prev := pageURL(r, pr.page-1)
		page.Previous = &prev
	}
	return page, nil
}

// pageURL is the absolute URL of the request with the page number replaced.
// The first page is addressed without a page parameter.
func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	q := r.URL.Query()
	if page == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	return u.String()
}

// paginate parses the request, runs list and writes the envelope.
func paginate[T any](w http.ResponseWriter, r *http.Request, p Paginator, list func(repository.ListOptions) ([]T, int, error)) {
	pr, err := p.parse(r)
	if err != nil {
		writeError(w, err)
		return
	}
	results, count, err := list(pr.options())
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := pr.envelope(r, count, results)
	if err != nil {
		writeError(w, fmt.Errorf("handler: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, page)
}
