package binding

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
)

// PaginationStyle is the paging scheme of an HTTP collection endpoint.
type PaginationStyle string

const (
	PageOffset PaginationStyle = "offset"
	PageCursor PaginationStyle = "cursor"
	PageNumber PaginationStyle = "page"
	PageRange  PaginationStyle = "range"
)

// Pagination is the position of one page request.
type Pagination struct {
	Style PaginationStyle

	Limit  int
	Offset int
	Cursor string
	Page   int

	LimitParam  string // default "limit"
	OffsetParam string // default "offset"
	CursorParam string // default "cursor"
	PageParam   string // default "page"
	RangeUnit   string // default "items"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Apply writes the page position onto req as query parameters or, for range
// paging, a Range header.
func (p Pagination) Apply(req *http.Request) {
	if p.Style == PageRange {
		if p.Limit > 0 {
			req.Header.Set("Range", fmt.Sprintf("%s=%d-%d", orDefault(p.RangeUnit, "items"), p.Offset, p.Offset+p.Limit-1))
		}
		return
	}

	if p.Limit > 0 {
		appendQuery(req, orDefault(p.LimitParam, "limit"), strconv.Itoa(p.Limit))
	}
	switch p.Style {
	case PageOffset:
		appendQuery(req, orDefault(p.OffsetParam, "offset"), strconv.Itoa(p.Offset))
	case PageCursor:
		if p.Cursor != "" {
			appendQuery(req, orDefault(p.CursorParam, "cursor"), p.Cursor)
		}
	case PageNumber:
		appendQuery(req, orDefault(p.PageParam, "page"), strconv.Itoa(max(p.Page, 1)))
	}
}

// appendQuery adds one entry without re-encoding the existing query, which
// carries style-specific separators.
func appendQuery(req *http.Request, key, value string) {
	entry := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	if req.URL.RawQuery == "" {
		req.URL.RawQuery = entry
		return
	}
	req.URL.RawQuery += "&" + entry
}

var (
	linkNext     = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?next"?`)
	contentRange = regexp.MustCompile(`^\s*\w+\s+(\d+)-(\d+)/(\d+|\*)\s*$`)
)

// Next derives the following page from a response carrying items entries.
// Cursor paging reads X-Next-Cursor or a Link rel="next" URL, range paging
// reads Content-Range, offset and page paging use X-Total-Count, then Link,
// then a short page. ok is false on the last page.
func (p Pagination) Next(resp *http.Response, items int) (next Pagination, ok bool) {
	next = p

	switch p.Style {
	case PageCursor:
		if c := resp.Header.Get("X-Next-Cursor"); c != "" {
			next.Cursor = c
			return next, true
		}
		if m := linkNext.FindStringSubmatch(resp.Header.Get("Link")); m != nil {
			if c := cursorFromURL(m[1], orDefault(p.CursorParam, "cursor")); c != "" {
				next.Cursor = c
				return next, true
			}
		}
		return next, false

	case PageRange:
		m := contentRange.FindStringSubmatch(resp.Header.Get("Content-Range"))
		if m == nil {
			return next, false
		}
		end, _ := strconv.Atoi(m[2])
		next.Offset = end + 1
		if m[3] == "*" {
			return next, items > 0
		}
		total, _ := strconv.Atoi(m[3])
		return next, next.Offset < total
	}

	if items == 0 {
		return next, false
	}
	if p.Style == PageNumber {
		next.Page = max(p.Page, 1) + 1
	} else {
		next.Offset = p.Offset + items
	}

	if total, err := strconv.Atoi(resp.Header.Get("X-Total-Count")); err == nil {
		seen := next.Offset
		if p.Style == PageNumber {
			seen = (next.Page - 1) * max(p.Limit, items)
		}
		return next, seen < total
	}
	if linkNext.MatchString(resp.Header.Get("Link")) {
		return next, true
	}
	return next, p.Limit == 0 || items >= p.Limit
}

func cursorFromURL(raw, param string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get(param)
}
