package ranking

// DefaultPageSize is the number of results per page shown by the
// presentation layer.
const DefaultPageSize = 9

// PageCursor is the offset into the final ordered result list defining the
// currently displayed page. It is an explicit value owned by the caller's
// session, passed into and returned from navigation; the offset is always a
// multiple of the page size.
type PageCursor struct {
	Offset int `json:"offset"`
}

// Next advances the cursor by one page. It is a no-op at the last page.
func (c PageCursor) Next(total, pageSize int) PageCursor {
	if c.Offset+pageSize >= total {
		return c
	}
	return PageCursor{Offset: c.Offset + pageSize}
}

// Prev moves the cursor back by one page. It is a no-op at the first page.
func (c PageCursor) Prev(pageSize int) PageCursor {
	if c.Offset < pageSize {
		return c
	}
	return PageCursor{Offset: c.Offset - pageSize}
}

// Clamp bounds the cursor to [0, last_page_start] for a result list of the
// given total length. Used before slicing when the result set shrank.
func (c PageCursor) Clamp(total, pageSize int) PageCursor {
	if c.Offset < 0 {
		return PageCursor{}
	}
	last := (TotalPages(total, pageSize) - 1) * pageSize
	if last < 0 {
		last = 0
	}
	if c.Offset > last {
		return PageCursor{Offset: last}
	}
	return c
}

// PageNumber reports the 1-based page number for the presentation layer.
func (c PageCursor) PageNumber(pageSize int) int {
	return c.Offset/pageSize + 1
}

// TotalPages returns ceil(total/pageSize). An empty result list has zero
// pages; the presentation layer shows its "no products found" state instead
// of a page indicator.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// Page slices one page out of the ordered list and reports the total page
// count. It never returns more than pageSize items. The caller is
// responsible for clamping the offset; an offset past the end yields an
// empty page rather than a fault.
func Page[T any](ordered []T, offset, pageSize int) ([]T, int) {
	totalPages := TotalPages(len(ordered), pageSize)
	if offset < 0 || offset >= len(ordered) {
		return nil, totalPages
	}
	end := offset + pageSize
	if end > len(ordered) {
		end = len(ordered)
	}
	return ordered[offset:end], totalPages
}
