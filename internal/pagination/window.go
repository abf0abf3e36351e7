// Package pagination computes the bounded set of page links shown under a list.
package pagination

// MaxVisible is the number of consecutive page links in the window.
const MaxVisible = 7

// Item is one navigation entry: a page link or an ellipsis marker.
type Item struct {
	Page     int  `json:"page,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
	Current  bool `json:"current,omitempty"`
}

// Window returns the page links for current within [1, pageCount]. A current
// page outside that range is clamped. pageCount < 1 yields no items.
func Window(current, pageCount int) []Item {
	if pageCount < 1 {
		return nil
	}
	current = clamp(current, 1, pageCount)

	start, end := Span(current, pageCount)
	items := make([]Item, 0, MaxVisible+4)
	if start > 1 {
		items = append(items, Item{Page: 1})
		if start > 2 {
			items = append(items, Item{Ellipsis: true})
		}
	}
	for p := start; p <= end; p++ {
		items = append(items, Item{Page: p, Current: p == current})
	}
	if end < pageCount {
		if end < pageCount-1 {
			items = append(items, Item{Ellipsis: true})
		}
		items = append(items, Item{Page: pageCount})
	}
	return items
}

// Span returns the first and last page of the consecutive window.
func Span(current, pageCount int) (int, int) {
	half := MaxVisible / 2
	start := max(1, current-half)
	end := min(pageCount, start+MaxVisible-1)
	if end-start+1 < MaxVisible {
		start = max(1, end-MaxVisible+1)
	}
	return start, end
}

// InRange reports whether page may be requested for a list with pageCount pages.
func InRange(page, pageCount int) bool {
	return page >= 1 && page <= pageCount
}

// Prev returns the previous page and whether it exists.
func Prev(current int) (int, bool) {
	return current - 1, current > 1
}

// Next returns the next page and whether it exists.
func Next(current, pageCount int) (int, bool) {
	return current + 1, current < pageCount
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
