package rules

import (
	"fmt"
	"strings"
	"time"
)

const (
	DeleteConfirmation    = "DELETE"
	DeleteAllConfirmation = "DELETE ALL"
)

func Confirmed(input, phrase string) bool {
	return strings.TrimSpace(input) == phrase
}

// BanDuration parses one of 1d, 7d, 30d or permanent. A permanent ban
// returns ok with a zero duration.
func BanDuration(raw string) (time.Duration, bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1d":
		return 24 * time.Hour, false, nil
	case "7d":
		return 7 * 24 * time.Hour, false, nil
	case "30d":
		return 30 * 24 * time.Hour, false, nil
	case "permanent":
		return 0, true, nil
	default:
		return 0, false, fmt.Errorf("unsupported ban duration %q", raw)
	}
}

const (
	MaxVisiblePages = 5
	// PageEllipsis marks a gap in the page list.
	PageEllipsis = 0
)

// VisiblePages returns the page buttons for current of total: a window of
// at most MaxVisiblePages pages centred on current, plus the first and last
// page separated by PageEllipsis when they are outside the window.
func VisiblePages(current, total int) []int {
	if total <= 1 {
		return nil
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	start := max(1, current-MaxVisiblePages/2)
	end := min(total, start+MaxVisiblePages-1)
	if end-start+1 < MaxVisiblePages {
		start = max(1, end-MaxVisiblePages+1)
	}

	pages := make([]int, 0, MaxVisiblePages+4)
	if start > 1 {
		pages = append(pages, 1)
		if start > 2 {
			pages = append(pages, PageEllipsis)
		}
	}
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	if end < total {
		if end < total-1 {
			pages = append(pages, PageEllipsis)
		}
		pages = append(pages, total)
	}
	return pages
}

func TotalPages(items, perPage int) int {
	if perPage <= 0 || items <= 0 {
		return 0
	}
	return (items + perPage - 1) / perPage
}
