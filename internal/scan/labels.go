package scan

import (
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

// pageOf pages through an already sorted slice. Cursors are offsets
// rendered as decimal strings.
func pageOf[T any](items []T, cursor string, size int, label func(T) models.Label) (Page, error) {
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n > len(items) {
			return Page{}, fmt.Errorf("%w: %q", common.ErrInvalidCursor, cursor)
		}
		start = n
	}
	end := min(start+size, len(items))

	page := Page{Items: make([]models.Label, 0, end-start)}
	for _, it := range items[start:end] {
		page.Items = append(page.Items, label(it))
	}
	if end < len(items) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}
