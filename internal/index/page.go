package index

import (
	"slices"

	"github.com/dmitrijs2005/aasindex/internal/models"
)

// Forward reports whether a cursor reads the global order ascending.
// Backends fetch ascending matches for forward cursors and descending
// matches otherwise.
func Forward(c models.Cursor) bool {
	return c.Direction == models.DirectionFirst || c.Direction == models.DirectionNext
}

// AssemblePage builds a page from up to c.Limit+1 matches read in the
// cursor's direction. The extra match only signals that more documents
// exist beyond the page.
func AssemblePage(c models.Cursor, matches []*models.Document) *models.Page {
	more := len(matches) > c.Limit
	if more {
		matches = matches[:c.Limit]
	}
	docs := slices.Clone(matches)
	if !Forward(c) {
		slices.Reverse(docs)
	}

	page := &models.Page{Documents: docs}
	var first, last *models.DocumentKey
	if len(docs) > 0 {
		f, l := docs[0].Key(), docs[len(docs)-1].Key()
		first, last = &f, &l
	}

	switch c.Direction {
	case models.DirectionFirst:
		if more {
			page.Next = last
		}
	case models.DirectionNext:
		page.Previous = first
		if first == nil {
			page.Previous = keyCopy(c.Key)
		}
		if more {
			page.Next = last
		}
	case models.DirectionLast:
		if more {
			page.Previous = first
		}
	case models.DirectionPrevious:
		page.Next = last
		if last == nil {
			page.Next = keyCopy(c.Key)
		}
		if more {
			page.Previous = first
		}
	}
	return page
}

func keyCopy(k *models.DocumentKey) *models.DocumentKey {
	if k == nil {
		return nil
	}
	c := *k
	return &c
}
