package models

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/aasindex/internal/common"
)

// DocumentKey is a position in the global (endpoint, id) order.
type DocumentKey struct {
	Endpoint string `json:"endpoint"`
	ID       string `json:"id"`
}

// Compare orders keys by endpoint, then id, byte-wise.
func (k DocumentKey) Compare(o DocumentKey) int {
	if c := strings.Compare(k.Endpoint, o.Endpoint); c != 0 {
		return c
	}
	return strings.Compare(k.ID, o.ID)
}

func (k DocumentKey) String() string {
	return k.Endpoint + "/" + k.ID
}

// Direction tells the index which page a cursor asks for.
type Direction string

const (
	DirectionFirst    Direction = "first"
	DirectionNext     Direction = "next"
	DirectionPrevious Direction = "previous"
	DirectionLast     Direction = "last"
)

// Cursor addresses a page. Key is exclusive: a next page starts strictly
// after it, a previous page ends strictly before it. Key is ignored for the
// first and last page.
type Cursor struct {
	Direction Direction    `json:"direction"`
	Key       *DocumentKey `json:"key,omitempty"`
	Limit     int          `json:"limit"`
}

func FirstPage(limit int) Cursor {
	return Cursor{Direction: DirectionFirst, Limit: limit}
}

func LastPage(limit int) Cursor {
	return Cursor{Direction: DirectionLast, Limit: limit}
}

func NextPage(key DocumentKey, limit int) Cursor {
	return Cursor{Direction: DirectionNext, Key: &key, Limit: limit}
}

func PreviousPage(key DocumentKey, limit int) Cursor {
	return Cursor{Direction: DirectionPrevious, Key: &key, Limit: limit}
}

// Normalize fills defaults and validates the cursor.
func (c Cursor) Normalize() (Cursor, error) {
	if c.Limit <= 0 {
		c.Limit = common.DefaultPageLimit
	}
	switch c.Direction {
	case "":
		c.Direction = DirectionFirst
	case DirectionFirst, DirectionLast:
	case DirectionNext, DirectionPrevious:
		if c.Key == nil {
			return c, fmt.Errorf("%w: %s page needs a key", common.ErrInvalidCursor, c.Direction)
		}
	default:
		return c, fmt.Errorf("%w: unknown direction %q", common.ErrInvalidCursor, c.Direction)
	}
	return c, nil
}

// Page is one slice of the global order, always in ascending order.
// Previous is nil on the first page and Next is nil on the last page.
type Page struct {
	Documents []*Document  `json:"documents"`
	Previous  *DocumentKey `json:"previous"`
	Next      *DocumentKey `json:"next"`
}

// NextCursor returns the cursor of the following page, or false at the end.
func (p *Page) NextCursor(limit int) (Cursor, bool) {
	if p.Next == nil {
		return Cursor{}, false
	}
	return NextPage(*p.Next, limit), true
}

// PreviousCursor returns the cursor of the preceding page, or false at the start.
func (p *Page) PreviousCursor(limit int) (Cursor, bool) {
	if p.Previous == nil {
		return Cursor{}, false
	}
	return PreviousPage(*p.Previous, limit), true
}
