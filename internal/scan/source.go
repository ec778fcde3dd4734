// Package scan enumerates the documents an endpoint currently serves and
// reconciles them against the index.
package scan

import (
	"context"

	"github.com/dmitrijs2005/aasindex/internal/models"
)

// Page is one page of labels from a source. An empty NextCursor marks the
// last page.
type Page struct {
	Items      []models.Label
	NextCursor string
}

// Source is the paging contract every endpoint client implements. Labels
// must be returned in ascending id order.
type Source interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	// NextPage returns the page following cursor; an empty cursor starts
	// from the beginning.
	NextPage(ctx context.Context, cursor string) (Page, error)
	// CreateDocument materializes the full document behind label. It fails
	// with common.ErrDocumentNotFound when the label vanished since it was
	// listed.
	CreateDocument(ctx context.Context, label models.Label) (*models.Document, error)
}

// EventKind tags a reconciliation event.
type EventKind int

const (
	// EventAdd carries a live document the index does not know.
	EventAdd EventKind = iota
	// EventRemove carries an indexed document the endpoint no longer serves.
	EventRemove
	// EventCompare carries both sides of an id present in index and endpoint.
	EventCompare
	// EventError reports one item that could not be read. The scan goes on.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventAdd:
		return "add"
	case EventRemove:
		return "remove"
	case EventCompare:
		return "compare"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is one delta between index and endpoint.
type Event struct {
	Kind      EventKind
	Reference *models.Document
	Document  *models.Document
	// Item and Err are set on EventError.
	Item string
	Err  error
}
