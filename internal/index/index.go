// Package index defines the AAS index contract shared by the storage
// backends, together with the helpers every backend composes: value
// coercion, element extraction, filter-expression parsing and page
// assembly.
//
// Pagination uses exclusive keyset cursors over the global
// (endpoint, id) order. A page's Previous key is its first document and
// its Next key its last document; following Next returns documents
// strictly after it, following Previous returns documents strictly before
// it. Documents inserted or removed between calls may appear or be missed;
// the cursors themselves never drift.
package index

import (
	"context"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

// Pager is the endpoint-scoped, id-ordered enumeration used by
// reconciliation.
type Pager interface {
	// NextPage returns up to limit documents of endpoint with id > afterID,
	// in ascending id order, without content.
	NextPage(ctx context.Context, endpoint, afterID string, limit int) ([]*models.Document, error)
}

// Index is the durable, queryable store of endpoints and documents.
type Index interface {
	Pager

	// Count returns the number of documents of endpoint, or of all
	// endpoints when endpoint is empty.
	Count(ctx context.Context, endpoint string) (int, error)
	EndpointCount(ctx context.Context) (int, error)

	Endpoints(ctx context.Context) ([]*models.Endpoint, error)
	// Endpoint fails with common.ErrEndpointNotFound.
	Endpoint(ctx context.Context, name string) (*models.Endpoint, error)
	// FindEndpoint reports absence as a value.
	FindEndpoint(ctx context.Context, name string) (*models.Endpoint, bool, error)
	HasEndpoint(ctx context.Context, name string) (bool, error)
	// AddEndpoint fails with common.ErrEndpointExists.
	AddEndpoint(ctx context.Context, e *models.Endpoint) error
	// UpdateEndpoint replaces by name and returns the prior value.
	UpdateEndpoint(ctx context.Context, e *models.Endpoint) (*models.Endpoint, error)
	// RemoveEndpoint deletes the endpoint with all its documents and
	// elements and reports whether anything was removed.
	RemoveEndpoint(ctx context.Context, name string) (bool, error)

	// Documents returns one page of the global order, filtered by an
	// optional expression.
	Documents(ctx context.Context, cursor models.Cursor, expression, language string) (*models.Page, error)

	// Add fails with common.ErrEndpointNotFound or common.ErrDocumentExists.
	Add(ctx context.Context, doc *models.Document) error
	// Update fails with common.ErrDocumentNotFound.
	Update(ctx context.Context, doc *models.Document) error
	Remove(ctx context.Context, endpoint, id string) (bool, error)
	// Find looks a document up by id or asset id. With an empty endpoint the
	// first match in key order is returned. The document carries no content.
	Find(ctx context.Context, endpoint, id string) (*models.Document, bool, error)
	// Get is Find failing with common.ErrDocumentNotFound.
	Get(ctx context.Context, endpoint, id string) (*models.Document, error)
	// Content decodes the stored environment of the document at key. It
	// reports false when the document is missing or was stored without one.
	Content(ctx context.Context, key models.DocumentKey) (*aas.Node, bool, error)
	// Clear removes the documents of endpoint, or everything (endpoints
	// included) when endpoint is empty.
	Clear(ctx context.Context, endpoint string) error

	Close() error
}
