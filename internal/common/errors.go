// Package common defines shared constants and sentinel errors used across
// the index, scan and provider layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Not-found errors. Endpoint and document absence are kept apart so
	// callers can tell "endpoint gone" from "document gone".
	ErrEndpointNotFound = errors.New("endpoint not found")
	ErrDocumentNotFound = errors.New("document not found")

	// Conflict errors, raised at the mutation boundary.
	ErrEndpointExists = errors.New("endpoint already exists")
	ErrDocumentExists = errors.New("document already exists")

	// Scheduling errors.
	ErrScanInProgress       = errors.New("scan already in progress")
	ErrManualScanNotAllowed = errors.New("endpoint is not configured for manual scans")

	// Input errors.
	ErrInvalidCursor     = errors.New("invalid cursor")
	ErrInvalidExpression = errors.New("invalid filter expression")
	ErrInvalidEndpoint   = errors.New("invalid endpoint")

	ErrReadOnly            = errors.New("document is read-only")
	ErrUnsupportedEndpoint = errors.New("unsupported endpoint type")
	ErrSourceNotOpen       = errors.New("source not open")
)
