package models

import (
	"time"

	"github.com/dmitrijs2005/aasindex/internal/aas"
)

// Document is the indexed record of one AAS observed at one endpoint.
// Identity is (Endpoint, ID); AssetID is an optional lookup alias.
type Document struct {
	Endpoint    string    `json:"endpoint"`
	ID          string    `json:"id"`
	AssetID     string    `json:"assetId,omitempty"`
	IDShort     string    `json:"idShort"`
	Address     string    `json:"address"`
	CRC32       uint32    `json:"crc32"`
	Timestamp   time.Time `json:"timestamp"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Content     *aas.Node `json:"content,omitempty"`
	ReadOnly    bool      `json:"readonly"`
	OnlineReady bool      `json:"onlineReady"`
	ParentID    string    `json:"parentId,omitempty"`
}

// Key returns the document's position in the global order.
func (d *Document) Key() DocumentKey {
	return DocumentKey{Endpoint: d.Endpoint, ID: d.ID}
}

// WithoutContent returns a shallow copy with Content cleared.
func (d *Document) WithoutContent() *Document {
	c := *d
	c.Content = nil
	return &c
}

// Element is one indexable node of a document's content tree. At most one
// of the value fields is set, chosen by the node's declared value type.
type Element struct {
	ModelType    string     `json:"modelType"`
	ID           string     `json:"id,omitempty"`
	IDShort      string     `json:"idShort,omitempty"`
	StringValue  *string    `json:"stringValue,omitempty"`
	NumberValue  *float64   `json:"numberValue,omitempty"`
	DateValue    *time.Time `json:"dateValue,omitempty"`
	BooleanValue *bool      `json:"booleanValue,omitempty"`
	BigintValue  *int64     `json:"bigintValue,omitempty"`
}

// Label identifies a document at an endpoint without its content.
type Label struct {
	ID      string `json:"id"`
	IDShort string `json:"idShort"`
}
