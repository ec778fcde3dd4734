// Package pebbleindex implements index.Index on an embedded Pebble
// key-value store. Filters are evaluated in process over the element rows
// stored with each document record.
package pebbleindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/index"
	"github.com/dmitrijs2005/aasindex/internal/keywords"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/google/uuid"
)

var _ index.Index = (*Index)(nil)

// record is the stored form of a document.
type record struct {
	UUID     string           `json:"uuid"`
	Document *models.Document `json:"document"`
	Elements []models.Element `json:"elements"`
}

// Index is the Pebble-backed document index.
type Index struct {
	db  *pebble.DB
	dir *keywords.Directory

	// serializes read-check-write mutations
	mu sync.Mutex
}

// Open opens or creates a store in path. An empty path keeps everything in
// memory.
func Open(path string, dir *keywords.Directory) (*Index, error) {
	opts := &pebble.Options{}
	if path == "" {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &Index{db: db, dir: dir}, nil
}

func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) get(key []byte, v any) (bool, error) {
	data, closer, err := x.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	if v == nil {
		return true, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (x *Index) scan(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	it, err := x.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		return err
	}
	defer it.Close()
	for valid := it.First(); valid; valid = it.Next() {
		more, err := fn(it.Key(), it.Value())
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return it.Error()
}

func (x *Index) EndpointCount(ctx context.Context) (int, error) {
	n := 0
	err := x.scan([]byte(prefixEndpoint), func(_, _ []byte) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}

func (x *Index) Endpoints(ctx context.Context) ([]*models.Endpoint, error) {
	var out []*models.Endpoint
	err := x.scan([]byte(prefixEndpoint), func(_, v []byte) (bool, error) {
		var e models.Endpoint
		if err := json.Unmarshal(v, &e); err != nil {
			return false, fmt.Errorf("decode endpoint: %w", err)
		}
		out = append(out, &e)
		return true, nil
	})
	return out, err
}

func (x *Index) Endpoint(ctx context.Context, name string) (*models.Endpoint, error) {
	e, ok, err := x.FindEndpoint(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrEndpointNotFound, name)
	}
	return e, nil
}

func (x *Index) FindEndpoint(ctx context.Context, name string) (*models.Endpoint, bool, error) {
	var e models.Endpoint
	ok, err := x.get(endpointKey(name), &e)
	if err != nil || !ok {
		return nil, false, err
	}
	return &e, true, nil
}

func (x *Index) HasEndpoint(ctx context.Context, name string) (bool, error) {
	return x.get(endpointKey(name), nil)
}

func (x *Index) AddEndpoint(ctx context.Context, e *models.Endpoint) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	ok, err := x.get(endpointKey(e.Name), nil)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", common.ErrEndpointExists, e.Name)
	}
	return x.putEndpoint(e)
}

func (x *Index) UpdateEndpoint(ctx context.Context, e *models.Endpoint) (*models.Endpoint, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	prior, ok, err := x.FindEndpoint(ctx, e.Name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrEndpointNotFound, e.Name)
	}
	if err := x.putEndpoint(e); err != nil {
		return nil, err
	}
	return prior, nil
}

func (x *Index) putEndpoint(e *models.Endpoint) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode endpoint: %w", err)
	}
	return x.db.Set(endpointKey(e.Name), data, pebble.Sync)
}

func (x *Index) RemoveEndpoint(ctx context.Context, name string) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	ok, err := x.get(endpointKey(name), nil)
	if err != nil || !ok {
		return false, err
	}
	b := x.db.NewBatch()
	defer b.Close()
	if err := x.clearDocuments(b, name); err != nil {
		return false, err
	}
	if err := b.Delete(endpointKey(name), nil); err != nil {
		return false, err
	}
	return true, b.Commit(pebble.Sync)
}

func (x *Index) Clear(ctx context.Context, endpoint string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	b := x.db.NewBatch()
	defer b.Close()
	if endpoint != "" {
		if err := x.clearDocuments(b, endpoint); err != nil {
			return err
		}
		return b.Commit(pebble.Sync)
	}
	for _, p := range []string{prefixEndpoint, prefixDocument, prefixContent, prefixAlias} {
		if err := b.DeleteRange([]byte(p), upperBound([]byte(p)), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (x *Index) clearDocuments(b *pebble.Batch, endpoint string) error {
	return x.scan(documentPrefix(endpoint), func(k, v []byte) (bool, error) {
		var r record
		if err := json.Unmarshal(v, &r); err != nil {
			return false, fmt.Errorf("decode document: %w", err)
		}
		return true, x.deleteRecord(b, &r)
	})
}

func (x *Index) deleteRecord(b *pebble.Batch, r *record) error {
	d := r.Document
	if err := b.Delete(documentKey(d.Endpoint, d.ID), nil); err != nil {
		return err
	}
	if err := b.Delete(contentKey(r.UUID), nil); err != nil {
		return err
	}
	if d.AssetID != "" {
		return b.Delete(aliasKey(d.AssetID, d.Endpoint, d.ID), nil)
	}
	return nil
}

func (x *Index) writeRecord(b *pebble.Batch, r *record, content *aas.Node) error {
	d := r.Document
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := b.Set(documentKey(d.Endpoint, d.ID), data, nil); err != nil {
		return err
	}
	if content != nil {
		c, err := json.Marshal(content)
		if err != nil {
			return fmt.Errorf("encode content: %w", err)
		}
		if err := b.Set(contentKey(r.UUID), c, nil); err != nil {
			return err
		}
	}
	if d.AssetID != "" {
		return b.Set(aliasKey(d.AssetID, d.Endpoint, d.ID), nil, nil)
	}
	return nil
}

func (x *Index) Add(ctx context.Context, doc *models.Document) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	ok, err := x.get(endpointKey(doc.Endpoint), nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrEndpointNotFound, doc.Endpoint)
	}
	ok, err = x.get(documentKey(doc.Endpoint, doc.ID), nil)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", common.ErrDocumentExists, doc.Key())
	}

	r := &record{UUID: uuid.NewString(), Document: doc.WithoutContent(), Elements: index.BuildElements(doc, x.dir)}
	b := x.db.NewBatch()
	defer b.Close()
	if err := x.writeRecord(b, r, doc.Content); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (x *Index) Update(ctx context.Context, doc *models.Document) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var old record
	ok, err := x.get(documentKey(doc.Endpoint, doc.ID), &old)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrDocumentNotFound, doc.Key())
	}

	b := x.db.NewBatch()
	defer b.Close()
	if err := x.deleteRecord(b, &old); err != nil {
		return err
	}
	r := &record{UUID: old.UUID, Document: doc.WithoutContent(), Elements: index.BuildElements(doc, x.dir)}
	if err := x.writeRecord(b, r, doc.Content); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (x *Index) Remove(ctx context.Context, endpoint, id string) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	var r record
	ok, err := x.get(documentKey(endpoint, id), &r)
	if err != nil || !ok {
		return false, err
	}
	b := x.db.NewBatch()
	defer b.Close()
	if err := x.deleteRecord(b, &r); err != nil {
		return false, err
	}
	return true, b.Commit(pebble.Sync)
}
