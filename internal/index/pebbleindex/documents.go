package pebbleindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/index"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

func (x *Index) Count(ctx context.Context, endpoint string) (int, error) {
	prefix := []byte(prefixDocument)
	if endpoint != "" {
		prefix = documentPrefix(endpoint)
	}
	n := 0
	err := x.scan(prefix, func(_, _ []byte) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}

func (x *Index) NextPage(ctx context.Context, endpoint, afterID string, limit int) ([]*models.Document, error) {
	prefix := documentPrefix(endpoint)
	it, err := x.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	after := documentKey(endpoint, afterID)
	var out []*models.Document
	for valid := it.SeekGE(after); valid && len(out) < limit; valid = it.Next() {
		if bytes.Equal(it.Key(), after) {
			continue
		}
		r, err := decodeRecord(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, r.Document)
	}
	return out, it.Error()
}

// Documents returns one page of the global order. Documents carry no content.
func (x *Index) Documents(ctx context.Context, cursor models.Cursor, expression, language string) (*models.Page, error) {
	cursor, err := cursor.Normalize()
	if err != nil {
		return nil, err
	}
	expr, err := index.Compile(expression, language, x.dir)
	if err != nil {
		return nil, err
	}

	prefix := []byte(prefixDocument)
	it, err := x.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var (
		valid bool
		step  func() bool
	)
	switch cursor.Direction {
	case models.DirectionFirst:
		valid, step = it.First(), it.Next
	case models.DirectionLast:
		valid, step = it.Last(), it.Prev
	case models.DirectionNext:
		k := documentKey(cursor.Key.Endpoint, cursor.Key.ID)
		valid, step = it.SeekGE(k), it.Next
		if valid && bytes.Equal(it.Key(), k) {
			valid = it.Next()
		}
	case models.DirectionPrevious:
		valid, step = it.SeekLT(documentKey(cursor.Key.Endpoint, cursor.Key.ID)), it.Prev
	}

	var matches []*models.Document
	for ; valid && len(matches) <= cursor.Limit; valid = step() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := decodeRecord(it.Value())
		if err != nil {
			return nil, err
		}
		if index.Match(expr, r.Document, r.Elements) {
			matches = append(matches, r.Document)
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return index.AssemblePage(cursor, matches), nil
}

func decodeRecord(v []byte) (*record, error) {
	var r record
	if err := json.Unmarshal(v, &r); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &r, nil
}

// Find looks id up as a document id first, then as an asset id.
func (x *Index) Find(ctx context.Context, endpoint, id string) (*models.Document, bool, error) {
	if id == "" {
		return nil, false, nil
	}

	endpoints := []string{endpoint}
	if endpoint == "" {
		all, err := x.Endpoints(ctx)
		if err != nil {
			return nil, false, err
		}
		endpoints = endpoints[:0]
		for _, e := range all {
			endpoints = append(endpoints, e.Name)
		}
	}
	for _, e := range endpoints {
		d, ok, err := x.load(e, id)
		if err != nil || ok {
			return d, ok, err
		}
	}

	var key models.DocumentKey
	found := false
	err := x.scan(aliasPrefix(id), func(k, _ []byte) (bool, error) {
		dk, ok := parseAliasKey(k)
		if !ok || (endpoint != "" && dk.Endpoint != endpoint) {
			return true, nil
		}
		key, found = dk, true
		return false, nil
	})
	if err != nil || !found {
		return nil, false, err
	}
	return x.load(key.Endpoint, key.ID)
}

func (x *Index) load(endpoint, id string) (*models.Document, bool, error) {
	r, ok, err := x.loadRecord(endpoint, id)
	if err != nil || !ok {
		return nil, false, err
	}
	return r.Document, true, nil
}

func (x *Index) loadRecord(endpoint, id string) (*record, bool, error) {
	var r record
	ok, err := x.get(documentKey(endpoint, id), &r)
	if err != nil || !ok {
		return nil, false, err
	}
	return &r, true, nil
}

func (x *Index) Content(ctx context.Context, key models.DocumentKey) (*aas.Node, bool, error) {
	r, ok, err := x.loadRecord(key.Endpoint, key.ID)
	if err != nil || !ok {
		return nil, false, err
	}
	var content aas.Node
	ok, err = x.get(contentKey(r.UUID), &content)
	if err != nil || !ok {
		return nil, false, err
	}
	return &content, true, nil
}

func (x *Index) Get(ctx context.Context, endpoint, id string) (*models.Document, error) {
	d, ok, err := x.Find(ctx, endpoint, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", common.ErrDocumentNotFound, endpoint, id)
	}
	return d, nil
}
