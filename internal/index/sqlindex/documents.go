package sqlindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/dbx"
	"github.com/dmitrijs2005/aasindex/internal/index"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/google/uuid"
)

const documentColumns = `d.endpoint, d.id, d.asset_id, d.id_short, d.address, d.crc32, d.observed_at, d.thumbnail, d.readonly, d.online_ready, d.parent_id`

// elementBatch bounds the rows of one multi-row INSERT.
const elementBatch = 100

func (x *Index) Count(ctx context.Context, endpoint string) (int, error) {
	query, args := `SELECT COUNT(*) FROM documents`, []any(nil)
	if endpoint != "" {
		query, args = `SELECT COUNT(*) FROM documents WHERE endpoint = ?`, []any{endpoint}
	}
	var n int
	if err := x.db.QueryRowContext(ctx, x.q(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (x *Index) NextPage(ctx context.Context, endpoint, afterID string, limit int) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents d WHERE d.endpoint = ? AND d.id > ? ORDER BY d.id LIMIT ?`
	return x.selectDocuments(ctx, x.db, query, endpoint, afterID, limit)
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

	var (
		where []string
		args  []any
	)
	switch cursor.Direction {
	case models.DirectionNext:
		where = append(where, `(d.endpoint, d.id) > (?, ?)`)
		args = append(args, cursor.Key.Endpoint, cursor.Key.ID)
	case models.DirectionPrevious:
		where = append(where, `(d.endpoint, d.id) < (?, ?)`)
		args = append(args, cursor.Key.Endpoint, cursor.Key.ID)
	}
	if expr != nil {
		clause, fargs := filterFor(x.dialect).compile(expr)
		where = append(where, clause)
		args = append(args, fargs...)
	}

	query := `SELECT ` + documentColumns + ` FROM documents d`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	if index.Forward(cursor) {
		query += ` ORDER BY d.endpoint, d.id`
	} else {
		query += ` ORDER BY d.endpoint DESC, d.id DESC`
	}
	query += ` LIMIT ?`
	args = append(args, cursor.Limit+1)

	matches, err := x.selectDocuments(ctx, x.db, query, args...)
	if err != nil {
		return nil, err
	}
	return index.AssemblePage(cursor, matches), nil
}

func (x *Index) selectDocuments(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]*models.Document, error) {
	rows, err := db.QueryContext(ctx, x.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*models.Document, error) {
	var (
		d     models.Document
		crc   int64
		nanos int64
	)
	if err := s.Scan(&d.Endpoint, &d.ID, &d.AssetID, &d.IDShort, &d.Address, &crc, &nanos, &d.Thumbnail, &d.ReadOnly, &d.OnlineReady, &d.ParentID); err != nil {
		return nil, err
	}
	d.CRC32 = uint32(crc)
	if nanos != 0 {
		d.Timestamp = time.Unix(0, nanos).UTC()
	}
	return &d, nil
}

func (x *Index) Find(ctx context.Context, endpoint, id string) (*models.Document, bool, error) {
	if id == "" {
		return nil, false, nil
	}
	query := `SELECT ` + documentColumns + ` FROM documents d WHERE (d.id = ? OR d.asset_id = ?)`
	args := []any{id, id}
	if endpoint != "" {
		query += ` AND d.endpoint = ?`
		args = append(args, endpoint)
	}
	query += ` ORDER BY CASE WHEN d.id = ? THEN 0 ELSE 1 END, d.endpoint, d.id LIMIT 1`
	args = append(args, id)

	d, err := scanDocument(x.db.QueryRowContext(ctx, x.q(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select document: %w", err)
	}
	return d, true, nil
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

func (x *Index) Content(ctx context.Context, key models.DocumentKey) (*aas.Node, bool, error) {
	var content sql.NullString
	err := x.db.QueryRowContext(ctx, x.q(`SELECT content FROM documents WHERE endpoint = ? AND id = ?`), key.Endpoint, key.ID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select content: %w", err)
	}
	if !content.Valid || content.String == "" {
		return nil, false, nil
	}
	var n aas.Node
	if err := json.Unmarshal([]byte(content.String), &n); err != nil {
		return nil, false, fmt.Errorf("decode content of %s: %w", key, err)
	}
	return &n, true, nil
}

func (x *Index) Add(ctx context.Context, doc *models.Document) error {
	elements := index.BuildElements(doc, x.dir)
	return dbx.WithTx(ctx, x.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, ok, err := findEndpoint(ctx, tx, x.q, doc.Endpoint)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", common.ErrEndpointNotFound, doc.Endpoint)
		}
		_, ok, err = x.documentUUID(ctx, tx, doc.Endpoint, doc.ID)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s", common.ErrDocumentExists, doc.Key())
		}

		id := uuid.NewString()
		content, err := encodeContent(doc.Content)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, x.q(`INSERT INTO documents
			(uuid, endpoint, id, asset_id, id_short, address, crc32, observed_at, thumbnail, readonly, online_ready, parent_id, content)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			id, doc.Endpoint, doc.ID, doc.AssetID, doc.IDShort, doc.Address, int64(doc.CRC32), unixNanos(doc.Timestamp),
			doc.Thumbnail, doc.ReadOnly, doc.OnlineReady, doc.ParentID, content)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return x.insertElements(ctx, tx, id, elements)
	})
}

func (x *Index) Update(ctx context.Context, doc *models.Document) error {
	elements := index.BuildElements(doc, x.dir)
	return dbx.WithTx(ctx, x.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		id, ok, err := x.documentUUID(ctx, tx, doc.Endpoint, doc.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", common.ErrDocumentNotFound, doc.Key())
		}

		content, err := encodeContent(doc.Content)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, x.q(`UPDATE documents SET
			asset_id = ?, id_short = ?, address = ?, crc32 = ?, observed_at = ?, thumbnail = ?,
			readonly = ?, online_ready = ?, parent_id = ?, content = ?
			WHERE uuid = ?`),
			doc.AssetID, doc.IDShort, doc.Address, int64(doc.CRC32), unixNanos(doc.Timestamp), doc.Thumbnail,
			doc.ReadOnly, doc.OnlineReady, doc.ParentID, content, id)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, x.q(`DELETE FROM elements WHERE uuid = ?`), id); err != nil {
			return fmt.Errorf("delete elements: %w", err)
		}
		return x.insertElements(ctx, tx, id, elements)
	})
}

func (x *Index) Remove(ctx context.Context, endpoint, id string) (bool, error) {
	var removed bool
	err := dbx.WithTx(ctx, x.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, ok, err := x.documentUUID(ctx, tx, endpoint, id)
		if err != nil || !ok {
			return err
		}
		if _, err := tx.ExecContext(ctx, x.q(`DELETE FROM elements WHERE uuid = ?`), u); err != nil {
			return fmt.Errorf("delete elements: %w", err)
		}
		if _, err := tx.ExecContext(ctx, x.q(`DELETE FROM documents WHERE uuid = ?`), u); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		removed = true
		return nil
	})
	return removed, err
}

func (x *Index) Clear(ctx context.Context, endpoint string) error {
	return dbx.WithTx(ctx, x.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if endpoint != "" {
			return x.clearDocuments(ctx, tx, endpoint)
		}
		for _, table := range []string{"elements", "documents", "endpoints"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

func (x *Index) clearDocuments(ctx context.Context, tx dbx.DBTX, endpoint string) error {
	if _, err := tx.ExecContext(ctx, x.q(`DELETE FROM elements WHERE uuid IN (SELECT uuid FROM documents WHERE endpoint = ?)`), endpoint); err != nil {
		return fmt.Errorf("delete elements: %w", err)
	}
	if _, err := tx.ExecContext(ctx, x.q(`DELETE FROM documents WHERE endpoint = ?`), endpoint); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

func (x *Index) documentUUID(ctx context.Context, db dbx.DBTX, endpoint, id string) (string, bool, error) {
	var u string
	err := db.QueryRowContext(ctx, x.q(`SELECT uuid FROM documents WHERE endpoint = ? AND id = ?`), endpoint, id).Scan(&u)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select document: %w", err)
	}
	return u, true, nil
}

func (x *Index) insertElements(ctx context.Context, tx dbx.DBTX, docUUID string, elements []models.Element) error {
	for start := 0; start < len(elements); start += elementBatch {
		end := min(start+elementBatch, len(elements))
		batch := elements[start:end]

		var b strings.Builder
		b.WriteString(`INSERT INTO elements (uuid, model_type, id, id_short, string_value, number_value, date_value, boolean_value, bigint_value) VALUES `)
		args := make([]any, 0, len(batch)*9)
		for i, e := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			var date *int64
			if e.DateValue != nil {
				n := e.DateValue.UnixNano()
				date = &n
			}
			args = append(args, docUUID, e.ModelType, e.ID, e.IDShort, e.StringValue, e.NumberValue, date, e.BooleanValue, e.BigintValue)
		}
		if _, err := tx.ExecContext(ctx, x.q(b.String()), args...); err != nil {
			return fmt.Errorf("insert elements: %w", err)
		}
	}
	return nil
}

func encodeContent(n *aas.Node) (any, error) {
	if n == nil {
		return nil, nil
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return string(b), nil
}

func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
