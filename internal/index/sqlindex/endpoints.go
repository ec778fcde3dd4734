package sqlindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/dbx"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

func (x *Index) EndpointCount(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM endpoints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count endpoints: %w", err)
	}
	return n, nil
}

func (x *Index) Endpoints(ctx context.Context) ([]*models.Endpoint, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT data FROM endpoints ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select endpoints: %w", err)
	}
	defer rows.Close()

	var out []*models.Endpoint
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		e, err := decodeEndpoint(data)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
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
	return findEndpoint(ctx, x.db, x.q, name)
}

func findEndpoint(ctx context.Context, db dbx.DBTX, q func(string) string, name string) (*models.Endpoint, bool, error) {
	var data string
	err := db.QueryRowContext(ctx, q(`SELECT data FROM endpoints WHERE name = ?`), name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select endpoint: %w", err)
	}
	e, err := decodeEndpoint(data)
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

func (x *Index) HasEndpoint(ctx context.Context, name string) (bool, error) {
	_, ok, err := x.FindEndpoint(ctx, name)
	return ok, err
}

func (x *Index) AddEndpoint(ctx context.Context, e *models.Endpoint) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode endpoint: %w", err)
	}
	return dbx.WithTx(ctx, x.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, ok, err := findEndpoint(ctx, tx, x.q, e.Name)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s", common.ErrEndpointExists, e.Name)
		}
		if _, err := tx.ExecContext(ctx, x.q(`INSERT INTO endpoints (name, data) VALUES (?, ?)`), e.Name, string(data)); err != nil {
			return fmt.Errorf("insert endpoint: %w", err)
		}
		return nil
	})
}

func (x *Index) UpdateEndpoint(ctx context.Context, e *models.Endpoint) (*models.Endpoint, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode endpoint: %w", err)
	}
	var prior *models.Endpoint
	err = dbx.WithTx(ctx, x.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		old, ok, err := findEndpoint(ctx, tx, x.q, e.Name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", common.ErrEndpointNotFound, e.Name)
		}
		prior = old
		if _, err := tx.ExecContext(ctx, x.q(`UPDATE endpoints SET data = ? WHERE name = ?`), string(data), e.Name); err != nil {
			return fmt.Errorf("update endpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prior, nil
}

func (x *Index) RemoveEndpoint(ctx context.Context, name string) (bool, error) {
	var removed bool
	err := dbx.WithTx(ctx, x.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := x.clearDocuments(ctx, tx, name); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, x.q(`DELETE FROM endpoints WHERE name = ?`), name)
		if err != nil {
			return fmt.Errorf("delete endpoint: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = n > 0
		return nil
	})
	return removed, err
}

func decodeEndpoint(data string) (*models.Endpoint, error) {
	var e models.Endpoint
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("decode endpoint: %w", err)
	}
	return &e, nil
}
