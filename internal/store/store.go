// Package store is the persistence layer for the café POS business
// records. Rows are exchanged as Records keyed by the catalog's camelCase
// column names; the catalog owns their shape.
package store

import (
	"context"
	"fmt"
)

// Reader provides read access to catalog tables
type Reader interface {
	// FindFirst returns the row with the lowest id, or nil when the table is empty
	FindFirst(ctx context.Context, t Table) (Record, error)
	// FindAll returns every row ordered by id
	FindAll(ctx context.Context, t Table) ([]Record, error)
	// FindByOrderIDs returns rows whose orderId is in ids. An empty ids slice
	// returns nil without touching the database.
	FindByOrderIDs(ctx context.Context, t Table, ids []int64) ([]Record, error)
	// ListIDs returns the primary keys of every row
	ListIDs(ctx context.Context, t Table) ([]int64, error)
}

// Writer provides write access; only available inside a transaction
type Writer interface {
	DeleteAll(ctx context.Context, t Table) (int64, error)
	DeleteByOrderIDs(ctx context.Context, t Table, ids []int64) (int64, error)
	Insert(ctx context.Context, t Table, rec Record) (int64, error)
	InsertMany(ctx context.Context, t Table, recs []Record) (int, error)
}

// Tx is a unit of work against the store
type Tx interface {
	Reader
	Writer
}

// Store is the persistence handle passed to services
type Store interface {
	Reader
	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

func requireOrderColumn(t Table) error {
	if !t.HasColumn("orderId") {
		return fmt.Errorf("table %s has no orderId column", t.Name)
	}
	return nil
}

// IDs extracts the integer ids of records, skipping rows without one
func IDs(recs []Record) []int64 {
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		if id, ok := r.Int64("id"); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
