package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cafe-pos/internal/errors"
)

// MemoryStore keeps catalog tables in memory. Transactions work on a copy
// of the data that replaces the live tables only when the callback succeeds.
// It applies the same normalisation as SQLStore, which makes it a drop-in
// store for demos and tests.
type MemoryStore struct {
	mu   sync.Mutex
	data *memoryData
}

type memoryData struct {
	rows   map[string][]Record
	nextID map[string]int64
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memoryData{
		rows:   make(map[string][]Record),
		nextID: make(map[string]int64),
	}}
}

func (m *MemoryStore) FindFirst(ctx context.Context, t Table) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.FindFirst(ctx, t)
}

func (m *MemoryStore) FindAll(ctx context.Context, t Table) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.FindAll(ctx, t)
}

func (m *MemoryStore) FindByOrderIDs(ctx context.Context, t Table, ids []int64) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.FindByOrderIDs(ctx, t, ids)
}

func (m *MemoryStore) ListIDs(ctx context.Context, t Table) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.ListIDs(ctx, t)
}

// WithTx runs fn against a snapshot and publishes it on success. Transactions
// are serialised.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.WrapError(err, "failed to begin transaction")
	}

	work := m.data.clone()
	if err := fn(work); err != nil {
		return err
	}
	m.data = work
	return nil
}

// Seed inserts records outside of a transaction
func (m *MemoryStore) Seed(t Table, recs ...Record) error {
	return m.WithTx(context.Background(), func(tx Tx) error {
		_, err := tx.InsertMany(context.Background(), t, recs)
		return err
	})
}

// Count returns the number of rows in a table
func (m *MemoryStore) Count(t Table) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data.rows[t.Name])
}

func (d *memoryData) clone() *memoryData {
	out := &memoryData{
		rows:   make(map[string][]Record, len(d.rows)),
		nextID: make(map[string]int64, len(d.nextID)),
	}
	for name, recs := range d.rows {
		copied := make([]Record, len(recs))
		for i, r := range recs {
			copied[i] = r.Clone()
		}
		out.rows[name] = copied
	}
	for name, id := range d.nextID {
		out.nextID[name] = id
	}
	return out
}

func (d *memoryData) FindFirst(ctx context.Context, t Table) (Record, error) {
	recs, _ := d.FindAll(ctx, t)
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0], nil
}

func (d *memoryData) FindAll(_ context.Context, t Table) ([]Record, error) {
	src := d.rows[t.Name]
	if len(src) == 0 {
		return nil, nil
	}
	out := make([]Record, len(src))
	for i, r := range src {
		out[i] = r.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := out[i].Int64("id")
		b, _ := out[j].Int64("id")
		return a < b
	})
	return out, nil
}

func (d *memoryData) FindByOrderIDs(ctx context.Context, t Table, ids []int64) ([]Record, error) {
	if err := requireOrderColumn(t); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	all, _ := d.FindAll(ctx, t)
	var out []Record
	for _, r := range all {
		if orderID, ok := r.Int64("orderId"); ok && wanted[orderID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *memoryData) ListIDs(ctx context.Context, t Table) ([]int64, error) {
	all, _ := d.FindAll(ctx, t)
	return IDs(all), nil
}

func (d *memoryData) DeleteAll(_ context.Context, t Table) (int64, error) {
	n := int64(len(d.rows[t.Name]))
	delete(d.rows, t.Name)
	return n, nil
}

func (d *memoryData) DeleteByOrderIDs(_ context.Context, t Table, ids []int64) (int64, error) {
	if err := requireOrderColumn(t); err != nil {
		return 0, err
	}

	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var kept []Record
	var removed int64
	for _, r := range d.rows[t.Name] {
		if orderID, ok := r.Int64("orderId"); ok && wanted[orderID] {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	d.rows[t.Name] = kept
	return removed, nil
}

func (d *memoryData) Insert(_ context.Context, t Table, rec Record) (int64, error) {
	row, err := t.Normalize(rec)
	if err != nil {
		return 0, errors.NewAppError(errors.ErrorTypeValidation, err.Error(), err)
	}

	id, ok := row.Int64("id")
	if !ok {
		id = d.nextID[t.Name] + 1
		row["id"] = id
	}
	for _, existing := range d.rows[t.Name] {
		if other, _ := existing.Int64("id"); other == id {
			return 0, errors.NewAppError(errors.ErrorTypeConstraint,
				fmt.Sprintf("duplicate id %d in %s", id, t.Name), nil)
		}
	}
	if id > d.nextID[t.Name] {
		d.nextID[t.Name] = id
	}

	d.rows[t.Name] = append(d.rows[t.Name], row)
	return id, nil
}

func (d *memoryData) InsertMany(ctx context.Context, t Table, recs []Record) (int, error) {
	for i, rec := range recs {
		if _, err := d.Insert(ctx, t, rec); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}

var _ Store = (*MemoryStore)(nil)
var _ Tx = (*memoryData)(nil)
