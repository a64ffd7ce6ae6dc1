package store

import (
	"context"
	"errors"
	"testing"

	apperrors "cafe-pos/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_InsertAndFind(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Seed(Orders,
		Record{"id": 3, "status": "paid"},
		Record{"id": 1, "status": "open"},
	))
	require.NoError(t, m.Seed(OrderItems,
		Record{"orderId": 1, "quantity": 2},
		Record{"orderId": 3, "quantity": 1},
		Record{"orderId": 9, "quantity": 1},
	))

	orders, err := m.FindAll(ctx, Orders)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, IDs(orders))

	first, err := m.FindFirst(ctx, Orders)
	require.NoError(t, err)
	assert.Equal(t, "open", first.String("status"))

	items, err := m.FindByOrderIDs(ctx, OrderItems, []int64{1, 3})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	ids, err := m.ListIDs(ctx, OrderItems)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids, "ids are assigned sequentially")
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.Seed(Users, Record{"id": 1, "username": "owner"}))

	recs, err := m.FindAll(context.Background(), Users)
	require.NoError(t, err)
	recs[0]["username"] = "changed"

	again, _ := m.FindFirst(context.Background(), Users)
	assert.Equal(t, "owner", again.String("username"))
}

func TestMemoryStore_DuplicateID(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.Seed(Users, Record{"id": 1}))

	err := m.Seed(Users, Record{"id": 1})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeConstraint, apperrors.GetErrorType(err))
}

func TestMemoryStore_RollbackOnError(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.Seed(Orders, Record{"id": 1}))

	err := m.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.DeleteAll(ctx, Orders); err != nil {
			return err
		}
		if _, err := tx.Insert(ctx, Orders, Record{"id": 2}); err != nil {
			return err
		}
		return errors.New("injected")
	})
	require.Error(t, err)

	ids, _ := m.ListIDs(ctx, Orders)
	assert.Equal(t, []int64{1}, ids)
}

func TestMemoryStore_DeleteByOrderIDs(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.Seed(Payments,
		Record{"orderId": 1}, Record{"orderId": 2}, Record{"orderId": 2},
	))

	err := m.WithTx(ctx, func(tx Tx) error {
		n, err := tx.DeleteByOrderIDs(ctx, Payments, []int64{2})
		assert.Equal(t, int64(2), n)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count(Payments))

	err = m.WithTx(ctx, func(tx Tx) error {
		_, err := tx.DeleteByOrderIDs(ctx, Users, []int64{1})
		return err
	})
	assert.Error(t, err)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	m := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.WithTx(ctx, func(tx Tx) error {
		t.Fatal("callback must not run")
		return nil
	})
	assert.Error(t, err)
}
