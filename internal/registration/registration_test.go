package registration

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datebox-be/internal/inventory"
	"datebox-be/internal/order"
)

func TestRepository_CreateForOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	orderDocID := uuid.New()

	ord := &order.Order{
		ID:            orderDocID,
		OrderID:       "DB-TEST-1",
		CustomerName:  "Jess Doe",
		CustomerEmail: "jess@example.com",
		Items: []order.Item{
			{ItemID: "ev-1", Type: inventory.TypeEvent, Size: "Female", Quantity: 2},
			{ItemID: "shirt-1", Type: inventory.TypeShop, Size: "M", Quantity: 1},
		},
	}

	// Only the event line produces a registration, with a lowercased ticket
	// type.
	mock.ExpectExec(`INSERT INTO registrations`).
		WithArgs(sqlmock.AnyArg(), "ev-1", "DB-TEST-1", orderDocID,
			"Jess Doe", "jess@example.com", "female", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.CreateForOrder(ctx, ord)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DeleteForItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	orderDocID := uuid.New()

	mock.ExpectExec(`DELETE FROM registrations`).
		WithArgs("DB-TEST-1", orderDocID, "ev-1", "female").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.DeleteForItem(ctx, "DB-TEST-1", orderDocID, "ev-1", "Female")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DeleteForOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	ctx := context.Background()
	orderDocID := uuid.New()

	mock.ExpectExec(`DELETE FROM registrations`).
		WithArgs("DB-TEST-1", orderDocID).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err = repo.DeleteForOrder(ctx, "DB-TEST-1", orderDocID)
	assert.NoError(t, err)
}
