// Package registration records event attendees derived from paid orders. One
// row per ticket line; the quantity covers a party of that ticket category.
package registration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"datebox-be/internal/inventory"
	"datebox-be/internal/order"
)

type Registration struct {
	ID         uuid.UUID `json:"id"`
	EventID    string    `json:"eventId"`
	OrderRef   string    `json:"orderRef"`
	OrderDocID uuid.UUID `json:"orderDocId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	TicketType string    `json:"ticketType"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Repository interface {
	// CreateForOrder registers the buyer for every event line on the order.
	CreateForOrder(ctx context.Context, ord *order.Order) error
	// DeleteForOrder removes all registrations tied to one order.
	DeleteForOrder(ctx context.Context, orderRef string, orderDocID uuid.UUID) error
	// DeleteForItem removes the registration for one event ticket line.
	DeleteForItem(ctx context.Context, orderRef string, orderDocID uuid.UUID, eventID, ticketType string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(database *sql.DB) Repository {
	return &repository{db: database}
}

func (r *repository) CreateForOrder(ctx context.Context, ord *order.Order) error {
	now := time.Now().UTC()
	for _, item := range ord.Items {
		if item.Type != inventory.TypeEvent || item.Quantity <= 0 {
			continue
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO registrations
				(id, event_id, order_ref, order_doc_id, name, email,
				 ticket_type, quantity, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, uuid.New(), item.ItemID, ord.OrderID, ord.ID,
			ord.CustomerName, ord.CustomerEmail,
			normalizeTicketType(item.Size), item.Quantity, now)
		if err != nil {
			return fmt.Errorf("failed to insert registration: %w", err)
		}
	}
	return nil
}

func (r *repository) DeleteForOrder(ctx context.Context, orderRef string, orderDocID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM registrations
		WHERE order_ref = $1 AND order_doc_id = $2
	`, orderRef, orderDocID)
	if err != nil {
		return fmt.Errorf("failed to delete registrations: %w", err)
	}
	return nil
}

func (r *repository) DeleteForItem(ctx context.Context, orderRef string, orderDocID uuid.UUID, eventID, ticketType string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM registrations
		WHERE order_ref = $1 AND order_doc_id = $2
		  AND event_id = $3 AND ticket_type = $4
	`, orderRef, orderDocID, eventID, normalizeTicketType(ticketType))
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	return nil
}

// Registrations store the ticket category lowercased so lookups never miss on
// casing.
func normalizeTicketType(ticketType string) string {
	return strings.ToLower(strings.TrimSpace(ticketType))
}
