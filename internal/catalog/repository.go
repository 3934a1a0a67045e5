package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"datebox-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	GetShopItem(ctx context.Context, id string) (*ShopItem, error)
	GetEvent(ctx context.Context, id string) (*Event, error)
	TaxRate(ctx context.Context) (float64, error)
	ListOpenEvents(ctx context.Context) ([]*Event, error)
	MarkEventEnded(ctx context.Context, id string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// GetShopItem loads an item with its size entries. Returns nil, nil when the
// item does not exist.
func (r *repository) GetShopItem(ctx context.Context, id string) (*ShopItem, error) {
	query := `
		SELECT id, name, price, status, image_url, quantity
		FROM shop_items
		WHERE id = $1
	`

	var item ShopItem
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&item.ID, &item.Name, &item.Price, &item.Status, &item.ImageURL, &item.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query shop item: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT size, quantity
		FROM shop_item_sizes
		WHERE item_id = $1
		ORDER BY size
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query item sizes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry SizeEntry
		if err := rows.Scan(&entry.Size, &entry.Quantity); err != nil {
			return nil, err
		}
		item.Sizes = append(item.Sizes, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &item, nil
}

// GetEvent returns nil, nil when the event does not exist.
func (r *repository) GetEvent(ctx context.Context, id string) (*Event, error) {
	query := `
		SELECT id, title, date, time, location, ticket_price, status,
			male_tickets, female_tickets, registered_male, registered_female
		FROM events
		WHERE id = $1
	`

	var e Event
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&e.ID, &e.Title, &e.Date, &e.Time, &e.Location, &e.TicketPrice, &e.Status,
			&e.MaleTickets, &e.FemaleTickets, &e.RegisteredMale, &e.RegisteredFemale)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query event: %w", err)
	}

	return &e, nil
}

// TaxRate reads the configured shop tax rate. The value is stored as a
// percentage and returned as a fraction; a missing settings row means no tax.
func (r *repository) TaxRate(ctx context.Context) (float64, error) {
	var percent float64
	err := r.db.QueryRowContext(ctx, `SELECT tax_rate FROM shop_settings WHERE id = 1`).
		Scan(&percent)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query shop settings: %w", err)
	}
	return percent / 100, nil
}

// ListOpenEvents returns events that can still end on their own: scheduled or
// sold out, but not yet ended or canceled.
func (r *repository) ListOpenEvents(ctx context.Context) ([]*Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, date, time, location, ticket_price, status,
			male_tickets, female_tickets, registered_male, registered_female
		FROM events
		WHERE status IN ($1, $2)
	`, EventStatusScheduled, EventStatusSoldOut)
	if err != nil {
		return nil, fmt.Errorf("failed to query open events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Date, &e.Time, &e.Location, &e.TicketPrice, &e.Status,
			&e.MaleTickets, &e.FemaleTickets, &e.RegisteredMale, &e.RegisteredFemale); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *repository) MarkEventEnded(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE events
		SET status = $1, ended_at = NOW()
		WHERE id = $2
		  AND status IN ($3, $4)
	`, EventStatusEnded, id, EventStatusScheduled, EventStatusSoldOut)
	if err != nil {
		return fmt.Errorf("failed to end event: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		logger.L().Debug("event already ended", zap.String("event_id", id))
	}
	return nil
}
