// Package inventory owns the stock counters for shop items and event ticket
// categories. Reserve and Restore are the only mutation paths; both run as a
// single serializable transaction across every touched record, so a multi-line
// operation either lands completely or not at all.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"datebox-be/internal/catalog"
	"datebox-be/internal/db"
	"datebox-be/internal/logger"

	"go.uber.org/zap"
)

type Ledger struct {
	db *sql.DB
}

func NewLedger(database *sql.DB) *Ledger {
	return &Ledger{db: database}
}

// Reserve atomically decrements stock for every line. If any line would drive
// a counter negative or references a record or variant that does not exist,
// the whole reservation fails with a ConflictError and nothing is decremented.
func (l *Ledger) Reserve(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		return nil
	}
	return db.RunSerializable(ctx, l.db, func(tx *sql.Tx) error {
		return l.ReserveTx(ctx, tx, lines)
	})
}

// Restore is the algebraic inverse of Reserve: it adds quantities back and
// never fails on valid input. It serves both rollback after a failed payment
// and post-payment cancellation.
func (l *Ledger) Restore(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		return nil
	}
	return db.RunSerializable(ctx, l.db, func(tx *sql.Tx) error {
		return l.RestoreTx(ctx, tx, lines)
	})
}

// ReserveTx runs the reservation inside a caller-owned transaction, letting
// order promotion reserve stock and persist the order atomically.
func (l *Ledger) ReserveTx(ctx context.Context, tx *sql.Tx, lines []Line) error {
	eventKeys, eventGroups, shopKeys, shopGroups := groupLines(lines)

	// Read set: every touched record is read before anything is written.
	eventStates := make(map[string]*eventState, len(eventKeys))
	for _, key := range eventKeys {
		state, err := readEvent(ctx, tx, key)
		if err != nil {
			return err
		}
		if state == nil {
			return &ConflictError{Kind: KindItemNotFound, ItemID: key}
		}
		eventStates[key] = state
	}
	shopStates := make(map[string]*shopState, len(shopKeys))
	for _, key := range shopKeys {
		state, err := readShopItem(ctx, tx, key)
		if err != nil {
			return err
		}
		if state == nil {
			return &ConflictError{Kind: KindItemNotFound, ItemID: key}
		}
		shopStates[key] = state
	}

	// Validate and apply in memory.
	for _, key := range eventKeys {
		state := eventStates[key]
		for _, line := range eventGroups[key] {
			ticketType := normalizeTicketType(line.Size)
			switch ticketType {
			case catalog.TicketTypeMale:
				if state.maleTickets < line.Quantity {
					return &ConflictError{Kind: KindOutOfStock, ItemID: key, Size: line.Size}
				}
				state.maleTickets -= line.Quantity
				state.registeredMale += line.Quantity
			case catalog.TicketTypeFemale:
				if state.femaleTickets < line.Quantity {
					return &ConflictError{Kind: KindOutOfStock, ItemID: key, Size: line.Size}
				}
				state.femaleTickets -= line.Quantity
				state.registeredFemale += line.Quantity
			default:
				return &ConflictError{Kind: KindUnknownVariant, ItemID: key, Size: line.Size}
			}
		}
		if state.maleTickets+state.femaleTickets <= 0 {
			state.status = catalog.EventStatusSoldOut
		} else {
			state.status = catalog.EventStatusScheduled
		}
	}
	for _, key := range shopKeys {
		state := shopStates[key]
		for _, line := range shopGroups[key] {
			if len(state.sizes) > 0 {
				entry, ok := state.sizes[strings.TrimSpace(line.Size)]
				if !ok {
					return &ConflictError{Kind: KindUnknownVariant, ItemID: key, Size: line.Size}
				}
				if entry.Quantity < line.Quantity {
					return &ConflictError{Kind: KindOutOfStock, ItemID: key, Size: line.Size}
				}
				entry.Quantity -= line.Quantity
			} else {
				if state.quantity < line.Quantity {
					return &ConflictError{Kind: KindOutOfStock, ItemID: key}
				}
				state.quantity -= line.Quantity
			}
		}
	}

	// Write set.
	for _, key := range eventKeys {
		if err := writeEvent(ctx, tx, key, eventStates[key]); err != nil {
			return err
		}
	}
	for _, key := range shopKeys {
		if err := writeShopItem(ctx, tx, key, shopStates[key]); err != nil {
			return err
		}
	}
	return nil
}

// RestoreTx adds quantities back inside a caller-owned transaction. Records
// that no longer exist are skipped: a deleted catalog entry must not block a
// refund from completing.
func (l *Ledger) RestoreTx(ctx context.Context, tx *sql.Tx, lines []Line) error {
	eventKeys, eventGroups, shopKeys, shopGroups := groupLines(lines)

	log := logger.FromCtx(ctx)

	for _, key := range eventKeys {
		state, err := readEvent(ctx, tx, key)
		if err != nil {
			return err
		}
		if state == nil {
			log.Warn("restore skipped missing event", zap.String("event_id", key))
			continue
		}

		for _, line := range eventGroups[key] {
			switch normalizeTicketType(line.Size) {
			case catalog.TicketTypeMale:
				state.maleTickets += line.Quantity
				state.registeredMale = max(0, state.registeredMale-line.Quantity)
			case catalog.TicketTypeFemale:
				state.femaleTickets += line.Quantity
				state.registeredFemale = max(0, state.registeredFemale-line.Quantity)
			}
		}
		// A canceled event stays canceled; anything else goes back on sale.
		if state.status != catalog.EventStatusCanceled {
			state.status = catalog.EventStatusScheduled
		}

		if err := writeEvent(ctx, tx, key, state); err != nil {
			return err
		}
	}

	for _, key := range shopKeys {
		state, err := readShopItem(ctx, tx, key)
		if err != nil {
			return err
		}
		if state == nil {
			log.Warn("restore skipped missing shop item", zap.String("item_id", key))
			continue
		}

		for _, line := range shopGroups[key] {
			if len(state.sizes) > 0 {
				entry, ok := state.sizes[strings.TrimSpace(line.Size)]
				if !ok {
					log.Warn("restore skipped unknown size",
						zap.String("item_id", key),
						zap.String("size", line.Size),
					)
					continue
				}
				entry.Quantity += line.Quantity
			} else {
				state.quantity += line.Quantity
			}
		}

		if err := writeShopItem(ctx, tx, key, state); err != nil {
			return err
		}
	}
	return nil
}

// --- read/write helpers ---

type eventState struct {
	maleTickets      int
	femaleTickets    int
	registeredMale   int
	registeredFemale int
	status           string
}

type sizeCounter struct {
	Quantity int
}

type shopState struct {
	quantity int
	// sizes is keyed by the exact variant name; empty means the item uses
	// its flat counter.
	sizes     map[string]*sizeCounter
	sizeOrder []string
}

func readEvent(ctx context.Context, tx *sql.Tx, id string) (*eventState, error) {
	var state eventState
	err := tx.QueryRowContext(ctx, `
		SELECT male_tickets, female_tickets, registered_male, registered_female, status
		FROM events
		WHERE id = $1
	`, id).Scan(&state.maleTickets, &state.femaleTickets,
		&state.registeredMale, &state.registeredFemale, &state.status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event inventory: %w", err)
	}
	return &state, nil
}

func writeEvent(ctx context.Context, tx *sql.Tx, id string, state *eventState) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE events
		SET male_tickets = $1,
			female_tickets = $2,
			registered_male = $3,
			registered_female = $4,
			status = $5
		WHERE id = $6
	`, state.maleTickets, state.femaleTickets,
		state.registeredMale, state.registeredFemale, state.status, id)
	if err != nil {
		return fmt.Errorf("failed to write event inventory: %w", err)
	}
	return nil
}

func readShopItem(ctx context.Context, tx *sql.Tx, id string) (*shopState, error) {
	var state shopState
	err := tx.QueryRowContext(ctx, `
		SELECT quantity
		FROM shop_items
		WHERE id = $1
	`, id).Scan(&state.quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read shop inventory: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT size, quantity
		FROM shop_item_sizes
		WHERE item_id = $1
		ORDER BY size
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read size inventory: %w", err)
	}
	defer rows.Close()

	state.sizes = make(map[string]*sizeCounter)
	for rows.Next() {
		var size string
		var qty int
		if err := rows.Scan(&size, &qty); err != nil {
			return nil, err
		}
		state.sizes[size] = &sizeCounter{Quantity: qty}
		state.sizeOrder = append(state.sizeOrder, size)
	}
	return &state, rows.Err()
}

func writeShopItem(ctx context.Context, tx *sql.Tx, id string, state *shopState) error {
	if len(state.sizes) > 0 {
		for _, size := range state.sizeOrder {
			_, err := tx.ExecContext(ctx, `
				UPDATE shop_item_sizes
				SET quantity = $1
				WHERE item_id = $2 AND size = $3
			`, state.sizes[size].Quantity, id, size)
			if err != nil {
				return fmt.Errorf("failed to write size inventory: %w", err)
			}
		}
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE shop_items
		SET quantity = $1
		WHERE id = $2
	`, state.quantity, id)
	if err != nil {
		return fmt.Errorf("failed to write shop inventory: %w", err)
	}
	return nil
}

// groupLines batches lines per record so each touched record is read and
// written exactly once. Key slices preserve first-seen order to keep the
// statement sequence deterministic.
func groupLines(lines []Line) (eventKeys []string, eventGroups map[string][]Line, shopKeys []string, shopGroups map[string][]Line) {
	eventGroups = make(map[string][]Line)
	shopGroups = make(map[string][]Line)

	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if line.Type == TypeEvent {
			if _, seen := eventGroups[line.ItemID]; !seen {
				eventKeys = append(eventKeys, line.ItemID)
			}
			eventGroups[line.ItemID] = append(eventGroups[line.ItemID], line)
		} else {
			if _, seen := shopGroups[line.ItemID]; !seen {
				shopKeys = append(shopKeys, line.ItemID)
			}
			shopGroups[line.ItemID] = append(shopGroups[line.ItemID], line)
		}
	}
	return eventKeys, eventGroups, shopKeys, shopGroups
}

func normalizeTicketType(size string) string {
	switch strings.ToLower(strings.TrimSpace(size)) {
	case "male":
		return catalog.TicketTypeMale
	case "female":
		return catalog.TicketTypeFemale
	}
	return ""
}
