package inventory

import (
	"errors"
	"fmt"
)

// ConflictKind classifies why a reservation could not be honored.
type ConflictKind string

const (
	KindOutOfStock     ConflictKind = "out-of-stock"
	KindUnknownVariant ConflictKind = "unknown-variant"
	KindItemNotFound   ConflictKind = "item-not-found"
)

// ConflictError reports the first line that failed a reservation. The whole
// operation is rolled back, so no other line's stock was touched either.
type ConflictError struct {
	Kind   ConflictKind
	ItemID string
	Size   string
}

func (e *ConflictError) Error() string {
	if e.Size != "" {
		return fmt.Sprintf("inventory conflict: %s (item %s, variant %q)", e.Kind, e.ItemID, e.Size)
	}
	return fmt.Sprintf("inventory conflict: %s (item %s)", e.Kind, e.ItemID)
}

// IsConflict reports whether err is a reservation conflict, as opposed to a
// store failure.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
