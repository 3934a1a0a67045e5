package inventory

// ItemType discriminates the two inventory families the ledger tracks.
type ItemType string

const (
	TypeShop  ItemType = "shop"
	TypeEvent ItemType = "event"
)

// Line is one reservation or restoration request against a single inventory
// record. Size carries the variant key: a garment size for shop items, the
// ticket category for events. Empty Size targets an item's flat counter.
type Line struct {
	ItemID   string
	Type     ItemType
	Size     string
	Quantity int
}
