package catalog

// Shop item sale statuses.
const (
	ShopStatusAvailable = "available"
	ShopStatusHidden    = "hidden"
	ShopStatusSoldOut   = "sold-out"
)

// Event lifecycle statuses.
const (
	EventStatusScheduled = "scheduled"
	EventStatusSoldOut   = "sold-out"
	EventStatusEnded     = "ended"
	EventStatusCanceled  = "canceled"
)

// Event ticket categories. Tickets are sold per category; the category name
// doubles as the item's variant key everywhere in the order flow.
const (
	TicketTypeMale   = "Male"
	TicketTypeFemale = "Female"
)

// SizeEntry is one named sub-stock of a shop item.
type SizeEntry struct {
	Size     string
	Quantity int
}

type ShopItem struct {
	ID       string
	Name     string
	Price    float64
	Status   string
	ImageURL string

	// Quantity is the flat counter used when the item has no sizes.
	Quantity int
	Sizes    []SizeEntry
}

// HasSizes reports whether the item sells per size variant.
func (s *ShopItem) HasSizes() bool {
	return len(s.Sizes) > 0
}

// SizeQuantity returns the advertised stock for the given size and whether
// the size exists at all.
func (s *ShopItem) SizeQuantity(size string) (int, bool) {
	for _, entry := range s.Sizes {
		if entry.Size == size {
			return entry.Quantity, true
		}
	}
	return 0, false
}

type Event struct {
	ID          string
	Title       string
	Date        string
	Time        string
	Location    string
	TicketPrice float64
	Status      string

	MaleTickets      int
	FemaleTickets    int
	RegisteredMale   int
	RegisteredFemale int
}

// TicketsFor returns the advertised remaining tickets for a category.
func (e *Event) TicketsFor(ticketType string) int {
	switch ticketType {
	case TicketTypeMale:
		return e.MaleTickets
	case TicketTypeFemale:
		return e.FemaleTickets
	}
	return 0
}
