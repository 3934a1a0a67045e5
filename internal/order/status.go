package order

// Status is the lifecycle state of a confirmed order. Transitions only move
// forward; a refunded order never becomes paid again.
type Status string

const (
	StatusPending           Status = "pending"
	StatusPaid              Status = "paid"
	StatusPartiallyRefunded Status = "partially-refunded"
	StatusRefunded          Status = "refunded"
	StatusCanceled          Status = "canceled"
)

var forwardTransitions = map[Status][]Status{
	StatusPending:           {StatusPaid, StatusCanceled},
	StatusPaid:              {StatusPartiallyRefunded, StatusRefunded, StatusCanceled},
	StatusPartiallyRefunded: {StatusPartiallyRefunded, StatusRefunded},
}

// CanTransition reports whether moving from one status to another is a legal
// forward step.
func CanTransition(from, to Status) bool {
	for _, allowed := range forwardTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist from s.
func (s Status) Terminal() bool {
	return len(forwardTransitions[s]) == 0
}
