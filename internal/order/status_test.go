package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"PendingToPaid", StatusPending, StatusPaid, true},
		{"PendingToCanceled", StatusPending, StatusCanceled, true},
		{"PaidToCanceled", StatusPaid, StatusCanceled, true},
		{"PaidToPartiallyRefunded", StatusPaid, StatusPartiallyRefunded, true},
		{"PaidToRefunded", StatusPaid, StatusRefunded, true},
		{"PartialToPartial", StatusPartiallyRefunded, StatusPartiallyRefunded, true},
		{"PartialToRefunded", StatusPartiallyRefunded, StatusRefunded, true},
		{"RefundedToPaid", StatusRefunded, StatusPaid, false},
		{"CanceledToPaid", StatusCanceled, StatusPaid, false},
		{"CanceledToRefunded", StatusCanceled, StatusRefunded, false},
		{"PaidToPending", StatusPaid, StatusPending, false},
		{"PartialToCanceled", StatusPartiallyRefunded, StatusCanceled, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusRefunded.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.False(t, StatusPaid.Terminal())
	assert.False(t, StatusPartiallyRefunded.Terminal())
}

func TestItemActiveQuantity(t *testing.T) {
	item := Item{Quantity: 3, CanceledQuantity: 1}
	assert.Equal(t, 2, item.ActiveQuantity())

	item.CanceledQuantity = 3
	assert.Equal(t, 0, item.ActiveQuantity())

	item.CanceledQuantity = 5
	assert.Equal(t, 0, item.ActiveQuantity())
}
