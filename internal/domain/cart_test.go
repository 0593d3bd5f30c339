package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCart(t *testing.T) {
	cart := NewCart("user-1")

	assert.Equal(t, "user-1", cart.UserID)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.TotalItems)
	assert.Zero(t, cart.TotalPrice)
	assert.NotZero(t, cart.CreatedAt)
}

func TestRecalculateTotals(t *testing.T) {
	cart := NewCart("user-1")
	cart.Items = []CartItem{
		{ProductID: "p1", UnitPrice: 1999, Quantity: 2},
		{ProductID: "p2", UnitPrice: 500, Quantity: 3},
	}

	cart.RecalculateTotals()

	assert.Equal(t, 5, cart.TotalItems)
	assert.Equal(t, int64(2*1999+3*500), cart.TotalPrice)
}

func TestRecalculateTotals_AfterMutation(t *testing.T) {
	cart := NewCart("user-1")
	cart.Items = []CartItem{
		{ProductID: "p1", UnitPrice: 1000, Quantity: 1},
		{ProductID: "p2", UnitPrice: 2000, Quantity: 2},
	}
	cart.RecalculateTotals()

	cart.RemoveItemAt(0)
	cart.RecalculateTotals()

	assert.Equal(t, 2, cart.TotalItems)
	assert.Equal(t, int64(4000), cart.TotalPrice)
}

func TestFindItemIndex(t *testing.T) {
	cart := NewCart("user-1")
	cart.Items = []CartItem{
		{ProductID: "p1"},
		{ProductID: "p2"},
	}

	assert.Equal(t, 0, cart.FindItemIndex("p1"))
	assert.Equal(t, 1, cart.FindItemIndex("p2"))
	assert.Equal(t, -1, cart.FindItemIndex("p3"))
}

func TestCartClear(t *testing.T) {
	cart := NewCart("user-1")
	cart.Items = []CartItem{{ProductID: "p1", UnitPrice: 1000, Quantity: 2}}
	cart.RecalculateTotals()

	cart.Clear()

	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.TotalItems)
	assert.Zero(t, cart.TotalPrice)
}

func TestLineTotal(t *testing.T) {
	item := CartItem{UnitPrice: 1250, Quantity: 4}
	assert.Equal(t, int64(5000), item.LineTotal())
}
