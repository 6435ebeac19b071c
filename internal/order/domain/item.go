package domain

import "github.com/shopspring/decimal"

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemDelivered ItemStatus = "delivered"
	ItemCancelled ItemStatus = "cancelled"
)

var itemForward = map[ItemStatus]ItemStatus{
	ItemPending:   ItemPreparing,
	ItemPreparing: ItemReady,
	ItemReady:     ItemDelivered,
}

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemPreparing, ItemReady, ItemDelivered, ItemCancelled:
		return true
	}
	return false
}

func (s ItemStatus) Terminal() bool {
	return s == ItemDelivered || s == ItemCancelled
}

func CanTransitionItem(from, to ItemStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == ItemCancelled {
		return true
	}
	return itemForward[from] == to
}

type Item struct {
	ID          string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
	Status      ItemStatus
	Note        string
	// PrepMinutes is the catalog preparation hint captured at order time.
	PrepMinutes int
}
