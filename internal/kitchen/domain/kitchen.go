// Package domain holds the kitchen display projection of orders and the
// statistics computed over it.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
)

type TicketItem struct {
	ID          string                 `json:"id"`
	ProductID   string                 `json:"product_id"`
	ProductName string                 `json:"product_name"`
	Quantity    int                    `json:"quantity"`
	Note        string                 `json:"note,omitempty"`
	Status      orderdomain.ItemStatus `json:"status"`
	PrepMinutes int                    `json:"prep_minutes"`
}

// Ticket is one order as the kitchen sees it.
type Ticket struct {
	OrderID              string             `json:"order_id"`
	Number               string             `json:"number"`
	EventID              string             `json:"event_id"`
	ConsumerID           string             `json:"consumer_id,omitempty"`
	Status               orderdomain.Status `json:"status"`
	Note                 string             `json:"note,omitempty"`
	Total                decimal.Decimal    `json:"total"`
	EstimatedPrepMinutes int                `json:"estimated_prep_minutes"`
	Items                []TicketItem       `json:"items"`
	CreatedAt            time.Time          `json:"created_at"`
	ReadyAt              *time.Time         `json:"ready_at,omitempty"`
}

func NewTicket(o orderdomain.Order) Ticket {
	t := Ticket{
		OrderID:              o.ID,
		Number:               o.Number,
		EventID:              o.EventID,
		ConsumerID:           o.ConsumerID,
		Status:               o.Status,
		Note:                 o.Note,
		Total:                o.Total,
		EstimatedPrepMinutes: o.EstimatedPrepMinutes,
		Items:                make([]TicketItem, 0, len(o.Items)),
		CreatedAt:            o.CreatedAt,
		ReadyAt:              o.ReadyAt,
	}
	for _, it := range o.Items {
		t.Items = append(t.Items, TicketItem{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Note:        it.Note,
			Status:      it.Status,
			PrepMinutes: it.PrepMinutes,
		})
	}
	return t
}

// Project keeps the non-cancelled orders, optionally only those in status,
// preserving the input order.
func Project(orders []orderdomain.Order, status orderdomain.Status) []Ticket {
	out := make([]Ticket, 0, len(orders))
	for _, o := range orders {
		if o.Status == orderdomain.StatusCancelled {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, NewTicket(o))
	}
	return out
}

type Statistics struct {
	EventID     string                     `json:"event_id"`
	TotalOrders int                        `json:"total_orders"`
	OrdersToday int                        `json:"orders_today"`
	ByStatus    map[orderdomain.Status]int `json:"by_status"`
	Revenue     decimal.Decimal            `json:"revenue"`
	// AveragePrep is zero when no delivered order has a ready time.
	AveragePrep        time.Duration `json:"-"`
	AveragePrepMinutes float64       `json:"average_prep_minutes"`
	PrepSampleSize     int           `json:"prep_sample_size"`
}

// ComputeStatistics aggregates every order of the event. Revenue counts
// delivered orders only. The preparation average is taken over delivered
// orders that carry a ready time; the others are left out rather than
// counted as zero.
func ComputeStatistics(eventID string, orders []orderdomain.Order, now time.Time) Statistics {
	st := Statistics{
		EventID:  eventID,
		ByStatus: make(map[orderdomain.Status]int),
		Revenue:  decimal.Zero,
	}
	y, m, d := now.UTC().Date()
	var prep time.Duration
	for _, o := range orders {
		st.TotalOrders++
		st.ByStatus[o.Status]++
		if oy, om, od := o.CreatedAt.UTC().Date(); oy == y && om == m && od == d {
			st.OrdersToday++
		}
		if o.Status != orderdomain.StatusDelivered {
			continue
		}
		st.Revenue = st.Revenue.Add(o.Total)
		if o.ReadyAt == nil {
			continue
		}
		prep += o.ReadyAt.Sub(o.CreatedAt)
		st.PrepSampleSize++
	}
	if st.PrepSampleSize > 0 {
		st.AveragePrep = prep / time.Duration(st.PrepSampleSize)
		st.AveragePrepMinutes = st.AveragePrep.Minutes()
	}
	return st
}
