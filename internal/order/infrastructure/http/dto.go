package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/event-pos/internal/order/domain"
)

type createOrderReq struct {
	EventID    string        `json:"event_id" validate:"required"`
	ConsumerID string        `json:"consumer_id"`
	Note       string        `json:"note"`
	Items      []itemLineReq `json:"items" validate:"min=1,dive"`
}

type itemLineReq struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Note      string `json:"note"`
}

type statusReq struct {
	Status domain.Status `json:"status" validate:"required"`
}

type adjustmentsReq struct {
	ServiceFee decimal.Decimal `json:"service_fee"`
	Discount   decimal.Decimal `json:"discount"`
}

type quantityReq struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

type itemResp struct {
	ID          string            `json:"id"`
	ProductID   string            `json:"product_id"`
	ProductName string            `json:"product_name"`
	Quantity    int               `json:"quantity"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	LineTotal   decimal.Decimal   `json:"line_total"`
	Status      domain.ItemStatus `json:"status"`
	Note        string            `json:"note,omitempty"`
	PrepMinutes int               `json:"prep_minutes"`
}

type orderResp struct {
	ID                   string          `json:"id"`
	Number               string          `json:"number"`
	EventID              string          `json:"event_id"`
	ConsumerID           string          `json:"consumer_id,omitempty"`
	Status               domain.Status   `json:"status"`
	Items                []itemResp      `json:"items"`
	Total                decimal.Decimal `json:"total"`
	ServiceFee           decimal.Decimal `json:"service_fee"`
	Discount             decimal.Decimal `json:"discount"`
	Note                 string          `json:"note,omitempty"`
	EstimatedPrepMinutes int             `json:"estimated_prep_minutes"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	ConfirmedAt          *time.Time      `json:"confirmed_at,omitempty"`
	PreparingAt          *time.Time      `json:"preparing_at,omitempty"`
	ReadyAt              *time.Time      `json:"ready_at,omitempty"`
	DeliveredAt          *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt          *time.Time      `json:"cancelled_at,omitempty"`
}

func toResp(o domain.Order) orderResp {
	items := make([]itemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResp{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
			Status:      it.Status,
			Note:        it.Note,
			PrepMinutes: it.PrepMinutes,
		})
	}
	return orderResp{
		ID:                   o.ID,
		Number:               o.Number,
		EventID:              o.EventID,
		ConsumerID:           o.ConsumerID,
		Status:               o.Status,
		Items:                items,
		Total:                o.Total,
		ServiceFee:           o.ServiceFee,
		Discount:             o.Discount,
		Note:                 o.Note,
		EstimatedPrepMinutes: o.EstimatedPrepMinutes,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		ConfirmedAt:          o.ConfirmedAt,
		PreparingAt:          o.PreparingAt,
		ReadyAt:              o.ReadyAt,
		DeliveredAt:          o.DeliveredAt,
		CancelledAt:          o.CancelledAt,
	}
}
