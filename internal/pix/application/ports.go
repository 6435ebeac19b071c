package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	catalogdomain "github.com/dmehra2102/event-pos/internal/catalog/domain"
	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
)

type ChargeRequest struct {
	TxID        string
	Amount      decimal.Decimal
	Description string
	Expiration  time.Duration
	PayeeKey    string
}

type ChargeResponse struct {
	TxID     string
	QRCode   string
	QRImage  string
	PayeeKey string
}

// PSP is the instant-payment provider.
type PSP interface {
	Name() string
	CreateCharge(ctx context.Context, req ChargeRequest) (ChargeResponse, error)
}

type Events interface {
	GetEvent(ctx context.Context, id string) (catalogdomain.Event, error)
}

type Notifier interface {
	NotifyOrderStatusChanged(ctx context.Context, o orderdomain.Order, prev orderdomain.Status)
}
