package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/event-pos/pkg/apperr"
)

const (
	EventPixReceived = "pix.received"
	EventPixRemoved  = "pix.removed"
)

// Notification is one PSP report about a charge, before it is persisted.
type Notification struct {
	PSPTransactionID string
	PSPIdentifier    string
	EventType        string
	Payload          []byte
	EndToEndID       string
	Amount           decimal.NullDecimal
	PaidAt           *time.Time
}

// WebhookEvent is the durable audit row for a notification. Rows are never
// deleted.
type WebhookEvent struct {
	ID               string
	PSPTransactionID string
	PSPIdentifier    string
	EventType        string
	Payload          []byte
	EndToEndID       string
	Amount           decimal.NullDecimal
	PaidAt           *time.Time
	ReceivedAt       time.Time
	Processed        bool
	ProcessedAt      *time.Time
	LastError        string
	Attempts         int
}

func NewWebhookEvent(id string, n Notification, now time.Time) WebhookEvent {
	eventType := n.EventType
	if eventType == "" {
		eventType = EventPixReceived
	}
	return WebhookEvent{
		ID:               id,
		PSPTransactionID: n.PSPTransactionID,
		PSPIdentifier:    n.PSPIdentifier,
		EventType:        eventType,
		Payload:          n.Payload,
		EndToEndID:       n.EndToEndID,
		Amount:           n.Amount,
		PaidAt:           n.PaidAt,
		ReceivedAt:       now.UTC(),
	}
}

func (e *WebhookEvent) MarkProcessed(now time.Time) {
	now = now.UTC()
	e.Processed = true
	e.ProcessedAt = &now
	e.LastError = ""
	e.Attempts++
}

func (e *WebhookEvent) MarkFailed(now time.Time, cause error) {
	now = now.UTC()
	e.Processed = false
	e.ProcessedAt = &now
	e.LastError = cause.Error()
	e.Attempts++
}

type bcbBody struct {
	Pix []json.RawMessage `json:"pix"`
}

type bcbEntry struct {
	EndToEndID string `json:"endToEndId"`
	TxID       string `json:"txid"`
	Valor      string `json:"valor"`
	Horario    string `json:"horario"`
}

// ParseBCBWebhook splits the standard instant-payment webhook body into one
// notification per entry. Each notification keeps its entry's bytes exactly
// as received.
func ParseBCBWebhook(psp string, body []byte) ([]Notification, error) {
	var b bcbBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, apperr.Validation("malformed webhook body: %v", err)
	}
	if len(b.Pix) == 0 {
		return nil, apperr.Validation("webhook body carries no pix entries")
	}

	out := make([]Notification, 0, len(b.Pix))
	for i, raw := range b.Pix {
		var e bcbEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, apperr.Validation("malformed pix entry %d: %v", i, err)
		}
		n := Notification{
			PSPTransactionID: e.TxID,
			PSPIdentifier:    psp,
			EventType:        EventPixReceived,
			Payload:          raw,
			EndToEndID:       e.EndToEndID,
		}
		if e.Valor != "" {
			v, err := decimal.NewFromString(e.Valor)
			if err != nil {
				return nil, apperr.Validation("invalid valor %q for txid %s", e.Valor, e.TxID)
			}
			n.Amount = decimal.NewNullDecimal(v)
		}
		if e.Horario != "" {
			if ts, err := time.Parse(time.RFC3339, e.Horario); err == nil {
				ts = ts.UTC()
				n.PaidAt = &ts
			}
		}
		out = append(out, n)
	}
	return out, nil
}
