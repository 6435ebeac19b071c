package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/event-pos/internal/pix/domain"
)

const webhookColumns = `id, psp_transaction_id, psp_identifier, event_type, payload, end_to_end_id, amount::text, paid_at,
	received_at, processed, processed_at, last_error, attempts`

type webhooks struct{ tx pgx.Tx }

func (r webhooks) Add(ctx context.Context, e domain.WebhookEvent) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO webhook_events (id, psp_transaction_id, psp_identifier, event_type, payload,
			end_to_end_id, amount, paid_at, received_at, processed, processed_at, last_error, attempts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		e.ID, e.PSPTransactionID, e.PSPIdentifier, e.EventType, e.Payload, e.EndToEndID, nullAmount(e.Amount),
		e.PaidAt, e.ReceivedAt, e.Processed, e.ProcessedAt, e.LastError, e.Attempts)
	if err != nil {
		return insertErr(err, "webhook event "+e.ID)
	}
	return nil
}

func (r webhooks) Get(ctx context.Context, id string) (domain.WebhookEvent, error) {
	e, err := scanWebhook(r.tx.QueryRow(ctx, `SELECT `+webhookColumns+` FROM webhook_events WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return domain.WebhookEvent{}, notFound(err, "webhook event %s not found", id)
	}
	return e, nil
}

func (r webhooks) Update(ctx context.Context, e domain.WebhookEvent) error {
	ct, err := r.tx.Exec(ctx, `UPDATE webhook_events SET processed=$2, processed_at=$3, last_error=$4, attempts=$5
		WHERE id=$1`, e.ID, e.Processed, e.ProcessedAt, e.LastError, e.Attempts)
	if err != nil {
		return fmt.Errorf("update webhook event: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "webhook event %s not found", e.ID)
	}
	return nil
}

func (r webhooks) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]domain.WebhookEvent, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+webhookColumns+` FROM webhook_events
		WHERE NOT processed AND attempts < $1
		ORDER BY received_at
		LIMIT $2`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list retryable webhooks: %w", err)
	}
	defer rows.Close()

	var out []domain.WebhookEvent
	for rows.Next() {
		e, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullAmount(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func scanWebhook(row pgx.Row) (domain.WebhookEvent, error) {
	var e domain.WebhookEvent
	var amount *string
	err := row.Scan(&e.ID, &e.PSPTransactionID, &e.PSPIdentifier, &e.EventType, &e.Payload, &e.EndToEndID, &amount,
		&e.PaidAt, &e.ReceivedAt, &e.Processed, &e.ProcessedAt, &e.LastError, &e.Attempts)
	if err != nil {
		return domain.WebhookEvent{}, err
	}
	if amount != nil {
		d, err := parseDecimal(*amount)
		if err != nil {
			return domain.WebhookEvent{}, err
		}
		e.Amount = decimal.NewNullDecimal(d)
	}
	return e, nil
}
