package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmehra2102/event-pos/internal/payment/domain"
)

const paymentColumns = `p.id, p.order_id, p.transaction_id, p.amount::text, p.status, p.method, p.gateway, p.gateway_response,
	p.simulated, p.processed_at, p.confirmed_at, p.cancelled_at, p.refunded_at, p.created_at, p.updated_at`

type payments struct{ tx pgx.Tx }

func (r payments) Get(ctx context.Context, id string) (domain.Payment, error) {
	p, err := scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.id=$1`, id))
	if err != nil {
		return domain.Payment{}, notFound(err, "payment %s not found", id)
	}
	return p, nil
}

func (r payments) GetByTransactionID(ctx context.Context, transactionID string) (domain.Payment, error) {
	p, err := scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.transaction_id=$1`, transactionID))
	if err != nil {
		return domain.Payment{}, notFound(err, "payment with transaction %s not found", transactionID)
	}
	return p, nil
}

func (r payments) GetByTransactionIDForUpdate(ctx context.Context, transactionID string) (domain.Payment, error) {
	p, err := scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments p
		WHERE p.transaction_id=$1 FOR UPDATE`, transactionID))
	if err != nil {
		return domain.Payment{}, notFound(err, "payment with transaction %s not found", transactionID)
	}
	return p, nil
}

func (r payments) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	return r.many(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.order_id=$1 ORDER BY p.created_at`, orderID)
}

func (r payments) ListByConsumer(ctx context.Context, consumerID string) ([]domain.Payment, error) {
	return r.many(ctx, `SELECT `+paymentColumns+` FROM payments p JOIN orders o ON o.id = p.order_id
		WHERE o.consumer_id=$1 ORDER BY p.created_at`, consumerID)
}

func (r payments) Add(ctx context.Context, p domain.Payment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO payments (id, order_id, transaction_id, amount, status, method, gateway,
			gateway_response, simulated, processed_at, confirmed_at, cancelled_at, refunded_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.OrderID, p.TransactionID, p.Amount.String(), p.Status, p.Method, p.Gateway, p.GatewayResponse,
		p.Simulated, p.ProcessedAt, p.ConfirmedAt, p.CancelledAt, p.RefundedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return insertErr(err, "payment "+p.TransactionID)
	}
	return nil
}

func (r payments) Update(ctx context.Context, p domain.Payment) error {
	ct, err := r.tx.Exec(ctx, `UPDATE payments SET status=$2, gateway=$3, gateway_response=$4, simulated=$5,
			processed_at=$6, confirmed_at=$7, cancelled_at=$8, refunded_at=$9, updated_at=$10
		WHERE id=$1`,
		p.ID, p.Status, p.Gateway, p.GatewayResponse, p.Simulated,
		p.ProcessedAt, p.ConfirmedAt, p.CancelledAt, p.RefundedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "payment %s not found", p.ID)
	}
	return nil
}

func (r payments) many(ctx context.Context, query, arg string) ([]domain.Payment, error) {
	rows, err := r.tx.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	var amount string
	err := row.Scan(&p.ID, &p.OrderID, &p.TransactionID, &amount, &p.Status, &p.Method, &p.Gateway,
		&p.GatewayResponse, &p.Simulated, &p.ProcessedAt, &p.ConfirmedAt, &p.CancelledAt, &p.RefundedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Payment{}, err
	}
	if p.Amount, err = parseDecimal(amount); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}
