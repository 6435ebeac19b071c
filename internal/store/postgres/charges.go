package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmehra2102/event-pos/internal/pix/domain"
)

const chargeColumns = `id, order_id, payment_id, psp_transaction_id, psp_identifier, amount::text, description, payee_key,
	qr_code, qr_image, status, simulated, expires_at, paid_at, psp_payment_id, last_webhook_payload, created_at, updated_at`

type charges struct{ tx pgx.Tx }

func (r charges) Get(ctx context.Context, id string) (domain.Charge, error) {
	c, err := scanCharge(r.tx.QueryRow(ctx, `SELECT `+chargeColumns+` FROM pix_charges WHERE id=$1`, id))
	if err != nil {
		return domain.Charge{}, notFound(err, "charge %s not found", id)
	}
	return c, nil
}

func (r charges) GetByPSPTransactionID(ctx context.Context, txid string) (domain.Charge, error) {
	c, err := scanCharge(r.tx.QueryRow(ctx, `SELECT `+chargeColumns+` FROM pix_charges WHERE psp_transaction_id=$1`, txid))
	if err != nil {
		return domain.Charge{}, notFound(err, "charge with transaction %s not found", txid)
	}
	return c, nil
}

func (r charges) GetByPSPTransactionIDForUpdate(ctx context.Context, txid string) (domain.Charge, error) {
	c, err := scanCharge(r.tx.QueryRow(ctx, `SELECT `+chargeColumns+` FROM pix_charges
		WHERE psp_transaction_id=$1 FOR UPDATE`, txid))
	if err != nil {
		return domain.Charge{}, notFound(err, "charge with transaction %s not found", txid)
	}
	return c, nil
}

func (r charges) ListByOrder(ctx context.Context, orderID string) ([]domain.Charge, error) {
	return r.many(ctx, `SELECT `+chargeColumns+` FROM pix_charges WHERE order_id=$1 ORDER BY created_at`, orderID)
}

func (r charges) ListByPayment(ctx context.Context, paymentID string) ([]domain.Charge, error) {
	return r.many(ctx, `SELECT `+chargeColumns+` FROM pix_charges WHERE payment_id=$1 ORDER BY created_at FOR UPDATE`, paymentID)
}

func (r charges) Add(ctx context.Context, c domain.Charge) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO pix_charges (id, order_id, payment_id, psp_transaction_id, psp_identifier, amount,
			description, payee_key, qr_code, qr_image, status, simulated, expires_at, paid_at, psp_payment_id,
			last_webhook_payload, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		c.ID, c.OrderID, c.PaymentID, c.PSPTransactionID, c.PSPIdentifier, c.Amount.String(), c.Description,
		c.PayeeKey, c.QRCode, c.QRImage, c.Status, c.Simulated, c.ExpiresAt, c.PaidAt, c.PSPPaymentID,
		c.LastWebhookPayload, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return insertErr(err, "charge "+c.PSPTransactionID)
	}
	return nil
}

func (r charges) Update(ctx context.Context, c domain.Charge) error {
	ct, err := r.tx.Exec(ctx, `UPDATE pix_charges SET status=$2, paid_at=$3, psp_payment_id=$4, last_webhook_payload=$5,
			updated_at=$6
		WHERE id=$1`,
		c.ID, c.Status, c.PaidAt, c.PSPPaymentID, c.LastWebhookPayload, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update charge: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "charge %s not found", c.ID)
	}
	return nil
}

func (r charges) many(ctx context.Context, query, arg string) ([]domain.Charge, error) {
	rows, err := r.tx.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	defer rows.Close()

	var out []domain.Charge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan charge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCharge(row pgx.Row) (domain.Charge, error) {
	var c domain.Charge
	var amount string
	err := row.Scan(&c.ID, &c.OrderID, &c.PaymentID, &c.PSPTransactionID, &c.PSPIdentifier, &amount, &c.Description,
		&c.PayeeKey, &c.QRCode, &c.QRImage, &c.Status, &c.Simulated, &c.ExpiresAt, &c.PaidAt, &c.PSPPaymentID,
		&c.LastWebhookPayload, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Charge{}, err
	}
	if c.Amount, err = parseDecimal(amount); err != nil {
		return domain.Charge{}, err
	}
	return c, nil
}
