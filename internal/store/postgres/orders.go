package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmehra2102/event-pos/internal/order/domain"
)

const orderColumns = `id, number, event_id, consumer_id, status, total::text, service_fee::text, discount::text,
	note, estimated_prep_minutes, created_at, updated_at, confirmed_at, preparing_at, ready_at, delivered_at, cancelled_at`

type orders struct{ tx pgx.Tx }

func (r orders) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
}

func (r orders) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

func (r orders) GetByItemForUpdate(ctx context.Context, itemID string) (domain.Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE id = (SELECT order_id FROM order_items WHERE id=$1) FOR UPDATE`, itemID)
}

func (r orders) ListByConsumer(ctx context.Context, consumerID string) ([]domain.Order, error) {
	return r.many(ctx, `SELECT `+orderColumns+` FROM orders WHERE consumer_id=$1 ORDER BY created_at, id`, consumerID)
}

func (r orders) ListByEvent(ctx context.Context, eventID string) ([]domain.Order, error) {
	return r.many(ctx, `SELECT `+orderColumns+` FROM orders WHERE event_id=$1 ORDER BY created_at, id`, eventID)
}

func (r orders) NumberTaken(ctx context.Context, eventID, number string) (bool, error) {
	var taken bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE event_id=$1 AND number=$2)`, eventID, number).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check order number: %w", err)
	}
	return taken, nil
}

func (r orders) Add(ctx context.Context, o domain.Order) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO orders (id, number, event_id, consumer_id, status, total, service_fee, discount,
			note, estimated_prep_minutes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.Number, o.EventID, o.ConsumerID, o.Status, o.Total.String(), o.ServiceFee.String(), o.Discount.String(),
		o.Note, o.EstimatedPrepMinutes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return insertErr(err, "order "+o.Number)
	}
	return r.saveItems(ctx, o)
}

func (r orders) Update(ctx context.Context, o domain.Order) error {
	ct, err := r.tx.Exec(ctx, `UPDATE orders SET status=$2, total=$3, service_fee=$4, discount=$5, note=$6,
			estimated_prep_minutes=$7, updated_at=$8, confirmed_at=$9, preparing_at=$10, ready_at=$11,
			delivered_at=$12, cancelled_at=$13
		WHERE id=$1`,
		o.ID, o.Status, o.Total.String(), o.ServiceFee.String(), o.Discount.String(), o.Note,
		o.EstimatedPrepMinutes, o.UpdatedAt, o.ConfirmedAt, o.PreparingAt, o.ReadyAt, o.DeliveredAt, o.CancelledAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "order %s not found", o.ID)
	}
	return r.saveItems(ctx, o)
}

func (r orders) saveItems(ctx context.Context, o domain.Order) error {
	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(`INSERT INTO order_items (id, order_id, position, product_id, product_name, quantity, unit_price,
				line_total, status, note, prep_minutes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (id) DO UPDATE SET quantity=$6, line_total=$8, status=$9, note=$10`,
			it.ID, o.ID, i, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice.String(),
			it.LineTotal.String(), it.Status, it.Note, it.PrepMinutes)
	}
	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save order items: %w", err)
	}
	return nil
}

func (r orders) one(ctx context.Context, query string, arg string) (domain.Order, error) {
	o, err := scanOrder(r.tx.QueryRow(ctx, query, arg))
	if err != nil {
		return domain.Order{}, notFound(err, "order %s not found", arg)
	}
	items, err := r.items(ctx, []string{o.ID})
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r orders) many(ctx context.Context, query string, arg string) ([]domain.Order, error) {
	rows, err := r.tx.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(out))
	for _, o := range out {
		ids = append(ids, o.ID)
	}
	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r orders) items(ctx context.Context, orderIDs []string) (map[string][]domain.Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT order_id, id, product_id, product_name, quantity, unit_price::text, line_total::text,
			status, note, prep_minutes
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Item, len(orderIDs))
	for rows.Next() {
		var it domain.Item
		var orderID, price, lineTotal string
		if err := rows.Scan(&orderID, &it.ID, &it.ProductID, &it.ProductName, &it.Quantity, &price, &lineTotal,
			&it.Status, &it.Note, &it.PrepMinutes); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if it.UnitPrice, err = parseDecimal(price); err != nil {
			return nil, err
		}
		if it.LineTotal, err = parseDecimal(lineTotal); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var total, fee, discount string
	err := row.Scan(&o.ID, &o.Number, &o.EventID, &o.ConsumerID, &o.Status, &total, &fee, &discount,
		&o.Note, &o.EstimatedPrepMinutes, &o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt, &o.PreparingAt,
		&o.ReadyAt, &o.DeliveredAt, &o.CancelledAt)
	if err != nil {
		return domain.Order{}, err
	}
	if o.Total, err = parseDecimal(total); err != nil {
		return domain.Order{}, err
	}
	if o.ServiceFee, err = parseDecimal(fee); err != nil {
		return domain.Order{}, err
	}
	if o.Discount, err = parseDecimal(discount); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
