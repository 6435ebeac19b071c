package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id                     TEXT PRIMARY KEY,
	number                 TEXT NOT NULL,
	event_id               TEXT NOT NULL,
	consumer_id            TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL,
	total                  NUMERIC(12,2) NOT NULL,
	service_fee            NUMERIC(12,2) NOT NULL DEFAULT 0,
	discount               NUMERIC(12,2) NOT NULL DEFAULT 0,
	note                   TEXT NOT NULL DEFAULT '',
	estimated_prep_minutes INT NOT NULL DEFAULT 0,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL,
	confirmed_at           TIMESTAMPTZ,
	preparing_at           TIMESTAMPTZ,
	ready_at               TIMESTAMPTZ,
	delivered_at           TIMESTAMPTZ,
	cancelled_at           TIMESTAMPTZ,
	UNIQUE (event_id, number)
);
CREATE INDEX IF NOT EXISTS orders_event_created_idx ON orders (event_id, created_at);
CREATE INDEX IF NOT EXISTS orders_consumer_idx ON orders (consumer_id);

CREATE TABLE IF NOT EXISTS order_items (
	id           TEXT PRIMARY KEY,
	order_id     TEXT NOT NULL REFERENCES orders(id),
	position     INT NOT NULL,
	product_id   TEXT NOT NULL,
	product_name TEXT NOT NULL DEFAULT '',
	quantity     INT NOT NULL CHECK (quantity > 0),
	unit_price   NUMERIC(12,2) NOT NULL CHECK (unit_price > 0),
	line_total   NUMERIC(12,2) NOT NULL,
	status       TEXT NOT NULL,
	note         TEXT NOT NULL DEFAULT '',
	prep_minutes INT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS order_items_order_idx ON order_items (order_id);

CREATE TABLE IF NOT EXISTS payments (
	id               TEXT PRIMARY KEY,
	order_id         TEXT NOT NULL REFERENCES orders(id),
	transaction_id   TEXT NOT NULL UNIQUE,
	amount           NUMERIC(12,2) NOT NULL,
	status           TEXT NOT NULL,
	method           TEXT NOT NULL,
	gateway          TEXT NOT NULL DEFAULT '',
	gateway_response BYTEA,
	simulated        BOOLEAN NOT NULL DEFAULT FALSE,
	processed_at     TIMESTAMPTZ,
	confirmed_at     TIMESTAMPTZ,
	cancelled_at     TIMESTAMPTZ,
	refunded_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS payments_order_idx ON payments (order_id);

CREATE TABLE IF NOT EXISTS pix_charges (
	id                   TEXT PRIMARY KEY,
	order_id             TEXT NOT NULL REFERENCES orders(id),
	payment_id           TEXT NOT NULL REFERENCES payments(id),
	psp_transaction_id   TEXT NOT NULL UNIQUE,
	psp_identifier       TEXT NOT NULL,
	amount               NUMERIC(12,2) NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	payee_key            TEXT NOT NULL DEFAULT '',
	qr_code              TEXT NOT NULL DEFAULT '',
	qr_image             TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL,
	simulated            BOOLEAN NOT NULL DEFAULT FALSE,
	expires_at           TIMESTAMPTZ NOT NULL,
	paid_at              TIMESTAMPTZ,
	psp_payment_id       TEXT NOT NULL DEFAULT '',
	last_webhook_payload BYTEA,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS pix_charges_order_idx ON pix_charges (order_id);
CREATE INDEX IF NOT EXISTS pix_charges_payment_idx ON pix_charges (payment_id);

CREATE TABLE IF NOT EXISTS webhook_events (
	id                 TEXT PRIMARY KEY,
	psp_transaction_id TEXT NOT NULL DEFAULT '',
	psp_identifier     TEXT NOT NULL DEFAULT '',
	event_type         TEXT NOT NULL,
	payload            BYTEA NOT NULL,
	end_to_end_id      TEXT NOT NULL DEFAULT '',
	amount             NUMERIC(12,2),
	paid_at            TIMESTAMPTZ,
	received_at        TIMESTAMPTZ NOT NULL,
	processed          BOOLEAN NOT NULL DEFAULT FALSE,
	processed_at       TIMESTAMPTZ,
	last_error         TEXT NOT NULL DEFAULT '',
	attempts           INT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS webhook_events_retry_idx ON webhook_events (received_at) WHERE NOT processed;

CREATE TABLE IF NOT EXISTS outbox (
	id             BIGSERIAL PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	type           TEXT NOT NULL,
	payload        BYTEA NOT NULL,
	headers        JSONB NOT NULL DEFAULT '{}',
	traceparent    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	relay_id       TEXT,
	lease_until    TIMESTAMPTZ,
	retry_count    INT NOT NULL DEFAULT 0,
	last_error     TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS outbox_status_idx ON outbox (status, id);
`

// Migrate creates the tables the store needs if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
