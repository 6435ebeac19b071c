package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/event-pos/internal/catalog/domain"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	manager_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
	id           TEXT PRIMARY KEY,
	event_id     TEXT NOT NULL REFERENCES events(id),
	category_id  TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL,
	price        NUMERIC(12,2) NOT NULL CHECK (price > 0),
	available    BOOLEAN NOT NULL DEFAULT TRUE,
	prep_minutes INT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS products_event_idx ON products (event_id);
`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	var price string
	err := r.pool.QueryRow(ctx, `SELECT id, event_id, category_id, name, price::text, available, prep_minutes
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.EventID, &p.CategoryID, &p.Name, &price, &p.Available, &p.PrepMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, apperr.NotFound("product %s not found", id)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Product{}, fmt.Errorf("parse price of %s: %w", id, err)
	}
	return p, nil
}

func (r *Repository) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	var e domain.Event
	err := r.pool.QueryRow(ctx, `SELECT id, name, manager_id FROM events WHERE id=$1`, id).
		Scan(&e.ID, &e.Name, &e.ManagerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, apperr.NotFound("event %s not found", id)
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// Seed upserts events and products; used by the catalog service's fixture
// loader and the integration tests.
func (r *Repository) Seed(ctx context.Context, events []domain.Event, products []domain.Product) error {
	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`INSERT INTO events (id, name, manager_id) VALUES ($1,$2,$3)
			ON CONFLICT (id) DO UPDATE SET name=$2, manager_id=$3`, e.ID, e.Name, e.ManagerID)
	}
	for _, p := range products {
		batch.Queue(`INSERT INTO products (id, event_id, category_id, name, price, available, prep_minutes)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET category_id=$3, name=$4, price=$5, available=$6, prep_minutes=$7`,
			p.ID, p.EventID, p.CategoryID, p.Name, p.Price.String(), p.Available, p.PrepMinutes)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	return nil
}
