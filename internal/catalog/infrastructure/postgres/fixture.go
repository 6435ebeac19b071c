package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/event-pos/internal/catalog/domain"
)

type fixture struct {
	Events []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		ManagerID string `json:"manager_id"`
	} `json:"events"`
	Products []struct {
		ID          string          `json:"id"`
		EventID     string          `json:"event_id"`
		CategoryID  string          `json:"category_id"`
		Name        string          `json:"name"`
		Price       decimal.Decimal `json:"price"`
		Available   *bool           `json:"available"`
		PrepMinutes int             `json:"prep_minutes"`
	} `json:"products"`
}

// decodeFixture reads a catalog fixture. Products are available unless the
// fixture says otherwise.
func decodeFixture(r io.Reader) ([]domain.Event, []domain.Product, error) {
	var f fixture
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("decode catalog fixture: %w", err)
	}
	events := make([]domain.Event, 0, len(f.Events))
	for _, e := range f.Events {
		events = append(events, domain.Event{ID: e.ID, Name: e.Name, ManagerID: e.ManagerID})
	}
	products := make([]domain.Product, 0, len(f.Products))
	for _, p := range f.Products {
		if p.ID == "" || p.EventID == "" {
			return nil, nil, fmt.Errorf("catalog fixture: product %q needs id and event_id", p.Name)
		}
		available := true
		if p.Available != nil {
			available = *p.Available
		}
		products = append(products, domain.Product{
			ID:          p.ID,
			EventID:     p.EventID,
			CategoryID:  p.CategoryID,
			Name:        p.Name,
			Price:       p.Price,
			Available:   available,
			PrepMinutes: p.PrepMinutes,
		})
	}
	return events, products, nil
}

// SeedFile loads a JSON fixture from path into the catalog tables.
func (r *Repository) SeedFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog fixture: %w", err)
	}
	defer f.Close()

	events, products, err := decodeFixture(f)
	if err != nil {
		return err
	}
	if err := r.Seed(ctx, events, products); err != nil {
		return err
	}
	r.log.Info("catalog seeded", "events", len(events), "products", len(products))
	return nil
}
