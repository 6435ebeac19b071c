// Package memory is a fixed in-process catalog for local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/event-pos/internal/catalog/domain"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

type Catalog struct {
	mu       sync.RWMutex
	events   map[string]domain.Event
	products map[string]domain.Product
}

func New() *Catalog {
	return &Catalog{
		events:   map[string]domain.Event{},
		products: map[string]domain.Product{},
	}
}

func (c *Catalog) PutEvent(e domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[e.ID] = e
}

func (c *Catalog) PutProduct(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *Catalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, apperr.NotFound("product %s not found", id)
	}
	return p, nil
}

func (c *Catalog) GetEvent(_ context.Context, id string) (domain.Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.events[id]
	if !ok {
		return domain.Event{}, apperr.NotFound("event %s not found", id)
	}
	return e, nil
}
