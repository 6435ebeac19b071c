package application

import (
	"context"

	"github.com/dmehra2102/event-pos/internal/catalog/domain"
)

type Repository interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	GetEvent(ctx context.Context, id string) (domain.Event, error)
}
