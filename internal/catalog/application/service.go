package application

import (
	"context"
	"log/slog"

	"github.com/dmehra2102/event-pos/internal/catalog/domain"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

type Service struct {
	log  *slog.Logger
	repo Repository
}

func NewService(log *slog.Logger, repo Repository) *Service {
	return &Service{log: log, repo: repo}
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if id == "" {
		return domain.Product{}, apperr.Validation("product id is required")
	}
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		s.log.Debug("catalog product lookup failed", "product_id", id, "err", err)
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Service) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	if id == "" {
		return domain.Event{}, apperr.Validation("event id is required")
	}
	e, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		s.log.Debug("catalog event lookup failed", "event_id", id, "err", err)
		return domain.Event{}, err
	}
	return e, nil
}
