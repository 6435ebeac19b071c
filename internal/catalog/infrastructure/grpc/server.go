package grpc

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/event-pos/internal/catalog/application"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

type Server struct {
	log *slog.Logger
	svc *application.Service
}

func NewServer(log *slog.Logger, svc *application.Service) *Server {
	return &Server{log: log, svc: svc}
}

func (s *Server) GetProduct(ctx context.Context, req *GetProductRequest) (*Product, error) {
	p, err := s.svc.GetProduct(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &Product{
		ID:          p.ID,
		EventID:     p.EventID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Price:       p.Price.String(),
		Available:   p.Available,
		PrepMinutes: p.PrepMinutes,
	}, nil
}

func (s *Server) GetEvent(ctx context.Context, req *GetEventRequest) (*Event, error) {
	e, err := s.svc.GetEvent(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &Event{ID: e.ID, Name: e.Name, ManagerID: e.ManagerID}, nil
}

func toStatus(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case apperr.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func NewGRPCServer(srv *Server) *grpc.Server {
	gs := grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	RegisterCatalogServer(gs, srv)
	return gs
}

func Run(addr string, srv *Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := NewGRPCServer(srv)
	go func() {
		if err := gs.Serve(lis); err != nil {
			srv.log.Error("catalog grpc serve", "err", err)
		}
	}()
	return gs, nil
}
