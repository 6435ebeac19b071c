package grpc

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/event-pos/internal/catalog/domain"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

type Client struct {
	log  *slog.Logger
	conn *grpc.ClientConn
}

func NewClient(log *slog.Logger, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{log: log, conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var out Product
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/GetProduct", &GetProductRequest{ID: id}, &out); err != nil {
		return domain.Product{}, fromStatus(err, "product", id)
	}
	price, err := decimal.NewFromString(out.Price)
	if err != nil {
		return domain.Product{}, apperr.Integration(err, "catalog returned invalid price for %s", id)
	}
	return domain.Product{
		ID:          out.ID,
		EventID:     out.EventID,
		CategoryID:  out.CategoryID,
		Name:        out.Name,
		Price:       price,
		Available:   out.Available,
		PrepMinutes: out.PrepMinutes,
	}, nil
}

func (c *Client) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	var out Event
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/GetEvent", &GetEventRequest{ID: id}, &out); err != nil {
		return domain.Event{}, fromStatus(err, "event", id)
	}
	return domain.Event{ID: out.ID, Name: out.Name, ManagerID: out.ManagerID}, nil
}

func fromStatus(err error, what, id string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return apperr.NotFound("%s %s not found", what, id)
	case codes.InvalidArgument:
		return apperr.Validation("%s", status.Convert(err).Message())
	default:
		return apperr.Integration(err, "catalog lookup of %s %s", what, id)
	}
}
