package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "catalog.v1.Catalog"

type GetProductRequest struct {
	ID string `json:"id"`
}

type Product struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Available   bool   `json:"available"`
	PrepMinutes int    `json:"prep_minutes"`
}

type GetEventRequest struct {
	ID string `json:"id"`
}

type Event struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ManagerID string `json:"manager_id"`
}

type CatalogServer interface {
	GetProduct(ctx context.Context, req *GetProductRequest) (*Product, error)
	GetEvent(ctx context.Context, req *GetEventRequest) (*Event, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProduct", Handler: getProductHandler},
		{MethodName: "GetEvent", Handler: getEventHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog/v1/catalog",
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&serviceDesc, srv)
}

func getProductHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetProductRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).GetProduct(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetProduct"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).GetProduct(ctx, req.(*GetProductRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getEventHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetEventRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).GetEvent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetEvent"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).GetEvent(ctx, req.(*GetEventRequest))
	}
	return interceptor(ctx, in, info, handler)
}
