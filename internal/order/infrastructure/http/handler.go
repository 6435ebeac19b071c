package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/event-pos/internal/order/application"
	"github.com/dmehra2102/event-pos/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

// Routes is mounted under /orders.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.createOrder)
	r.Get("/{id}", h.getOrder)

	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireCaller)
		r.Get("/", h.listByConsumer)
		r.Patch("/{id}/status", h.updateStatus)
		r.Post("/{id}/cancel", h.cancelOrder)
		r.Put("/{id}/adjustments", h.setAdjustments)
		r.Patch("/{id}/items/{itemID}", h.changeQuantity)
	})
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := httpx.Bind(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	in := application.CreateInput{EventID: req.EventID, ConsumerID: req.ConsumerID, Note: req.Note}
	for _, it := range req.Items {
		in.Items = append(in.Items, application.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity, Note: it.Note})
	}
	o, err := h.service.Create(ctx, httpx.CallerFrom(ctx), in)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("order.number", o.Number))
	httpx.WriteJSON(w, http.StatusCreated, toResp(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.service.Get(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(o))
}

func (h *Handler) listByConsumer(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListConsumerOrders")
	defer span.End()

	caller := httpx.CallerFrom(ctx)
	consumerID := r.URL.Query().Get("consumer_id")
	if consumerID == "" {
		consumerID = caller.ID
	}
	orders, err := h.service.ListByConsumer(ctx, caller, consumerID)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResp(o))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	var req statusReq
	if err := httpx.Bind(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	o, err := h.service.UpdateStatus(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	o, err := h.service.Cancel(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(o))
}

func (h *Handler) setAdjustments(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SetOrderAdjustments")
	defer span.End()

	var req adjustmentsReq
	if err := httpx.Bind(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	o, err := h.service.SetAdjustments(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "id"), req.ServiceFee, req.Discount)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(o))
}

func (h *Handler) changeQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ChangeItemQuantity")
	defer span.End()

	var req quantityReq
	if err := httpx.Bind(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	o, err := h.service.ChangeItemQuantity(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(o))
}

func (h *Handler) fail(w http.ResponseWriter, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	httpx.WriteError(w, h.log, err)
}
