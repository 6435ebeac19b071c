package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/event-pos/internal/kitchen/application"
	"github.com/dmehra2102/event-pos/internal/kitchen/domain"
	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
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
		tracer:  otel.Tracer("kitchen-http"),
	}
}

type advanceReq struct {
	Status orderdomain.ItemStatus `json:"status" validate:"required,oneof=preparing ready delivered cancelled"`
}

// Routes is mounted under /kitchen. Every route needs a signed-in caller.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.RequireCaller)
	r.Get("/events/{eventID}/orders", h.list)
	r.Get("/events/{eventID}/statistics", h.statistics)
	r.Patch("/items/{itemID}", h.advanceItem)
	r.Post("/orders/{orderID}/ready", h.markReady)
	r.Post("/orders/{orderID}/delivered", h.markDelivered)
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListKitchenOrders")
	defer span.End()

	status := orderdomain.Status(r.URL.Query().Get("status"))
	tickets, err := h.service.List(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "eventID"), status)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tickets)
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "KitchenStatistics")
	defer span.End()

	st, err := h.service.Statistics(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "eventID"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) advanceItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AdvanceItem")
	defer span.End()

	var req advanceReq
	if err := httpx.Bind(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	t, err := h.service.AdvanceItem(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "itemID"), req.Status)
	h.respond(w, span, t, err)
}

func (h *Handler) markReady(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MarkOrderReady")
	defer span.End()

	t, err := h.service.MarkReady(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "orderID"))
	h.respond(w, span, t, err)
}

func (h *Handler) markDelivered(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MarkOrderDelivered")
	defer span.End()

	t, err := h.service.MarkDelivered(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "orderID"))
	h.respond(w, span, t, err)
}

func (h *Handler) respond(w http.ResponseWriter, span trace.Span, t domain.Ticket, err error) {
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) fail(w http.ResponseWriter, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	httpx.WriteError(w, h.log, err)
}
