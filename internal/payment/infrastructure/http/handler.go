package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/event-pos/internal/payment/application"
	"github.com/dmehra2102/event-pos/internal/payment/domain"
	pixdomain "github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/pkg/access"
	"github.com/dmehra2102/event-pos/pkg/httpx"
	"github.com/dmehra2102/event-pos/pkg/idempotency"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	idem    *idempotency.Store
	tracer  trace.Tracer
}

// NewHandler builds the payment routes. A nil idem disables Idempotency-Key
// replay on payment initiation.
func NewHandler(log *slog.Logger, service *application.Service, idem *idempotency.Store) *Handler {
	return &Handler{
		log:     log,
		service: service,
		idem:    idem,
		tracer:  otel.Tracer("payment-http"),
	}
}

type processReq struct {
	OrderID      string          `json:"order_id" validate:"required"`
	Method       domain.Method   `json:"method" validate:"required,oneof=pix card cash"`
	Amount       decimal.Decimal `json:"amount"`
	CardToken    string          `json:"card_token"`
	Installments int             `json:"installments" validate:"gte=0,lte=12"`
}

type chargeResp struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	QRCode        string    `json:"qr_code"`
	QRImage       string    `json:"qr_image,omitempty"`
	PayeeKey      string    `json:"payee_key,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	Simulated     bool      `json:"simulated"`
}

type paymentResp struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        domain.Status   `json:"status"`
	Method        domain.Method   `json:"method"`
	Gateway       string          `json:"gateway,omitempty"`
	Simulated     bool            `json:"simulated"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
	Charge        *chargeResp     `json:"charge,omitempty"`
}

func toResp(p domain.Payment, c *pixdomain.Charge) paymentResp {
	out := paymentResp{
		ID:            p.ID,
		OrderID:       p.OrderID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Status:        p.Status,
		Method:        p.Method,
		Gateway:       p.Gateway,
		Simulated:     p.Simulated,
		CreatedAt:     p.CreatedAt,
		ProcessedAt:   p.ProcessedAt,
		ConfirmedAt:   p.ConfirmedAt,
		CancelledAt:   p.CancelledAt,
		RefundedAt:    p.RefundedAt,
	}
	if c != nil {
		out.Charge = &chargeResp{
			ID:            c.ID,
			TransactionID: c.PSPTransactionID,
			QRCode:        c.QRCode,
			QRImage:       c.QRImage,
			PayeeKey:      c.PayeeKey,
			ExpiresAt:     c.ExpiresAt,
			Simulated:     c.Simulated,
		}
	}
	return out
}

// Routes is mounted under /payments.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	process := http.Handler(http.HandlerFunc(h.processPayment))
	if h.idem != nil {
		process = h.idem.Middleware(h.log, func(r *http.Request) string {
			return httpx.CallerFrom(r.Context()).ID
		})(process)
	}
	r.Method(http.MethodPost, "/", process)
	r.Get("/{id}", h.getPayment)

	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireCaller)
		r.Get("/", h.listByConsumer)
		r.Post("/{txid}/confirm", h.confirm)
		r.Post("/{txid}/cancel", h.cancel)
		r.Post("/{txid}/refund", h.refund)
	})
	return r
}

func (h *Handler) processPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ProcessPayment")
	defer span.End()

	var req processReq
	if err := httpx.Bind(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", req.OrderID), attribute.String("payment.method", string(req.Method)))

	rc, err := h.service.Process(ctx, httpx.CallerFrom(ctx), application.ProcessInput{
		OrderID: req.OrderID,
		Method:  req.Method,
		Amount:  req.Amount,
		Details: application.Details{CardToken: req.CardToken, Installments: req.Installments},
	})
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResp(rc.Payment, rc.Charge))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPayment")
	defer span.End()

	p, err := h.service.Get(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(p, nil))
}

func (h *Handler) listByConsumer(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListConsumerPayments")
	defer span.End()

	caller := httpx.CallerFrom(ctx)
	consumerID := r.URL.Query().Get("consumer_id")
	if consumerID == "" {
		consumerID = caller.ID
	}
	payments, err := h.service.ListByConsumer(ctx, caller, consumerID)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	out := make([]paymentResp, 0, len(payments))
	for _, p := range payments {
		out = append(out, toResp(p, nil))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "ConfirmPayment", h.service.Confirm)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "CancelPayment", h.service.Cancel)
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "RefundPayment", h.service.Refund)
}

type transitionFn func(ctx context.Context, caller access.Caller, transactionID string) (domain.Payment, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, name string, fn transitionFn) {
	ctx, span := h.tracer.Start(r.Context(), name)
	defer span.End()

	txid := chi.URLParam(r, "txid")
	span.SetAttributes(attribute.String("payment.transaction_id", txid))
	p, err := fn(ctx, httpx.CallerFrom(ctx), txid)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(p, nil))
}

func (h *Handler) fail(w http.ResponseWriter, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	httpx.WriteError(w, h.log, err)
}
