package http

import (
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/event-pos/internal/pix/application"
	"github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/pkg/httpx"
)

const SecretHeader = "X-Webhook-Secret"

const maxWebhookBody = 1 << 20

type Handler struct {
	log        *slog.Logger
	charges    *application.ChargeService
	reconciler *application.Reconciler
	secret     string
	tracer     trace.Tracer
	now        func() time.Time
}

// NewHandler serves instant charges and the PSP webhook. An empty secret
// accepts webhooks without the shared-secret header.
func NewHandler(log *slog.Logger, charges *application.ChargeService, reconciler *application.Reconciler, secret string) *Handler {
	return &Handler{
		log:        log,
		charges:    charges,
		reconciler: reconciler,
		secret:     secret,
		tracer:     otel.Tracer("pix-http"),
		now:        time.Now,
	}
}

type reissueReq struct {
	OrderID string `json:"order_id" validate:"required"`
}

type chargeResp struct {
	ID            string              `json:"id"`
	OrderID       string              `json:"order_id"`
	PaymentID     string              `json:"payment_id"`
	TransactionID string              `json:"transaction_id"`
	PSP           string              `json:"psp"`
	Amount        decimal.Decimal     `json:"amount"`
	Description   string              `json:"description,omitempty"`
	PayeeKey      string              `json:"payee_key,omitempty"`
	QRCode        string              `json:"qr_code"`
	QRImage       string              `json:"qr_image,omitempty"`
	Status        domain.ChargeStatus `json:"status"`
	Expired       bool                `json:"expired"`
	Simulated     bool                `json:"simulated"`
	ExpiresAt     time.Time           `json:"expires_at"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

type webhookEventResp struct {
	ID            string     `json:"id"`
	TransactionID string     `json:"transaction_id,omitempty"`
	EventType     string     `json:"event_type"`
	Processed     bool       `json:"processed"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	ReceivedAt    time.Time  `json:"received_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

func (h *Handler) toResp(c domain.Charge) chargeResp {
	return chargeResp{
		ID:            c.ID,
		OrderID:       c.OrderID,
		PaymentID:     c.PaymentID,
		TransactionID: c.PSPTransactionID,
		PSP:           c.PSPIdentifier,
		Amount:        c.Amount,
		Description:   c.Description,
		PayeeKey:      c.PayeeKey,
		QRCode:        c.QRCode,
		QRImage:       c.QRImage,
		Status:        c.Status,
		Expired:       c.IsExpired(h.now()),
		Simulated:     c.Simulated,
		ExpiresAt:     c.ExpiresAt,
		PaidAt:        c.PaidAt,
		CreatedAt:     c.CreatedAt,
	}
}

func toEventResp(e domain.WebhookEvent) webhookEventResp {
	return webhookEventResp{
		ID:            e.ID,
		TransactionID: e.PSPTransactionID,
		EventType:     e.EventType,
		Processed:     e.Processed,
		Attempts:      e.Attempts,
		LastError:     e.LastError,
		ReceivedAt:    e.ReceivedAt,
		ProcessedAt:   e.ProcessedAt,
	}
}

// Routes is mounted under /pix.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/charges", h.reissue)
	r.Get("/charges/{id}", h.getCharge)
	r.Get("/charges/txid/{txid}", h.getByTransactionID)
	r.Get("/orders/{orderID}/charges", h.listByOrder)
	return r
}

// WebhookRoutes is mounted under /webhooks.
func (h *Handler) WebhookRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/{psp}/pix", h.receiveWebhook)
	r.With(httpx.RequireCaller).Post("/events/{id}/replay", h.replay)
	return r
}

func (h *Handler) reissue(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReissueCharge")
	defer span.End()

	var req reissueReq
	if err := httpx.Bind(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	c, err := h.charges.Reissue(ctx, httpx.CallerFrom(ctx), req.OrderID)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, h.toResp(c))
}

func (h *Handler) getCharge(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetCharge")
	defer span.End()

	c, err := h.charges.Get(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toResp(c))
}

func (h *Handler) getByTransactionID(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetChargeByTransactionID")
	defer span.End()

	c, err := h.charges.GetByTransactionID(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "txid"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.toResp(c))
}

func (h *Handler) listByOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrderCharges")
	defer span.End()

	charges, err := h.charges.ListByOrder(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "orderID"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	out := make([]chargeResp, 0, len(charges))
	for _, c := range charges {
		out = append(out, h.toResp(c))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// receiveWebhook answers 200 once the notification is stored, whatever the
// outcome of applying it; the PSP only retries on failed storage.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReceivePixWebhook")
	defer span.End()

	psp := chi.URLParam(r, "psp")
	span.SetAttributes(attribute.String("pix.psp", psp))
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(h.secret)) != 1 {
		http.Error(w, "invalid webhook secret", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "webhook body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}
	events, err := h.reconciler.IngestRaw(ctx, psp, body)
	if err != nil {
		h.fail(w, span, err)
		return
	}
	out := make([]webhookEventResp, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResp(e))
	}
	span.SetAttributes(attribute.Int("pix.notifications", len(out)))
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) replay(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReplayWebhook")
	defer span.End()

	ev, err := h.reconciler.Replay(ctx, httpx.CallerFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, span, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toEventResp(ev))
}

func (h *Handler) fail(w http.ResponseWriter, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	httpx.WriteError(w, h.log, err)
}
