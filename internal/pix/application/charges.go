package application

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	paymentapp "github.com/dmehra2102/event-pos/internal/payment/application"
	paymentdomain "github.com/dmehra2102/event-pos/internal/payment/domain"
	"github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/internal/store"
	"github.com/dmehra2102/event-pos/pkg/access"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

const SimulatedPSP = "simulated"

type Merchant struct {
	PayeeKey string
	Name     string
	City     string
}

type ChargeService struct {
	log        *slog.Logger
	uow        store.UnitOfWork
	events     Events
	psp        PSP
	merchant   Merchant
	expiration time.Duration
	now        func() time.Time
}

// NewChargeService builds the charge service. A nil psp makes every charge
// simulated.
func NewChargeService(log *slog.Logger, uow store.UnitOfWork, events Events, psp PSP, merchant Merchant, expiration time.Duration) *ChargeService {
	return &ChargeService{
		log:        log,
		uow:        uow,
		events:     events,
		psp:        psp,
		merchant:   merchant,
		expiration: expiration,
		now:        time.Now,
	}
}

type ChargeInput struct {
	OrderID     string
	PaymentID   string
	Amount      decimal.Decimal
	Description string
	Expiration  time.Duration
}

// CreateCharge asks the PSP for a charge. When the PSP fails the error is
// logged and a locally generated, payable simulated charge is returned
// instead. The charge is not persisted.
func (s *ChargeService) CreateCharge(ctx context.Context, in ChargeInput) domain.Charge {
	now := s.now().UTC()
	exp := in.Expiration
	if exp <= 0 {
		exp = s.expiration
	}
	c := domain.Charge{
		ID:               uuid.NewString(),
		OrderID:          in.OrderID,
		PaymentID:        in.PaymentID,
		PSPTransactionID: strings.ReplaceAll(uuid.NewString(), "-", ""),
		Amount:           in.Amount,
		Description:      in.Description,
		Status:           domain.ChargeActive,
		ExpiresAt:        now.Add(exp),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if s.psp != nil {
		resp, err := s.psp.CreateCharge(ctx, ChargeRequest{
			TxID:        c.PSPTransactionID,
			Amount:      c.Amount,
			Description: c.Description,
			Expiration:  exp,
			PayeeKey:    s.merchant.PayeeKey,
		})
		if err == nil {
			c.PSPTransactionID = resp.TxID
			c.PSPIdentifier = s.psp.Name()
			c.QRCode = resp.QRCode
			c.QRImage = resp.QRImage
			c.PayeeKey = resp.PayeeKey
			return c
		}
		s.log.Warn("psp charge failed, issuing simulated charge",
			"order_id", in.OrderID, "err", apperr.Integration(err, "create charge at %s", s.psp.Name()))
	}
	return s.simulate(c)
}

func (s *ChargeService) simulate(c domain.Charge) domain.Charge {
	// The QR reference must equal the stored txid.
	c.PSPTransactionID = strings.ToUpper("SIM" + c.PSPTransactionID[:domain.MaxReferenceLen-3])
	c.PSPIdentifier = SimulatedPSP
	c.Simulated = true
	c.PayeeKey = s.merchant.PayeeKey
	c.QRCode = domain.BRCode{
		PayeeKey:     s.merchant.PayeeKey,
		Amount:       c.Amount,
		MerchantName: s.merchant.Name,
		MerchantCity: s.merchant.City,
		Reference:    c.PSPTransactionID,
	}.String()

	png, err := qrcode.Encode(c.QRCode, qrcode.Medium, 256)
	if err != nil {
		s.log.Error("qr image generation failed", "txid", c.PSPTransactionID, "err", err)
		return c
	}
	c.QRImage = base64.StdEncoding.EncodeToString(png)
	return c
}

// Issue implements the payment strategy's charge port. It never fails: a PSP
// error falls back to a simulated charge.
func (s *ChargeService) Issue(ctx context.Context, o orderdomain.Order, p paymentdomain.Payment) (domain.Charge, error) {
	return s.chargeFor(ctx, o, p), nil
}

func (s *ChargeService) chargeFor(ctx context.Context, o orderdomain.Order, p paymentdomain.Payment) domain.Charge {
	return s.CreateCharge(ctx, ChargeInput{
		OrderID:     o.ID,
		PaymentID:   p.ID,
		Amount:      p.Amount,
		Description: fmt.Sprintf("Order %s", o.Number),
	})
}

// Reissue replaces the active charge of the order's open instant payment
// with a fresh one, typically after the previous one expired.
func (s *ChargeService) Reissue(ctx context.Context, caller access.Caller, orderID string) (domain.Charge, error) {
	var (
		o orderdomain.Order
		p paymentdomain.Payment
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if o, err = tx.Orders().Get(ctx, orderID); err != nil {
			return err
		}
		p, err = openPixPayment(ctx, tx, o)
		return err
	})
	if err != nil {
		return domain.Charge{}, err
	}
	if err := s.authorize(ctx, caller, o); err != nil {
		return domain.Charge{}, err
	}

	c := s.chargeFor(ctx, o, p)

	err = s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		locked, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		current, err := openPixPayment(ctx, tx, locked)
		if err != nil {
			return err
		}
		if current.ID != p.ID {
			return apperr.InvalidState("payment of order %s changed while issuing the charge", locked.Number)
		}
		if err := paymentapp.RemoveActiveCharges(ctx, tx, p.ID, domain.ChargeRemovedByReceiver, now); err != nil {
			return err
		}
		if err := tx.Charges().Add(ctx, c); err != nil {
			return err
		}
		current.Gateway = c.PSPIdentifier
		current.Simulated = c.Simulated
		current.UpdatedAt = now.UTC()
		return tx.Payments().Update(ctx, current)
	})
	if err != nil {
		return domain.Charge{}, err
	}
	s.log.Info("charge reissued", "order_id", orderID, "txid", c.PSPTransactionID, "simulated", c.Simulated)
	return c, nil
}

func openPixPayment(ctx context.Context, tx store.Tx, o orderdomain.Order) (paymentdomain.Payment, error) {
	if o.Status != orderdomain.StatusAwaitingPayment {
		return paymentdomain.Payment{}, apperr.InvalidState("order %s is not awaiting payment", o.Number)
	}
	payments, err := tx.Payments().ListByOrder(ctx, o.ID)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	for _, p := range payments {
		if p.Method == paymentdomain.MethodPix && p.Status.Open() {
			return p, nil
		}
	}
	return paymentdomain.Payment{}, apperr.InvalidState("order %s has no pending instant payment", o.Number)
}

func (s *ChargeService) Get(ctx context.Context, caller access.Caller, id string) (domain.Charge, error) {
	return s.readCharge(ctx, caller, func(ctx context.Context, tx store.Tx) (domain.Charge, error) {
		return tx.Charges().Get(ctx, id)
	})
}

func (s *ChargeService) GetByTransactionID(ctx context.Context, caller access.Caller, txid string) (domain.Charge, error) {
	return s.readCharge(ctx, caller, func(ctx context.Context, tx store.Tx) (domain.Charge, error) {
		return tx.Charges().GetByPSPTransactionID(ctx, txid)
	})
}

func (s *ChargeService) ListByOrder(ctx context.Context, caller access.Caller, orderID string) ([]domain.Charge, error) {
	var (
		o   orderdomain.Order
		out []domain.Charge
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if o, err = tx.Orders().Get(ctx, orderID); err != nil {
			return err
		}
		out, err = tx.Charges().ListByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, o); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ChargeService) readCharge(ctx context.Context, caller access.Caller, load func(context.Context, store.Tx) (domain.Charge, error)) (domain.Charge, error) {
	var (
		c domain.Charge
		o orderdomain.Order
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if c, err = load(ctx, tx); err != nil {
			return err
		}
		o, err = tx.Orders().Get(ctx, c.OrderID)
		return err
	})
	if err != nil {
		return domain.Charge{}, err
	}
	if err := s.authorize(ctx, caller, o); err != nil {
		return domain.Charge{}, err
	}
	return c, nil
}

// authorize lets anyone read charges of anonymous orders; otherwise the
// owner or the event manager.
func (s *ChargeService) authorize(ctx context.Context, caller access.Caller, o orderdomain.Order) error {
	if o.ConsumerID == "" || caller.OwnsOrder(o.ConsumerID) || caller.IsAdmin() {
		return nil
	}
	ev, err := s.events.GetEvent(ctx, o.EventID)
	if err != nil {
		return err
	}
	if !caller.ManagesEvent(ev.ManagerID) {
		return apperr.Forbidden("caller cannot see charges of order %s", o.Number)
	}
	return nil
}
