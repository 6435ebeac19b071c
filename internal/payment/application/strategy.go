package application

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	"github.com/dmehra2102/event-pos/internal/payment/domain"
	pixdomain "github.com/dmehra2102/event-pos/internal/pix/domain"
)

// Details carries method specific input. Only the fields of the chosen
// method are read.
type Details struct {
	CardToken    string `json:"card_token,omitempty"`
	Installments int    `json:"installments,omitempty"`
}

type Result struct {
	Status    domain.Status
	Gateway   string
	Response  []byte
	Simulated bool
	Charge    *pixdomain.Charge
}

type Processor interface {
	Process(ctx context.Context, o orderdomain.Order, p domain.Payment, d Details) (Result, error)
}

type ProcessorFunc func(ctx context.Context, o orderdomain.Order, p domain.Payment, d Details) (Result, error)

func (f ProcessorFunc) Process(ctx context.Context, o orderdomain.Order, p domain.Payment, d Details) (Result, error) {
	return f(ctx, o, p, d)
}

// Processors maps each method to its strategy.
type Processors map[domain.Method]Processor

func NewProcessors(card *CardProcessor, issuer ChargeIssuer) Processors {
	return Processors{
		domain.MethodCard: card,
		domain.MethodCash: ProcessorFunc(processCash),
		domain.MethodPix:  &PixProcessor{issuer: issuer},
	}
}

// CardProcessor simulates a synchronous authorisation that succeeds with
// the configured probability.
type CardProcessor struct {
	approvalRate float64
	rng          func() float64
}

func NewCardProcessor(approvalRate float64, rng func() float64) *CardProcessor {
	if rng == nil {
		rng = rand.Float64
	}
	return &CardProcessor{approvalRate: approvalRate, rng: rng}
}

type cardResponse struct {
	Approved          bool   `json:"approved"`
	AuthorizationCode string `json:"authorization_code,omitempty"`
	Reason            string `json:"reason,omitempty"`
	Installments      int    `json:"installments"`
}

func (c *CardProcessor) Process(_ context.Context, _ orderdomain.Order, _ domain.Payment, d Details) (Result, error) {
	installments := max(d.Installments, 1)
	resp := cardResponse{Installments: installments}
	status := domain.StatusDenied
	if c.rng() < c.approvalRate {
		status = domain.StatusApproved
		resp.Approved = true
		resp.AuthorizationCode = fmt.Sprintf("AUTH-%s", uuid.NewString()[:8])
	} else {
		resp.Reason = "declined by issuer"
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: status, Gateway: "card-simulator", Response: raw, Simulated: true}, nil
}

func processCash(context.Context, orderdomain.Order, domain.Payment, Details) (Result, error) {
	return Result{Status: domain.StatusPending, Gateway: "cash"}, nil
}

type PixProcessor struct {
	issuer ChargeIssuer
}

type pixResponse struct {
	TransactionID string `json:"txid"`
	ExpiresAt     string `json:"expires_at"`
	Simulated     bool   `json:"simulated"`
}

func (p *PixProcessor) Process(ctx context.Context, o orderdomain.Order, pay domain.Payment, _ Details) (Result, error) {
	charge, err := p.issuer.Issue(ctx, o, pay)
	if err != nil {
		return Result{}, err
	}
	raw, err := json.Marshal(pixResponse{
		TransactionID: charge.PSPTransactionID,
		ExpiresAt:     charge.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		Simulated:     charge.Simulated,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Status:    domain.StatusPending,
		Gateway:   charge.PSPIdentifier,
		Response:  raw,
		Simulated: charge.Simulated,
		Charge:    &charge,
	}, nil
}
