// Package psp talks to an instant-payment provider that follows the
// central bank's charge API (PUT /v2/cob/{txid}, GET /v2/loc/{id}/qrcode).
package psp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmehra2102/event-pos/internal/pix/application"
)

type Client struct {
	log     *slog.Logger
	name    string
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(log *slog.Logger, name, baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		log:     log,
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return c.name }

type cobRequest struct {
	Calendario struct {
		Expiracao int `json:"expiracao"`
	} `json:"calendario"`
	Valor struct {
		Original string `json:"original"`
	} `json:"valor"`
	Chave              string `json:"chave"`
	SolicitacaoPagador string `json:"solicitacaoPagador,omitempty"`
}

type cobResponse struct {
	TxID          string `json:"txid"`
	Status        string `json:"status"`
	Chave         string `json:"chave"`
	PixCopiaECola string `json:"pixCopiaECola"`
	Loc           struct {
		ID int64 `json:"id"`
	} `json:"loc"`
}

type qrResponse struct {
	QRCode       string `json:"qrcode"`
	ImagemQRCode string `json:"imagemQrcode"`
}

func (c *Client) CreateCharge(ctx context.Context, req application.ChargeRequest) (application.ChargeResponse, error) {
	var body cobRequest
	body.Calendario.Expiracao = int(req.Expiration.Seconds())
	body.Valor.Original = req.Amount.StringFixed(2)
	body.Chave = req.PayeeKey
	body.SolicitacaoPagador = req.Description

	var cob cobResponse
	if err := c.do(ctx, http.MethodPut, "/v2/cob/"+req.TxID, body, &cob); err != nil {
		return application.ChargeResponse{}, err
	}

	resp := application.ChargeResponse{
		TxID:     cob.TxID,
		QRCode:   cob.PixCopiaECola,
		PayeeKey: cob.Chave,
	}
	if resp.TxID == "" {
		resp.TxID = req.TxID
	}
	if cob.Loc.ID == 0 {
		return resp, nil
	}

	var qr qrResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v2/loc/%d/qrcode", cob.Loc.ID), nil, &qr); err != nil {
		// The charge exists at the PSP; the copy-and-paste payload is enough to pay it.
		c.log.Warn("psp qr image lookup failed", "txid", resp.TxID, "err", err)
		return resp, nil
	}
	if qr.QRCode != "" {
		resp.QRCode = qr.QRCode
	}
	resp.QRImage = strings.TrimPrefix(qr.ImagemQRCode, "data:image/png;base64,")
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, res.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
