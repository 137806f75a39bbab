package contaazul

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

	"asaas-contaazul-relay/internal/config"
	"github.com/pkg/errors"
)

const (
	settlementTimeout = 30 * time.Second

	maxNoteLength = 255
)

// Result is the raw downstream reply. Interpreting the status (2xx means the
// installment was settled) is the caller's job.
type Result struct {
	StatusCode int
	Body       []byte
}

type settlementPayload struct {
	DataPagamento string  `json:"data_pagamento"`
	ValorPago     float64 `json:"valor_pago"`
	ContaID       string  `json:"id_conta_financeira"`
	Observacao    *string `json:"observacao"`
}

// Client issues settlement calls against the ContaAzul finance API.
type Client struct {
	base         string
	finAccountID string
	client       *http.Client
	logger       *slog.Logger
}

func NewClient(cfg config.ContaAzul, logger *slog.Logger) *Client {
	return &Client{
		base:         strings.TrimRight(cfg.APIBaseURL, "/"),
		finAccountID: cfg.FinAccountID,
		client:       &http.Client{Timeout: settlementTimeout},
		logger:       logger,
	}
}

// SettleInstallment marks the installment as paid ("baixa de parcela"). The
// note is truncated to 255 characters and sent as null when empty.
func (c *Client) SettleInstallment(ctx context.Context, token, installmentID string, amountPaid float64, paymentDate, note string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/v1/financeiro/eventos-financeiros/parcelas/%s/baixa", c.base, installmentID)

	payload := settlementPayload{
		DataPagamento: paymentDate,
		ValorPago:     amountPaid,
		ContaID:       c.finAccountID,
	}
	if note != "" {
		truncated := truncate(note, maxNoteLength)
		payload.Observacao = &truncated
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling settlement payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "creating settlement request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	c.logger.InfoContext(ctx, "Settling installment", "parcelaId", installmentID, "amount", amountPaid)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling settlement endpoint")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading settlement response")
	}

	c.logger.InfoContext(ctx, "Settlement response", "status", resp.StatusCode)

	return &Result{StatusCode: resp.StatusCode, Body: respBody}, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
