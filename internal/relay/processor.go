package relay

import (
	"context"
	"log/slog"
	"time"

	"asaas-contaazul-relay/internal/asaas"
	"asaas-contaazul-relay/internal/config"
	"asaas-contaazul-relay/internal/contaazul"
	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
)

const defaultPaymentDate = "2025-01-01"

var (
	webhookUnauthorizedCounter = metrics.GetOrCreateCounter(`relay_webhook_total{result="unauthorized"}`)
	webhookDuplicateCounter    = metrics.GetOrCreateCounter(`relay_webhook_total{result="duplicate"}`)
	webhookIgnoredCounter      = metrics.GetOrCreateCounter(`relay_webhook_total{result="ignored"}`)
	webhookMissingRefCounter   = metrics.GetOrCreateCounter(`relay_webhook_total{result="missing_reference"}`)
	webhookAuthRequiredCounter = metrics.GetOrCreateCounter(`relay_webhook_total{result="auth_required"}`)
	webhookUpstreamErrCounter  = metrics.GetOrCreateCounter(`relay_webhook_total{result="upstream_error"}`)
	webhookStorageErrCounter   = metrics.GetOrCreateCounter(`relay_webhook_total{result="storage_error"}`)
	webhookSettledCounter      = metrics.GetOrCreateCounter(`relay_webhook_total{result="settled"}`)

	settlementDurationHistogram = metrics.GetOrCreateHistogram(`relay_settlement_duration_milliseconds`)
)

type EventLog interface {
	WasProcessed(ctx context.Context, provider, eventType, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventType, eventID string, payload []byte) error
}

type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

type Settler interface {
	SettleInstallment(ctx context.Context, token, installmentID string, amountPaid float64, paymentDate, note string) (*contaazul.Result, error)
}

// Outcome is a terminal webhook result. Exactly one of the fields is set.
type Outcome struct {
	Duplicate bool
	Ignored   string
	ParcelaID string
}

// Processor runs the webhook state machine: authenticate, parse, deduplicate,
// filter, settle, commit. Only terminal outcomes (duplicate, ignored, settled)
// are written to the event log; recoverable failures stay unmarked so the
// provider's redelivery acts as the retry mechanism.
type Processor struct {
	webhookToken string
	staticToken  string
	events       EventLog
	tokens       TokenSource
	settler      Settler
	logger       *slog.Logger
}

func NewProcessor(cfg *config.Config, events EventLog, tokens TokenSource, settler Settler, logger *slog.Logger) *Processor {
	return &Processor{
		webhookToken: cfg.Asaas.WebhookToken,
		staticToken:  cfg.ContaAzul.AccessToken,
		events:       events,
		tokens:       tokens,
		settler:      settler,
		logger:       logger,
	}
}

func (p *Processor) Process(ctx context.Context, headerToken string, body []byte) (*Outcome, error) {
	if headerToken != p.webhookToken {
		webhookUnauthorizedCounter.Inc()
		return nil, ErrUnauthorized
	}

	event, err := asaas.ParseWebhook(body)
	if err != nil {
		return nil, err
	}

	processed, err := p.events.WasProcessed(ctx, asaas.Provider, event.Event, event.DedupKey())
	if err != nil {
		webhookStorageErrCounter.Inc()
		return nil, err
	}
	if processed {
		p.logger.InfoContext(ctx, "Duplicate event", "paymentId", event.PaymentID, "event", event.Event)
		webhookDuplicateCounter.Inc()
		return &Outcome{Duplicate: true}, nil
	}

	if event.Event != asaas.EventPaymentReceived {
		p.logger.InfoContext(ctx, "Ignoring event", "paymentId", event.PaymentID, "event", event.Event)

		if err := p.events.MarkProcessed(ctx, asaas.Provider, event.Event, event.DedupKey(), event.Raw); err != nil {
			webhookStorageErrCounter.Inc()
			return nil, err
		}
		webhookIgnoredCounter.Inc()
		return &Outcome{Ignored: event.Event}, nil
	}

	if event.ExternalReference == "" {
		p.logger.ErrorContext(ctx, "Payment without externalReference", "paymentId", event.PaymentID)
		webhookMissingRefCounter.Inc()
		// not marked processed: a corrected redelivery can still land
		return nil, ErrMissingReference
	}

	token, err := p.validToken(ctx)
	if err != nil {
		webhookStorageErrCounter.Inc()
		return nil, err
	}
	if token == "" {
		p.logger.ErrorContext(ctx, "No valid ContaAzul token, authorize at /oauth/authorize")
		webhookAuthRequiredCounter.Inc()
		return nil, ErrAuthRequired
	}

	parcelaID := event.ExternalReference
	paymentDate := event.PaymentDate
	if paymentDate == "" {
		paymentDate = defaultPaymentDate
	}

	startTime := time.Now()
	result, err := p.settler.SettleInstallment(ctx, token, parcelaID, event.Amount, paymentDate, "Asaas "+event.PaymentID)
	if err != nil {
		webhookUpstreamErrCounter.Inc()
		return nil, errors.Wrap(err, "settling installment")
	}
	settlementDurationHistogram.Update(float64(time.Since(startTime).Milliseconds()))

	if result.StatusCode < 200 || result.StatusCode > 299 {
		p.logger.ErrorContext(ctx, "Settlement rejected", "parcelaId", parcelaID, "status", result.StatusCode, "body", string(result.Body))
		webhookUpstreamErrCounter.Inc()
		return nil, &UpstreamError{StatusCode: result.StatusCode, Body: string(result.Body)}
	}

	if err := p.events.MarkProcessed(ctx, asaas.Provider, event.Event, event.DedupKey(), event.Raw); err != nil {
		webhookStorageErrCounter.Inc()
		return nil, err
	}

	p.logger.InfoContext(ctx, "Installment settled", "parcelaId", parcelaID, "paymentId", event.PaymentID)
	webhookSettledCounter.Inc()
	return &Outcome{ParcelaID: parcelaID}, nil
}

// validToken prefers the OAuth-managed token and falls back to the statically
// configured one for deployments that bypass the authorization flow.
func (p *Processor) validToken(ctx context.Context) (string, error) {
	token, err := p.tokens.GetValidToken(ctx)
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}
	return p.staticToken, nil
}
