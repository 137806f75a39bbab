package asaas

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	// Provider is the event-log provider tag for Asaas deliveries.
	Provider = "asaas"

	// EventPaymentReceived is the only event type that triggers a settlement.
	EventPaymentReceived = "PAYMENT_RECEIVED"
)

type webhookBody struct {
	Event   string `json:"event"`
	Payment struct {
		ID                string   `json:"id"`
		ExternalReference string   `json:"externalReference"`
		Value             *float64 `json:"value"`
		NetValue          *float64 `json:"netValue"`
		PaymentDate       string   `json:"paymentDate"`
	} `json:"payment"`
}

// PaymentEvent is the validated form of an Asaas webhook delivery.
type PaymentEvent struct {
	Event             string
	PaymentID         string
	ExternalReference string
	Amount            float64
	PaymentDate       string
	Raw               json.RawMessage
}

// ParseWebhook decodes an Asaas webhook body. Amount is taken from
// payment.value when present and non-zero, falling back to payment.netValue,
// then to 0. Gross-before-net order is intentional and preserved.
func ParseWebhook(body []byte) (*PaymentEvent, error) {
	var parsed webhookBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, "unmarshalling webhook body")
	}

	amount := 0.0
	if parsed.Payment.Value != nil && *parsed.Payment.Value != 0 {
		amount = *parsed.Payment.Value
	} else if parsed.Payment.NetValue != nil && *parsed.Payment.NetValue != 0 {
		amount = *parsed.Payment.NetValue
	}

	return &PaymentEvent{
		Event:             parsed.Event,
		PaymentID:         parsed.Payment.ID,
		ExternalReference: parsed.Payment.ExternalReference,
		Amount:            amount,
		PaymentDate:       parsed.Payment.PaymentDate,
		Raw:               json.RawMessage(body),
	}, nil
}

// DedupKey is the event-log identifier: two event types for the same payment
// are distinct events.
func (e *PaymentEvent) DedupKey() string {
	return e.PaymentID + ":" + e.Event
}
