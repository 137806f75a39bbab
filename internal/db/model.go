package db

import "time"

// ProcessedEventEntity is one handled webhook delivery. The triple
// (Provider, EventType, EventID) is the deduplication key. Rows are written
// once and never mutated.
type ProcessedEventEntity struct {
	ID          int64
	Provider    string
	EventType   string
	EventID     string
	Payload     []byte
	ProcessedAt time.Time
}

// PaymentLinkEntity maps an Asaas payment to a ContaAzul installment.
// Optional bookkeeping; the webhook path does not depend on it.
type PaymentLinkEntity struct {
	ID                 int64
	AsaasPaymentID     string
	AsaasExternalRef   *string
	ContaAzulParcelaID *string
	Status             string
}

// OAuthTokenEntity holds the single live token for a provider. Writes use
// replace semantics: any existing row for the provider is deleted first.
type OAuthTokenEntity struct {
	ID           int64
	Provider     string
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
