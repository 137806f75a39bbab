package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PaymentLinkRepository maintains the optional payment-to-installment
// bookkeeping table. Nothing in the webhook path requires it.
type PaymentLinkRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentLinkRepository(pool *pgxpool.Pool) *PaymentLinkRepository {
	return &PaymentLinkRepository{pool: pool}
}

func (r *PaymentLinkRepository) Create(ctx context.Context, entity *PaymentLinkEntity) (*PaymentLinkEntity, error) {
	query := `INSERT INTO payment_links (asaas_payment_id, asaas_external_ref, contaazul_parcela_id, status)
	          VALUES ($1, $2, $3, $4) RETURNING id`

	err := r.pool.QueryRow(ctx, query, entity.AsaasPaymentID, entity.AsaasExternalRef, entity.ContaAzulParcelaID, entity.Status).Scan(&entity.ID)
	if err != nil {
		return nil, errors.Wrap(err, "inserting payment link")
	}
	return entity, nil
}

func (r *PaymentLinkRepository) GetByPaymentID(ctx context.Context, asaasPaymentID string) (*PaymentLinkEntity, error) {
	query := `SELECT id, asaas_payment_id, asaas_external_ref, contaazul_parcela_id, status
	          FROM payment_links WHERE asaas_payment_id = $1`

	var entity PaymentLinkEntity
	err := r.pool.QueryRow(ctx, query, asaasPaymentID).Scan(
		&entity.ID,
		&entity.AsaasPaymentID,
		&entity.AsaasExternalRef,
		&entity.ContaAzulParcelaID,
		&entity.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying payment link")
	}
	return &entity, nil
}

func (r *PaymentLinkRepository) UpdateStatus(ctx context.Context, asaasPaymentID, status string) error {
	query := `UPDATE payment_links SET status = $2 WHERE asaas_payment_id = $1`

	_, err := r.pool.Exec(ctx, query, asaasPaymentID, status)
	return errors.Wrap(err, "updating payment link status")
}
