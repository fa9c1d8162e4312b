package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/prepwise/partner-server-go/internal/model"
)

type BatchRepository interface {
	Create(ctx context.Context, params model.CreateBatchParams) (*model.CandidateBatch, error)
	FindByID(ctx context.Context, id string) (*model.CandidateBatch, error)
	ListByPartner(ctx context.Context, partnerID string) ([]model.CandidateBatch, error)
}

type batchRepo struct {
	db *sqlx.DB
}

func NewBatchRepository(db *sqlx.DB) BatchRepository {
	return &batchRepo{db: db}
}

func (r *batchRepo) Create(ctx context.Context, params model.CreateBatchParams) (*model.CandidateBatch, error) {
	var batch model.CandidateBatch
	err := r.db.GetContext(ctx, &batch, `
		INSERT INTO candidate_batches (partner_id, batch_name)
		VALUES ($1, $2)
		RETURNING *
	`, params.PartnerID, params.BatchName)
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepo) FindByID(ctx context.Context, id string) (*model.CandidateBatch, error) {
	var batch model.CandidateBatch
	err := r.db.GetContext(ctx, &batch, `SELECT * FROM candidate_batches WHERE id = $1`, id)
	return HandleNotFound(&batch, err)
}

func (r *batchRepo) ListByPartner(ctx context.Context, partnerID string) ([]model.CandidateBatch, error) {
	var batches []model.CandidateBatch
	err := r.db.SelectContext(ctx, &batches, `
		SELECT * FROM candidate_batches
		WHERE partner_id = $1
		ORDER BY created_at DESC
	`, partnerID)
	if err != nil {
		return nil, err
	}
	return batches, nil
}
