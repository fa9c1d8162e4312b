package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/prepwise/partner-server-go/internal/model"
)

type CandidateUploadRepository interface {
	Create(ctx context.Context, params model.CreateCandidateUploadParams) (*model.CandidateUpload, error)
}

type candidateUploadRepo struct {
	db *sqlx.DB
}

func NewCandidateUploadRepository(db *sqlx.DB) CandidateUploadRepository {
	return &candidateUploadRepo{db: db}
}

func (r *candidateUploadRepo) Create(ctx context.Context, params model.CreateCandidateUploadParams) (*model.CandidateUpload, error) {
	var upload model.CandidateUpload
	err := r.db.GetContext(ctx, &upload, `
		INSERT INTO candidate_uploads (partner_id, batch_id, object_key, filename, total_rows, successful, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, params.PartnerID, params.BatchID, params.ObjectKey, params.Filename,
		params.TotalRows, params.Successful, params.Failed)
	if err != nil {
		return nil, err
	}
	return &upload, nil
}
