package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/prepwise/partner-server-go/internal/model"
)

type PartnerRepository interface {
	FindProfile(ctx context.Context, partnerID string) (*model.PartnerProfile, error)
	UpdateExamTypes(ctx context.Context, partnerID string, examTypes []string) (*model.PartnerProfile, error)
	// MarkFirstCandidateAdded sets the onboarding flag once. Reports whether it changed.
	MarkFirstCandidateAdded(ctx context.Context, partnerID string) (bool, error)
}

type partnerRepo struct {
	db *sqlx.DB
}

func NewPartnerRepository(db *sqlx.DB) PartnerRepository {
	return &partnerRepo{db: db}
}

func (r *partnerRepo) FindProfile(ctx context.Context, partnerID string) (*model.PartnerProfile, error) {
	var profile model.PartnerProfile
	err := r.db.GetContext(ctx, &profile, `
		SELECT * FROM partner_profiles WHERE user_id = $1
	`, partnerID)
	return HandleNotFound(&profile, err)
}

func (r *partnerRepo) UpdateExamTypes(ctx context.Context, partnerID string, examTypes []string) (*model.PartnerProfile, error) {
	var profile model.PartnerProfile
	err := r.db.GetContext(ctx, &profile, `
		INSERT INTO partner_profiles (user_id, exam_types)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			exam_types = EXCLUDED.exam_types,
			updated_at = $3
		RETURNING *
	`, partnerID, pq.StringArray(examTypes), time.Now())
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *partnerRepo) MarkFirstCandidateAdded(ctx context.Context, partnerID string) (bool, error) {
	n, err := rowsAffected(r.db.ExecContext(ctx, `
		INSERT INTO partner_profiles (user_id, added_first_candidate)
		VALUES ($1, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET
			added_first_candidate = TRUE,
			updated_at = $2
		WHERE partner_profiles.added_first_candidate = FALSE
	`, partnerID, time.Now()))
	return n > 0, err
}
