package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prepwise/partner-server-go/internal/model"
)

type PartnerCandidateRepository interface {
	Create(ctx context.Context, params model.CreatePartnerCandidateParams) (*model.PartnerCandidate, error)
	FindByCandidateAndBatch(ctx context.Context, candidateID, batchID string) (*model.PartnerCandidate, error)
	// FindByPartnerAndCandidate returns the most recent link between the two under any batch.
	FindByPartnerAndCandidate(ctx context.Context, partnerID, candidateID string) (*model.PartnerCandidate, error)
	FindUnassigned(ctx context.Context, partnerID, candidateID string) (*model.PartnerCandidate, error)
	// ListByPartnerAndCandidate returns every link between the two, newest first.
	ListByPartnerAndCandidate(ctx context.Context, partnerID, candidateID string) ([]model.PartnerCandidate, error)
	List(ctx context.Context, filter model.ListCandidatesFilter) ([]model.CandidateView, error)
	MarkPaid(ctx context.Context, partnerID, candidateID string) ([]model.PartnerCandidate, error)
	// SetInviteToken stores a fresh invitation token on the link and stamps
	// invite_sent_at. Only pending links are updated; returns nil otherwise.
	SetInviteToken(ctx context.Context, id, tokenHash string, expiresAt, sentAt time.Time) (*model.PartnerCandidate, error)
	// AcceptInvite moves a pending link to accepted and clears its token.
	// Returns nil if it was not pending.
	AcceptInvite(ctx context.Context, id string, acceptedAt time.Time) (*model.PartnerCandidate, error)
	// AssignToBatch sets the batch on an unassigned link and marks it paid.
	// Returns nil if the link already has a batch.
	AssignToBatch(ctx context.Context, id, batchID string) (*model.PartnerCandidate, error)
	ExpirePending(ctx context.Context, sentBefore time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) PartnerCandidateRepository
}

type partnerCandidateRepo struct {
	db sqlxDB
}

func NewPartnerCandidateRepository(db *sqlx.DB) PartnerCandidateRepository {
	return &partnerCandidateRepo{db: db}
}

func (r *partnerCandidateRepo) WithTx(tx *sqlx.Tx) PartnerCandidateRepository {
	return &partnerCandidateRepo{db: tx}
}

func (r *partnerCandidateRepo) Create(ctx context.Context, params model.CreatePartnerCandidateParams) (*model.PartnerCandidate, error) {
	var link model.PartnerCandidate
	err := r.db.GetContext(ctx, &link, `
		INSERT INTO partner_candidates (partner_id, candidate_id, batch_id, is_paid_for)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.PartnerID, params.CandidateID, params.BatchID, params.IsPaidFor)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *partnerCandidateRepo) FindByCandidateAndBatch(ctx context.Context, candidateID, batchID string) (*model.PartnerCandidate, error) {
	var link model.PartnerCandidate
	err := r.db.GetContext(ctx, &link, `
		SELECT * FROM partner_candidates
		WHERE candidate_id = $1 AND batch_id = $2
	`, candidateID, batchID)
	return HandleNotFound(&link, err)
}

func (r *partnerCandidateRepo) FindByPartnerAndCandidate(ctx context.Context, partnerID, candidateID string) (*model.PartnerCandidate, error) {
	var link model.PartnerCandidate
	err := r.db.GetContext(ctx, &link, `
		SELECT * FROM partner_candidates
		WHERE partner_id = $1 AND candidate_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, partnerID, candidateID)
	return HandleNotFound(&link, err)
}

func (r *partnerCandidateRepo) FindUnassigned(ctx context.Context, partnerID, candidateID string) (*model.PartnerCandidate, error) {
	var link model.PartnerCandidate
	err := r.db.GetContext(ctx, &link, `
		SELECT * FROM partner_candidates
		WHERE partner_id = $1 AND candidate_id = $2 AND batch_id IS NULL
	`, partnerID, candidateID)
	return HandleNotFound(&link, err)
}

func (r *partnerCandidateRepo) ListByPartnerAndCandidate(ctx context.Context, partnerID, candidateID string) ([]model.PartnerCandidate, error) {
	var links []model.PartnerCandidate
	err := r.db.SelectContext(ctx, &links, `
		SELECT * FROM partner_candidates
		WHERE partner_id = $1 AND candidate_id = $2
		ORDER BY created_at DESC
	`, partnerID, candidateID)
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *partnerCandidateRepo) List(ctx context.Context, filter model.ListCandidatesFilter) ([]model.CandidateView, error) {
	var candidates []model.CandidateView
	err := r.db.SelectContext(ctx, &candidates, `
		SELECT
			pc.id AS link_id,
			pc.candidate_id,
			u.firstname,
			u.lastname,
			u.email,
			pc.batch_id,
			pc.is_paid_for,
			pc.invite_status,
			pc.invite_sent_at,
			pc.invite_accepted_at
		FROM partner_candidates pc
		JOIN users u ON u.id = pc.candidate_id
		WHERE pc.partner_id = $1
			AND ($2::uuid IS NULL OR pc.batch_id = $2::uuid)
		ORDER BY pc.created_at DESC
		LIMIT $3 OFFSET $4
	`, filter.PartnerID, filter.BatchID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func (r *partnerCandidateRepo) MarkPaid(ctx context.Context, partnerID, candidateID string) ([]model.PartnerCandidate, error) {
	var links []model.PartnerCandidate
	err := r.db.SelectContext(ctx, &links, `
		UPDATE partner_candidates SET
			is_paid_for = TRUE,
			updated_at = $3
		WHERE partner_id = $1 AND candidate_id = $2
		RETURNING *
	`, partnerID, candidateID, time.Now())
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *partnerCandidateRepo) SetInviteToken(ctx context.Context, id, tokenHash string, expiresAt, sentAt time.Time) (*model.PartnerCandidate, error) {
	var link model.PartnerCandidate
	err := r.db.GetContext(ctx, &link, `
		UPDATE partner_candidates SET
			invite_token_hash = $2,
			invite_token_expires_at = $3,
			invite_sent_at = $4,
			updated_at = $4
		WHERE id = $1 AND invite_status = $5
		RETURNING *
	`, id, tokenHash, expiresAt, sentAt, model.InviteStatusPending)
	return HandleNotFound(&link, err)
}

func (r *partnerCandidateRepo) AcceptInvite(ctx context.Context, id string, acceptedAt time.Time) (*model.PartnerCandidate, error) {
	var link model.PartnerCandidate
	err := r.db.GetContext(ctx, &link, `
		UPDATE partner_candidates SET
			invite_status = $2,
			invite_accepted_at = $3,
			invite_token_hash = NULL,
			invite_token_expires_at = NULL,
			updated_at = $3
		WHERE id = $1 AND invite_status = $4
		RETURNING *
	`, id, model.InviteStatusAccepted, acceptedAt, model.InviteStatusPending)
	return HandleNotFound(&link, err)
}

func (r *partnerCandidateRepo) AssignToBatch(ctx context.Context, id, batchID string) (*model.PartnerCandidate, error) {
	var link model.PartnerCandidate
	err := r.db.GetContext(ctx, &link, `
		UPDATE partner_candidates SET
			batch_id = $2,
			is_paid_for = TRUE,
			updated_at = $3
		WHERE id = $1 AND batch_id IS NULL
		RETURNING *
	`, id, batchID, time.Now())
	return HandleNotFound(&link, err)
}

func (r *partnerCandidateRepo) ExpirePending(ctx context.Context, sentBefore time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		UPDATE partner_candidates SET
			invite_status = $1,
			updated_at = NOW()
		WHERE invite_status = $2 AND invite_sent_at < $3
	`, model.InviteStatusExpired, model.InviteStatusPending, sentBefore))
}
