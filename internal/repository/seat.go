package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prepwise/partner-server-go/internal/model"
)

type SeatRepository interface {
	Create(ctx context.Context, params model.CreateSeatParams) (*model.SeatSubscription, error)
	FindByID(ctx context.Context, id string) (*model.SeatSubscription, error)
	FindActive(ctx context.Context, partnerID, batchID string) (*model.SeatSubscription, error)
	ListByPartner(ctx context.Context, partnerID string) ([]model.SeatSubscription, error)
	// IncrementAssigned adds n unconditionally.
	IncrementAssigned(ctx context.Context, id string, n int) (*model.SeatSubscription, error)
	// IncrementAssignedIfAvailable adds n only while the grant is active and
	// seats_assigned+n stays within seat_count. Returns nil when no room.
	IncrementAssignedIfAvailable(ctx context.Context, id string, n int) (*model.SeatSubscription, error)
	// DecrementAssigned subtracts n, floored at zero.
	DecrementAssigned(ctx context.Context, id string, n int) (*model.SeatSubscription, error)
	Deactivate(ctx context.Context, partnerID, batchID string) (int64, error)
	DeactivateEnded(ctx context.Context, now time.Time) (int64, error)
	UsageReport(ctx context.Context) ([]model.SeatUsage, error)
}

type seatRepo struct {
	db *sqlx.DB
}

func NewSeatRepository(db *sqlx.DB) SeatRepository {
	return &seatRepo{db: db}
}

func (r *seatRepo) Create(ctx context.Context, params model.CreateSeatParams) (*model.SeatSubscription, error) {
	var seat model.SeatSubscription
	err := r.db.GetContext(ctx, &seat, `
		INSERT INTO seat_subscriptions (partner_id, batch_id, seat_count, sessions_per_day, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.PartnerID, params.BatchID, params.SeatCount, params.SessionsPerDay, params.StartDate, params.EndDate)
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

func (r *seatRepo) FindByID(ctx context.Context, id string) (*model.SeatSubscription, error) {
	var seat model.SeatSubscription
	err := r.db.GetContext(ctx, &seat, `SELECT * FROM seat_subscriptions WHERE id = $1`, id)
	return HandleNotFound(&seat, err)
}

func (r *seatRepo) FindActive(ctx context.Context, partnerID, batchID string) (*model.SeatSubscription, error) {
	var seat model.SeatSubscription
	err := r.db.GetContext(ctx, &seat, `
		SELECT * FROM seat_subscriptions
		WHERE partner_id = $1 AND batch_id = $2 AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`, partnerID, batchID)
	return HandleNotFound(&seat, err)
}

func (r *seatRepo) ListByPartner(ctx context.Context, partnerID string) ([]model.SeatSubscription, error) {
	var seats []model.SeatSubscription
	err := r.db.SelectContext(ctx, &seats, `
		SELECT * FROM seat_subscriptions
		WHERE partner_id = $1
		ORDER BY created_at DESC
	`, partnerID)
	if err != nil {
		return nil, err
	}
	return seats, nil
}

func (r *seatRepo) IncrementAssigned(ctx context.Context, id string, n int) (*model.SeatSubscription, error) {
	var seat model.SeatSubscription
	err := r.db.GetContext(ctx, &seat, `
		UPDATE seat_subscriptions SET
			seats_assigned = seats_assigned + $2,
			updated_at = $3
		WHERE id = $1
		RETURNING *
	`, id, n, time.Now())
	return HandleNotFound(&seat, err)
}

func (r *seatRepo) IncrementAssignedIfAvailable(ctx context.Context, id string, n int) (*model.SeatSubscription, error) {
	var seat model.SeatSubscription
	err := r.db.GetContext(ctx, &seat, `
		UPDATE seat_subscriptions SET
			seats_assigned = seats_assigned + $2,
			updated_at = $3
		WHERE id = $1
			AND is_active = TRUE
			AND seats_assigned + $2 <= seat_count
		RETURNING *
	`, id, n, time.Now())
	return HandleNotFound(&seat, err)
}

func (r *seatRepo) DecrementAssigned(ctx context.Context, id string, n int) (*model.SeatSubscription, error) {
	var seat model.SeatSubscription
	err := r.db.GetContext(ctx, &seat, `
		UPDATE seat_subscriptions SET
			seats_assigned = GREATEST(seats_assigned - $2, 0),
			updated_at = $3
		WHERE id = $1
		RETURNING *
	`, id, n, time.Now())
	return HandleNotFound(&seat, err)
}

func (r *seatRepo) Deactivate(ctx context.Context, partnerID, batchID string) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		UPDATE seat_subscriptions SET
			is_active = FALSE,
			updated_at = $3
		WHERE partner_id = $1 AND batch_id = $2 AND is_active = TRUE
	`, partnerID, batchID, time.Now()))
}

func (r *seatRepo) DeactivateEnded(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		UPDATE seat_subscriptions SET
			is_active = FALSE,
			updated_at = $1
		WHERE is_active = TRUE AND end_date < $1
	`, now))
}

func (r *seatRepo) UsageReport(ctx context.Context) ([]model.SeatUsage, error) {
	var usage []model.SeatUsage
	err := r.db.SelectContext(ctx, &usage, `
		SELECT
			s.id AS seat_id,
			s.partner_id,
			COALESCE(p.organization_name, '') AS organization_name,
			b.batch_name,
			s.seat_count,
			s.seats_assigned,
			s.is_active,
			s.end_date
		FROM seat_subscriptions s
		JOIN candidate_batches b ON b.id = s.batch_id
		LEFT JOIN partner_profiles p ON p.user_id = s.partner_id
		ORDER BY organization_name, b.batch_name, s.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return usage, nil
}
